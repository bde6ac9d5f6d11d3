package chat

// Realtime event names exchanged with clients.
const (
	EventJoinQueue      = "join_queue"
	EventJoinSession    = "join_session"
	EventSendMessage    = "send_message"
	EventTypingStart    = "typing_start"
	EventTypingStop     = "typing_stop"
	EventLeaveSession   = "leave_session"
	EventLeaveChatEarly = "leave_chat_early"

	EventQueueStatus             = "queue_status"
	EventMatchFound              = "match_found"
	EventSessionJoined           = "session_joined"
	EventReceiveMessage          = "receive_message"
	EventParticipantDisconnected = "participant_disconnected"
	EventParticipantLeftEarly    = "participant_left_early"
	EventConversationEnded       = "conversation_ended"
	EventError                   = "error"
)

// QueueStatus 告知等待中的参与者当前队列长度。
type QueueStatus struct {
	Position        int    `json:"position"`
	WaitingForGroup string `json:"waitingForGroup"`
}

type MatchFound struct {
	SessionID string `json:"sessionId"`
}

// Introduction presents one participant to the other when the session
// becomes active.
type Introduction struct {
	ParticipantID      string `json:"participantId"`
	DisplayName        string `json:"displayName"`
	Classification     string `json:"classification"`
	PersonalViews      string `json:"personalViews"`
	InfluencingFactors string `json:"influencingFactors"`
}

type SessionJoined struct {
	Introductions []Introduction    `json:"introductions"`
	DisplayNames  map[string]string `json:"displayNames"`
}

type ParticipantNotice struct {
	ParticipantID string `json:"participantId,omitempty"`
}

type ConversationEnded struct {
	Reason Reason `json:"reason"`
}

type ErrorNotice struct {
	Message string `json:"message"`
}
