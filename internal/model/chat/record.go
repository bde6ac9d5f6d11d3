package chat

import "time"

// SessionRecord is the persisted form of a session.
type SessionRecord struct {
	SessionID              string            `json:"sessionId"`
	Participants           [2]string         `json:"participants"`
	TimestampStart         time.Time         `json:"timestampStart"`
	TimestampEnd           *time.Time        `json:"timestampEnd,omitempty"`
	PairingTimeSeconds     int               `json:"pairingTimeSeconds"`
	Status                 Status            `json:"status"`
	ConnectedParticipants  []string          `json:"connectedParticipants"`
	ParticipantNames       map[string]string `json:"participantNames,omitempty"`
	Conversation           []Message         `json:"conversation"`
	CompletionReason       Reason            `json:"completionReason,omitempty"`
	CompletionStatus       Completion        `json:"completionStatus,omitempty"`
	DurationSeconds        *int              `json:"conversationDurationSeconds,omitempty"`
	MessageCount           *int              `json:"messageCount,omitempty"`
	MessagesPerParticipant map[string]int    `json:"messagesPerParticipant,omitempty"`
}

// ConversationMetadata summarises a conversation snapshot. Running snapshots
// carry LastUpdated; the final record carries the completion fields.
type ConversationMetadata struct {
	TotalMessages          int            `json:"totalMessages"`
	LastUpdated            *time.Time     `json:"lastUpdated,omitempty"`
	MessagesPerParticipant map[string]int `json:"messagesPerParticipant,omitempty"`
	DurationSeconds        *int           `json:"conversationDurationSeconds,omitempty"`
	CompletionReason       Reason         `json:"completionReason,omitempty"`
}

// ConversationRecord is the persisted conversation of a session.
type ConversationRecord struct {
	SessionID    string               `json:"sessionId"`
	Conversation []Message            `json:"conversation"`
	Metadata     ConversationMetadata `json:"conversationMetadata"`
}

// Record snapshots the session for the durable store.
func (s *Session) Record() SessionRecord {
	rec := SessionRecord{
		SessionID:             s.ID,
		Participants:          s.Participants,
		TimestampStart:        s.StartedAt,
		PairingTimeSeconds:    s.PairingSeconds,
		Status:                s.status,
		ConnectedParticipants: s.Connected(),
		ParticipantNames:      s.displayNames,
		Conversation:          s.Conversation(),
	}
	if s.Ended() {
		end := s.endedAt
		duration := s.DurationSeconds(end)
		count := s.MessageCount()
		rec.TimestampEnd = &end
		rec.CompletionReason = s.reason
		rec.CompletionStatus = s.Completion()
		rec.DurationSeconds = &duration
		rec.MessageCount = &count
		rec.MessagesPerParticipant = s.Tally()
	}
	return rec
}

// Snapshot is the running conversation record written after every message.
func (s *Session) Snapshot(now time.Time) ConversationRecord {
	return ConversationRecord{
		SessionID:    s.ID,
		Conversation: s.Conversation(),
		Metadata: ConversationMetadata{
			TotalMessages: s.MessageCount(),
			LastUpdated:   &now,
		},
	}
}

// FinalConversation is the conversation record written when the session ends.
func (s *Session) FinalConversation() ConversationRecord {
	duration := s.DurationSeconds(s.endedAt)
	return ConversationRecord{
		SessionID:    s.ID,
		Conversation: s.Conversation(),
		Metadata: ConversationMetadata{
			TotalMessages:          s.MessageCount(),
			MessagesPerParticipant: s.Tally(),
			DurationSeconds:        &duration,
			CompletionReason:       s.reason,
		},
	}
}
