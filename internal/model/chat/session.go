package chat

import (
	"errors"
	"slices"
	"time"

	"github.com/samber/lo"
)

// Status 会话状态：created → active → ended。
type Status string

const (
	StatusCreated Status = "created"
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
)

// Reason explains why a session ended.
type Reason string

const (
	ReasonTimeLimit    Reason = "time_limit"
	ReasonLeftEarly    Reason = "participant_left_early"
	ReasonDisconnect   Reason = "participant_disconnect"
	ReasonSessionEnded Reason = "session_ended"
)

// Completion is the binary research outcome of an ended session.
type Completion string

const (
	Completed  Completion = "completed"
	Incomplete Completion = "incomplete"
)

var ErrSessionEnded = errors.New("session already ended")

// Session captures one timed conversation between a groupA and a groupB
// participant. The conversation log and the connected set are only changed
// through its methods.
type Session struct {
	ID             string
	Participants   [2]string
	StartedAt      time.Time
	PairingSeconds int

	status       Status
	endedAt      time.Time
	reason       Reason
	conversation []Message
	connected    []string
	displayNames map[string]string
}

// NewSession creates a session in the created state. participants[0] must be
// the groupA participant.
func NewSession(id string, participants [2]string, startedAt time.Time, pairingSeconds int) *Session {
	return &Session{
		ID:             id,
		Participants:   participants,
		StartedAt:      startedAt,
		PairingSeconds: pairingSeconds,
		status:         StatusCreated,
		conversation:   make([]Message, 0, 32),
	}
}

func (s *Session) Status() Status { return s.status }
func (s *Session) Reason() Reason { return s.reason }
func (s *Session) Ended() bool    { return s.status == StatusEnded }

// Has reports whether pid is one of the two paired participants.
func (s *Session) Has(pid string) bool {
	return s.Participants[0] == pid || s.Participants[1] == pid
}

// Connect adds pid to the connected set and reports whether it was absent.
func (s *Session) Connect(pid string) bool {
	if slices.Contains(s.connected, pid) {
		return false
	}
	s.connected = append(s.connected, pid)
	return true
}

// Disconnect removes pid from the connected set and reports whether it was
// present.
func (s *Session) Disconnect(pid string) bool {
	before := len(s.connected)
	s.connected = lo.Without(s.connected, pid)
	return len(s.connected) != before
}

func (s *Session) IsConnected(pid string) bool {
	return slices.Contains(s.connected, pid)
}

// Connected returns a copy of the connected set in join order.
func (s *Session) Connected() []string {
	return slices.Clone(s.connected)
}

// Activate moves a created session to active once both participants are
// connected. It returns true only for the call that performs the transition.
func (s *Session) Activate(displayNames map[string]string) bool {
	if s.status != StatusCreated || len(s.connected) != 2 {
		return false
	}
	s.status = StatusActive
	s.displayNames = displayNames
	return true
}

// DisplayNames returns the names assigned on activation.
func (s *Session) DisplayNames() map[string]string {
	return s.displayNames
}

// Append adds msg to the conversation log.
func (s *Session) Append(msg Message) error {
	if s.Ended() {
		return ErrSessionEnded
	}
	s.conversation = append(s.conversation, msg)
	return nil
}

// Conversation returns a copy of the conversation log.
func (s *Session) Conversation() []Message {
	return slices.Clone(s.conversation)
}

// MessageCount returns the length of the conversation log.
func (s *Session) MessageCount() int {
	return len(s.conversation)
}

// Tally counts messages per paired participant; silent participants map to 0.
func (s *Session) Tally() map[string]int {
	counts := lo.CountValuesBy(s.conversation, func(m Message) string { return m.Sender })
	tally := make(map[string]int, 2)
	for _, pid := range s.Participants {
		tally[pid] = counts[pid]
	}
	return tally
}

// Elapsed returns the time since the session started.
func (s *Session) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.StartedAt)
}

// End moves the session to ended. It returns false when the session had
// already ended, leaving the first end untouched.
func (s *Session) End(now time.Time, reason Reason) bool {
	if s.Ended() {
		return false
	}
	s.status = StatusEnded
	s.endedAt = now
	s.reason = reason
	return true
}

// Completion reports completed only for sessions that ran to the time limit.
func (s *Session) Completion() Completion {
	if s.reason == ReasonTimeLimit {
		return Completed
	}
	return Incomplete
}

// DurationSeconds returns whole seconds between start and end (or now for
// sessions still running).
func (s *Session) DurationSeconds(now time.Time) int {
	end := now
	if s.Ended() {
		end = s.endedAt
	}
	return int(end.Sub(s.StartedAt) / time.Second)
}
