package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/zhouzirui/crossview/backend/internal/model/participant"
)

var (
	ErrInvalidGroup  = errors.New("group cannot be queued")
	ErrAlreadyQueued = errors.New("participant already queued")
	ErrEmpty         = errors.New("queue empty")
)

// Entry 表示一个等待配对的参与者。
type Entry struct {
	ParticipantID string
	ConnID        string
	EnqueuedAt    time.Time
}

// Manager keeps one FIFO queue per opposing group. It is not safe for
// concurrent use; callers serialize access through the scheduler.
type Manager struct {
	queues map[participant.Group][]Entry
}

// NewManager 创建空的等待队列。
func NewManager() *Manager {
	return &Manager{
		queues: map[participant.Group][]Entry{
			participant.GroupA: nil,
			participant.GroupB: nil,
		},
	}
}

// Enqueue appends entry to the tail of group's queue. Neutral or unknown
// groups and participants already waiting in either queue are rejected.
func (m *Manager) Enqueue(group participant.Group, entry Entry) error {
	if !group.Pairable() {
		return fmt.Errorf("%w: %q", ErrInvalidGroup, group)
	}
	if g, ok := m.Find(entry.ParticipantID); ok {
		return fmt.Errorf("%w: %s waiting in %s", ErrAlreadyQueued, entry.ParticipantID, g)
	}
	m.queues[group] = append(m.queues[group], entry)
	return nil
}

// DequeueOldest removes and returns the head of group's queue.
func (m *Manager) DequeueOldest(group participant.Group) (Entry, error) {
	q := m.queues[group]
	if len(q) == 0 {
		return Entry{}, ErrEmpty
	}
	head := q[0]
	m.queues[group] = q[1:]
	return head, nil
}

// RemoveByParticipant drops a waiting participant. Absent ids are ignored.
func (m *Manager) RemoveByParticipant(group participant.Group, participantID string) {
	q, ok := m.queues[group]
	if !ok {
		return
	}
	m.queues[group] = lo.Reject(q, func(e Entry, _ int) bool {
		return e.ParticipantID == participantID
	})
}

// RemoveByConn drops every entry that was enqueued from connID and returns
// the removed entries.
func (m *Manager) RemoveByConn(connID string) []Entry {
	var removed []Entry
	for group, q := range m.queues {
		kept, dropped := lo.FilterReject(q, func(e Entry, _ int) bool {
			return e.ConnID != connID
		})
		m.queues[group] = kept
		removed = append(removed, dropped...)
	}
	return removed
}

// Position returns the current length of group's queue.
func (m *Manager) Position(group participant.Group) int {
	return len(m.queues[group])
}

// Find reports which queue holds participantID, if any.
func (m *Manager) Find(participantID string) (participant.Group, bool) {
	for _, group := range []participant.Group{participant.GroupA, participant.GroupB} {
		if lo.ContainsBy(m.queues[group], func(e Entry) bool { return e.ParticipantID == participantID }) {
			return group, true
		}
	}
	return "", false
}
