package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/crossview/backend/internal/model/participant"
)

func entry(id string) Entry {
	return Entry{ParticipantID: id, ConnID: "conn-" + id, EnqueuedAt: time.Unix(0, 0)}
}

func TestEnqueueDequeueIsFIFO(t *testing.T) {
	req := require.New(t)
	m := NewManager()

	req.NoError(m.Enqueue(participant.GroupA, entry("p1")))
	req.NoError(m.Enqueue(participant.GroupA, entry("p2")))
	req.Equal(2, m.Position(participant.GroupA))

	head, err := m.DequeueOldest(participant.GroupA)
	req.NoError(err)
	req.Equal("p1", head.ParticipantID)

	head, err = m.DequeueOldest(participant.GroupA)
	req.NoError(err)
	req.Equal("p2", head.ParticipantID)

	_, err = m.DequeueOldest(participant.GroupA)
	req.ErrorIs(err, ErrEmpty)
}

func TestEnqueueRejectsNeutral(t *testing.T) {
	req := require.New(t)
	m := NewManager()

	req.ErrorIs(m.Enqueue(participant.Neutral, entry("p1")), ErrInvalidGroup)
	req.ErrorIs(m.Enqueue(participant.Group("other"), entry("p1")), ErrInvalidGroup)
	req.Zero(m.Position(participant.Neutral))
}

func TestEnqueueRejectsParticipantInEitherQueue(t *testing.T) {
	req := require.New(t)
	m := NewManager()

	req.NoError(m.Enqueue(participant.GroupA, entry("p1")))
	req.ErrorIs(m.Enqueue(participant.GroupA, entry("p1")), ErrAlreadyQueued)
	req.ErrorIs(m.Enqueue(participant.GroupB, entry("p1")), ErrAlreadyQueued)
	req.Equal(1, m.Position(participant.GroupA))
	req.Zero(m.Position(participant.GroupB))
}

func TestRemoveByParticipant(t *testing.T) {
	req := require.New(t)
	m := NewManager()

	req.NoError(m.Enqueue(participant.GroupB, entry("p1")))
	req.NoError(m.Enqueue(participant.GroupB, entry("p2")))

	m.RemoveByParticipant(participant.GroupB, "p1")
	m.RemoveByParticipant(participant.GroupB, "absent")
	m.RemoveByParticipant(participant.Neutral, "p2")

	req.Equal(1, m.Position(participant.GroupB))
	_, ok := m.Find("p1")
	req.False(ok)
	group, ok := m.Find("p2")
	req.True(ok)
	req.Equal(participant.GroupB, group)
}

func TestRemoveByConn(t *testing.T) {
	req := require.New(t)
	m := NewManager()

	req.NoError(m.Enqueue(participant.GroupA, entry("p1")))
	req.NoError(m.Enqueue(participant.GroupB, entry("p2")))

	removed := m.RemoveByConn("conn-p2")
	req.Len(removed, 1)
	req.Equal("p2", removed[0].ParticipantID)
	req.Zero(m.Position(participant.GroupB))
	req.Equal(1, m.Position(participant.GroupA))

	req.Empty(m.RemoveByConn("conn-unknown"))
}
