package chat

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/crossview/backend/internal/model/chat"
	"github.com/zhouzirui/crossview/backend/internal/model/participant"
	"github.com/zhouzirui/crossview/backend/internal/service/queue"
	"github.com/zhouzirui/crossview/backend/internal/store"
)

// JoinQueue places a registered participant in its group's queue and runs
// the matchmaker.
func (s *Service) JoinQueue(connID, participantID string) error {
	var err error
	s.sched.Do(func() {
		err = s.joinQueue(connID, participantID)
	})
	return err
}

func (s *Service) joinQueue(connID, participantID string) error {
	p, err := s.registry.Lookup(participantID)
	if err != nil {
		s.sendError(connID, "Participant not found")
		return err
	}
	if sessionID, matched := s.liveSessionOf(participantID); matched {
		s.log.Error("enqueue_rejected",
			zap.String("participant", participantID),
			zap.String("session", sessionID),
			zap.Error(ErrAlreadyMatched))
		s.sendError(connID, "Unable to join the waiting queue")
		return ErrAlreadyMatched
	}

	entry := queue.Entry{
		ParticipantID: participantID,
		ConnID:        connID,
		EnqueuedAt:    s.sched.Now(),
	}
	if err := s.queues.Enqueue(p.Group, entry); err != nil {
		// Neutral or duplicate entries mean a caller upstream is broken.
		s.log.Error("enqueue_rejected",
			zap.String("participant", participantID),
			zap.String("group", string(p.Group)),
			zap.Error(err))
		s.sendError(connID, "Unable to join the waiting queue")
		return err
	}
	s.conns[connID] = binding{participantID: participantID}
	s.log.Info("participant_queued",
		zap.String("participant", participantID),
		zap.String("group", string(p.Group)))

	s.drainMatches()
	s.reportQueueDepth()

	if g, waiting := s.queues.Find(participantID); waiting {
		s.hub.Send(connID, chat.EventQueueStatus, chat.QueueStatus{
			Position:        s.queues.Position(g),
			WaitingForGroup: s.cfg.Labels.Of(g.Opposite()),
		})
	}
	return nil
}

// drainMatches pairs queue heads until one side is empty.
func (s *Service) drainMatches() {
	for s.queues.Position(participant.GroupA) > 0 && s.queues.Position(participant.GroupB) > 0 {
		a, errA := s.queues.DequeueOldest(participant.GroupA)
		b, errB := s.queues.DequeueOldest(participant.GroupB)
		if err := errors.Join(errA, errB); err != nil {
			s.log.Error("dequeue_failed", zap.Error(err))
			return
		}
		s.createSession(a, b)
	}
}

// createSession builds a session from a groupA and a groupB entry, notifies
// both connections and arms the single expiry timer.
func (s *Service) createSession(a, b queue.Entry) {
	now := s.sched.Now()
	first := a.EnqueuedAt
	if b.EnqueuedAt.Before(first) {
		first = b.EnqueuedAt
	}
	pairing := int(now.Sub(first).Seconds())

	id := newSessionID()
	for _, taken := s.sessions[id]; taken; _, taken = s.sessions[id] {
		id = newSessionID()
	}
	sess := chat.NewSession(id, [2]string{a.ParticipantID, b.ParticipantID}, now, pairing)
	s.sessions[id] = sess
	s.metrics.SessionCreated()
	s.persist(store.Sessions, id, sess.Record())

	for _, e := range []queue.Entry{a, b} {
		// The queue connection now belongs to the session, so dropping it
		// before join_session starts the grace period.
		s.conns[e.ConnID] = binding{participantID: e.ParticipantID, sessionID: id}
		s.hub.Send(e.ConnID, chat.EventMatchFound, chat.MatchFound{SessionID: id})
	}
	s.log.Info("session_created",
		zap.String("session", id),
		zap.String("group_a", a.ParticipantID),
		zap.String("group_b", b.ParticipantID),
		zap.Int("pairing_seconds", pairing))

	s.sched.After(s.cfg.SessionDuration, "session_expiry", func() {
		s.expire(id)
	})
}

// liveSessionOf finds the session participantID is paired into, as long as
// that session has not ended.
func (s *Service) liveSessionOf(participantID string) (string, bool) {
	for id, sess := range s.sessions {
		if sess.Has(participantID) && !sess.Ended() {
			return id, true
		}
	}
	return "", false
}

func newSessionID() string {
	return fmt.Sprintf("sess_%s", uuid.NewString()[:8])
}
