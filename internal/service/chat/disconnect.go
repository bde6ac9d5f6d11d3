package chat

import (
	"go.uber.org/zap"

	"github.com/zhouzirui/crossview/backend/internal/model/chat"
)

// Disconnect handles an abrupt connection loss. Queue entries made from the
// connection are dropped; a participant in a live session gets the two-stage
// grace period before the session ends.
func (s *Service) Disconnect(connID string) {
	s.sched.Do(func() {
		s.disconnect(connID)
	})
}

func (s *Service) disconnect(connID string) {
	if removed := s.queues.RemoveByConn(connID); len(removed) > 0 {
		s.reportQueueDepth()
		s.log.Info("queue_entries_dropped",
			zap.String("conn", connID),
			zap.Int("count", len(removed)))
	}

	b, ok := s.conns[connID]
	delete(s.conns, connID)
	if !ok || b.sessionID == "" {
		return
	}
	s.hub.Leave(b.sessionID, connID)

	sess, ok := s.sessions[b.sessionID]
	if !ok || sess.Ended() {
		return
	}
	if s.boundElsewhere(b) {
		// The participant already rejoined on a newer connection.
		return
	}

	sess.Disconnect(b.participantID)
	key := graceKey{b.sessionID, b.participantID}
	s.grace[key]++
	gen := s.grace[key]
	s.log.Info("participant_disconnected",
		zap.String("session", b.sessionID),
		zap.String("participant", b.participantID))

	s.sched.After(s.cfg.GraceFirst, "grace_notify", func() {
		s.graceNotify(key, gen)
	})
}

// graceNotify is the first grace stage: tell the peer and arm the second.
func (s *Service) graceNotify(key graceKey, gen uint64) {
	sess, ok := s.stillAbsent(key, gen)
	if !ok {
		return
	}
	s.hub.Broadcast(sess.ID, chat.EventParticipantDisconnected, chat.ParticipantNotice{ParticipantID: key.participantID})
	s.sched.After(s.cfg.GraceSecond, "grace_expire", func() {
		s.graceExpire(key, gen)
	})
}

// graceExpire is the second grace stage: end the session.
func (s *Service) graceExpire(key graceKey, gen uint64) {
	sess, ok := s.stillAbsent(key, gen)
	if !ok {
		return
	}
	s.endSession(sess, chat.ReasonDisconnect)
}

// stillAbsent re-reads live state: the grace stage only proceeds when no
// rejoin happened since it was armed and the session is still running.
func (s *Service) stillAbsent(key graceKey, gen uint64) (*chat.Session, bool) {
	if s.grace[key] != gen {
		return nil, false
	}
	sess, ok := s.sessions[key.sessionID]
	if !ok || sess.Ended() || sess.IsConnected(key.participantID) {
		return nil, false
	}
	return sess, true
}

func (s *Service) boundElsewhere(b binding) bool {
	for _, other := range s.conns {
		if other == b {
			return true
		}
	}
	return false
}
