package chat

import (
	"go.uber.org/zap"

	"github.com/zhouzirui/crossview/backend/internal/model/chat"
	"github.com/zhouzirui/crossview/backend/internal/model/participant"
	"github.com/zhouzirui/crossview/backend/internal/store"
)

// JoinSession attaches connID to a matched session. The session turns active
// once both participants are connected.
func (s *Service) JoinSession(connID, sessionID, participantID string) error {
	var err error
	s.sched.Do(func() {
		err = s.joinSession(connID, sessionID, participantID)
	})
	return err
}

func (s *Service) joinSession(connID, sessionID, participantID string) error {
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.sendError(connID, "Session not found or has ended")
		return ErrSessionNotFound
	}
	if !sess.Has(participantID) {
		s.sendError(connID, "You are not part of this session")
		return ErrNotInSession
	}
	if sess.Ended() {
		s.hub.Send(connID, chat.EventConversationEnded, chat.ConversationEnded{Reason: chat.ReasonSessionEnded})
		return ErrConversationEnded
	}

	s.hub.Join(sessionID, connID)
	s.conns[connID] = binding{participantID: participantID, sessionID: sessionID}
	// A rejoin invalidates any grace stage still pending for this participant.
	s.grace[graceKey{sessionID, participantID}]++
	sess.Connect(participantID)
	s.log.Info("participant_joined_session",
		zap.String("session", sessionID),
		zap.String("participant", participantID),
		zap.Int("connected", len(sess.Connected())))

	switch sess.Status() {
	case chat.StatusCreated:
		if sess.Activate(s.displayNames(sess)) {
			s.log.Info("session_active", zap.String("session", sessionID))
			s.persist(store.Sessions, sessionID, sess.Record())
			s.hub.Broadcast(sessionID, chat.EventSessionJoined, s.introductions(sess))
		}
	case chat.StatusActive:
		// Reconnected into a running conversation.
		s.hub.Send(connID, chat.EventSessionJoined, s.introductions(sess))
	}
	return nil
}

// LeaveSession tells the peer this connection has gone and detaches it from
// the session group. The session itself is unchanged.
func (s *Service) LeaveSession(connID, sessionID string) {
	s.sched.Do(func() {
		s.hub.BroadcastExcept(sessionID, connID, chat.EventParticipantDisconnected, s.notice(connID))
		s.hub.Leave(sessionID, connID)
	})
}

// LeaveChatEarly ends an active session on a participant's request.
func (s *Service) LeaveChatEarly(connID, sessionID string) error {
	var err error
	s.sched.Do(func() {
		sess, ok := s.sessions[sessionID]
		switch {
		case !ok:
			err = ErrSessionNotFound
		case sess.Status() != chat.StatusActive:
			err = ErrSessionNotActive
		default:
			s.hub.BroadcastExcept(sessionID, connID, chat.EventParticipantLeftEarly, s.notice(connID))
			s.endSession(sess, chat.ReasonLeftEarly)
		}
		s.hub.Leave(sessionID, connID)
	})
	return err
}

func (s *Service) expire(sessionID string) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	s.endSession(sess, chat.ReasonTimeLimit)
}

// endSession finalises sess once. Later calls are no-ops.
func (s *Service) endSession(sess *chat.Session, reason chat.Reason) bool {
	now := s.sched.Now()
	if !sess.End(now, reason) {
		return false
	}

	s.persist(store.Sessions, sess.ID, sess.Record())
	if sess.MessageCount() > 0 {
		s.persist(store.Conversations, sess.ID, sess.FinalConversation())
	}
	s.hub.Broadcast(sess.ID, chat.EventConversationEnded, chat.ConversationEnded{Reason: reason})
	s.metrics.SessionEnded(string(reason))
	s.log.Info("session_ended",
		zap.String("session", sess.ID),
		zap.String("reason", string(reason)),
		zap.String("completion", string(sess.Completion())),
		zap.Int("messages", sess.MessageCount()),
		zap.Int("duration_seconds", sess.DurationSeconds(now)))

	id := sess.ID
	s.sched.After(s.cfg.RemovalDelay, "session_removal", func() {
		s.remove(id)
	})
	return true
}

// remove drops an ended session from live memory along with its connection
// bindings and grace generations.
func (s *Service) remove(sessionID string) {
	if _, ok := s.sessions[sessionID]; !ok {
		return
	}
	delete(s.sessions, sessionID)
	for connID, b := range s.conns {
		if b.sessionID == sessionID {
			s.hub.Leave(sessionID, connID)
			delete(s.conns, connID)
		}
	}
	for k := range s.grace {
		if k.sessionID == sessionID {
			delete(s.grace, k)
		}
	}
	s.metrics.SessionRemoved()
	s.log.Debug("session_removed", zap.String("session", sessionID))
}

// displayNames labels the groupA participant "Participant A" and the groupB
// participant "Participant B".
func (s *Service) displayNames(sess *chat.Session) map[string]string {
	names := make(map[string]string, 2)
	for _, pid := range sess.Participants {
		p, err := s.registry.Lookup(pid)
		if err != nil {
			continue
		}
		names[pid] = displayName(p.Group)
	}
	return names
}

func displayName(g participant.Group) string {
	if g == participant.GroupA {
		return "Participant A"
	}
	return "Participant B"
}

func (s *Service) introductions(sess *chat.Session) chat.SessionJoined {
	names := sess.DisplayNames()
	intros := make([]chat.Introduction, 0, 2)
	for _, pid := range sess.Participants {
		p, err := s.registry.Lookup(pid)
		if err != nil {
			s.log.Warn("introduction_participant_missing", zap.String("participant", pid))
			continue
		}
		intros = append(intros, chat.Introduction{
			ParticipantID:      pid,
			DisplayName:        names[pid],
			Classification:     p.Classification,
			PersonalViews:      excerpt(p.PersonalViews, s.cfg.ViewsExcerpt),
			InfluencingFactors: excerpt(p.InfluencingFactors, s.cfg.FactorsExcerpt),
		})
	}
	return chat.SessionJoined{Introductions: intros, DisplayNames: names}
}

// excerpt keeps the first n runes and always marks the cut.
func excerpt(text string, n int) string {
	return chat.Truncate(text, n) + "..."
}

func (s *Service) notice(connID string) chat.ParticipantNotice {
	return chat.ParticipantNotice{ParticipantID: s.conns[connID].participantID}
}
