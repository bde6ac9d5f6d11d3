package chat

import (
	"go.uber.org/zap"

	"github.com/zhouzirui/crossview/backend/internal/model/chat"
	"github.com/zhouzirui/crossview/backend/internal/store"
)

// SendMessage appends text to the session log and relays it to every
// connection in the session, sender included. The sender is the participant
// bound to connID.
func (s *Service) SendMessage(connID, sessionID, text string) error {
	var err error
	s.sched.Do(func() {
		err = s.sendMessage(connID, sessionID, text)
	})
	return err
}

func (s *Service) sendMessage(connID, sessionID, text string) error {
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.sendError(connID, "Session not found")
		return ErrSessionNotFound
	}
	b, bound := s.conns[connID]
	if !bound || b.sessionID != sessionID {
		s.sendError(connID, "You are not part of this session")
		return ErrNotInSession
	}

	now := s.sched.Now()
	// The expiry timer and a late message can race; the clock decides.
	if sess.Elapsed(now) >= s.cfg.SessionDuration {
		s.hub.Send(connID, chat.EventConversationEnded, chat.ConversationEnded{Reason: chat.ReasonTimeLimit})
		return ErrConversationEnded
	}
	if sess.Ended() {
		s.hub.Send(connID, chat.EventConversationEnded, chat.ConversationEnded{Reason: sess.Reason()})
		return ErrConversationEnded
	}

	msg := chat.NewMessage(now, b.participantID, text, s.cfg.MaxMessageLength)
	if err := sess.Append(msg); err != nil {
		return err
	}
	s.hub.Broadcast(sessionID, chat.EventReceiveMessage, msg)
	s.metrics.MessageRelayed()
	s.persist(store.Conversations, sessionID, sess.Snapshot(now))

	s.log.Debug("message_relayed",
		zap.String("session", sessionID),
		zap.String("sender", b.participantID),
		zap.Int("length", msg.Length))
	return nil
}

// Typing relays a typing indicator to the other party only.
func (s *Service) Typing(connID, sessionID, event string) {
	s.sched.Do(func() {
		s.hub.BroadcastExcept(sessionID, connID, event, nil)
	})
}
