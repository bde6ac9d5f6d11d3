package chat

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/crossview/backend/internal/metrics"
	"github.com/zhouzirui/crossview/backend/internal/model/chat"
	"github.com/zhouzirui/crossview/backend/internal/model/participant"
	"github.com/zhouzirui/crossview/backend/internal/service/queue"
	"github.com/zhouzirui/crossview/backend/internal/service/scheduler"
	"github.com/zhouzirui/crossview/backend/internal/store"
	"github.com/zhouzirui/crossview/backend/internal/transport"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrNotInSession      = errors.New("participant is not part of this session")
	ErrConversationEnded = errors.New("conversation ended")
	ErrSessionNotActive  = errors.New("session is not active")
	ErrAlreadyMatched    = errors.New("participant already matched into a live session")
)

// Config holds the timing and size limits of the engine.
type Config struct {
	SessionDuration  time.Duration
	GraceFirst       time.Duration
	GraceSecond      time.Duration
	RemovalDelay     time.Duration
	WriteTimeout     time.Duration
	MaxMessageLength int
	ViewsExcerpt     int
	FactorsExcerpt   int
	Labels           participant.Labels
}

// DefaultConfig 返回研究流程使用的默认参数：5 分钟会话，10s+20s 断线宽限。
func DefaultConfig() Config {
	return Config{
		SessionDuration:  5 * time.Minute,
		GraceFirst:       10 * time.Second,
		GraceSecond:      20 * time.Second,
		RemovalDelay:     5 * time.Second,
		WriteTimeout:     5 * time.Second,
		MaxMessageLength: 500,
		ViewsExcerpt:     200,
		FactorsExcerpt:   150,
		Labels:           participant.DefaultLabels(),
	}
}

// binding records what a realtime connection is attached to.
type binding struct {
	participantID string
	sessionID     string
}

type graceKey struct {
	sessionID     string
	participantID string
}

// Service is the matchmaking and session engine. Every exported method runs
// as one serialized scheduler event; unexported helpers assume they already
// run inside one.
type Service struct {
	sched    *scheduler.Scheduler
	hub      transport.Hub
	store    store.Store
	registry participant.Registry
	queues   *queue.Manager
	metrics  *metrics.Metrics
	log      *zap.Logger
	cfg      Config

	sessions map[string]*chat.Session
	conns    map[string]binding
	grace    map[graceKey]uint64
}

// Deps bundles the collaborators of the engine.
type Deps struct {
	Scheduler *scheduler.Scheduler
	Hub       transport.Hub
	Store     store.Store
	Registry  participant.Registry
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// NewService wires the engine. Metrics and Logger may be nil.
func NewService(deps Deps, cfg Config) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		sched:    deps.Scheduler,
		hub:      deps.Hub,
		store:    deps.Store,
		registry: deps.Registry,
		queues:   queue.NewManager(),
		metrics:  deps.Metrics,
		log:      log.Named("chat"),
		cfg:      cfg,
		sessions: make(map[string]*chat.Session),
		conns:    make(map[string]binding),
		grace:    make(map[graceKey]uint64),
	}
}

// SessionView is a read-only snapshot of a live session.
type SessionView struct {
	Record       chat.SessionRecord
	Participants [2]string
	Status       chat.Status
	Reason       chat.Reason
	MessageCount int
	Connected    []string
}

// Session returns a snapshot of a live session.
func (s *Service) Session(id string) (SessionView, error) {
	var (
		view SessionView
		err  error
	)
	s.sched.Do(func() {
		sess, ok := s.sessions[id]
		if !ok {
			err = ErrSessionNotFound
			return
		}
		view = SessionView{
			Record:       sess.Record(),
			Participants: sess.Participants,
			Status:       sess.Status(),
			Reason:       sess.Reason(),
			MessageCount: sess.MessageCount(),
			Connected:    sess.Connected(),
		}
	})
	return view, err
}

// QueueLen reports the number of participants waiting in group.
func (s *Service) QueueLen(group participant.Group) int {
	var n int
	s.sched.Do(func() {
		n = s.queues.Position(group)
	})
	return n
}

// LiveSessions reports how many sessions are still held in memory.
func (s *Service) LiveSessions() int {
	var n int
	s.sched.Do(func() {
		n = len(s.sessions)
	})
	return n
}

func (s *Service) sendError(connID, message string) {
	s.hub.Send(connID, chat.EventError, chat.ErrorNotice{Message: message})
}

// persist writes record synchronously. Failures keep the in-memory state and
// are only reported.
func (s *Service) persist(collection, key string, record any) {
	if s.store == nil {
		return
	}
	ctx := context.Background()
	if s.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.WriteTimeout)
		defer cancel()
	}
	if err := s.store.Put(ctx, collection, key, record); err != nil {
		s.metrics.StoreWriteFailed(collection)
		s.log.Error("store_write_failed",
			zap.String("collection", collection),
			zap.String("key", key),
			zap.Error(err))
	}
}

func (s *Service) reportQueueDepth() {
	for _, g := range []participant.Group{participant.GroupA, participant.GroupB} {
		s.metrics.SetQueueDepth(s.cfg.Labels.Of(g), s.queues.Position(g))
	}
}
