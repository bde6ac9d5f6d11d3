package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/zhouzirui/crossview/backend/internal/metrics"
	"github.com/zhouzirui/crossview/backend/internal/model/chat"
	chatService "github.com/zhouzirui/crossview/backend/internal/service/chat"
	"github.com/zhouzirui/crossview/backend/internal/transport"
)

// Limits bounds how many inbound events a single connection may send.
type Limits struct {
	EventsPerSecond float64
	Burst           int
}

// Handler 实时聊天的WebSocket处理器
type Handler struct {
	chatSvc  *chatService.Service
	hub      *transport.WSHub
	upgrader websocket.Upgrader
	validate *validator.Validate
	limits   Limits
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// New 创建WebSocket处理器
func New(chatSvc *chatService.Service, hub *transport.WSHub, limits Limits, m *metrics.Metrics, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		chatSvc: chatSvc,
		hub:     hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		limits:   limits,
		metrics:  m,
		log:      log.Named("ws"),
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinQueuePayload struct {
	ParticipantID string `json:"participantId" validate:"required,max=64"`
}

type joinSessionPayload struct {
	SessionID     string `json:"sessionId" validate:"required,max=64"`
	ParticipantID string `json:"participantId" validate:"required,max=64"`
}

type sendMessagePayload struct {
	SessionID string `json:"sessionId" validate:"required,max=64"`
	Text      string `json:"text" validate:"required"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId" validate:"required,max=64"`
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws_upgrade_failed", zap.Error(err))
		return
	}

	client := h.hub.Register(conn)
	h.log.Debug("ws_connected", zap.String("conn", client.ID))

	ctx, cancel := context.WithCancel(context.Background())
	go client.WritePump(ctx)
	defer func() {
		h.hub.Unregister(client.ID)
		h.chatSvc.Disconnect(client.ID)
		cancel()
		h.log.Debug("ws_disconnected", zap.String("conn", client.ID))
	}()

	client.PrepareRead()
	limiter := rate.NewLimiter(rate.Limit(h.limits.EventsPerSecond), h.limits.Burst)

	for {
		var frame inboundFrame
		if err := client.ReadFrame(&frame); err != nil {
			if errors.Is(err, transport.ErrMalformedFrame) {
				h.reject(client.ID, "Malformed event")
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Info("ws_read_failed", zap.String("conn", client.ID), zap.Error(err))
			}
			return
		}

		if !limiter.Allow() {
			h.metrics.EventRateLimited()
			h.reject(client.ID, "Too many events")
			continue
		}
		h.dispatch(client.ID, frame)
	}
}

// dispatch 按事件类型分发
func (h *Handler) dispatch(connID string, frame inboundFrame) {
	var err error
	switch frame.Event {
	case chat.EventJoinQueue:
		var p joinQueuePayload
		if !h.decode(connID, frame.Data, &p) {
			return
		}
		err = h.chatSvc.JoinQueue(connID, p.ParticipantID)
	case chat.EventJoinSession:
		var p joinSessionPayload
		if !h.decode(connID, frame.Data, &p) {
			return
		}
		err = h.chatSvc.JoinSession(connID, p.SessionID, p.ParticipantID)
	case chat.EventSendMessage:
		var p sendMessagePayload
		if !h.decode(connID, frame.Data, &p) {
			return
		}
		err = h.chatSvc.SendMessage(connID, p.SessionID, p.Text)
	case chat.EventTypingStart, chat.EventTypingStop:
		var p sessionPayload
		if !h.decode(connID, frame.Data, &p) {
			return
		}
		h.chatSvc.Typing(connID, p.SessionID, frame.Event)
	case chat.EventLeaveSession:
		var p sessionPayload
		if !h.decode(connID, frame.Data, &p) {
			return
		}
		h.chatSvc.LeaveSession(connID, p.SessionID)
	case chat.EventLeaveChatEarly:
		var p sessionPayload
		if !h.decode(connID, frame.Data, &p) {
			return
		}
		err = h.chatSvc.LeaveChatEarly(connID, p.SessionID)
	default:
		h.reject(connID, "Unknown event")
		return
	}

	// The engine has already told the client; this is for the operator.
	if err != nil {
		h.log.Debug("ws_event_rejected",
			zap.String("conn", connID),
			zap.String("event", frame.Event),
			zap.Error(err))
	}
}

func (h *Handler) decode(connID string, raw json.RawMessage, dst any) bool {
	if len(raw) == 0 || json.Unmarshal(raw, dst) != nil {
		h.reject(connID, "Malformed payload")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.reject(connID, "Invalid payload")
		return false
	}
	return true
}

func (h *Handler) reject(connID, message string) {
	h.hub.Send(connID, chat.EventError, chat.ErrorNotice{Message: message})
}
