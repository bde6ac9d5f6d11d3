package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrMalformedFrame = errors.New("malformed frame")

// Options WebSocket 连接参数
type Options struct {
	SendBuffer   int           // 每个连接的发送队列长度
	WriteTimeout time.Duration // 单帧写超时
	ReadTimeout  time.Duration // 无 pong 时的读超时
	PingInterval time.Duration // Ping 间隔
	ReadLimit    int64         // 单帧读取上限（字节）
}

// DefaultOptions 默认连接参数
func DefaultOptions() Options {
	return Options{
		SendBuffer:   64,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  60 * time.Second,
		PingInterval: 54 * time.Second,
		ReadLimit:    16 << 10,
	}
}

// WSHub 管理所有 WebSocket 连接以及会话房间成员关系。
type WSHub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	groups  map[string]map[string]struct{}
	opts    Options
	log     *zap.Logger
}

// Client is one registered websocket connection with its outbound queue.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub
}

// NewWSHub 创建连接管理器
func NewWSHub(opts Options, log *zap.Logger) *WSHub {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHub{
		clients: make(map[string]*Client),
		groups:  make(map[string]map[string]struct{}),
		opts:    opts,
		log:     log,
	}
}

// Register assigns a connection id to conn and starts tracking it.
func (h *WSHub) Register(conn *websocket.Conn) *Client {
	c := &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.opts.SendBuffer),
		hub:  h,
	}
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	return c
}

// Unregister removes the connection from every group and closes its queue.
// The socket itself is closed by the write loop once the queue drains.
func (h *WSHub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	delete(h.clients, connID)
	for group, members := range h.groups {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	close(c.send)
}

// Len returns the number of registered connections.
func (h *WSHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WSHub) Send(connID, event string, payload any) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, exists := h.clients[connID]; exists {
		h.enqueue(c, event, data)
	}
}

func (h *WSHub) Join(group, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[connID]; !ok {
		return
	}
	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]struct{})
		h.groups[group] = members
	}
	members[connID] = struct{}{}
}

func (h *WSHub) Leave(group, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.groups[group]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

func (h *WSHub) Broadcast(group, event string, payload any) {
	h.BroadcastExcept(group, "", event, payload)
}

func (h *WSHub) BroadcastExcept(group, exceptConnID, event string, payload any) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID := range h.groups[group] {
		if connID == exceptConnID {
			continue
		}
		if c, exists := h.clients[connID]; exists {
			h.enqueue(c, event, data)
		}
	}
}

func (h *WSHub) encode(event string, payload any) ([]byte, bool) {
	data, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		h.log.Error("ws_frame_encode_failed", zap.String("event", event), zap.Error(err))
		return nil, false
	}
	return data, true
}

// enqueue must be called with h.mu held (read or write).
func (h *WSHub) enqueue(c *Client, event string, data []byte) {
	select {
	case c.send <- data:
	default:
		h.log.Warn("ws_send_queue_full", zap.String("conn", c.ID), zap.String("event", event))
	}
}

// WritePump drains the outbound queue onto the socket and keeps the
// connection alive with pings. It returns when the queue is closed, the
// context ends, or a write fails.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(c.hub.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.hub.log.Debug("ws_write_failed", zap.String("conn", c.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// PrepareRead installs the read limit, read deadline and pong handler. A
// frame over the limit closes the connection with CloseMessageTooBig.
func (c *Client) PrepareRead() {
	if c.hub.opts.ReadLimit > 0 {
		c.conn.SetReadLimit(c.hub.opts.ReadLimit)
	}
	timeout := c.hub.opts.ReadTimeout
	c.conn.SetReadDeadline(time.Now().Add(timeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
		return nil
	})
}

// ReadFrame blocks for the next inbound frame. A frame that is not valid
// JSON yields ErrMalformedFrame and leaves the connection usable.
func (c *Client) ReadFrame(v any) error {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return err
	}
	c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.ReadTimeout))
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return nil
}
