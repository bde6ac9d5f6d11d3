package transport

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// MemoryHub records frames per connection instead of writing them to a
// socket. Dropped connections stop receiving frames.
type MemoryHub struct {
	mu      sync.Mutex
	groups  map[string]map[string]struct{}
	frames  map[string][]Frame
	dropped map[string]bool
}

// NewMemoryHub 创建内存 Hub，用于测试。
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{
		groups:  make(map[string]map[string]struct{}),
		frames:  make(map[string][]Frame),
		dropped: make(map[string]bool),
	}
}

func (h *MemoryHub) Send(connID, event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliver(connID, Frame{Event: event, Data: payload})
}

func (h *MemoryHub) Join(group, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dropped[connID] {
		return
	}
	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]struct{})
		h.groups[group] = members
	}
	members[connID] = struct{}{}
}

func (h *MemoryHub) Leave(group, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.groups[group], connID)
}

func (h *MemoryHub) Broadcast(group, event string, payload any) {
	h.BroadcastExcept(group, "", event, payload)
}

func (h *MemoryHub) BroadcastExcept(group, exceptConnID, event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for connID := range h.groups[group] {
		if connID == exceptConnID {
			continue
		}
		h.deliver(connID, Frame{Event: event, Data: payload})
	}
}

// Drop simulates a closed connection: it leaves every group and receives
// nothing further.
func (h *MemoryHub) Drop(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropped[connID] = true
	for _, members := range h.groups {
		delete(members, connID)
	}
}

// Frames returns a copy of every frame delivered to connID.
func (h *MemoryHub) Frames(connID string) []Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Frame(nil), h.frames[connID]...)
}

// Events returns the event names delivered to connID, in order.
func (h *MemoryHub) Events(connID string) []string {
	return lo.Map(h.Frames(connID), func(f Frame, _ int) string { return f.Event })
}

// Find returns the frames delivered to connID with the given event name.
func (h *MemoryHub) Find(connID, event string) []Frame {
	return lo.Filter(h.Frames(connID), func(f Frame, _ int) bool { return f.Event == event })
}

// Members returns the sorted connection ids joined to group.
func (h *MemoryHub) Members(group string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := lo.Keys(h.groups[group])
	sort.Strings(members)
	return members
}

// Reset forgets the frames recorded for connID.
func (h *MemoryHub) Reset(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.frames, connID)
}

func (h *MemoryHub) deliver(connID string, f Frame) {
	if h.dropped[connID] {
		return
	}
	h.frames[connID] = append(h.frames[connID], f)
}
