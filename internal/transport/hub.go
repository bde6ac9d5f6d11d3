package transport

// Hub is the realtime capability the engine needs: per-connection sends and
// room-style multicast. Delivery is best-effort; a connection that is gone
// simply misses the frame.
type Hub interface {
	Send(connID, event string, payload any)
	Join(group, connID string)
	Leave(group, connID string)
	Broadcast(group, event string, payload any)
	BroadcastExcept(group, exceptConnID, event string, payload any)
}

// Frame is the envelope written to and read from clients.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}
