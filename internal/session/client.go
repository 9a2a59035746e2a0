package session

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bike_train/internal/metrics"
)

// Role tags a participant inside a room. Follower counts are computed
// from roles, not from room size.
type Role string

const (
	RoleLeader   Role = "leader"
	RoleFollower Role = "follower"
	RoleWatcher  Role = "watcher"
)

// Client is the transport-agnostic handle for one connected participant.
// The websocket layer pumps Send onto the wire; the registry never touches
// the connection itself.
type Client struct {
	ID   string
	Send chan []byte
}

// NewClient creates a handle with a fresh id and a buffered send queue.
func NewClient() *Client {
	return &Client{
		ID:   uuid.NewString(),
		Send: make(chan []byte, 64),
	}
}

// Frame is the wire envelope for every realtime event, in and out.
type Frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// EncodeFrame marshals an event frame for delivery.
func EncodeFrame(event string, data interface{}) []byte {
	payload, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to encode event frame.")
		return nil
	}
	return payload
}

// push queues a payload without blocking. A slow client loses messages
// rather than stalling the room.
func (c *Client) push(payload []byte) {
	if payload == nil {
		return
	}
	select {
	case c.Send <- payload:
	default:
		metrics.DroppedSendsTotal.Inc()
		logrus.WithField("client_id", c.ID).Warn("Client send buffer full, dropping message.")
	}
}
