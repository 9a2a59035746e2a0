package session

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bike_train/internal/metrics"
)

// Registry is the in-memory room table: access code -> participants and
// their roles. It is constructed at process start and injected wherever
// rooms are needed. Ride status is not held here; the persisted
// RideInstance is the source of truth. With a backplane attached, broadcasts are
// shared across instances.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]map[*Client]Role
	joined map[*Client]map[string]struct{}

	instanceID string
	backplane  Backplane
}

// envelope wraps a frame published on the backplane so an instance can
// ignore its own publications.
type envelope struct {
	Origin string          `json:"origin"`
	Frame  json.RawMessage `json:"frame"`
}

// NewRegistry creates an empty room table. backplane may be nil for
// single-instance deployments.
func NewRegistry(backplane Backplane) *Registry {
	r := &Registry{
		rooms:      make(map[string]map[*Client]Role),
		joined:     make(map[*Client]map[string]struct{}),
		instanceID: uuid.NewString(),
		backplane:  backplane,
	}
	if backplane != nil {
		backplane.Subscribe(r.deliverRemote)
	}
	return r
}

// Join admits a client into the room named by code. Rejoining is a no-op,
// except that joining again as leader upgrades the stored role.
func (r *Registry) Join(code string, c *Client, role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		room = make(map[*Client]Role)
		r.rooms[code] = room
		metrics.ActiveRooms.Inc()
	}
	if existing, present := room[c]; present {
		if role == RoleLeader && existing != RoleLeader {
			room[c] = role
		}
		return
	}
	room[c] = role

	if r.joined[c] == nil {
		r.joined[c] = make(map[string]struct{})
	}
	r.joined[c][code] = struct{}{}

	logrus.WithFields(logrus.Fields{
		"access_code": code,
		"client_id":   c.ID,
		"role":        role,
		"room_size":   len(room),
	}).Info("Client joined room.")
}

// Leave removes the client from one room. An empty room ceases to exist.
func (r *Registry) Leave(code string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(code, c)
}

// LeaveAll removes the client from every room it occupies and returns the
// codes it left. Called on transport disconnect.
func (r *Registry) LeaveAll(c *Client) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	codes := make([]string, 0, len(r.joined[c]))
	for code := range r.joined[c] {
		codes = append(codes, code)
	}
	for _, code := range codes {
		r.leaveLocked(code, c)
	}
	return codes
}

func (r *Registry) leaveLocked(code string, c *Client) {
	room, ok := r.rooms[code]
	if !ok {
		return
	}
	if _, present := room[c]; !present {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(r.rooms, code)
		metrics.ActiveRooms.Dec()
		logrus.WithField("access_code", code).Debug("Removed empty room.")
	}
	if set, ok := r.joined[c]; ok {
		delete(set, code)
		if len(set) == 0 {
			delete(r.joined, c)
		}
	}
	logrus.WithFields(logrus.Fields{
		"access_code": code,
		"client_id":   c.ID,
	}).Info("Client left room.")
}

// MemberCount returns the current room size.
func (r *Registry) MemberCount(code string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[code])
}

// FollowerCount returns how many members of the room joined as followers.
func (r *Registry) FollowerCount(code string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, role := range r.rooms[code] {
		if role == RoleFollower {
			count++
		}
	}
	return count
}

// Send delivers one event frame to a single client.
func (r *Registry) Send(c *Client, event string, data interface{}) {
	c.push(EncodeFrame(event, data))
}

// Broadcast delivers an event to every room member except exclude,
// at most once per member, then publishes to the backplane if one is
// attached. Delivery order within a room follows call order.
func (r *Registry) Broadcast(code string, event string, data interface{}, exclude *Client) {
	payload := EncodeFrame(event, data)
	if payload == nil {
		return
	}

	r.mu.Lock()
	for c := range r.rooms[code] {
		if c == exclude {
			continue
		}
		c.push(payload)
	}
	r.mu.Unlock()
	metrics.BroadcastsTotal.Inc()

	if r.backplane != nil {
		env, err := json.Marshal(envelope{Origin: r.instanceID, Frame: payload})
		if err != nil {
			return
		}
		if err := r.backplane.Publish(code, env); err != nil {
			logrus.WithError(err).WithField("access_code", code).Warn("Backplane publish failed.")
		}
	}
}

// deliverRemote hands a backplane message to local room members. The
// excluded-sender semantics only apply on the originating instance; remote
// instances deliver to everyone they host.
func (r *Registry) deliverRemote(code string, payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		logrus.WithError(err).Warn("Malformed backplane envelope, dropping.")
		return
	}
	if env.Origin == r.instanceID {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.rooms[code] {
		c.push(env.Frame)
	}
}
