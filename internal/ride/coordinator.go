package ride

import (
	"context"

	"github.com/sirupsen/logrus"

	"bike_train/internal/session"
	"bike_train/internal/store"
)

// Coordinator owns the per-access-code session lifecycle: leader starts and
// ends, follower joins and leaves, disconnect cleanup. Room membership
// lives in the registry; ride status lives in the store.
type Coordinator struct {
	store    store.Store
	registry *session.Registry
	resolver *Resolver
}

func NewCoordinator(s store.Store, registry *session.Registry) *Coordinator {
	return &Coordinator{
		store:    s,
		registry: registry,
		resolver: NewResolver(s),
	}
}

// StartRide handles a leader's start intent. On success the leader is
// admitted into the room and acknowledged directly; followers join later
// and expect no start event. Idempotent for an already-live route.
func (co *Coordinator) StartRide(ctx context.Context, c *session.Client, code string) {
	code = NormalizeCode(code)

	res, err := co.resolver.Resolve(ctx, code)
	if err != nil {
		if err == ErrRouteNotFound {
			logrus.WithField("access_code", code).Warn("Start intent for unknown access code.")
			co.registry.Send(c, EventRideError, map[string]interface{}{
				"message": "No route found for access code " + code,
			})
			return
		}
		logrus.WithError(err).WithField("access_code", code).Error("Failed to resolve ride instance for start intent.")
		co.registry.Send(c, EventRideError, map[string]interface{}{
			"message": "Failed to start ride, please retry.",
		})
		return
	}

	co.registry.Join(code, c, session.RoleLeader)
	co.registry.Send(c, EventRideStarted, map[string]interface{}{
		"accessCode": code,
	})

	logrus.WithFields(logrus.Fields{
		"access_code": code,
		"client_id":   c.ID,
		"instance_id": res.Instance.ID,
		"rejoined":    res.Rejoined,
	}).Info("Ride started.")
}

// EndRide completes every live instance of the route, removes the
// initiator from the room and tells the remaining members. Zero completed
// rows is not an error: followers still get a consistent end signal even
// when server-side state was already stale.
func (co *Coordinator) EndRide(ctx context.Context, c *session.Client, code string) {
	code = NormalizeCode(code)

	rows, err := co.completeLive(ctx, code)
	if err != nil {
		logrus.WithError(err).WithField("access_code", code).Error("Failed to complete ride instances for end intent.")
		co.registry.Send(c, EventRideError, map[string]interface{}{
			"message": "Failed to end ride, please retry.",
		})
		return
	}

	co.registry.Leave(code, c)
	co.registry.Broadcast(code, EventRideEnded, map[string]interface{}{
		"accessCode": code,
	}, c)

	logrus.WithFields(logrus.Fields{
		"access_code":    code,
		"client_id":      c.ID,
		"completed_rows": rows,
	}).Info("Ride ended.")
}

// ForceEnd completes a live ride without an initiating connection, used by
// the admin surface for rides whose leader went away.
func (co *Coordinator) ForceEnd(ctx context.Context, code string) (int64, error) {
	code = NormalizeCode(code)

	rows, err := co.completeLive(ctx, code)
	if err != nil {
		return 0, err
	}

	co.registry.Broadcast(code, EventRideEnded, map[string]interface{}{
		"accessCode": code,
	}, nil)

	logrus.WithFields(logrus.Fields{
		"access_code":    code,
		"completed_rows": rows,
	}).Info("Ride force-ended by admin.")
	return rows, nil
}

func (co *Coordinator) completeLive(ctx context.Context, code string) (int64, error) {
	route, err := co.store.FindRouteByAccessCode(ctx, code)
	if err != nil {
		return 0, err
	}
	if route == nil {
		// Nothing persisted to complete; the room may still exist.
		return 0, nil
	}

	var rows int64
	err = co.store.WithRouteLock(ctx, route.ID, func(s store.Store) error {
		rows, err = s.CompleteLiveInstances(ctx, route.ID)
		return err
	})
	return rows, err
}

// FollowStart admits a follower into the room, which may be idle or not
// yet started. The ack reports how many other followers are present; the
// room is told the new total.
func (co *Coordinator) FollowStart(ctx context.Context, c *session.Client, code string) {
	code = NormalizeCode(code)

	co.registry.Join(code, c, session.RoleFollower)

	total := co.registry.FollowerCount(code)
	others := total - 1
	if others < 0 {
		others = 0
	}

	co.registry.Broadcast(code, EventFollowerJoined, map[string]interface{}{
		"followerCount": total,
		"followerId":    c.ID,
	}, c)
	co.registry.Send(c, EventFollowStarted, map[string]interface{}{
		"accessCode":    code,
		"followerCount": others,
	})
}

// FollowStop removes a follower and tells the remaining members the
// updated count.
func (co *Coordinator) FollowStop(ctx context.Context, c *session.Client, code string) {
	code = NormalizeCode(code)

	co.registry.Leave(code, c)
	co.registry.Broadcast(code, EventFollowerLeft, map[string]interface{}{
		"followerCount": co.registry.FollowerCount(code),
		"followerId":    c.ID,
	}, c)
}

// Disconnect reaps room membership for a dropped connection. No leave
// notifications are emitted, matching how rooms behave when a transport
// silently goes away.
func (co *Coordinator) Disconnect(c *session.Client) {
	codes := co.registry.LeaveAll(c)
	if len(codes) > 0 {
		logrus.WithFields(logrus.Fields{
			"client_id": c.ID,
			"rooms":     codes,
		}).Info("Disconnected client removed from rooms.")
	}
}
