package ride

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"bike_train/internal/metrics"
	"bike_train/internal/models"
	"bike_train/internal/session"
	"bike_train/internal/store"
)

// Relay fans leader position fixes out to the room and persists them on
// the side. Broadcast comes first and never waits on the database: a
// follower should see movement even when persistence is lagging or a race
// left no matching live row.
type Relay struct {
	store    store.Store
	registry *session.Registry

	persistTimeout time.Duration
}

func NewRelay(s store.Store, registry *session.Registry) *Relay {
	return &Relay{
		store:          s,
		registry:       registry,
		persistTimeout: 5 * time.Second,
	}
}

// LocationUpdate broadcasts the fix to every other room member, then hands
// persistence to a detached task. Persistence failure is logged and
// counted, never reported to the room and never retried; the next fix
// supersedes a lost one.
func (r *Relay) LocationUpdate(c *session.Client, code string, fix models.LocationFix) {
	code = NormalizeCode(code)

	if !fix.Valid() {
		logrus.WithFields(logrus.Fields{
			"access_code": code,
			"lat":         fix.Lat,
			"lng":         fix.Lng,
		}).Warn("Rejected location fix with out-of-range coordinates.")
		r.registry.Send(c, EventRideError, map[string]interface{}{
			"message": "Invalid coordinates.",
		})
		return
	}

	fix.Timestamp = time.Now().UnixMilli()

	r.registry.Broadcast(code, EventLocationUpdated, map[string]interface{}{
		"accessCode": code,
		"lat":        fix.Lat,
		"lng":        fix.Lng,
		"accuracy":   fix.Accuracy,
		"timestamp":  fix.Timestamp,
	}, c)

	go r.persist(code, fix)
}

func (r *Relay) persist(code string, fix models.LocationFix) {
	// Detached from the connection context: a disconnect right after the
	// broadcast must not cancel the write.
	ctx, cancel := context.WithTimeout(context.Background(), r.persistTimeout)
	defer cancel()

	route, err := r.store.FindRouteByAccessCode(ctx, code)
	if err != nil {
		r.persistFailed(code, err)
		return
	}
	if route == nil {
		logrus.WithField("access_code", code).Debug("Location fix for unknown route, nothing to persist.")
		return
	}

	if err := r.store.AppendLocation(ctx, route.ID, fix); err != nil {
		r.persistFailed(code, err)
	}
}

func (r *Relay) persistFailed(code string, err error) {
	metrics.PersistenceFailuresTotal.Inc()
	logrus.WithError(err).WithField("access_code", code).Error("Failed to persist location fix.")
}
