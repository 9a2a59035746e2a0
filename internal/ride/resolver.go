package ride

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"bike_train/internal/models"
	"bike_train/internal/store"
)

// markLive mirrors the persisted transition onto the in-memory row so
// callers see the state they just created.
func markLive(instance *models.RideInstance) *models.RideInstance {
	now := time.Now().UTC()
	instance.Status = models.StatusLive
	instance.StartedAt = &now
	instance.EndedAt = nil
	instance.CurrentLocation = nil
	instance.LocationTrail = []byte("[]")
	return instance
}

// ErrRouteNotFound signals that no route exists for an access code.
var ErrRouteNotFound = errors.New("no route for access code")

// Resolution is the outcome of picking the ride instance a start intent
// should activate.
type Resolution struct {
	Route    *models.Route
	Instance *models.RideInstance
	// Rejoined is true when the instance was already live and nothing was
	// mutated.
	Rejoined bool
}

// Resolver decides which persistent ride instance a start intent maps to.
type Resolver struct {
	store store.Store
}

func NewResolver(s store.Store) *Resolver {
	return &Resolver{store: s}
}

// NormalizeCode folds an access code to its canonical upper-case form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Resolve walks the priority ladder under a per-route lock:
//
//  1. an instance is already live        -> rejoin, no mutation
//  2. a scheduled instance exists        -> the one dated nearest today goes live
//  3. an instance completed earlier today -> back to live (same-day restart)
//  4. nothing usable                     -> create a live instance for today
//
// Every transition into live stamps started_at and resets the location
// fields for a fresh run.
func (r *Resolver) Resolve(ctx context.Context, code string) (*Resolution, error) {
	route, err := r.store.FindRouteByAccessCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, ErrRouteNotFound
	}

	res := &Resolution{Route: route}
	err = r.store.WithRouteLock(ctx, route.ID, func(s store.Store) error {
		live, err := s.FindLiveInstance(ctx, route.ID)
		if err != nil {
			return err
		}
		if live != nil {
			res.Instance = live
			res.Rejoined = true
			return nil
		}

		scheduled, err := s.FindScheduledInstanceNearestToday(ctx, route.ID)
		if err != nil {
			return err
		}
		if scheduled != nil {
			if err := s.TransitionToLive(ctx, scheduled.ID); err != nil {
				return err
			}
			res.Instance = markLive(scheduled)
			return nil
		}

		completed, err := s.FindCompletedInstanceToday(ctx, route.ID)
		if err != nil {
			return err
		}
		if completed != nil {
			if err := s.TransitionToLive(ctx, completed.ID); err != nil {
				return err
			}
			res.Instance = markLive(completed)
			return nil
		}

		created, err := s.CreateLiveInstance(ctx, route.ID, route.RegionID)
		if err != nil {
			return err
		}
		res.Instance = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"access_code": route.AccessCode,
		"route_id":    route.ID,
		"instance_id": res.Instance.ID,
		"rejoined":    res.Rejoined,
	}).Info("Resolved ride instance for start intent.")
	return res, nil
}
