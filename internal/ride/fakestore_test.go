package ride

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"gorm.io/gorm"

	"bike_train/internal/models"
	"bike_train/internal/store"
)

// fakeStore is an in-memory Store with real per-route locking, so the
// concurrency tests exercise the same serialization the SQL store
// provides with row locks.
type fakeStore struct {
	mu        sync.Mutex
	routes    map[string]*models.Route
	instances []*models.RideInstance
	nextID    uint
	locks     map[uint]*sync.Mutex

	appendErr   error
	completeErr error
	listErr     error

	appendCalls int
}

var _ store.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		routes: make(map[string]*models.Route),
		locks:  make(map[uint]*sync.Mutex),
	}
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func (f *fakeStore) addRoute(code string, regionID uint) *models.Route {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	route := &models.Route{AccessCode: code, RegionID: regionID}
	route.ID = f.nextID
	f.routes[code] = route
	f.locks[route.ID] = &sync.Mutex{}
	return route
}

func (f *fakeStore) addInstance(routeID uint, date time.Time, status string) *models.RideInstance {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	instance := &models.RideInstance{
		RouteID:       routeID,
		Date:          date,
		Status:        status,
		LocationTrail: []byte("[]"),
	}
	instance.ID = f.nextID
	f.instances = append(f.instances, instance)
	return instance
}

func (f *fakeStore) liveCount(routeID uint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, instance := range f.instances {
		if instance.RouteID == routeID && instance.Status == models.StatusLive {
			count++
		}
	}
	return count
}

func (f *fakeStore) FindRouteByAccessCode(_ context.Context, code string) (*models.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	route, ok := f.routes[NormalizeCode(code)]
	if !ok {
		return nil, nil
	}
	return route, nil
}

func (f *fakeStore) FindLiveInstance(_ context.Context, routeID uint) (*models.RideInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, instance := range f.instances {
		if instance.RouteID == routeID && instance.Status == models.StatusLive {
			return instance, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindScheduledInstanceNearestToday(_ context.Context, routeID uint) (*models.RideInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var best *models.RideInstance
	bestDiff := 0.0
	for _, instance := range f.instances {
		if instance.RouteID != routeID || instance.Status != models.StatusScheduled {
			continue
		}
		diff := instance.Date.Sub(today()).Hours()
		if diff < 0 {
			diff = -diff
		}
		if best == nil || diff < bestDiff ||
			(diff == bestDiff && instance.Date.Before(best.Date)) {
			best = instance
			bestDiff = diff
		}
	}
	return best, nil
}

func (f *fakeStore) FindCompletedInstanceToday(_ context.Context, routeID uint) (*models.RideInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, instance := range f.instances {
		if instance.RouteID == routeID && instance.Status == models.StatusCompleted && sameDay(instance.Date, today()) {
			return instance, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateLiveInstance(_ context.Context, routeID, regionID uint) (*models.RideInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	now := time.Now().UTC()
	instance := &models.RideInstance{
		RouteID:       routeID,
		RegionID:      regionID,
		Date:          today(),
		Status:        models.StatusLive,
		StartedAt:     &now,
		LocationTrail: []byte("[]"),
	}
	instance.ID = f.nextID
	f.instances = append(f.instances, instance)
	return instance, nil
}

func (f *fakeStore) TransitionToLive(_ context.Context, instanceID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, instance := range f.instances {
		if instance.ID == instanceID {
			now := time.Now().UTC()
			instance.Status = models.StatusLive
			instance.StartedAt = &now
			instance.EndedAt = nil
			instance.CurrentLocation = nil
			instance.LocationTrail = []byte("[]")
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeStore) CompleteLiveInstances(_ context.Context, routeID uint) (int64, error) {
	if f.completeErr != nil {
		return 0, f.completeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows int64
	now := time.Now().UTC()
	for _, instance := range f.instances {
		if instance.RouteID == routeID && instance.Status == models.StatusLive {
			instance.Status = models.StatusCompleted
			instance.EndedAt = &now
			instance.CurrentLocation = nil
			instance.LocationTrail = []byte("[]")
			rows++
		}
	}
	return rows, nil
}

func (f *fakeStore) AppendLocation(_ context.Context, routeID uint, fix models.LocationFix) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCalls++
	if f.appendErr != nil {
		return f.appendErr
	}
	for _, instance := range f.instances {
		if instance.RouteID != routeID || instance.Status != models.StatusLive {
			continue
		}
		payload, err := json.Marshal(fix)
		if err != nil {
			return err
		}
		instance.CurrentLocation = payload

		var trail []models.LocationFix
		if len(instance.LocationTrail) > 0 {
			if err := json.Unmarshal(instance.LocationTrail, &trail); err != nil {
				return err
			}
		}
		trail = append(trail, fix)
		instance.LocationTrail, err = json.Marshal(trail)
		if err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) ListLiveInstances(_ context.Context, regionID *uint) ([]models.RideInstance, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.RideInstance
	for _, instance := range f.instances {
		if instance.Status != models.StatusLive {
			continue
		}
		if regionID != nil && instance.RegionID != *regionID {
			continue
		}
		copied := *instance
		for _, route := range f.routes {
			if route.ID == instance.RouteID {
				copied.Route = *route
				break
			}
		}
		out = append(out, copied)
	}
	return out, nil
}

func (f *fakeStore) WithRouteLock(_ context.Context, routeID uint, fn func(store.Store) error) error {
	f.mu.Lock()
	lock, ok := f.locks[routeID]
	f.mu.Unlock()
	if !ok {
		return gorm.ErrRecordNotFound
	}
	lock.Lock()
	defer lock.Unlock()
	return fn(f)
}
