package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bike_train/internal/models"
)

// GormStore implements Store against Postgres.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindRouteByAccessCode(ctx context.Context, code string) (*models.Route, error) {
	var route models.Route
	err := s.db.WithContext(ctx).
		Where("access_code = ?", strings.ToUpper(code)).
		First(&route).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &route, nil
}

func (s *GormStore) FindLiveInstance(ctx context.Context, routeID uint) (*models.RideInstance, error) {
	var instances []models.RideInstance
	err := s.db.WithContext(ctx).
		Where("route_id = ? AND status = ?", routeID, models.StatusLive).
		Order("id ASC").
		Find(&instances).Error
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, nil
	}
	// At most one live instance per route should ever exist. If the
	// invariant is broken anyway, keep the live experience working with the
	// first row and leave a trace for cleanup.
	if len(instances) > 1 {
		logrus.WithFields(logrus.Fields{
			"route_id":   routeID,
			"live_count": len(instances),
		}).Warn("Multiple live ride instances found for route; using the first.")
	}
	return &instances[0], nil
}

func (s *GormStore) FindScheduledInstanceNearestToday(ctx context.Context, routeID uint) (*models.RideInstance, error) {
	var instance models.RideInstance
	err := s.db.WithContext(ctx).
		Where("route_id = ? AND status = ?", routeID, models.StatusScheduled).
		Order("ABS(date - CURRENT_DATE) ASC, date ASC").
		First(&instance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

func (s *GormStore) FindCompletedInstanceToday(ctx context.Context, routeID uint) (*models.RideInstance, error) {
	var instance models.RideInstance
	err := s.db.WithContext(ctx).
		Where("route_id = ? AND status = ? AND date = CURRENT_DATE", routeID, models.StatusCompleted).
		First(&instance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

func (s *GormStore) CreateLiveInstance(ctx context.Context, routeID, regionID uint) (*models.RideInstance, error) {
	now := time.Now().UTC()
	instance := models.RideInstance{
		RouteID:       routeID,
		RegionID:      regionID,
		Date:          time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		Status:        models.StatusLive,
		StartedAt:     &now,
		LocationTrail: []byte("[]"),
	}
	if err := s.db.WithContext(ctx).Create(&instance).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

func (s *GormStore) TransitionToLive(ctx context.Context, instanceID uint) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).
		Model(&models.RideInstance{}).
		Where("id = ?", instanceID).
		Updates(map[string]interface{}{
			"status":           models.StatusLive,
			"started_at":       now,
			"ended_at":         nil,
			"current_location": nil,
			"location_trail":   gorm.Expr("'[]'::jsonb"),
		}).Error
}

func (s *GormStore) CompleteLiveInstances(ctx context.Context, routeID uint) (int64, error) {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.RideInstance{}).
		Where("route_id = ? AND status = ?", routeID, models.StatusLive).
		Updates(map[string]interface{}{
			"status":           models.StatusCompleted,
			"ended_at":         now,
			"current_location": nil,
			"location_trail":   gorm.Expr("'[]'::jsonb"),
		})
	return result.RowsAffected, result.Error
}

func (s *GormStore) AppendLocation(ctx context.Context, routeID uint, fix models.LocationFix) error {
	payload, err := json.Marshal(fix)
	if err != nil {
		return err
	}
	// One statement, scoped by the WHERE predicate to whatever is live for
	// the route right now.
	return s.db.WithContext(ctx).Exec(`
		UPDATE ride_instances
		SET current_location = ?::jsonb,
		    location_trail = COALESCE(location_trail, '[]'::jsonb) || ?::jsonb,
		    updated_at = NOW()
		WHERE route_id = ? AND status = ? AND deleted_at IS NULL
	`, string(payload), string(payload), routeID, models.StatusLive).Error
}

func (s *GormStore) ListLiveInstances(ctx context.Context, regionID *uint) ([]models.RideInstance, error) {
	query := s.db.WithContext(ctx).
		Preload("Route").
		Where("status = ?", models.StatusLive)
	if regionID != nil {
		query = query.Where("region_id = ?", *regionID)
	}

	var instances []models.RideInstance
	if err := query.Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

// WithRouteLock serializes start/end sequences per route with a row-level
// lock inside a transaction, so two concurrent starts cannot both walk the
// find-or-create ladder.
func (s *GormStore) WithRouteLock(ctx context.Context, routeID uint, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var route models.Route
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&route, routeID).Error; err != nil {
			return err
		}
		return fn(&GormStore{db: tx})
	})
}
