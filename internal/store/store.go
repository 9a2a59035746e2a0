package store

import (
	"context"

	"bike_train/internal/models"
)

// Store is the persistent collaborator of the live-session engine. Find
// methods return (nil, nil) when no row matches.
//
// WithRouteLock runs fn inside a transaction that holds a row-level lock on
// the route, serializing concurrent start and end attempts for one access
// code. The Store passed to fn is scoped to that transaction.
type Store interface {
	FindRouteByAccessCode(ctx context.Context, code string) (*models.Route, error)

	FindLiveInstance(ctx context.Context, routeID uint) (*models.RideInstance, error)
	FindScheduledInstanceNearestToday(ctx context.Context, routeID uint) (*models.RideInstance, error)
	FindCompletedInstanceToday(ctx context.Context, routeID uint) (*models.RideInstance, error)

	CreateLiveInstance(ctx context.Context, routeID, regionID uint) (*models.RideInstance, error)
	TransitionToLive(ctx context.Context, instanceID uint) error
	// CompleteLiveInstances marks every live instance of the route completed
	// and reports how many rows changed.
	CompleteLiveInstances(ctx context.Context, routeID uint) (int64, error)

	// AppendLocation folds a fix into whichever instance of the route is
	// currently live: current_location is replaced, the trail appended.
	AppendLocation(ctx context.Context, routeID uint, fix models.LocationFix) error

	ListLiveInstances(ctx context.Context, regionID *uint) ([]models.RideInstance, error)

	WithRouteLock(ctx context.Context, routeID uint, fn func(Store) error) error
}
