package ride

import (
	"context"

	"github.com/sirupsen/logrus"

	"bike_train/internal/session"
	"bike_train/internal/store"
)

// WatchFeed joins a client to every currently-live room at once, for map
// views that show all active rides without enumerating access codes.
type WatchFeed struct {
	store    store.Store
	registry *session.Registry
}

func NewWatchFeed(s store.Store, registry *session.Registry) *WatchFeed {
	return &WatchFeed{store: s, registry: registry}
}

// WatchAll queries the live set, joins the client into each room as a
// watcher and acknowledges with the list of access codes joined.
func (w *WatchFeed) WatchAll(ctx context.Context, c *session.Client) {
	codes, err := w.liveCodes(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to list live rides for watch:all.")
		w.registry.Send(c, EventWatchAllError, map[string]interface{}{
			"message": "Failed to load live rides.",
		})
		return
	}

	for _, code := range codes {
		w.registry.Join(code, c, session.RoleWatcher)
	}
	w.registry.Send(c, EventWatchAllJoined, map[string]interface{}{
		"rides": codes,
	})
}

// UnwatchAll re-queries the live set and leaves those rooms. This mirrors
// the watch call rather than remembering what it joined, so a room that
// went live in between stays joined and a room that ended in between is
// never left. Known staleness, kept pending a product decision.
func (w *WatchFeed) UnwatchAll(ctx context.Context, c *session.Client) {
	codes, err := w.liveCodes(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to list live rides for watch:all:stop.")
		w.registry.Send(c, EventWatchAllError, map[string]interface{}{
			"message": "Failed to load live rides.",
		})
		return
	}

	for _, code := range codes {
		w.registry.Leave(code, c)
	}
}

func (w *WatchFeed) liveCodes(ctx context.Context) ([]string, error) {
	instances, err := w.store.ListLiveInstances(ctx, nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(instances))
	codes := make([]string, 0, len(instances))
	for _, instance := range instances {
		code := NormalizeCode(instance.Route.AccessCode)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}
