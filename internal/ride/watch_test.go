package ride

import (
	"context"
	"errors"
	"testing"

	"bike_train/internal/models"
	"bike_train/internal/session"
)

func TestWatchAllJoinsEveryLiveRoom(t *testing.T) {
	fs := newFakeStore()
	r1 := fs.addRoute("ABCD", 1)
	r2 := fs.addRoute("WXYZ", 2)
	fs.addRoute("IDLE", 1)
	fs.addInstance(r1.ID, today(), models.StatusLive)
	fs.addInstance(r2.ID, today(), models.StatusLive)

	registry := session.NewRegistry(nil)
	watch := NewWatchFeed(fs, registry)

	watcher := session.NewClient()
	watch.WatchAll(context.Background(), watcher)

	event, data := recvEvent(t, watcher)
	if event != EventWatchAllJoined {
		t.Fatalf("expected watch:all:joined, got %s", event)
	}
	rides, ok := data["rides"].([]interface{})
	if !ok || len(rides) != 2 {
		t.Fatalf("expected 2 rides in ack, got %v", data["rides"])
	}

	if registry.MemberCount("ABCD") != 1 || registry.MemberCount("WXYZ") != 1 {
		t.Fatalf("watcher not joined to live rooms")
	}
	if registry.MemberCount("IDLE") != 0 {
		t.Fatalf("watcher joined a room with no live ride")
	}

	// Watchers receive room broadcasts but never count as followers.
	registry.Broadcast("ABCD", EventLocationUpdated, map[string]interface{}{"lat": 1.0}, nil)
	if event, _ := recvEvent(t, watcher); event != EventLocationUpdated {
		t.Fatalf("watcher should receive room broadcasts")
	}
	if registry.FollowerCount("ABCD") != 0 {
		t.Fatalf("watcher must not count as follower")
	}
}

func TestUnwatchAllLeavesCurrentLiveSet(t *testing.T) {
	fs := newFakeStore()
	r1 := fs.addRoute("ABCD", 1)
	fs.addInstance(r1.ID, today(), models.StatusLive)

	registry := session.NewRegistry(nil)
	watch := NewWatchFeed(fs, registry)

	watcher := session.NewClient()
	ctx := context.Background()
	watch.WatchAll(ctx, watcher)
	recvEvent(t, watcher) // drain ack

	watch.UnwatchAll(ctx, watcher)

	if registry.MemberCount("ABCD") != 0 {
		t.Fatalf("watcher should have left the live room")
	}
}

// Documents the observed staleness: a room that ended between watch and
// unwatch is not left, because unwatch enumerates the rides that are live
// now, not the rooms that were joined.
func TestUnwatchAllMissesRoomsThatEndedInBetween(t *testing.T) {
	fs := newFakeStore()
	r1 := fs.addRoute("ABCD", 1)
	live := fs.addInstance(r1.ID, today(), models.StatusLive)

	registry := session.NewRegistry(nil)
	watch := NewWatchFeed(fs, registry)

	watcher := session.NewClient()
	ctx := context.Background()
	watch.WatchAll(ctx, watcher)
	recvEvent(t, watcher)

	if _, err := fs.CompleteLiveInstances(ctx, live.RouteID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	watch.UnwatchAll(ctx, watcher)

	if registry.MemberCount("ABCD") != 1 {
		t.Fatalf("expected watcher to remain joined to the ended room")
	}
}

func TestWatchAllQueryFailure(t *testing.T) {
	fs := newFakeStore()
	fs.listErr = errors.New("db down")

	registry := session.NewRegistry(nil)
	watch := NewWatchFeed(fs, registry)

	watcher := session.NewClient()
	watch.WatchAll(context.Background(), watcher)

	event, _ := recvEvent(t, watcher)
	if event != EventWatchAllError {
		t.Fatalf("expected watch:all:error, got %s", event)
	}
}
