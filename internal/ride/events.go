package ride

// Realtime event names, matching the client protocol.
const (
	// Inbound
	EventLocationUpdate = "location:update"
	EventRideStart      = "ride:start"
	EventRideEnd        = "ride:end"
	EventFollowStart    = "follow:start"
	EventFollowStop     = "follow:stop"
	EventWatchAll       = "watch:all"
	EventWatchAllStop   = "watch:all:stop"

	// Outbound
	EventLocationUpdated = "location:updated"
	EventRideStarted     = "ride:started"
	EventRideError       = "ride:error"
	EventRideEnded       = "ride:ended"
	EventFollowerJoined  = "follower:joined"
	EventFollowerLeft    = "follower:left"
	EventFollowStarted   = "follow:started"
	EventWatchAllJoined  = "watch:all:joined"
	EventWatchAllError   = "watch:all:error"
)
