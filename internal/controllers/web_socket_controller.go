package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"bike_train/internal/models"
	"bike_train/internal/ride"
	"bike_train/internal/session"
)

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for development (restrict in production!)
	},
}

// inboundFrame is the wire shape of every client event.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// codePayload covers every event that only carries an access code.
type codePayload struct {
	AccessCode string `json:"accessCode"`
}

// locationPayload is a leader's GPS update. The server stamps the
// timestamp on broadcast.
type locationPayload struct {
	AccessCode string  `json:"accessCode"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Accuracy   float64 `json:"accuracy"`
}

// SocketController is the realtime transport surface. It owns no session
// state itself; everything is delegated to the coordinator, relay and
// watch feed.
type SocketController struct {
	registry    *session.Registry
	coordinator *ride.Coordinator
	relay       *ride.Relay
	watch       *ride.WatchFeed
}

func NewSocketController(registry *session.Registry, coordinator *ride.Coordinator, relay *ride.Relay, watch *ride.WatchFeed) *SocketController {
	return &SocketController{
		registry:    registry,
		coordinator: coordinator,
		relay:       relay,
		watch:       watch,
	}
}

// HandleTrackWebSocket is the Gin handler for the single tracking
// endpoint. Leaders and followers speak the same connection; intent is
// carried per event, not per URL.
func (sc *SocketController) HandleTrackWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	defer conn.Close()

	client := session.NewClient()
	logrus.WithField("client_id", client.ID).Info("WebSocket connection established.")

	// Writer pump: the registry only ever queues onto client.Send, so one
	// goroutine owns all writes to the connection.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range client.Send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logrus.WithError(err).WithField("client_id", client.ID).Debug("Write to client failed.")
				return
			}
		}
	}()

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("client_id", client.ID).Info("WebSocket closed normally or abnormally.")
			} else {
				logrus.WithError(err).WithField("client_id", client.ID).Error("Error reading WebSocket message.")
			}
			break
		}
		if messageType == websocket.TextMessage {
			sc.dispatch(c, client, payload)
		}
	}

	// Disconnect reaps every room this client occupied, then the send
	// queue is closed to stop the writer pump.
	sc.coordinator.Disconnect(client)
	close(client.Send)
	<-done
	logrus.WithField("client_id", client.ID).Info("WebSocket connection closed.")
}

func (sc *SocketController) dispatch(c *gin.Context, client *session.Client, payload []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		logrus.WithError(err).WithField("client_id", client.ID).Warn("Malformed event frame from client.")
		sc.registry.Send(client, ride.EventRideError, gin.H{"error": "Invalid event frame."})
		return
	}

	ctx := c.Request.Context()

	switch frame.Event {
	case ride.EventLocationUpdate:
		var data locationPayload
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			sc.registry.Send(client, ride.EventRideError, gin.H{"error": "Invalid location payload."})
			return
		}
		sc.relay.LocationUpdate(client, data.AccessCode, models.LocationFix{
			Lat:      data.Lat,
			Lng:      data.Lng,
			Accuracy: data.Accuracy,
		})

	case ride.EventRideStart:
		var data codePayload
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			sc.registry.Send(client, ride.EventRideError, gin.H{"error": "Invalid ride:start payload."})
			return
		}
		sc.coordinator.StartRide(ctx, client, data.AccessCode)

	case ride.EventRideEnd:
		var data codePayload
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			sc.registry.Send(client, ride.EventRideError, gin.H{"error": "Invalid ride:end payload."})
			return
		}
		sc.coordinator.EndRide(ctx, client, data.AccessCode)

	case ride.EventFollowStart:
		var data codePayload
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			sc.registry.Send(client, ride.EventRideError, gin.H{"error": "Invalid follow:start payload."})
			return
		}
		sc.coordinator.FollowStart(ctx, client, data.AccessCode)

	case ride.EventFollowStop:
		var data codePayload
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			sc.registry.Send(client, ride.EventRideError, gin.H{"error": "Invalid follow:stop payload."})
			return
		}
		sc.coordinator.FollowStop(ctx, client, data.AccessCode)

	case ride.EventWatchAll:
		sc.watch.WatchAll(ctx, client)

	case ride.EventWatchAllStop:
		sc.watch.UnwatchAll(ctx, client)

	default:
		logrus.WithFields(logrus.Fields{
			"client_id": client.ID,
			"event":     frame.Event,
		}).Warn("Unknown event from client.")
		sc.registry.Send(client, ride.EventRideError, gin.H{"error": "Unknown event: " + frame.Event})
	}
}
