package routes

import (
	"encoding/json"

	"github.com/fleetlive/fleetlive/pkg/realtime/broker"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// registerVehicleLive mounts the long-lived subscriber stream. A client
// connects addressed by vehicle identifier and receives every location
// event for that vehicle until the socket closes, optionally filtered by
// an expression over {lat, lon, speed}.
func registerVehicleLive(router fiber.Router, liveBroker *broker.Broker) {
	router.Use("/:identifier/live", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}

		return fiber.ErrUpgradeRequired
	})

	router.Get("/:identifier/live", websocket.New(vehicleLiveHandler(liveBroker)))
}

func vehicleLiveHandler(liveBroker *broker.Broker) func(*websocket.Conn) {
	return func(wsConn *websocket.Conn) {
		vehicleRef := wsConn.Params("identifier")

		var options []broker.ConnectionOption

		if filterSource := wsConn.Query("filter"); filterSource != "" {
			filterOption, err := broker.WithFilter(filterSource)
			if err != nil {
				frame, _ := json.Marshal(fiber.Map{
					"error": err.Error(),
				})
				wsConn.WriteMessage(websocket.TextMessage, frame)
				wsConn.Close()
				return
			}

			options = append(options, filterOption)
		}

		connection := broker.NewConnection(&websocketTransport{conn: wsConn}, options...)

		liveBroker.Subscribe(vehicleRef, connection)
		connection.Open()

		// Whatever ends this handler - client close frame, transport
		// error, server shutdown - cleanup runs exactly once.
		defer connection.Close()

		for {
			if _, _, err := wsConn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

type websocketTransport struct {
	conn *websocket.Conn
}

func (t *websocketTransport) WriteEvent(data []byte) error {
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *websocketTransport) Close() error {
	return t.conn.Close()
}
