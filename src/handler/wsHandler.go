package handler

import (
	"net/http"

	"botexecutor/src/events"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"
)

type clientRegistrar interface {
	RegisterClient(conn *websocket.Conn) *events.Client
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// dashboards are served from other origins
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventsWebsocketHandler upgrades the request and subscribes it to the
// event hub.
func EventsWebsocketHandler(hub clientRegistrar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WithError(err).Warn("websocket upgrade failed")
			return
		}
		if hub.RegisterClient(conn) == nil {
			logger.Warn("event hub stopped, websocket refused")
		}
	}
}
