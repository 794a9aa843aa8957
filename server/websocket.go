package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lhhong/yolink2mqtt/yolink"
	"github.com/puzpuzpuz/xsync"
	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type wsClient struct {
	send chan []byte
}

// EventHub streams yolink events to websocket clients.
type EventHub struct {
	clients *xsync.Map
}

func NewEventHub(bus *Bus) (*EventHub, func()) {
	hub := &EventHub{clients: xsync.NewMap()}
	remove := bus.Listen(yolink.EventType, hub.broadcast)
	return hub, remove
}

func (h *EventHub) broadcast(_ context.Context, data any) {
	event, ok := data.(yolink.Event)
	if !ok {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.clients.Range(func(id string, v interface{}) bool {
		select {
		case v.(*wsClient).send <- payload:
		default:
			logrus.WithField("client", id).Warn("Websocket client too slow, dropping event")
		}
		return true
	})
}

// Clients returns the number of connected websocket clients.
func (h *EventHub) Clients() int {
	return h.clients.Size()
}

func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	id := shortid.MustGenerate()
	client := &wsClient{send: make(chan []byte, 32)}
	h.clients.Store(id, client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.clients.Delete(id)
		conn.Close()
	}()

	for {
		select {
		case payload := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
