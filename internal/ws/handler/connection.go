package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/exp/slog"

	"github.com/Giorgio223/tradebull/internal/event"
	"github.com/Giorgio223/tradebull/internal/lib/logger/sl"
)

type Subscription struct {
	Conn    *websocket.Conn
	Channel string
}

// Hub fans round lifecycle events out to subscribed clients, grouped by
// channel. It implements event.Publisher so the engine can push through it
// without knowing about websockets.
type Hub struct {
	Channels  map[string]map[*websocket.Conn]bool
	Broadcast chan event.Message
	Subscribe chan Subscription
	mutex     sync.RWMutex
	log       *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		Channels:  make(map[string]map[*websocket.Conn]bool),
		Broadcast: make(chan event.Message, 16),
		Subscribe: make(chan Subscription),
		log:       log,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (hub *Hub) TriggerEvent(m event.Message) error {
	hub.Broadcast <- m

	return nil
}

func (hub *Hub) Run() {
	var (
		sub       Subscription
		err       error
		data      []byte
		conn      *websocket.Conn
		receivers map[*websocket.Conn]bool
		ok        bool
	)

	for {
		select {
		case sub = <-hub.Subscribe:
			hub.mutex.Lock()
			if hub.Channels[sub.Channel] == nil {
				hub.Channels[sub.Channel] = make(map[*websocket.Conn]bool)
			}
			hub.Channels[sub.Channel][sub.Conn] = true
			hub.mutex.Unlock()
		case message := <-hub.Broadcast:
			hub.mutex.RLock()
			receivers, ok = hub.Channels[message.Channel]
			hub.mutex.RUnlock()

			if !ok {
				continue
			}

			data, err = json.Marshal(message)
			if err != nil {
				hub.log.Error("failed to marshal message", sl.Err(err))

				continue
			}

			for conn = range receivers {
				if err = conn.WriteMessage(websocket.TextMessage, data); err != nil {
					hub.log.Error("failed to write message", sl.Err(err))
				}
			}
		}
	}
}

// HandleConnection upgrades the request and subscribes the client to the
// channel it asks for, via ?channel= or {"channel": "..."} frames.
func (hub *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	var (
		err error
		ws  *websocket.Conn
		p   []byte
	)

	ws, err = upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Error("failed to upgrade connection", sl.Err(err))

		return
	}
	defer func(ws *websocket.Conn) {
		hub.drop(ws)

		if err = ws.Close(); err != nil {
			hub.log.Error("failed to close connection", sl.Err(err))
		}
	}(ws)

	if channel := r.URL.Query().Get("channel"); channel != "" {
		hub.Subscribe <- Subscription{Conn: ws, Channel: channel}
	}

	for {
		_, p, err = ws.ReadMessage()
		if err != nil {
			return
		}

		var sub struct {
			Channel string `json:"channel"`
		}

		if err = json.Unmarshal(p, &sub); err != nil {
			hub.log.Error("failed to unmarshal message", sl.Err(err))

			continue
		}

		if sub.Channel == "" {
			continue
		}

		hub.Subscribe <- Subscription{Conn: ws, Channel: sub.Channel}
	}
}

func (hub *Hub) drop(conn *websocket.Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	for _, receivers := range hub.Channels {
		delete(receivers, conn)
	}
}
