package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/traderterminal/core/internal/eventbus"
)

// Outbound streaming (spec §4.8/§6): one gorilla/websocket connection per
// client, with topic subscriptions driven by client-sent control messages
// rather than a single broadcast-everything hub, since spec §6 scopes
// delivery to the symbol lists / feed filters a client asks for. Adapted
// from the teacher pack's Hub/Client write-pump+read-pump shape
// (0xtitan6-polymarket-mm's internal/api/stream.go), re-pointed at
// internal/eventbus's per-topic Subscribe instead of a single hub broadcast
// channel.
const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 64 * 1024
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// controlMessage is the client->server subscription control envelope
// (spec §6: "subscription management via a JSON control message").
type controlMessage struct {
	Action string   `json:"action"` // subscribe | unsubscribe
	Topics []string `json:"topics"`
}

// envelope is the server->client event wrapper (spec §6's
// {type, topic, data, ts} shape).
type envelope struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
	Data  any    `json:"data"`
	Ts    int64  `json:"ts"`
}

type wsClient struct {
	conn *websocket.Conn
	bus  *eventbus.Bus
	send chan []byte

	mu   sync.Mutex
	subs map[string]func() // topic -> unsubscribe
}

func newWSClient(conn *websocket.Conn, bus *eventbus.Bus) *wsClient {
	return &wsClient{
		conn: conn,
		bus:  bus,
		send: make(chan []byte, 256),
		subs: make(map[string]func()),
	}
}

func (c *wsClient) subscribe(topic string) {
	c.mu.Lock()
	if _, ok := c.subs[topic]; ok {
		c.mu.Unlock()
		return
	}
	ch, unsubscribe := c.bus.Subscribe(topic)
	c.subs[topic] = unsubscribe
	c.mu.Unlock()

	go func() {
		for ev := range ch {
			data, err := json.Marshal(envelope{Type: ev.Type, Topic: ev.Topic, Data: ev.Data, Ts: ev.Ts.Unix()})
			if err != nil {
				continue
			}
			select {
			case c.send <- data:
			default:
				// slow consumer: drop rather than block the fan-out goroutine.
			}
		}
	}()
}

func (c *wsClient) unsubscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if unsub, ok := c.subs[topic]; ok {
		unsub()
		delete(c.subs, topic)
	}
}

func (c *wsClient) closeAllSubscriptions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for topic, unsub := range c.subs {
		unsub()
		delete(c.subs, topic)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.closeAllSubscriptions()
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessage)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var ctrl controlMessage
		if err := json.Unmarshal(raw, &ctrl); err != nil {
			continue
		}
		switch ctrl.Action {
		case "subscribe":
			for _, topic := range ctrl.Topics {
				c.subscribe(topic)
			}
		case "unsubscribe":
			for _, topic := range ctrl.Topics {
				c.unsubscribe(topic)
			}
		}
	}
}

// handleWS upgrades the connection and starts its read/write pumps. A
// client starts with no subscriptions; it must send a
// {"action":"subscribe","topics":[...]} control message naming the topics
// spec §4.8 defines (quotes/<symbol>, orders/<account>, fills/<account>,
// strategies/<id>, accounts/<id>, alerts).
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.deps.Bus == nil {
		http.Error(w, "event bus not configured", http.StatusServiceUnavailable)
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.deps.Logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := newWSClient(conn, s.deps.Bus)
	go client.writePump()
	client.readPump()
}
