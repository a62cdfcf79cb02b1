package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWSDeliversSubscribedTopicEvents(t *testing.T) {
	deps := testDeps(t)
	srv := NewServer("127.0.0.1:0", deps)

	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(controlMessage{Action: "subscribe", Topics: []string{"alerts"}}); err != nil {
		t.Fatalf("write control message: %v", err)
	}

	// Give the subscribe goroutine a moment to register before publishing.
	time.Sleep(50 * time.Millisecond)
	deps.Bus.Publish("alerts", "received", map[string]string{"alert_id": "a-1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got envelope
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if got.Topic != "alerts" || got.Type != "received" {
		t.Fatalf("got envelope %+v, want topic=alerts type=received", got)
	}
}

func TestWSIgnoresUnsubscribedTopics(t *testing.T) {
	deps := testDeps(t)
	srv := NewServer("127.0.0.1:0", deps)

	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deps.Bus.Publish("orders/acct-1", "routed", map[string]string{"order_id": "o-1"})

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var got envelope
	if err := conn.ReadJSON(&got); err == nil {
		t.Fatalf("expected read timeout for an unsubscribed topic, got %+v", got)
	}
}
