package wss

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return strings.Replace(srv.URL, "http", "ws", 1)
}

func TestClientConnectSendReceive(t *testing.T) {
	received := make(chan []byte, 1)

	url := wsServer(t, func(conn *websocket.Conn) {
		// Echo the subscription back, then hold the connection open.
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, data)
		conn.ReadMessage()
	})

	var client *Client
	client = NewClient(DefaultConfig(url), Handlers{
		OnConnect: func() {
			client.Send(map[string]string{"type": "market"})
		},
		OnMessage: func(data []byte) {
			select {
			case received <- data:
			default:
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		client.Run(ctx)
		close(done)
	}()
	defer func() {
		client.Close()
		cancel()
		<-done
	}()

	select {
	case data := <-received:
		var msg map[string]string
		if err := json.Unmarshal(data, &msg); err != nil || msg["type"] != "market" {
			t.Errorf("Wrong echoed frame: %s", data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for the echoed frame")
	}
}

func TestClientSendBeforeConnect(t *testing.T) {
	client := NewClient(DefaultConfig("ws://127.0.0.1:1"), Handlers{})
	if err := client.Send("hello"); err == nil {
		t.Error("Send before connect must fail")
	}
}

func TestClientSendAfterClose(t *testing.T) {
	client := NewClient(DefaultConfig("ws://127.0.0.1:1"), Handlers{})
	client.Close()
	client.Close() // idempotent

	if err := client.Send("hello"); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after close returned %v, want ErrClosed", err)
	}
}

func TestClientRunStopsOnClose(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
	})

	client := NewClient(DefaultConfig(url), Handlers{})
	done := make(chan error, 1)
	go func() { done <- client.Run(context.Background()) }()

	time.Sleep(100 * time.Millisecond)
	client.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}
