package testutil

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/vedran77/taskflow/internal/transport/ws"
)

// WSClient is a test WebSocket client that buffers every event it receives.
type WSClient struct {
	t        *testing.T
	conn     *gorillaWS.Conn
	messages chan ws.Event
	done     chan struct{}
	mu       sync.Mutex
}

func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()

	conn, resp, err := gorillaWS.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect to websocket: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c := &WSClient{
		t:        t,
		conn:     conn,
		messages: make(chan ws.Event, 100),
		done:     make(chan struct{}),
	}
	go c.readPump()
	t.Cleanup(c.Close)
	return c
}

func (c *WSClient) readPump() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var evt ws.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			continue
		}
		select {
		case c.messages <- evt:
		default:
		}
	}
}

func (c *WSClient) Send(eventType string, channelID uuid.UUID) {
	c.t.Helper()
	c.SendEvent(ws.Event{Type: eventType, ChannelID: &channelID})
}

func (c *WSClient) SendEvent(evt ws.Event) {
	c.t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(evt); err != nil {
		c.t.Fatalf("failed to write websocket event: %v", err)
	}
}

// ReadEvent returns the next event or fails the test after timeout.
func (c *WSClient) ReadEvent(timeout time.Duration) ws.Event {
	c.t.Helper()
	select {
	case evt := <-c.messages:
		return evt
	case <-time.After(timeout):
		c.t.Fatalf("timed out waiting for websocket event")
		return ws.Event{}
	}
}

// ExpectEvent skips events of other types until one of eventType arrives.
func (c *WSClient) ExpectEvent(eventType string, timeout time.Duration) ws.Event {
	c.t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case evt := <-c.messages:
			if evt.Type == eventType {
				return evt
			}
		case <-deadline:
			c.t.Fatalf("timed out waiting for %s event", eventType)
			return ws.Event{}
		}
	}
}

// ExpectNoEvent fails if any event of eventType arrives within wait.
func (c *WSClient) ExpectNoEvent(eventType string, wait time.Duration) {
	c.t.Helper()
	deadline := time.After(wait)
	for {
		select {
		case evt := <-c.messages:
			if evt.Type == eventType {
				c.t.Fatalf("unexpected %s event", eventType)
			}
		case <-deadline:
			return
		}
	}
}

func (c *WSClient) Close() {
	c.mu.Lock()
	_ = c.conn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, ""))
	c.mu.Unlock()
	c.conn.Close()
	<-c.done
}
