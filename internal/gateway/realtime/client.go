package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type subscription struct {
	program cel.Program
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan BaseMessage

	subscriptions map[string]subscription
	mu            sync.Mutex
	closed        bool
}

// trySend queues an outbound message. A closing client or a full queue
// drops the message rather than blocking or panicking; the hub may close
// the send channel while the read pump is still handling a frame.
func (c *Client) trySend(msg BaseMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// closeSend shuts the outbound queue exactly once. Only the hub calls it.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump pumps messages from the websocket connection to the hub. At most
// one reader per connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket connection closed", "error", err)
			}
			break
		}

		var msg BaseMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError(msg.ID, "malformed message")
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg BaseMessage) {
	switch msg.Type {
	case TypeSubscribe:
		var payload SubscribePayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				c.sendError(msg.ID, "malformed subscribe payload")
				return
			}
		}
		program, err := compileFilter(payload.Filter)
		if err != nil {
			c.sendError(msg.ID, "invalid filter: "+err.Error())
			return
		}
		c.mu.Lock()
		c.subscriptions[msg.ID] = subscription{program: program}
		c.mu.Unlock()
		c.hub.logger.Info("subscription opened", "sub_id", msg.ID, "filtered", payload.Filter != "")
		c.trySend(BaseMessage{ID: msg.ID, Type: TypeSubscribeAck})

	case TypeUnsubscribe:
		var payload UnsubscribePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError(msg.ID, "malformed unsubscribe payload")
			return
		}
		c.mu.Lock()
		delete(c.subscriptions, payload.ID)
		c.mu.Unlock()
		c.trySend(BaseMessage{ID: msg.ID, Type: TypeUnsubscribeAck})

	default:
		c.sendError(msg.ID, "unknown message type "+msg.Type)
	}
}

func (c *Client) sendError(id, message string) {
	c.trySend(BaseMessage{ID: id, Type: TypeError, Payload: mustMarshal(ErrorPayload{Message: message})})
}

// writePump pumps messages from the hub to the websocket connection. At most
// one writer per connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and attaches a new client to the hub.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	client := &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan BaseMessage, 256),
		subscriptions: make(map[string]subscription),
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
