package signaling

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	defaultPongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	defaultPingPeriod = 25 * time.Second

	// Maximum message size allowed from peer. Serialized 3D assets travel
	// as a single frame, so this has to be generous.
	defaultMaxMessageSize = 100 << 20 // 100 MiB
)

// Client is a wrapper for a single websocket connection (a peer).
type Client struct {
	// ID is the peer identifier, assigned at upgrade time and reused as
	// the identity everywhere (presence events, signal routing, update
	// attribution). There is no separate identity layer.
	ID string

	// Hub is a pointer to the hub that manages this client.
	Hub *Hub

	// Conn is the websocket connection.
	Conn *websocket.Conn

	// RoomID is the ID of the room the client is in, "" if none. Written
	// only by the hub's event loop.
	RoomID string

	// Send is a buffered channel for all outbound messages. The hub
	// writes to this channel, and WritePump drains it onto the websocket.
	Send chan *Message
}

// queue hands a message to the client's writer without ever blocking the
// hub's event loop. If the client's buffer is full it is too far behind to
// be useful and the message is dropped; the keep-alive path will reap the
// connection shortly after.
func (c *Client) queue(msg *Message) {
	select {
	case c.Send <- msg:
	default:
		c.Hub.logger.WithField("peer", c.ID).Warn("Send buffer full, dropping message")
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	// When this function exits (e.g., connection closes), unregister the client
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Hub.maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.pongWait))
		return nil
	})

	for {
		var msg Message
		err := c.Conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.WithField("peer", c.ID).WithError(err).Error("Read error")
			}
			break
		}

		// Attach the client pointer to the message
		msg.client = c

		// Send the message to the hub's inbound channel for processing
		c.Hub.Inbound <- &msg
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.Hub.pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(message); err != nil {
				c.Hub.logger.WithField("peer", c.ID).WithError(err).Error("Write error")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
