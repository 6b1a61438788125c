package server

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"geoplayer/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Client is one websocket connection. Outbound messages go through a buffered
// channel drained by writePump, so room broadcasts never wait on the network.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan model.Message
}

func newClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan model.Message, sendBuffer),
	}
}

// Send enqueues a message for delivery. When the buffer is full the message is
// dropped rather than stalling the sender's room.
func (c *Client) Send(msg model.Message) {
	select {
	case c.send <- msg:
	default:
		log.Warn().Str("player", c.id).Str("event", msg.Type).Msg("send buffer full, dropping message")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
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

// readPump feeds inbound actions to the handler until the connection drops.
// Runs on the connection's own goroutine; dispatch is synchronous, so actions
// from one connection apply in the order they were sent.
func (c *Client) readPump(h *Handler) {
	defer c.conn.Close()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var action model.Action
		if err := c.conn.ReadJSON(&action); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Str("player", c.id).Err(err).Msg("connection closed")
			}
			return
		}
		h.dispatch(c, action)
	}
}
