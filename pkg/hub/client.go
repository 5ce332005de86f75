/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBufferSize = 256
)

// Client is one live websocket session. The hub owns its lifecycle: a
// read pump delivers inbound frames to the handler in order, a write pump
// drains the send buffer and keeps the connection alive with pings.
type Client struct {
	id   string
	conn *websocket.Conn

	send      chan Envelope
	closeOnce sync.Once
	done      chan struct{}
}

// ServeConn registers the websocket connection, announces the assigned
// connection id to the peer, and blocks until the session ends. The
// disconnect notification always runs, even when the session ends with a
// read error.
func (h *Hub) ServeConn(ctx context.Context, conn *websocket.Conn) {
	client := &Client{
		conn: conn,
		send: make(chan Envelope, sendBufferSize),
		done: make(chan struct{}),
	}

	id := h.register(client)

	h.logger.Info().
		Str("connection_id", id).
		Str("remote_addr", conn.RemoteAddr().String()).
		Msg("Connection registered")

	go client.writePump(h)

	h.announce(client)
	h.handler.HandleConnect(ctx, id)

	client.readPump(ctx, h)

	client.close()
	h.handler.HandleDisconnect(ctx, id)
	h.unregister(id)

	h.logger.Info().
		Str("connection_id", id).
		Msg("Connection closed")
}

// enqueue places an envelope on the client's send buffer, dropping it if
// the buffer is full or the session is ending. No delivery guarantee.
func (c *Client) enqueue(env Envelope) {
	select {
	case <-c.done:
	case c.send <- env:
	default:
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) readPump(ctx context.Context, h *Hub) {
	defer func() {
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn().
					Err(err).
					Str("connection_id", c.id).
					Msg("Unexpected websocket close")
			}

			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			h.logger.Warn().
				Str("connection_id", c.id).
				Msg("Ignoring malformed frame")

			continue
		}

		h.handler.HandleEvent(ctx, c.id, env.Event, env.Data)
	}
}

func (c *Client) writePump(h *Hub) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})

			return
		case env := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.conn.WriteJSON(env); err != nil {
				h.logger.Debug().
					Err(err).
					Str("connection_id", c.id).
					Msg("Write failed, closing session")

				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
