package ws

// Copyright 2013 The Gorilla WebSocket Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ether/collabpads-go/lib/settings"
	"github.com/ether/collabpads-go/lib/ws/ratelimiter"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Close reasons longer than this do not fit into a control frame.
	maxCloseReason = 123
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Editors are embedded in pages served from other origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	ID  int64
	Hub *Hub
	// The websocket connection.
	Conn WebSocketConn
	// Buffered channel of outbound messages.
	Send        chan []byte
	IP          string
	JoinRequest JoinRequest

	sendOnce sync.Once
}

// Deliver queues message without blocking the hub. A client that cannot keep up is closed
// and goes through the regular disconnect path once its read pump notices.
func (c *Client) Deliver(message []byte) bool {
	select {
	case c.Send <- message:
		return true
	default:
		droppedConnectionsTotal.Inc()
		_ = c.Conn.Close()
		return false
	}
}

func (c *Client) closeSend() {
	c.sendOnce.Do(func() {
		close(c.Send)
	})
}

func (c *Client) refuse(reason string) {
	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}
	_ = c.Conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(writeWait),
	)
	c.closeSend()
	_ = c.Conn.Close()
}

// readPump pumps messages from the websocket connection to the Hub.
//
// The application runs readPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) readPump(maxMessageSize int64, limiter *ratelimiter.RateLimiter, logger *zap.SugaredLogger) {
	defer func() {
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.Done():
		}
		_ = c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debugw("Socket closed unexpectedly", "connection", c.ID, "error", err)
			}
			return
		}
		if err := limiter.Check(ratelimiter.IPAddress(c.IP)); err != nil {
			logger.Warnw("Dropping frame", "connection", c.ID, "error", err)
			continue
		}
		select {
		case c.Hub.Inbound <- InboundFrame{ConnectionID: c.ID, Raw: message}:
		case <-c.Hub.Done():
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.Hub.Done():
			return
		}
	}
}

// ServeWs handles websocket requests from the peer. The join request travels in the query
// string; ip is the remote address the rate limiter keys on.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, ip string,
	configSettings *settings.Settings, limiter *ratelimiter.RateLimiter, logger *zap.SugaredLogger) {
	joinRequest := ParseJoinRequest(r.URL.Query())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnw("Error upgrading connection", "error", err)
		return
	}
	if ip == "" {
		ip = remoteHost(r.RemoteAddr)
	}
	client := &Client{
		ID:          hub.NextConnectionID(),
		Hub:         hub,
		Conn:        NewWebSocketWrapper(conn),
		Send:        make(chan []byte, configSettings.SocketIo.SendBufferSize),
		IP:          ip,
		JoinRequest: joinRequest,
	}
	logger.Debugw("Socket opened", "connection", client.ID, "ip", ip)

	select {
	case hub.Register <- client:
	case <-hub.Done():
		_ = conn.Close()
		return
	}
	go client.writePump()
	client.readPump(configSettings.SocketIo.MaxHttpBufferSize, limiter, logger)
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
