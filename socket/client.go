package socket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/rootdrew27/DISCO/models"
	"github.com/rootdrew27/DISCO/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 16
)

var errClientGone = errors.New("client connection closed")

// frame is the wire format in both directions: a logical event name and its
// payload.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Client is one authenticated websocket connection. The read loop processes
// that user's events strictly in arrival order; outbound events go through a
// buffered channel drained by the write pump, so a slow consumer never
// blocks matchmaking.
type Client struct {
	user    UserData
	conn    *websocket.Conn
	service *services.MatchmakingService
	logger  zerolog.Logger

	mu     sync.Mutex
	send   chan outbound
	closed bool
}

func newClient(user UserData, conn *websocket.Conn, service *services.MatchmakingService, logger zerolog.Logger) *Client {
	return &Client{
		user:    user,
		conn:    conn,
		service: service,
		logger:  logger.With().Str("userId", user.ID).Logger(),
		send:    make(chan outbound, sendBufferSize),
	}
}

func (c *Client) UserID() string   { return c.user.ID }
func (c *Client) Username() string { return c.user.Username }

// Send queues an event for delivery. It fails rather than blocks when the
// connection is gone or its buffer is full.
func (c *Client) Send(event string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientGone
	}
	select {
	case c.send <- outbound{Event: event, Data: payload}:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump consumes inbound frames until the connection drops, then runs
// the disconnect teardown.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		// The request context dies with the connection; teardown must
		// still reach the store.
		c.service.HandleDisconnect(context.Background(), c)
		c.closeSend()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("unexpected connection close")
			}
			return
		}
		var msg frame
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn().Err(err).Msg("malformed frame")
			c.Send(models.EventError, "Malformed message")
			continue
		}
		c.dispatch(ctx, msg)
	}
}

func (c *Client) dispatch(ctx context.Context, msg frame) {
	switch msg.Event {
	case models.EventJoinQueue:
		var prefs models.MatchPreferences
		if err := json.Unmarshal(msg.Data, &prefs); err != nil {
			c.logger.Warn().Err(err).Msg("bad join_queue payload")
			c.Send(models.EventError, "Failed to join queue")
			return
		}
		if err := c.service.HandleJoinQueue(ctx, c, prefs); err != nil {
			c.logger.Error().Err(err).Msg("join_queue failed")
			c.Send(models.EventError, "Failed to join queue")
		}
	case models.EventLeaveQueue:
		if err := c.service.HandleLeaveQueue(ctx, c); err != nil {
			c.logger.Error().Err(err).Msg("leave_queue failed")
			c.Send(models.EventError, "Failed to leave queue")
		}
	case models.EventAcceptMatch:
		matchID, err := matchIDFrom(msg.Data)
		if err != nil {
			c.Send(models.EventError, "Failed to accept match")
			return
		}
		if err := c.service.HandleAcceptMatch(ctx, c, matchID); err != nil {
			c.logger.Error().Err(err).Str("matchId", matchID).Msg("accept_match failed")
			c.Send(models.EventError, "Failed to accept match")
		}
	case models.EventRejectMatch:
		matchID, err := matchIDFrom(msg.Data)
		if err != nil {
			c.Send(models.EventError, "Failed to reject match")
			return
		}
		if err := c.service.HandleRejectMatch(ctx, c, matchID); err != nil {
			c.logger.Error().Err(err).Str("matchId", matchID).Msg("reject_match failed")
			c.Send(models.EventError, "Failed to reject match")
		}
	default:
		c.Send(models.EventError, "Unknown event")
	}
}

// matchIDFrom accepts either a bare JSON string or a {"matchId": ...}
// object, matching what the web client sends.
func matchIDFrom(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil && id != "" {
		return id, nil
	}
	var payload models.AcceptMatchPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.MatchID == "" {
		return "", errors.New("missing match id")
	}
	return payload.MatchID, nil
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(evt); err != nil {
				c.logger.Warn().Err(err).Msg("write failed")
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
