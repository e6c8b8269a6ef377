package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/room"
)

// Client is one websocket connection. Reads happen on the goroutine serving the
// request; writes go through a buffered queue drained by writePump.
type Client struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	options Options

	// sessionID is the opaque id carried by the session cookie.
	sessionID string
	identity  entity.Identity
	room      *room.Room

	send      chan protocol.Envelope
	done      chan struct{}
	pumpDone  chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, logger *slog.Logger, options Options, sessionID string, identity entity.Identity) *Client {
	return &Client{
		conn:      conn,
		logger:    logger.With("client", identity.ID),
		options:   options,
		sessionID: sessionID,
		identity:  identity,
		send:      make(chan protocol.Envelope, options.SendBuffer),
		done:      make(chan struct{}),
		pumpDone:  make(chan struct{}),
	}
}

// Identity is resolved once at accept time and never changes.
func (that *Client) Identity() entity.Identity {
	return that.identity
}

// Send queues envelope without blocking. A full queue fails this send only.
func (that *Client) Send(envelope protocol.Envelope) error {
	select {
	case <-that.done:
		return apperror.ErrConnectionClosed
	default:
	}

	select {
	case that.send <- envelope:
		return nil
	case <-that.done:
		return apperror.ErrConnectionClosed
	default:
		return apperror.ErrSendBufferFull
	}
}

// Close stops the write pump after it flushes what is already queued.
func (that *Client) Close() error {
	that.closeOnce.Do(func() {
		close(that.done)
	})

	return nil
}

func (that *Client) closed() bool {
	select {
	case <-that.done:
		return true
	default:
		return false
	}
}

// wait blocks until the write pump has closed the connection.
func (that *Client) wait() {
	<-that.pumpDone
}

func (that *Client) write(envelope protocol.Envelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", envelope.EventType, err)
	}

	if err = that.conn.SetWriteDeadline(time.Now().Add(that.options.WriteWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if err = that.conn.WriteMessage(websocket.TextMessage, body); err != nil {
		return fmt.Errorf("failed to write %s: %w", envelope.EventType, err)
	}

	return nil
}

func (that *Client) writePump() {
	log := that.logger.With("method", "writePump")

	ticker := time.NewTicker(that.options.PingPeriod())
	defer func() {
		ticker.Stop()
		_ = that.Close()
		_ = that.conn.Close()
		close(that.pumpDone)
	}()

	for {
		select {
		case envelope := <-that.send:
			if err := that.write(envelope); err != nil {
				log.Debug("write failed", "error", err)
				return
			}

		case <-ticker.C:
			if err := that.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(that.options.WriteWait)); err != nil {
				log.Debug("ping failed", "error", err)
				return
			}

		case <-that.done:
			that.flush()
			return
		}
	}
}

// flush writes whatever is still queued, then the close frame.
func (that *Client) flush() {
	for {
		select {
		case envelope := <-that.send:
			if err := that.write(envelope); err != nil {
				return
			}
		default:
			_ = that.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(that.options.WriteWait),
			)
			return
		}
	}
}

// readLoop feeds frames to handle until the peer goes away, handle returns
// an error or the connection is closed locally.
func (that *Client) readLoop(handle func(raw []byte) error) error {
	that.conn.SetReadLimit(that.options.MaxMessageSize)
	_ = that.conn.SetReadDeadline(time.Now().Add(that.options.PongWait))
	that.conn.SetPongHandler(func(string) error {
		return that.conn.SetReadDeadline(time.Now().Add(that.options.PongWait))
	})

	for {
		messageType, raw, err := that.conn.ReadMessage()
		if err != nil {
			if that.closed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		if messageType != websocket.TextMessage {
			continue
		}

		if err = handle(raw); err != nil {
			return err
		}
	}
}
