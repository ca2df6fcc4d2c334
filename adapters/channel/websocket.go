// Package channel provides wallet channels over real transports.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/layer-3/walletauth/bridge"
	"github.com/layer-3/walletauth/ports"
	"go.uber.org/zap"
)

const closeTimeout = time.Second

// ErrChannelClosed is returned when sending on a closed channel
var ErrChannelClosed = errors.New("channel closed")

// WebSocketOpener opens wallet channels as WebSocket connections
type WebSocketOpener struct {
	dialer *websocket.Dialer
	header http.Header
	logger *zap.Logger
}

// NewWebSocketOpener creates an opener. header is sent with every handshake
// and may be nil.
func NewWebSocketOpener(header http.Header, logger *zap.Logger) *WebSocketOpener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketOpener{
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		header: header,
		logger: logger,
	}
}

// Open dials endpoint and starts delivering frames to handlers
func (o *WebSocketOpener) Open(ctx context.Context, endpoint string, handlers ports.ChannelHandlers) (ports.Channel, error) {
	conn, _, err := o.dialer.DialContext(ctx, endpoint, o.header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}

	c := &wsChannel{
		conn:     conn,
		handlers: handlers,
		logger:   o.logger.With(zap.String("endpoint", endpoint)),
		done:     make(chan struct{}),
	}
	go c.readLoop()

	return c, nil
}

type wsChannel struct {
	conn     *websocket.Conn
	handlers ports.ChannelHandlers
	logger   *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

type frame struct {
	Type string `json:"type"`
}

func (c *wsChannel) readLoop() {
	defer c.shutdown()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("wallet channel read failed", zap.Error(err))
			}
			return
		}

		var f frame
		_ = json.Unmarshal(data, &f)

		switch f.Type {
		case bridge.TagReady:
			if c.handlers.OnReady != nil {
				c.handlers.OnReady()
			}
		case bridge.TagClose:
			return
		default:
			if c.handlers.OnMessage != nil {
				c.handlers.OnMessage(json.RawMessage(data))
			}
		}
	}
}

// shutdown releases the connection and reports the closure exactly once
func (c *wsChannel) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeTimeout))
		c.writeMu.Unlock()

		_ = c.conn.Close()
		if c.handlers.OnClose != nil {
			c.handlers.OnClose()
		}
	})
}

// Send writes msg as a JSON text frame. A write still blocked when ctx is
// done closes the connection.
func (c *wsChannel) Send(ctx context.Context, msg any) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	// zero deadline when ctx has none
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		c.logger.Debug("write abandoned, closing connection", zap.Error(ctx.Err()))
		_ = c.conn.Close()
	})
	err := c.conn.WriteJSON(msg)
	if !stop() && ctx.Err() != nil {
		return fmt.Errorf("failed to write message: %w", ctx.Err())
	}
	if err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Close closes the connection. It is safe to call more than once.
func (c *wsChannel) Close() error {
	c.shutdown()
	return nil
}
