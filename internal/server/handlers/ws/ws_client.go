package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/openmined/gamebox/internal/manifest"
)

const (
	writeTimeout   = 20 * time.Second
	pingInterval   = 30 * time.Second
	shutdownReason = "shutdown"
	sendBuffer     = 64
)

// WebsocketClient is one subscribed connection. The server only pushes;
// frames from the peer are drained by CloseRead so close and pong frames
// are still processed.
type WebsocketClient struct {
	ConnID string
	Info   *ClientInfo
	MsgTx  chan *manifest.SaveEvent
	Closed chan struct{}

	conn     *websocket.Conn
	stop     chan struct{}
	stopOnce sync.Once
}

func NewWebsocketClient(conn *websocket.Conn, info *ClientInfo) *WebsocketClient {
	return &WebsocketClient{
		ConnID: uuid.NewString()[:8],
		Info:   info,
		MsgTx:  make(chan *manifest.SaveEvent, sendBuffer),
		Closed: make(chan struct{}),
		stop:   make(chan struct{}),
		conn:   conn,
	}
}

// Start pumps queued events until the peer leaves, ctx ends or Close is
// called. Closed is closed once the connection is torn down.
func (c *WebsocketClient) Start(ctx context.Context) {
	slog.Debug("wsclient start", "client", c.Info)
	go c.pump(c.conn.CloseRead(ctx))
}

// Close asks the pump to send a normal closure. It may be called before
// Start and more than once.
func (c *WebsocketClient) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *WebsocketClient) pump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	status := websocket.StatusNormalClosure
	defer func() {
		// errors here only mean the peer is already gone
		_ = c.conn.Close(status, shutdownReason)
		close(c.Closed)
		slog.Debug("wsclient closed", "connId", c.ConnID)
	}()

	for {
		select {
		case <-c.stop:
			return

		case <-ctx.Done():
			// peer closed, or the hub context ended
			status = websocket.StatusGoingAway
			return

		case ev := <-c.MsgTx:
			if err := c.write(ctx, ev); err != nil {
				if !errors.Is(err, context.Canceled) {
					slog.Warn("wsclient write", "connId", c.ConnID, "game", ev.Game, "error", err)
				}
				status = websocket.StatusInternalError
				return
			}
			slog.Debug("wsclient sent", "connId", c.ConnID, "type", ev.Type, "game", ev.Game, "path", ev.File.Path)

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				slog.Debug("wsclient ping", "connId", c.ConnID, "error", err)
				status = websocket.StatusPolicyViolation
				return
			}
		}
	}
}

func (c *WebsocketClient) write(ctx context.Context, ev *manifest.SaveEvent) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.conn, ev)
}
