package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/openmined/gamebox/internal/manifest"
)

const eventsBuffer = 64

// Events subscribes to save notifications. The channel is closed when the
// connection drops or ctx is done; callers reconnect as they see fit.
func (c *Client) Events(ctx context.Context) (<-chan manifest.SaveEvent, error) {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += apiPrefix + "events"

	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPHeader: c.authHeader(),
	})
	if err != nil {
		return nil, fmt.Errorf("events dial: %w", err)
	}

	out := make(chan manifest.SaveEvent, eventsBuffer)
	go func() {
		defer close(out)
		defer conn.CloseNow()

		for {
			var ev manifest.SaveEvent
			if err := wsjson.Read(ctx, conn, &ev); err != nil {
				if ctx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
					slog.Warn("events disconnected", "error", err)
				}
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
