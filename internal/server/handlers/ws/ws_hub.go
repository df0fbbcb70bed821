package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/openmined/gamebox/internal/manifest"
	"github.com/openmined/gamebox/internal/server/blob"
	"github.com/openmined/gamebox/internal/server/handlers/api"
	"github.com/openmined/gamebox/internal/server/middlewares"
)

const (
	maxMessageSize = 64 * 1024

	headerDeviceID = "X-GameBox-Device-Id"
	headerVersion  = "X-GameBox-Version"
)

var errHubClosed = errors.New("websocket hub closed")

// WebsocketHub fans save notifications out to the connections of the
// identity that uploaded them.
type WebsocketHub struct {
	clients  map[string]*WebsocketClient // map of ConnID -> Client
	register chan *WebsocketClient
	done     chan struct{}
	stopOnce sync.Once

	wg sync.WaitGroup
	mu sync.RWMutex
}

func NewHub() *WebsocketHub {
	return &WebsocketHub{
		clients:  make(map[string]*WebsocketClient),
		register: make(chan *WebsocketClient),
		done:     make(chan struct{}),
	}
}

func (h *WebsocketHub) Run(ctx context.Context) {
	slog.Info("wshub started")
	defer slog.Info("wshub stopped")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ConnID] = client
			slog.Debug("wshub registered", "connId", client.ConnID, "user", client.Info.User, "active", len(h.clients))
			h.mu.Unlock()

			h.wg.Add(1)
			client.Start(ctx)
			go func() {
				<-client.Closed

				h.mu.Lock()
				delete(h.clients, client.ConnID)
				slog.Debug("wshub removed", "connId", client.ConnID, "user", client.Info.User, "active", len(h.clients))
				h.mu.Unlock()
				h.wg.Done()
			}()

		case <-h.done:
			return

		case <-ctx.Done():
			return
		}
	}
}

func (h *WebsocketHub) Shutdown(_ context.Context) {
	h.stopOnce.Do(func() { close(h.done) })

	h.mu.RLock()
	clients := make([]*WebsocketClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
	h.wg.Wait()
	slog.Info("wshub shutdown")
}

// ActiveClients returns the number of open connections.
func (h *WebsocketHub) ActiveClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// WebsocketHandler upgrades the request and registers the connection under
// the identity bound by the gate middleware.
func (h *WebsocketHub) WebsocketHandler(ctx *gin.Context) {
	id, ok := middlewares.GetIdentity(ctx)
	if !ok {
		api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeUnauthorized, fmt.Errorf("identity missing"))
		return
	}

	conn, err := websocket.Accept(ctx.Writer, ctx.Request, nil)
	if err != nil {
		// Accept has already written the response
		ctx.Error(fmt.Errorf("websocket accept failed: %w", err))
		ctx.Abort()
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := NewWebsocketClient(conn, &ClientInfo{
		User:    id.Name,
		Device:  ctx.GetHeader(headerDeviceID),
		IPAddr:  ctx.ClientIP(),
		Version: ctx.GetHeader(headerVersion),
	})

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close(websocket.StatusGoingAway, errHubClosed.Error())
	}
}

// SendToUser queues ev on every connection of user. It reports whether any
// connection accepted it.
func (h *WebsocketHub) SendToUser(user string, ev *manifest.SaveEvent) bool {
	return h.BroadcastFiltered(ev, func(info *ClientInfo) bool {
		return info.User == user
	})
}

// BroadcastFiltered sends ev to all clients that match the predicate.
func (h *WebsocketHub) BroadcastFiltered(ev *manifest.SaveEvent, predicate func(*ClientInfo) bool) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := false
	for _, client := range h.clients {
		if !predicate(client.Info) {
			continue
		}
		select {
		case client.MsgTx <- ev:
			sent = true
		default:
			slog.Warn("wshub send buffer full", "connId", client.ConnID, "user", client.Info.User)
		}
	}
	return sent
}

// OnSaveChange turns a stored upload into a save.updated notification for
// the uploading identity's other connections.
func (h *WebsocketHub) OnSaveChange(change blob.SaveChange) {
	ev := &manifest.SaveEvent{
		Type:   manifest.EventSaveUpdated,
		Game:   change.Key.Game,
		Folder: change.Key.Folder,
		File:   change.Record,
		Device: change.Device,
	}
	if !h.SendToUser(change.Key.User, ev) {
		slog.Debug("wshub no subscribers", "user", change.Key.User, "game", ev.Game)
	}
}
