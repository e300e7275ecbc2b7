package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nicktill/skilltrend/pkg/config"
	"github.com/nicktill/skilltrend/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Allow same-origin requests, or requests with no Origin header
		// (direct connections from non-browser clients).
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
	ReadBufferSize:  config.WSReadBufferSize,
	WriteBufferSize: config.WSWriteBufferSize,
}

// Feed manages WebSocket connections for the live level-up stream. The
// surrounding integration subscribes here to relay "X reached level N"
// announcements to chat.
type Feed struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte

	log *logger.Logger
	mu  sync.RWMutex
}

// NewFeed creates a new level-up feed hub.
func NewFeed(log *logger.Logger) *Feed {
	return &Feed{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn, config.WSChannelBuffer),
		unregister: make(chan *websocket.Conn, config.WSChannelBuffer),
		broadcast:  make(chan []byte, config.WSBroadcastBuffer),
		log:        log.Named("feed"),
	}
}

// Run starts the hub's main loop; it returns when ctx is canceled, closing
// all client connections.
func (f *Feed) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			f.mu.Lock()
			for conn := range f.clients {
				conn.Close()
			}
			f.mu.Unlock()
			return
		case conn := <-f.register:
			f.mu.Lock()
			f.clients[conn] = true
			count := len(f.clients)
			f.mu.Unlock()
			f.log.Debug("feed client connected", "total", count)
		case conn := <-f.unregister:
			f.mu.Lock()
			if _, ok := f.clients[conn]; ok {
				delete(f.clients, conn)
				conn.Close()
			}
			count := len(f.clients)
			f.mu.Unlock()
			f.log.Debug("feed client disconnected", "total", count)
		case message := <-f.broadcast:
			f.mu.RLock()
			var failed []*websocket.Conn
			for conn := range f.clients {
				conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					f.log.Warn("feed write error", "err", err)
					failed = append(failed, conn)
				}
			}
			f.mu.RUnlock()

			// Unregister failed connections without holding the lock.
			for _, conn := range failed {
				f.unregister <- conn
			}
		}
	}
}

// Broadcast sends a message to all connected clients. The message is
// dropped rather than blocking when the channel is full.
func (f *Feed) Broadcast(data interface{}) error {
	message, err := json.Marshal(data)
	if err != nil {
		return err
	}

	select {
	case f.broadcast <- message:
	default:
		f.log.Warn("broadcast channel full, dropping message")
	}
	return nil
}

// HasClients returns true if any client is connected.
func (f *Feed) HasClients() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients) > 0
}

// HandleWebSocket upgrades an HTTP request into a feed subscription.
func (f *Feed) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			f.log.Warn("websocket upgrade failed", "err", err)
			return
		}

		f.register <- conn

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Ping sender keeps the connection alive.
		go func() {
			ticker := time.NewTicker(config.WSPingInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				}
			}
		}()

		defer func() {
			cancel()
			f.unregister <- conn
		}()

		conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
			return nil
		})

		// Read loop handles control frames and detects connection close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					f.log.Warn("websocket error", "err", err)
				}
				break
			}
		}
	}
}
