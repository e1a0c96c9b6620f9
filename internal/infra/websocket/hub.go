package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxReadBytes   = 512
	clientBuffer   = 64
	broadcastQueue = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn  *websocket.Conn
	send  chan []byte
	runID uuid.UUID
}

func (c *client) wants(runID uuid.UUID) bool {
	return c.runID == uuid.Nil || c.runID == runID
}

type message struct {
	runID uuid.UUID
	data  []byte
}

// Hub fans run events out to connected viewers. A viewer may subscribe to a
// single run with ?run_id=<uuid>. Slow viewers are disconnected instead of
// blocking the extraction.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan message
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan message, broadcastQueue),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mutex.Unlock()
			return

		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("viewer connected", zap.Int("total", total), zap.Stringer("run_id", c.runID))

		case c := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("viewer disconnected", zap.Int("total", total))

		case msg := <-h.broadcast:
			h.mutex.Lock()
			for c := range h.clients {
				if !c.wants(msg.runID) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					h.logger.Warn("viewer too slow, disconnecting")
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams run events until the viewer
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var runID uuid.UUID
	if raw := r.URL.Query().Get("run_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid run_id", http.StatusBadRequest)
			return
		}
		runID = id
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer), runID: runID}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxReadBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

func (h *Hub) FrameAppended(_ context.Context, runID uuid.UUID, frame entity.Frame) {
	h.publish(entity.NewFrameEvent(runID, frame))
}

func (h *Hub) ProgressChanged(_ context.Context, runID uuid.UUID, progress float64) {
	h.publish(entity.NewProgressEvent(runID, progress))
}

func (h *Hub) RunFinished(_ context.Context, runID uuid.UUID, status entity.RunStatus, reason string) {
	h.publish(entity.NewFinishedEvent(runID, status, reason))
}

func (h *Hub) publish(event entity.RunEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal run event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- message{runID: event.RunID, data: data}:
	default:
		metrics.EventsDroppedTotal.WithLabelValues("websocket").Inc()
	}
}
