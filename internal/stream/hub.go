// Package stream pushes price updates to connected websocket clients.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sebuszqo/InvestLog/internal/investment/models"
	"github.com/sebuszqo/InvestLog/internal/investment/pricing"
	"github.com/sebuszqo/InvestLog/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// PriceEvent is sent after every price written by the resolver.
type PriceEvent struct {
	Type      string    `json:"type"`
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RefreshEvent is sent after a batch resolution.
type RefreshEvent struct {
	Type    string                         `json:"type"`
	At      time.Time                      `json:"at"`
	Results map[string]pricing.BatchResult `json:"results"`
}

// Bus relays events between server processes. Publish must deliver the
// payload back to this process's subscription too.
type Bus interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context) (<-chan []byte, error)
}

type Hub struct {
	clients    map[*client]struct{}
	broadcast  chan []byte
	outbox     chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	bus        Bus
	metrics    *metrics.Metrics
	log        zerolog.Logger
	mu         sync.RWMutex
}

// NewHub creates a hub. With a nil bus events go straight to local clients.
func NewHub(bus Bus, m *metrics.Metrics, log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan []byte, 256),
		outbox:     make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		bus:        bus,
		metrics:    m,
		log:        log.With().Str("component", "stream").Logger(),
	}
}

// Run serves registrations and broadcasts until ctx is done. It must be
// called once; joins and leaves after it returns are no-ops.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	var relayed <-chan []byte
	if h.bus != nil {
		ch, err := h.bus.Subscribe(ctx)
		if err != nil {
			return err
		}
		relayed = ch
		go h.forward(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
				h.metrics.AddWSClients(-1)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.metrics.AddWSClients(1)
			h.log.Debug().Int("clients", h.ClientCount()).Msg("client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.metrics.AddWSClients(-1)
			}
			h.mu.Unlock()
			h.log.Debug().Int("clients", h.ClientCount()).Msg("client disconnected")

		case msg, ok := <-relayed:
			if !ok {
				h.log.Warn().Msg("event bus subscription closed")
				relayed = nil
				continue
			}
			h.fanOut(msg)

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) fanOut(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn().Msg("dropping message for slow client")
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// join registers c. It reports false once the hub has stopped.
func (h *Hub) join(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// forward hands queued events to the bus.
func (h *Hub) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-h.outbox:
			pubCtx, cancel := context.WithTimeout(ctx, writeWait)
			if err := h.bus.Publish(pubCtx, payload); err != nil {
				h.log.Warn().Err(err).Msg("publish event")
			}
			cancel()
		}
	}
}

// publish never blocks the caller. Events are dropped when the queue is full.
func (h *Hub) publish(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("encode event")
		return
	}
	queue := h.broadcast
	if h.bus != nil {
		queue = h.outbox
	}
	select {
	case queue <- payload:
	default:
		h.log.Warn().Msg("event queue full, dropping event")
	}
}

func (h *Hub) PriceResolved(entry models.PriceEntry) {
	h.publish(PriceEvent{Type: "price", Symbol: entry.Symbol, Price: entry.Price, UpdatedAt: entry.UpdatedAt})
}

func (h *Hub) BatchResolved(results map[string]pricing.BatchResult) {
	h.publish(RefreshEvent{Type: "refresh", At: time.Now().UTC(), Results: results})
}

// HandleWS upgrades the request and registers the connection.
// GET /api/ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	// queued before joining: the hub closes send on shutdown
	c.hello()
	if !h.join(c) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
