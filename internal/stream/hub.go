package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/matthewbaird/lawoffice/internal/event"
)

const writeTimeout = 5 * time.Second

var (
	errSlowConsumer = errors.New("stream: client too slow")
	errHubClosed    = errors.New("stream: hub closed")
)

// Hub fans domain events out to connected WebSocket clients. It implements
// eventbus.Handler and http.Handler.
type Hub struct {
	mu     sync.Mutex
	conns  map[*conn]struct{}
	closed bool
	buffer int
	log    logrus.FieldLogger
}

// conn is one connected client. Everything sent to it goes through out so
// only the write loop touches the socket.
type conn struct {
	id     string
	out    chan ServerMessage
	done   chan struct{}
	reason error
	once   sync.Once

	mu     sync.Mutex
	filter SubscribeData
}

func (c *conn) kick(reason error) {
	c.once.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

func (c *conn) wants(evt event.DomainEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter.matches(evt)
}

func (c *conn) setFilter(f SubscribeData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = f
}

// offer queues msg without blocking. A full queue disconnects the client.
func (c *conn) offer(msg ServerMessage) bool {
	select {
	case c.out <- msg:
		return true
	default:
		c.kick(errSlowConsumer)
		return false
	}
}

// NewHub creates a hub that queues up to buffer messages per client.
func NewHub(buffer int, log logrus.FieldLogger) *Hub {
	if buffer < 1 {
		buffer = 64
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		conns:  make(map[*conn]struct{}),
		buffer: buffer,
		log:    log.WithField("module", "stream"),
	}
}

// HandleEvent queues evt for every client whose filter matches.
func (h *Hub) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		if !c.wants(evt) {
			continue
		}
		if !c.offer(ServerMessage{Type: "event", Data: evt}) {
			h.log.WithField("connection_id", c.id).Warn("dropping slow client")
		}
	}
	return nil
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.conns {
		c.kick(errHubClosed)
	}
}

func (h *Hub) add(c *conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

// ServeHTTP upgrades to WebSocket and streams events until either side
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.WithError(err).Warn("websocket accept")
		return
	}
	defer ws.CloseNow()

	c := &conn{
		id:   uuid.New().String(),
		out:  make(chan ServerMessage, h.buffer),
		done: make(chan struct{}),
	}
	if !h.add(c) {
		ws.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.remove(c)
	log := h.log.WithField("connection_id", c.id)
	log.Debug("client connected")

	c.offer(ServerMessage{Type: "hello", Data: HelloData{ConnectionID: c.id}})

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return h.readLoop(ctx, ws, c) })
	g.Go(func() error { return h.writeLoop(ctx, ws, c) })

	err = g.Wait()
	switch {
	case errors.Is(err, errSlowConsumer), errors.Is(err, errHubClosed):
		log.WithError(err).Info("client disconnected")
	case websocket.CloseStatus(err) != -1:
		log.WithField("status", websocket.CloseStatus(err)).Debug("connection closed")
	case err != nil && !errors.Is(err, context.Canceled):
		log.WithError(err).Debug("connection ended")
	}
}

func (h *Hub) readLoop(ctx context.Context, ws *websocket.Conn, c *conn) error {
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			return err
		}

		switch msg.Type {
		case "subscribe":
			var f SubscribeData
			if len(msg.Data) > 0 {
				if err := json.Unmarshal(msg.Data, &f); err != nil {
					c.offer(errorMessage(msg.ID, "invalid_data", "invalid subscribe data"))
					continue
				}
			}
			c.setFilter(f)
			c.offer(ServerMessage{Type: "subscribed", RequestID: msg.ID, Data: f})
		case "ping":
			c.offer(ServerMessage{Type: "pong", RequestID: msg.ID})
		default:
			c.offer(errorMessage(msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type)))
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, ws *websocket.Conn, c *conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			if errors.Is(c.reason, errSlowConsumer) {
				// A client that cannot keep up will not answer a close handshake.
				ws.CloseNow()
			} else {
				ws.Close(websocket.StatusGoingAway, c.reason.Error())
			}
			return c.reason
		case msg := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, ws, msg)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func errorMessage(requestID, code, message string) ServerMessage {
	return ServerMessage{Type: "error", RequestID: requestID, Data: ErrorData{Code: code, Message: message}}
}
