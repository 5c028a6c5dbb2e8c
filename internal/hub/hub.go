package hub

import (
	"context"
	"log/slog"
	"sync"

	"pollcast/pkg/interfaces"
	"pollcast/pkg/types"
)

// EventKind identifies what happened
type EventKind int

const (
	EventConnect EventKind = iota
	EventDisconnect
	EventMessage
	EventExpire
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventMessage:
		return "message"
	case EventExpire:
		return "expire"
	default:
		return "unknown"
	}
}

// Event is one unit of work for the hub goroutine
type Event struct {
	Kind    EventKind
	ConnID  string
	Message *types.Inbound
	PollID  int64
}

// Router decodes and dispatches inbound frames
type Router interface {
	Route(connID string, msg *types.Inbound) error
	Forget(connID string)
}

// Hub serializes connection lifecycle, inbound frames and poll expiry
// ARCHITECTURAL DISCOVERY: Central coordination point for all message flow;
// the session never sees two events at once
type Hub struct {
	events chan Event // TECHNICAL DISCOVERY: buffered so read pumps rarely wait on the loop

	router  Router
	session interfaces.Session
	logger  *slog.Logger

	mu       sync.RWMutex
	running  bool
	shutdown chan struct{}
	done     chan struct{}
}

// NewHub creates a stopped hub with the given queue capacity
func NewHub(router Router, session interfaces.Session, queueSize int, logger *slog.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		events:  make(chan Event, queueSize),
		router:  router,
		session: session,
		logger:  logger,
	}
}

// Start begins hub processing
// FUNCTIONAL DISCOVERY: Single hub goroutine prevents race conditions
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.shutdown = make(chan struct{})
	h.done = make(chan struct{})

	h.logger.Info("starting event hub")
	go h.run(ctx, h.shutdown, h.done)

	return nil
}

// Stop signals the loop and waits for the event in progress to finish.
// Queued events that have not started are discarded.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = false
	close(h.shutdown)
	done := h.done
	h.mu.Unlock()

	<-done
	h.logger.Info("event hub stopped")
	return nil
}

// Running reports whether the loop is accepting events
func (h *Hub) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Submit enqueues ev, blocking while the queue is full.
// It fails once the hub has been stopped.
func (h *Hub) Submit(ev Event) error {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrHubNotRunning
	}
	shutdown := h.shutdown
	h.mu.RUnlock()

	select {
	case h.events <- ev:
		return nil
	case <-shutdown:
		return ErrHubNotRunning
	}
}

// Connect implements websocket.Dispatcher
func (h *Hub) Connect(connID string) {
	h.submit(Event{Kind: EventConnect, ConnID: connID})
}

// Disconnect implements websocket.Dispatcher
func (h *Hub) Disconnect(connID string) {
	h.submit(Event{Kind: EventDisconnect, ConnID: connID})
}

// Dispatch implements websocket.Dispatcher
func (h *Hub) Dispatch(connID string, msg *types.Inbound) {
	h.submit(Event{Kind: EventMessage, ConnID: connID, Message: msg})
}

// Expire queues a poll timer expiry
func (h *Hub) Expire(pollID int64) {
	h.submit(Event{Kind: EventExpire, PollID: pollID})
}

func (h *Hub) submit(ev Event) {
	if err := h.Submit(ev); err != nil {
		h.logger.Debug("event dropped", "kind", ev.Kind.String(), "conn", ev.ConnID, "error", err)
	}
}

// run is the main hub processing loop
func (h *Hub) run(ctx context.Context, shutdown <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case ev := <-h.events:
			h.handle(ev)

		case <-shutdown:
			return

		case <-ctx.Done():
			h.logger.Info("hub context cancelled")
			h.mu.Lock()
			if h.running {
				h.running = false
				close(h.shutdown)
			}
			h.mu.Unlock()
			return
		}
	}
}

// handle processes one event; a panic is logged and the loop continues
func (h *Hub) handle(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic while handling event", "kind", ev.Kind.String(), "conn", ev.ConnID, "panic", r)
		}
	}()

	switch ev.Kind {
	case EventConnect:
		h.session.HandleConnect(ev.ConnID)

	case EventDisconnect:
		h.router.Forget(ev.ConnID)
		h.session.HandleDisconnect(ev.ConnID)

	case EventMessage:
		// TECHNICAL DISCOVERY: Router errors are logged but never close the connection
		if err := h.router.Route(ev.ConnID, ev.Message); err != nil {
			h.logger.Debug("frame dropped", "conn", ev.ConnID, "event", eventName(ev.Message), "error", err)
		}

	case EventExpire:
		h.session.ExpirePoll(ev.PollID)

	default:
		h.logger.Warn("unknown hub event", "kind", int(ev.Kind))
	}
}

func eventName(msg *types.Inbound) string {
	if msg == nil {
		return ""
	}
	return msg.Event
}
