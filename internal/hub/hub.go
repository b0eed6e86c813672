package hub

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"classsync/pkg/interfaces"
	"classsync/pkg/types"
)

// EventRelay processes one inbound event to completion: validate, persist,
// fan out. Implemented by the relay package.
type EventRelay interface {
	HandleEvent(ctx context.Context, sender interfaces.Connection, envelope *types.Envelope) error
}

// Hub is the single dispatch point between connection read pumps and the
// event relay. One goroutine drains the event channel and handles each event
// to completion, which gives per-connection FIFO ordering; events from
// different connections interleave in arrival order with no cross-connection
// locking.
type Hub struct {
	eventChannel    chan *EventContext
	shutdownChannel chan struct{}

	relay EventRelay
	log   *zap.SugaredLogger

	running bool
	mu      sync.RWMutex
}

// EventContext pairs an inbound envelope with its sender.
type EventContext struct {
	Envelope *types.Envelope
	Sender   interfaces.Connection
	Received time.Time
}

// NewHub creates a hub. The 1000-slot buffer absorbs classroom-scale bursts
// (a whole room dragging chairs at once) without blocking read pumps.
func NewHub(relay EventRelay, log *zap.SugaredLogger) *Hub {
	return &Hub{
		eventChannel:    make(chan *EventContext, 1000),
		shutdownChannel: make(chan struct{}),
		relay:           relay,
		log:             log,
	}
}

// Start begins hub processing.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	h.log.Info("starting event hub")
	go h.run(ctx)

	return nil
}

// Stop shuts down the hub. Queued events that have not been handled yet are
// dropped; the transport is best-effort.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	h.log.Info("stopping event hub")

	select {
	case <-h.shutdownChannel:
	default:
		close(h.shutdownChannel)
	}
	return nil
}

// Dispatch queues an inbound event for processing. Non-blocking: a full
// channel surfaces ErrEventChannelFull to the read pump rather than stalling
// every connection behind one slow event.
func (h *Hub) Dispatch(sender interfaces.Connection, envelope *types.Envelope) error {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrHubNotRunning
	}
	h.mu.RUnlock()

	eventCtx := &EventContext{
		Envelope: envelope,
		Sender:   sender,
		Received: time.Now(),
	}

	select {
	case h.eventChannel <- eventCtx:
		return nil
	default:
		return ErrEventChannelFull
	}
}

// run drains the event channel until shutdown or context cancellation.
func (h *Hub) run(ctx context.Context) {
	defer h.log.Info("hub processing stopped")

	for {
		select {
		case eventCtx := <-h.eventChannel:
			h.handleEvent(ctx, eventCtx)

		case <-h.shutdownChannel:
			return

		case <-ctx.Done():
			return
		}
	}
}

// handleEvent runs one event through the relay. Relay errors are logged and
// never crash the hub; the transport offers no error channel back to the
// sender.
func (h *Hub) handleEvent(ctx context.Context, eventCtx *EventContext) {
	err := h.relay.HandleEvent(ctx, eventCtx.Sender, eventCtx.Envelope)
	if err != nil {
		h.log.Warnw("event handling failed",
			"event", eventCtx.Envelope.Event,
			"userId", eventCtx.Sender.UserID(),
			"classroomId", eventCtx.Sender.ClassroomID(),
			"error", err)
	}
}
