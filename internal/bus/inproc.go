package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	defaultMaxInFlight = 32
	defaultSeenLimit   = 4096
)

// Handler processes one bus message. A non-nil error is logged by the bus;
// it does not stop the subscription.
type Handler func(ctx context.Context, msg BusMessage) error

type BootstrapOptions struct {
	MaxInFlight int
	// SeenLimit bounds the idempotency ledger; the oldest keys are evicted
	// past it, after which a very late redelivery is processed again.
	SeenLimit int
	Logger    *slog.Logger
	Component string
}

// Inproc is a single-process bus. Subscriptions must be registered before
// the first Publish; delivery is asynchronous with a bounded number of
// in-flight handlers.
type Inproc struct {
	logger    *slog.Logger
	component string
	slots     chan struct{}

	mu        sync.Mutex
	handlers  map[string][]Handler
	seen      map[string]struct{}
	seenOrder []string
	seenLimit int
	closed    bool

	wg sync.WaitGroup
}

func StartInproc(opts BootstrapOptions) (*Inproc, error) {
	maxInFlight := opts.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	seenLimit := opts.SeenLimit
	if seenLimit <= 0 {
		seenLimit = defaultSeenLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Inproc{
		logger:    logger,
		component: opts.Component,
		slots:     make(chan struct{}, maxInFlight),
		handlers:  make(map[string][]Handler),
		seen:      make(map[string]struct{}),
		seenLimit: seenLimit,
	}, nil
}

func (b *Inproc) Subscribe(topic string, handler Handler) error {
	if b == nil {
		return fmt.Errorf("bus is not initialized")
	}
	if !topicPattern.MatchString(topic) {
		return fmt.Errorf("topic is invalid")
	}
	if handler == nil {
		return fmt.Errorf("handler is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}
	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

// Publish validates msg, fills a missing ID, and hands it to every handler
// subscribed to its topic. The first return reports whether the message was
// taken onto the bus, the second whether it was dropped as a duplicate of an
// earlier idempotency key.
func (b *Inproc) Publish(ctx context.Context, msg BusMessage) (bool, bool, error) {
	if b == nil {
		return false, false, fmt.Errorf("bus is not initialized")
	}
	if ctx == nil {
		return false, false, fmt.Errorf("context is required")
	}
	if msg.ID == "" {
		msg.ID = "bus_" + uuid.NewString()
	}
	if err := msg.Validate(); err != nil {
		return false, false, err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false, false, fmt.Errorf("bus is closed")
	}
	if _, dup := b.seen[msg.IdempotencyKey]; dup {
		b.mu.Unlock()
		return false, true, nil
	}
	b.markSeenLocked(msg.IdempotencyKey)
	handlers := b.handlers[msg.Topic]
	b.mu.Unlock()

	for _, handler := range handlers {
		select {
		case b.slots <- struct{}{}:
		case <-ctx.Done():
			// The message never reached its handlers, so the redelivery
			// must not be treated as a duplicate.
			b.forgetSeen(msg.IdempotencyKey)
			return false, false, ctx.Err()
		}
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			defer func() { <-b.slots }()
			if err := h(context.Background(), msg); err != nil {
				b.logger.Error("bus handler failed",
					"component", b.component,
					"topic", msg.Topic,
					"message_id", msg.ID,
					"error", err)
			}
		}(handler)
	}
	return true, false, nil
}

func (b *Inproc) markSeenLocked(key string) {
	b.seen[key] = struct{}{}
	b.seenOrder = append(b.seenOrder, key)
	for len(b.seenOrder) > b.seenLimit {
		delete(b.seen, b.seenOrder[0])
		b.seenOrder = b.seenOrder[1:]
	}
}

func (b *Inproc) forgetSeen(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.seen[key]; !ok {
		return
	}
	delete(b.seen, key)
	for i := len(b.seenOrder) - 1; i >= 0; i-- {
		if b.seenOrder[i] == key {
			b.seenOrder = append(b.seenOrder[:i], b.seenOrder[i+1:]...)
			break
		}
	}
}

// Close waits for in-flight handlers to finish. Further publishes fail.
func (b *Inproc) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
}
