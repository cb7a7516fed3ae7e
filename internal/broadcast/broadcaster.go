package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/inboxd/inboxd/internal/domain"
	"github.com/inboxd/inboxd/internal/metrics"
	"github.com/inboxd/inboxd/internal/pubsub"
)

// DefaultQueueSize is the per-watcher delivery buffer. A watcher that falls
// this far behind starts losing messages rather than stalling the publisher.
const DefaultQueueSize = 64

// Callback is invoked once per published message, in append order. A non-nil
// error is logged and isolated to this watcher; the message is not redelivered.
type Callback func(msg *domain.Message) error

// Subscription is one live watcher on a conversation. It is ephemeral: it
// lives only as long as the client connection that created it.
type Subscription struct {
	// ID uniquely identifies the watcher handle.
	ID  string
	key domain.ConversationKey

	fn     Callback
	queue  chan *domain.Message
	cancel context.CancelFunc

	// mu is held across every callback invocation. Unsubscribe acquires it
	// before marking the watcher removed, so once Unsubscribe returns no
	// further callback can begin.
	mu      sync.Mutex
	removed bool
}

// Broadcaster fans newly appended messages out to the watchers of their
// conversation. Each watcher gets its own bounded queue and delivery
// goroutine, so a slow or failing watcher never blocks the publisher or
// other watchers.
type Broadcaster struct {
	pub       pubsub.Publisher
	sub       pubsub.Subscriber
	queueSize int
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithQueueSize overrides the per-watcher delivery buffer size.
func WithQueueSize(n int) Option {
	return func(b *Broadcaster) {
		b.queueSize = n
	}
}

// New creates a Broadcaster on top of the given pub/sub bus.
func New(pub pubsub.Publisher, sub pubsub.Subscriber, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		pub:       pub,
		sub:       sub,
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers fn as a watcher of the conversation. Every message
// published after Subscribe returns is buffered for this watcher; the caller
// is responsible for draining the store's List first, under the same
// serialization point that guards Append, to close the snapshot-then-stream
// gap.
func (b *Broadcaster) Subscribe(key domain.ConversationKey, fn Callback) (*Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Subscription{
		ID:     uuid.NewString(),
		key:    key,
		fn:     fn,
		queue:  make(chan *domain.Message, b.queueSize),
		cancel: cancel,
	}

	if err := b.sub.Subscribe(ctx, key.Topic(), s.enqueue); err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe to %s: %w", key, err)
	}

	go s.run(ctx)
	metrics.ActiveSubscriptions.Inc()
	return s, nil
}

// Unsubscribe removes the watcher. Idempotent; after it returns, the
// watcher's callback is never invoked again.
func (b *Broadcaster) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		return
	}
	s.removed = true
	s.mu.Unlock()

	s.cancel()
	metrics.ActiveSubscriptions.Dec()
}

// Publish fans the message out to all current watchers of the conversation.
// Bounded latency: the underlying bus buffers per subscription and watcher
// queues never block the caller.
func (b *Broadcaster) Publish(ctx context.Context, key domain.ConversationKey, msg *domain.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message %s: %w", msg.ID, err)
	}
	return b.pub.Publish(ctx, pubsub.Message{
		Topic:   key.Topic(),
		Payload: payload,
	})
}

// Close shuts down the underlying bus and with it all subscriptions.
func (b *Broadcaster) Close() error {
	return b.pub.Close()
}

// enqueue runs on the bus's subscription goroutine. It must never block:
// a full watcher queue drops the delivery for this watcher only.
func (s *Subscription) enqueue(ctx context.Context, m pubsub.Message) error {
	var msg domain.Message
	if err := json.Unmarshal(m.Payload, &msg); err != nil {
		return fmt.Errorf("decode message on %s: %w", m.Topic, err)
	}

	select {
	case s.queue <- &msg:
		return nil
	default:
		metrics.DroppedDeliveries.Inc()
		return fmt.Errorf("%w: watcher %s queue full, dropping message %s", domain.ErrDelivery, s.ID, msg.ID)
	}
}

func (s *Subscription) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.queue:
			s.deliver(msg)
		}
	}
}

func (s *Subscription) deliver(msg *domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed {
		return
	}

	if err := s.fn(msg); err != nil {
		slog.Warn("Watcher callback failed",
			"watcher", s.ID, "conversation", s.key.String(), "message", msg.ID,
			"error", fmt.Errorf("%w: %v", domain.ErrDelivery, err))
		return
	}
	metrics.Deliveries.Inc()
}
