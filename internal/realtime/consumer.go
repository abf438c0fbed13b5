package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"brainsync-client/internal/apperr"
	"brainsync-client/internal/cache"
	"brainsync-client/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

const eventsTopic = "realtime.events"

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "disconnected"
}

type TokenSource interface {
	CurrentToken() (string, bool)
}

type Invalidator interface {
	InvalidateTags(tags ...cache.Tag)
}

type Stats struct {
	Received int64
	Applied  int64
	Ignored  int64
}

// Consumer keeps exactly one push connection alive for the current session and turns
// its frames into cache invalidations, in arrival order, on a single dispatch task.
type Consumer struct {
	source      Source
	tokens      TokenSource
	invalidator Invalidator
	notifier    Notifier
	registry    *Registry
	logger      logger.ILogger

	minBackoff     time.Duration
	maxBackoff     time.Duration
	onUnauthorized func(ctx context.Context)
	now            func() time.Time

	mu        sync.Mutex
	state     State
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	sessionId string
	listeners []func(State)

	received atomic.Int64
	applied  atomic.Int64
	ignored  atomic.Int64
}

type Option func(*Consumer)

func WithBackoff(min, max time.Duration) Option {
	return func(c *Consumer) {
		c.minBackoff = min
		c.maxBackoff = max
	}
}

func WithRegistry(r *Registry) Option {
	return func(c *Consumer) {
		c.registry = r
	}
}

// WithUnauthorizedHandler is called once the consumer has fully stopped after the
// backend rejected the token.
func WithUnauthorizedHandler(fn func(ctx context.Context)) Option {
	return func(c *Consumer) {
		c.onUnauthorized = fn
	}
}

func NewConsumer(source Source, tokens TokenSource, invalidator Invalidator, notifier Notifier, log logger.ILogger, opts ...Option) *Consumer {
	c := &Consumer{
		source:      source,
		tokens:      tokens,
		invalidator: invalidator,
		notifier:    notifier,
		registry:    DefaultRegistry(),
		logger:      log,
		minBackoff:  500 * time.Millisecond,
		maxBackoff:  30 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens the push channel. Calling it while running is a no-op.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	if _, ok := c.tokens.CurrentToken(); !ok {
		c.mu.Unlock()
		return apperr.NewAuth("login required")
	}

	runCtx, cancel := context.WithCancel(ctx)
	bus := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		},
		watermill.NopLogger{},
	)
	messages, err := bus.Subscribe(runCtx, eventsTopic)
	if err != nil {
		cancel()
		c.mu.Unlock()
		return err
	}

	done := make(chan struct{})
	c.running = true
	c.cancel = cancel
	c.done = done
	c.sessionId = uuid.NewString()
	sessionId := c.sessionId
	c.mu.Unlock()

	c.logger.Info("Realtime", "Consumer started", map[string]interface{}{"session_id": sessionId})

	var wg sync.WaitGroup
	var unauthorized bool
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.dispatch(messages)
	}()
	go func() {
		defer wg.Done()
		unauthorized = c.connectLoop(runCtx, cancel, bus)
	}()

	go func() {
		wg.Wait()
		_ = bus.Close()

		c.mu.Lock()
		c.running = false
		c.cancel = nil
		c.mu.Unlock()
		c.setState(StateDisconnected)
		close(done)

		c.logger.Info("Realtime", "Consumer stopped", map[string]interface{}{"session_id": sessionId})
		if unauthorized && c.onUnauthorized != nil {
			c.onUnauthorized(context.Background())
		}
	}()
	return nil
}

// Stop closes the channel and returns once the dispatch task has exited.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
}

// Done is closed when the current run ends. It is nil before the first Start.
func (c *Consumer) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Consumer) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Consumer) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Consumer) Stats() Stats {
	return Stats{
		Received: c.received.Load(),
		Applied:  c.applied.Load(),
		Ignored:  c.ignored.Load(),
	}
}

func (c *Consumer) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	listeners := append([]func(State){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

// connectLoop owns the connection. It reports whether it gave up because the token
// was rejected.
func (c *Consumer) connectLoop(ctx context.Context, cancel context.CancelFunc, bus *gochannel.GoChannel) bool {
	defer cancel()

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = c.minBackoff
	retry.MaxInterval = c.maxBackoff
	retry.Reset()

	for ctx.Err() == nil {
		token, ok := c.tokens.CurrentToken()
		if !ok {
			c.logger.Info("Realtime", "Session gone, closing push channel", nil)
			return false
		}

		c.setState(StateConnecting)
		stream, err := c.source.Connect(ctx, token)
		if err != nil {
			if apperr.IsUnauthorized(err) {
				c.logger.Warn("Realtime", "Push channel rejected the token", map[string]interface{}{"error": err.Error()})
				return true
			}
			if !c.sleep(ctx, retry.NextBackOff(), err) {
				return false
			}
			continue
		}

		c.setState(StateConnected)
		retry.Reset()
		c.logger.Info("Realtime", "Push channel connected", nil)

		err = c.pump(ctx, stream, bus)
		_ = stream.Close()
		if ctx.Err() != nil {
			return false
		}
		if !c.sleep(ctx, retry.NextBackOff(), err) {
			return false
		}
	}
	return false
}

func (c *Consumer) sleep(ctx context.Context, wait time.Duration, cause error) bool {
	c.setState(StateDisconnected)
	details := map[string]interface{}{"retry_in": wait.String()}
	if cause != nil {
		details["error"] = cause.Error()
	}
	c.logger.Warn("Realtime", "Push channel unavailable", details)

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// pump forwards frames to the bus. Publish blocks until the dispatch task acked the
// previous frame, which keeps arrival order.
func (c *Consumer) pump(ctx context.Context, stream Stream, bus *gochannel.GoChannel) error {
	for {
		raw, err := stream.Next(ctx)
		if err != nil {
			return err
		}
		c.received.Add(1)
		if err := bus.Publish(eventsTopic, message.NewMessage(watermill.NewUUID(), raw)); err != nil {
			return err
		}
	}
}

func (c *Consumer) dispatch(messages <-chan *message.Message) {
	for msg := range messages {
		c.handle(msg.Payload)
		msg.Ack()
	}
}

func (c *Consumer) handle(raw []byte) {
	event, spec, ok, err := c.registry.Decode(raw, c.now())
	if err != nil {
		c.ignored.Add(1)
		c.logger.Warn("Realtime", "Malformed push frame", map[string]interface{}{"error": err.Error()})
		return
	}
	if !ok {
		c.ignored.Add(1)
		c.logger.Debug("Realtime", "Ignoring unknown event kind", map[string]interface{}{"kind": event.Name})
		return
	}

	c.invalidator.InvalidateTags(spec.Tags...)
	c.applied.Add(1)

	text := string(event.Kind)
	if spec.Describe != nil {
		text = spec.Describe(event)
	}
	c.notifier.Notify(Notification{Event: event, Text: text})
}
