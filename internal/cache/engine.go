package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"brainsync-client/internal/apperr"
	"brainsync-client/internal/pkg/logger"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultKeepUnusedFor  = 60 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

var (
	ErrEngineClosed = errors.New("cache engine closed")
	ErrUnsubscribed = errors.New("subscription released")
)

type fetchFunc func(ctx context.Context) (any, error)

type entry struct {
	key         Key
	tags        []Tag
	fetch       fetchFunc
	status      Status
	value       any
	err         error
	subscribers map[int]chan struct{}
	inFlight    bool
	stale       bool
	removed     bool
	settled     chan struct{}
	gcTimer     *time.Timer
}

func (en *entry) hasAnyTag(tags []Tag) bool {
	for _, t := range en.tags {
		for _, want := range tags {
			if t == want {
				return true
			}
		}
	}
	return false
}

// Engine caches query results by key, coalesces concurrent fetches and refetches entries
// when their tags are invalidated.
type Engine struct {
	mu        sync.Mutex
	entries   map[Key]*entry
	group     singleflight.Group
	nextSubId int
	closed    bool

	fetchCounts    map[Key]int
	totalFetches   int
	mutationCounts map[string]int

	keepUnusedFor  time.Duration
	requestTimeout time.Duration
	onUnauthorized func(ctx context.Context)
	logger         logger.ILogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Engine)

// WithKeepUnusedFor sets how long an entry without subscribers survives. Zero drops it at once.
func WithKeepUnusedFor(d time.Duration) Option {
	return func(e *Engine) {
		e.keepUnusedFor = d
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.requestTimeout = d
		}
	}
}

func WithLogger(l logger.ILogger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithUnauthorizedHandler installs the hook every 401 runs through, query or mutation.
func WithUnauthorizedHandler(fn func(ctx context.Context)) Option {
	return func(e *Engine) {
		e.onUnauthorized = fn
	}
}

func New(opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		entries:        make(map[Key]*entry),
		fetchCounts:    make(map[Key]int),
		mutationCounts: make(map[string]int),
		keepUnusedFor:  DefaultKeepUnusedFor,
		requestTimeout: DefaultRequestTimeout,
		logger:         logger.NewNopLogger(),
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InvalidateTags marks every entry carrying one of tags. Subscribed entries refetch,
// unsubscribed ones are dropped. An entry already fetching refetches once after it settles.
func (e *Engine) InvalidateTags(tags ...Tag) {
	if len(tags) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	refetched, dropped := 0, 0
	for _, en := range e.entries {
		if !en.hasAnyTag(tags) {
			continue
		}
		switch {
		case len(en.subscribers) == 0:
			// A stale result must not be joined by the next subscriber.
			e.removeLocked(en, true)
			dropped++
		case en.inFlight:
			en.stale = true
		default:
			e.startFetchLocked(en)
			refetched++
		}
	}

	e.logger.Debug("CacheEngine", "Tags invalidated", map[string]interface{}{
		"tags":      tagNames(tags),
		"refetched": refetched,
		"dropped":   dropped,
	})
}

// Close cancels in-flight fetches and waits for them to settle.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for _, en := range e.entries {
		if en.gcTimer != nil {
			en.gcTimer.Stop()
			en.gcTimer = nil
		}
	}
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}

type Stats struct {
	Entries        int
	TotalFetches   int
	Fetches        map[string]int
	MutationCounts map[string]int
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{
		Entries:        len(e.entries),
		TotalFetches:   e.totalFetches,
		Fetches:        make(map[string]int, len(e.fetchCounts)),
		MutationCounts: make(map[string]int, len(e.mutationCounts)),
	}
	for k, n := range e.fetchCounts {
		s.Fetches[k.String()] = n
	}
	for k, n := range e.mutationCounts {
		s.MutationCounts[k] = n
	}
	return s
}

// FetchCount is the number of network fetches issued for key since the engine started.
func (e *Engine) FetchCount(key Key) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fetchCounts[key]
}

func (e *Engine) subscribe(key Key, tags []Tag, fetch fetchFunc) (*entry, int, chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	en, ok := e.entries[key]
	if !ok {
		en = &entry{
			key:         key,
			tags:        tags,
			fetch:       fetch,
			subscribers: make(map[int]chan struct{}),
		}
		e.entries[key] = en
	}
	if en.gcTimer != nil {
		en.gcTimer.Stop()
		en.gcTimer = nil
	}

	id := e.nextSubId
	e.nextSubId++
	updates := make(chan struct{}, 1)
	en.subscribers[id] = updates

	if !en.inFlight && (en.status == StatusUninitialized || en.status == StatusRejected) {
		e.startFetchLocked(en)
	}
	return en, id, updates
}

func (e *Engine) unsubscribe(en *entry, id int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(en.subscribers, id)
	if len(en.subscribers) > 0 || en.removed {
		return
	}

	if e.keepUnusedFor <= 0 || e.closed {
		e.removeLocked(en, false)
		return
	}
	en.gcTimer = time.AfterFunc(e.keepUnusedFor, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.entries[en.key] == en && len(en.subscribers) == 0 {
			e.removeLocked(en, false)
		}
	})
}

func (e *Engine) refetch(en *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if en.removed || en.inFlight {
		return
	}
	e.startFetchLocked(en)
}

func (e *Engine) startFetchLocked(en *entry) {
	if e.closed {
		en.status = StatusRejected
		en.err = ErrEngineClosed
		e.notifyLocked(en)
		return
	}

	en.inFlight = true
	en.stale = false
	en.status = StatusPending
	if en.settled == nil {
		en.settled = make(chan struct{})
	}
	e.notifyLocked(en)

	e.wg.Add(1)
	go e.runFetch(en)
}

func (e *Engine) runFetch(en *entry) {
	defer e.wg.Done()

	ctx, cancel := context.WithTimeout(e.ctx, e.requestTimeout)
	defer cancel()

	v, err, shared := e.group.Do(en.key.String(), func() (any, error) {
		e.mu.Lock()
		e.fetchCounts[en.key]++
		e.totalFetches++
		e.mu.Unlock()
		return en.fetch(ctx)
	})
	if shared {
		e.logger.Debug("CacheEngine", "Fetch coalesced", map[string]interface{}{
			"key": en.key.String(),
		})
	}

	e.settle(en, v, err)
}

func (e *Engine) settle(en *entry, v any, err error) {
	e.mu.Lock()

	if en.removed || e.entries[en.key] != en {
		e.mu.Unlock()
		return
	}

	en.inFlight = false
	if err != nil {
		en.err = err
		en.status = StatusRejected
		e.logger.Warn("CacheEngine", "Fetch rejected", map[string]interface{}{
			"key":   en.key.String(),
			"error": err.Error(),
		})
	} else {
		en.value = v
		en.err = nil
		en.status = StatusFulfilled
	}

	// Invalidated mid-flight: this result predates the change, fetch again before settling.
	if en.stale && len(en.subscribers) > 0 && !e.closed && !apperr.IsUnauthorized(err) {
		e.startFetchLocked(en)
	} else {
		en.stale = false
		if en.settled != nil {
			close(en.settled)
			en.settled = nil
		}
		e.notifyLocked(en)
	}
	e.mu.Unlock()

	e.handleError(err)
}

func (e *Engine) handleError(err error) {
	if err == nil || !apperr.IsUnauthorized(err) || e.onUnauthorized == nil {
		return
	}
	e.logger.Info("CacheEngine", "Unauthorized response, clearing session", nil)
	e.onUnauthorized(context.Background())
}

func (e *Engine) removeLocked(en *entry, forget bool) {
	en.removed = true
	if en.gcTimer != nil {
		en.gcTimer.Stop()
		en.gcTimer = nil
	}
	if en.settled != nil {
		close(en.settled)
		en.settled = nil
	}
	if forget && en.inFlight {
		e.group.Forget(en.key.String())
	}
	delete(e.entries, en.key)
}

func (e *Engine) notifyLocked(en *entry) {
	for _, ch := range en.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func tagNames(tags []Tag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.String())
	}
	return names
}
