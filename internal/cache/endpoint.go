package cache

import (
	"context"
	"fmt"
)

// QueryDef declares a cached read. Results are shared by every subscriber of the same params.
type QueryDef[P, R any] struct {
	Name     string
	Provides []Tag
	Fetch    func(ctx context.Context, params P) (R, error)
}

// MutationDef declares a write. Mutations are never cached; on success they invalidate
// Invalidates. OnNotFound is invalidated when the target no longer exists on the server.
type MutationDef[B, R any] struct {
	Name        string
	Invalidates []Tag
	OnNotFound  []Tag
	Run         func(ctx context.Context, body B) (R, error)
}

// Query subscribes to def(params). The first subscription creates the entry and starts
// the fetch; later ones share it.
func Query[P, R any](e *Engine, def QueryDef[P, R], params P) *Subscription[R] {
	key, err := NewKey(def.Name, params)
	if err != nil {
		key = Key{Operation: def.Name, Params: fmt.Sprintf("%#v", params)}
	}

	fetch := func(ctx context.Context) (any, error) {
		return def.Fetch(ctx, params)
	}

	en, id, updates := e.subscribe(key, def.Provides, fetch)
	return &Subscription[R]{
		engine:  e,
		entry:   en,
		id:      id,
		updates: updates,
	}
}

// Mutate runs def once with a per-call deadline. Tags are invalidated before it returns,
// so subscribers see refetches triggered by this call. A failure invalidates nothing.
func Mutate[B, R any](ctx context.Context, e *Engine, def MutationDef[B, R], body B) (R, error) {
	var zero R

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return zero, ErrEngineClosed
	}
	e.mutationCounts[def.Name]++
	e.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, e.requestTimeout)
	defer cancel()

	res, err := def.Run(callCtx, body)
	if err != nil {
		e.logger.Warn("CacheEngine", "Mutation failed", map[string]interface{}{
			"mutation": def.Name,
			"error":    err.Error(),
		})
		if len(def.OnNotFound) > 0 && isNotFound(err) {
			e.InvalidateTags(def.OnNotFound...)
		}
		e.handleError(err)
		return zero, err
	}

	e.InvalidateTags(def.Invalidates...)
	return res, nil
}
