package orderstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tableside-pos/api/internal/realtime"
)

// Registry owns one Store per branch and keeps each one watching the change
// source. Stores are created on first use.
type Registry struct {
	backend    Backend
	source     realtime.Source
	opts       Options
	retryDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	stores   map[uuid.UUID]*Store
	unscoped *Store
}

// NewRegistry creates a Registry. Watches stop when ctx is cancelled or
// Close is called. A nil source disables realtime refresh.
func NewRegistry(ctx context.Context, backend Backend, source realtime.Source, opts Options, retryDelay time.Duration) *Registry {
	ctx, cancel := context.WithCancel(ctx)
	return &Registry{
		backend:    backend,
		source:     source,
		opts:       opts,
		retryDelay: retryDelay,
		ctx:        ctx,
		cancel:     cancel,
		stores:     make(map[uuid.UUID]*Store),
		unscoped:   New(backend, uuid.Nil, opts),
	}
}

// Store returns the branch's store, loading it on first use. uuid.Nil yields
// an empty store that never touches the backend.
func (r *Registry) Store(ctx context.Context, branchID uuid.UUID) *Store {
	if branchID == uuid.Nil {
		return r.unscoped
	}

	r.mu.Lock()
	s, ok := r.stores[branchID]
	if !ok {
		s = New(r.backend, branchID, r.opts)
		r.stores[branchID] = s
	}
	r.mu.Unlock()

	if ok {
		return s
	}

	// Subscribe before the first load so nothing committed in between is missed.
	if r.source != nil {
		sub, err := r.source.Subscribe(r.ctx, branchID)
		if err != nil {
			s.log.Error(s.logContext(ctx), "error subscribing to order changes", err)
		}
		r.wg.Add(1)
		go r.watch(s, sub)
	}
	_ = s.Refresh(ctx)
	return s
}

// Branches lists the branches with a live store.
func (r *Registry) Branches() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uuid.UUID, 0, len(r.stores))
	for id := range r.stores {
		out = append(out, id)
	}
	return out
}

// RefreshAll reloads every live store. Used after the change feed
// reconnects, when notifications may have been lost.
func (r *Registry) RefreshAll(ctx context.Context) {
	r.mu.Lock()
	stores := make([]*Store, 0, len(r.stores))
	for _, s := range r.stores {
		stores = append(stores, s)
	}
	r.mu.Unlock()

	for _, s := range stores {
		_ = s.refresh(ctx, "reconnect")
	}
}

// Close stops every watch and waits for them to return.
func (r *Registry) Close() error {
	r.cancel()
	r.wg.Wait()
	return nil
}

// watch consumes sub, re-subscribing after the stream ends until the
// registry is closed. sub may be nil when the first subscribe failed.
func (r *Registry) watch(s *Store, sub realtime.Subscription) {
	defer r.wg.Done()
	for {
		if sub != nil {
			err := s.consume(r.ctx, sub)
			_ = sub.Close()
			if r.ctx.Err() != nil {
				return
			}
			ctx := s.logContext(r.ctx)
			if errors.Is(err, ErrSubscriptionClosed) {
				s.log.Warn(ctx, "order change subscription ended, resubscribing")
			} else {
				s.log.Error(ctx, "order change subscription failed", err)
			}
		}

		select {
		case <-r.ctx.Done():
			return
		case <-time.After(r.retryDelay):
		}

		var err error
		sub, err = r.source.Subscribe(r.ctx, s.branchID)
		if err != nil {
			sub = nil
			s.log.Error(s.logContext(r.ctx), "error subscribing to order changes", err)
			continue
		}
		// Changes may have been missed while unsubscribed.
		_ = s.refresh(r.ctx, "resubscribe")
	}
}
