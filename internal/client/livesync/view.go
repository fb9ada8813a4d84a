package livesync

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
	"github.com/dmitrijs2005/framefeed/internal/client/models"
	"github.com/dmitrijs2005/framefeed/internal/common"
	"github.com/dmitrijs2005/framefeed/internal/logging"
)

// View is a live projection of one filtered entity collection. It is
// created idle, started once, and closed exactly once by the scope that
// owns it.
type View[T models.Record] struct {
	gateway backend.Gateway
	feed    backend.ChangeFeed
	log     logging.Logger

	table  string
	filter backend.Filter
	order  backend.Order

	m        machine
	items    []T // guarded by m.mu
	onUpdate func([]T)

	ctx context.Context
	sub backend.Subscription
}

// NewView builds a view over table rows matching filter, kept in order.
// It does not touch the network until Start.
func NewView[T models.Record](gateway backend.Gateway, feed backend.ChangeFeed, table string, filter backend.Filter, order backend.Order, log logging.Logger) *View[T] {
	if log == nil {
		log = logging.Discard()
	}
	return &View[T]{
		gateway: gateway,
		feed:    feed,
		table:   table,
		filter:  filter,
		order:   order,
		log:     log.With("table", table, "filter", filter.Key()),
	}
}

// OnUpdate registers the callback invoked with a fresh snapshot whenever the
// projection changes. Must be called before Start.
func (v *View[T]) OnUpdate(fn func([]T)) {
	v.onUpdate = fn
}

// Start loads the collection and opens the change subscription. The
// subscription is opened before the initial load so a mutation landing
// during the load is not missed: it parks as the one trailing refetch.
// ctx bounds the lifetime of background refetches; cancelling it after
// Close is the owner's job.
func (v *View[T]) Start(ctx context.Context) error {
	if !v.m.begin() {
		return fmt.Errorf("view %s: %w", v.table, common.ErrClosed)
	}
	v.ctx = ctx

	sub, err := v.feed.Subscribe(ctx, v.table, v.filter, v.handleEvent, v.handleStale)
	if err != nil {
		v.m.close()
		return fmt.Errorf("subscribe %s: %w", v.table, err)
	}
	v.sub = sub

	if err := v.loadOnce(ctx); err != nil {
		v.Close()
		return fmt.Errorf("initial load %s: %w", v.table, err)
	}
	if v.m.done() {
		go v.fetchLoop(ctx)
	}
	return nil
}

// Snapshot returns a copy of the current projection in view order.
func (v *View[T]) Snapshot() []T {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	return slices.Clone(v.items)
}

// State exposes the scheduler state, mainly for tests and logging.
func (v *View[T]) State() State { return v.m.current() }

// Stale reports whether the change feed dropped or a refetch failed since
// the last successful load. A stale view shows its last good projection
// until Refresh succeeds.
func (v *View[T]) Stale() bool { return v.m.isStale() }

// Refresh forces one synchronous refetch, e.g. pull-to-refresh or recovery
// after staleness. It does not interact with the debounce machinery.
func (v *View[T]) Refresh(ctx context.Context) error {
	if v.m.current() == StateClosed {
		return common.ErrClosed
	}
	return v.loadOnce(ctx)
}

// ApplyUpsert inserts or replaces one entity locally, keeping order. Used
// for mutations whose outcome the client already knows, without waiting for
// the change feed. Idempotent.
func (v *View[T]) ApplyUpsert(item T) {
	v.m.mu.Lock()
	if v.m.state == StateClosed {
		v.m.mu.Unlock()
		return
	}
	replaced := false
	for i := range v.items {
		if v.items[i].RecordID() == item.RecordID() {
			v.items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		v.items = append(v.items, item)
	}
	v.sortLocked()
	snap, fn := slices.Clone(v.items), v.onUpdate
	v.m.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// ApplyRemove drops one entity locally by id. Removing an absent id is a
// no-op.
func (v *View[T]) ApplyRemove(id string) {
	v.m.mu.Lock()
	if v.m.state == StateClosed {
		v.m.mu.Unlock()
		return
	}
	kept := v.items[:0]
	removed := false
	for _, it := range v.items {
		if it.RecordID() == id {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	v.items = kept
	if !removed {
		v.m.mu.Unlock()
		return
	}
	snap, fn := slices.Clone(v.items), v.onUpdate
	v.m.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// Close releases the subscription. Safe to call more than once; only the
// first call tears down.
func (v *View[T]) Close() error {
	if !v.m.close() {
		return nil
	}
	if v.sub != nil {
		return v.sub.Close()
	}
	return nil
}

func (v *View[T]) handleEvent(ev backend.Event) {
	if !ev.Matches(v.filter) {
		return
	}
	v.log.Debug(v.ctx, "change notification", "type", string(ev.Type), "id", ev.ID())
	if v.m.notify() {
		go v.fetchLoop(v.ctx)
	}
}

func (v *View[T]) handleStale() {
	v.m.markStale()
	v.log.Warn(v.ctx, "change feed stale, projection frozen until refresh")
}

func (v *View[T]) fetchLoop(ctx context.Context) {
	for {
		if err := v.loadOnce(ctx); err != nil {
			v.log.Warn(ctx, "refetch failed", "error", err)
		}
		if !v.m.done() {
			return
		}
	}
}

// loadOnce fetches the filtered collection and commits it unless the view
// closed while the fetch was in flight.
func (v *View[T]) loadOnce(ctx context.Context) error {
	var rows []T
	if err := v.gateway.Select(ctx, v.table, v.filter, v.order, &rows); err != nil {
		v.m.markStale()
		return err
	}

	v.m.mu.Lock()
	if v.m.state == StateClosed {
		v.m.mu.Unlock()
		return common.ErrClosed
	}
	v.items = rows
	v.sortLocked()
	v.m.stale = false
	snap, fn := slices.Clone(v.items), v.onUpdate
	v.m.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
	return nil
}

// sortLocked enforces the view order locally so ApplyUpsert and out-of-order
// server responses cannot perturb it. Ties break on id to keep the order
// total.
func (v *View[T]) sortLocked() {
	sort.SliceStable(v.items, func(i, j int) bool {
		ti, tj := v.items[i].RecordCreatedAt(), v.items[j].RecordCreatedAt()
		if !ti.Equal(tj) {
			if v.order.Descending {
				return ti.After(tj)
			}
			return ti.Before(tj)
		}
		return v.items[i].RecordID() < v.items[j].RecordID()
	})
}
