package livesync

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
	"github.com/dmitrijs2005/framefeed/internal/common"
	"github.com/dmitrijs2005/framefeed/internal/logging"
)

// Counter is a live server-side aggregate count: like count, comment count,
// unread-notification badge. It follows the same scheduler as View but
// refetches with a count query, so no rows are transferred.
//
// The count is derived state. Adjust applies an optimistic delta which the
// next successful refetch overwrites.
type Counter struct {
	gateway backend.Gateway
	feed    backend.ChangeFeed
	log     logging.Logger

	table  string
	filter backend.Filter

	// subTable/subFilter control the subscription scope; they default to
	// table/filter but may be wider (e.g. count likes where is_read=false
	// while listening to the whole user_id slice).
	subTable  string
	subFilter backend.Filter

	m        machine
	value    int // guarded by m.mu
	onUpdate func(int)

	ctx context.Context
	sub backend.Subscription
}

// NewCounter builds a counter over rows of table matching filter.
func NewCounter(gateway backend.Gateway, feed backend.ChangeFeed, table string, filter backend.Filter, log logging.Logger) *Counter {
	if log == nil {
		log = logging.Discard()
	}
	return &Counter{
		gateway:   gateway,
		feed:      feed,
		table:     table,
		filter:    filter,
		subTable:  table,
		subFilter: filter,
		log:       log.With("table", table, "filter", filter.Key()),
	}
}

// SubscribeTo widens the subscription to a different filter (or table) than
// the one being counted. Must be called before Start.
func (c *Counter) SubscribeTo(table string, filter backend.Filter) {
	c.subTable = table
	c.subFilter = filter
}

// OnUpdate registers the callback invoked with the new value whenever the
// count changes. Must be called before Start.
func (c *Counter) OnUpdate(fn func(int)) {
	c.onUpdate = fn
}

// Start runs the first count and opens the change subscription.
func (c *Counter) Start(ctx context.Context) error {
	if !c.m.begin() {
		return fmt.Errorf("counter %s: %w", c.table, common.ErrClosed)
	}
	c.ctx = ctx

	sub, err := c.feed.Subscribe(ctx, c.subTable, c.subFilter, c.handleEvent, c.handleStale)
	if err != nil {
		c.m.close()
		return fmt.Errorf("subscribe %s: %w", c.subTable, err)
	}
	c.sub = sub

	if err := c.loadOnce(ctx); err != nil {
		c.Close()
		return fmt.Errorf("initial count %s: %w", c.table, err)
	}
	if c.m.done() {
		go c.fetchLoop(ctx)
	}
	return nil
}

// Value returns the current count.
func (c *Counter) Value() int {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.value
}

// State exposes the scheduler state, mainly for tests and logging.
func (c *Counter) State() State { return c.m.current() }

// Stale reports whether the feed dropped or a recount failed since the last
// successful count.
func (c *Counter) Stale() bool { return c.m.isStale() }

// Adjust applies an optimistic delta, clamped at zero. The next refetch
// reconciles it with the server's answer.
func (c *Counter) Adjust(delta int) {
	c.m.mu.Lock()
	if c.m.state == StateClosed {
		c.m.mu.Unlock()
		return
	}
	c.value += delta
	if c.value < 0 {
		c.value = 0
	}
	val, fn := c.value, c.onUpdate
	c.m.mu.Unlock()
	if fn != nil {
		fn(val)
	}
}

// Refresh forces one synchronous recount.
func (c *Counter) Refresh(ctx context.Context) error {
	if c.m.current() == StateClosed {
		return common.ErrClosed
	}
	return c.loadOnce(ctx)
}

// Close releases the subscription. Only the first call tears down.
func (c *Counter) Close() error {
	if !c.m.close() {
		return nil
	}
	if c.sub != nil {
		return c.sub.Close()
	}
	return nil
}

func (c *Counter) handleEvent(ev backend.Event) {
	if !ev.Matches(c.subFilter) {
		return
	}
	if c.m.notify() {
		go c.fetchLoop(c.ctx)
	}
}

func (c *Counter) handleStale() {
	c.m.markStale()
	c.log.Warn(c.ctx, "change feed stale, count frozen until refresh")
}

func (c *Counter) fetchLoop(ctx context.Context) {
	for {
		if err := c.loadOnce(ctx); err != nil {
			c.log.Warn(ctx, "recount failed", "error", err)
		}
		if !c.m.done() {
			return
		}
	}
}

func (c *Counter) loadOnce(ctx context.Context) error {
	n, err := c.gateway.Count(ctx, c.table, c.filter)
	if err != nil {
		c.m.markStale()
		return err
	}

	c.m.mu.Lock()
	if c.m.state == StateClosed {
		c.m.mu.Unlock()
		return common.ErrClosed
	}
	changed := c.value != n
	c.value = n
	c.m.stale = false
	val, fn := c.value, c.onUpdate
	c.m.mu.Unlock()

	if changed && fn != nil {
		fn(val)
	}
	return nil
}
