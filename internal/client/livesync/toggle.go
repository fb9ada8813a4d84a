package livesync

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/framefeed/internal/common"
	"github.com/dmitrijs2005/framefeed/internal/logging"
)

// ToggleState is the local, optimistically-maintained view of a toggle:
// whether the acting user has it active and the associated count.
type ToggleState struct {
	Active bool
	Count  int
}

// ToggleOps are the remote writes backing a toggle. Activate must report
// common.ErrConflict when the server already holds the active state (a
// racing client won the insert); Deactivate removing nothing is not an
// error.
type ToggleOps struct {
	Activate   func(ctx context.Context) error
	Deactivate func(ctx context.Context) error
}

// Toggle coordinates a like-style optimistic mutation.
//
// Do flips the local state synchronously, then issues the write. The server
// confirming is a no-op; a conflict is converged with a compensating write
// without re-flipping the UI; a hard failure reverts to the captured prior
// state. Rapid re-toggles do not queue: each Do bumps a sequence number, and
// a resolution whose sequence is no longer current is discarded before it
// can touch state, so a stale in-flight response never overwrites a newer
// optimistic flip.
type Toggle struct {
	mu       sync.Mutex
	seq      uint64
	pending  int // unresolved Do calls
	state    ToggleState
	ops      ToggleOps
	onUpdate func(ToggleState)
	log      logging.Logger
}

// NewToggle builds a toggle seeded with the server-confirmed state.
func NewToggle(initial ToggleState, ops ToggleOps, log logging.Logger) *Toggle {
	if log == nil {
		log = logging.Discard()
	}
	return &Toggle{state: initial, ops: ops, log: log}
}

// OnUpdate registers the callback invoked with the new state on every local
// change, optimistic or reverted.
func (t *Toggle) OnUpdate(fn func(ToggleState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onUpdate = fn
}

// State returns the current local state.
func (t *Toggle) State() ToggleState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Reconcile replaces the local state with a server-confirmed one, e.g. after
// a count refetch. It is ignored while a toggle is unresolved, so a refetch
// racing an optimistic flip cannot flicker the display; the resolution or
// the refetch after it settles the value.
func (t *Toggle) Reconcile(s ToggleState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending > 0 {
		return
	}
	t.state = s
}

// Do performs one toggle. The returned error is nil for confirmed or
// converged outcomes and the write's error when the local state had to be
// reverted. Superseded resolutions return nil: the newer toggle owns the
// outcome.
func (t *Toggle) Do(ctx context.Context) error {
	t.mu.Lock()
	prev := t.state
	desired := !prev.Active

	next := ToggleState{Active: desired}
	if desired {
		next.Count = prev.Count + 1
	} else {
		next.Count = prev.Count - 1
		if next.Count < 0 {
			next.Count = 0
		}
	}
	t.state = next
	t.seq++
	t.pending++
	seq := t.seq
	fn := t.onUpdate
	t.mu.Unlock()

	if fn != nil {
		fn(next)
	}

	var err error
	if desired {
		err = t.ops.Activate(ctx)
	} else {
		err = t.ops.Deactivate(ctx)
	}

	if err == nil {
		t.resolve()
		return nil
	}

	if desired && errors.Is(err, common.ErrConflict) {
		// Another client's like raced ahead; converge by deleting it.
		// The UI keeps the state the user asked for.
		if t.superseded(seq) {
			t.resolve()
			return nil
		}
		if derr := t.ops.Deactivate(ctx); derr == nil {
			t.resolve()
			return nil
		} else {
			err = derr
		}
	}

	// Hard failure: revert, unless a newer toggle already owns the state.
	t.mu.Lock()
	t.pending--
	if seq != t.seq {
		t.mu.Unlock()
		t.log.Debug(ctx, "stale toggle resolution discarded", "seq", seq)
		return nil
	}
	t.state = prev
	fn = t.onUpdate
	t.mu.Unlock()

	if fn != nil {
		fn(prev)
	}
	return err
}

func (t *Toggle) superseded(seq uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return seq != t.seq
}

func (t *Toggle) resolve() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending--
}
