package livesync

import "sync"

// State is the reconciliation scheduler's position for one
// (table, filter) scope.
type State int

const (
	// StateIdle: created, not started.
	StateIdle State = iota
	// StateFetching: a fetch pass is in flight.
	StateFetching
	// StateSubscribed: projection loaded, subscription open, no fetch in
	// flight.
	StateSubscribed
	// StatePendingRefetch: a notification arrived while a fetch was in
	// flight; exactly one trailing fetch will follow.
	StatePendingRefetch
	// StateClosed: scope torn down, no further transitions.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateSubscribed:
		return "subscribed"
	case StatePendingRefetch:
		return "pending-refetch"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// machine holds the scheduler state shared by View and Counter. Its mutex
// also guards the owner's projection data, so a commit can atomically check
// liveness and swap the projection.
type machine struct {
	mu    sync.Mutex
	state State
	stale bool
}

// begin moves Idle to Fetching. It reports false if the scope was already
// started or closed.
func (m *machine) begin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return false
	}
	m.state = StateFetching
	return true
}

// notify records a change notification. It reports whether the caller must
// start a fetch pass now; when a fetch is already in flight the
// notification collapses into the single trailing refetch.
func (m *machine) notify() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateSubscribed:
		m.state = StateFetching
		return true
	case StateFetching:
		m.state = StatePendingRefetch
	}
	return false
}

// done records completion of one fetch pass and reports whether the trailing
// pass must run.
func (m *machine) done() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateClosed:
		return false
	case StatePendingRefetch:
		m.state = StateFetching
		return true
	default:
		m.state = StateSubscribed
		return false
	}
}

// close moves to Closed and reports whether this call was the one that
// closed the scope.
func (m *machine) close() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed {
		return false
	}
	m.state = StateClosed
	return true
}

func (m *machine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *machine) markStale() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale = true
}

func (m *machine) isStale() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stale
}
