package postgres

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
	"github.com/dmitrijs2005/framefeed/internal/logging"
)

// notifyChannel is the pg_notify channel the schema triggers publish on.
const notifyChannel = "framefeed_changes"

// notifyPayload mirrors the JSON built by the feed_notify trigger.
type notifyPayload struct {
	Table  string         `json:"table"`
	Type   string         `json:"type"`
	Record map[string]any `json:"record"`
	Old    map[string]any `json:"old_record"`
}

// Feed implements backend.ChangeFeed over LISTEN/NOTIFY. One dedicated
// connection serves every subscription; when it fails all subscribers are
// marked stale at once, and the next Subscribe dials a fresh one.
type Feed struct {
	dsn string
	log logging.Logger

	mu      sync.Mutex
	conn    *pgx.Conn
	cancel  context.CancelFunc
	nextSub int
	subs    map[int]*feedSubscriber
}

type feedSubscriber struct {
	table   string
	filter  backend.Filter
	onEvent func(backend.Event)
	onStale func()
}

type feedSubscription struct {
	feed *Feed
	id   int
	once sync.Once
}

func (s *feedSubscription) Close() error {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s.id)
		s.feed.mu.Unlock()
	})
	return nil
}

func NewFeed(dsn string, log logging.Logger) *Feed {
	if log == nil {
		log = logging.Discard()
	}
	return &Feed{dsn: dsn, log: log, subs: map[int]*feedSubscriber{}}
}

func (f *Feed) Subscribe(ctx context.Context, table string, filter backend.Filter, onEvent func(backend.Event), onStale func()) (backend.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn == nil {
		if err := f.listenLocked(ctx); err != nil {
			return nil, err
		}
	}

	f.nextSub++
	id := f.nextSub
	f.subs[id] = &feedSubscriber{table: table, filter: filter, onEvent: onEvent, onStale: onStale}
	return &feedSubscription{feed: f, id: id}, nil
}

// Close tears down the listener connection without signalling staleness.
func (f *Feed) Close() error {
	f.mu.Lock()
	cancel, conn := f.cancel, f.conn
	f.cancel, f.conn = nil, nil
	f.subs = map[int]*feedSubscriber{}
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		return conn.Close(context.Background())
	}
	return nil
}

// listenLocked dials the dedicated listener connection and starts its read
// loop. Caller holds f.mu.
func (f *Feed) listenLocked(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, f.dsn)
	if err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Close(ctx)
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	f.conn = conn
	f.cancel = cancel
	go f.waitLoop(loopCtx, conn)
	return nil
}

func (f *Feed) waitLoop(ctx context.Context, conn *pgx.Conn) {
	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				f.log.Warn(ctx, "listener connection lost", "error", err)
				f.dropAll(conn)
			}
			return
		}
		f.dispatch(notification.Payload)
	}
}

func (f *Feed) dispatch(payload string) {
	var body notifyPayload
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		f.log.Warn(context.Background(), "malformed notify payload", "error", err)
		return
	}

	ev := backend.Event{
		Type:  eventType(body.Type),
		Table: body.Table,
		New:   body.Record,
		Old:   body.Old,
	}

	f.mu.Lock()
	targets := make([]*feedSubscriber, 0, len(f.subs))
	for _, s := range f.subs {
		if s.table == ev.Table && ev.Matches(s.filter) {
			targets = append(targets, s)
		}
	}
	f.mu.Unlock()

	for _, s := range targets {
		if s.onEvent != nil {
			s.onEvent(ev)
		}
	}
}

// dropAll marks every subscriber stale after the given connection failed.
// A Subscribe arriving later dials again.
func (f *Feed) dropAll(conn *pgx.Conn) {
	f.mu.Lock()
	if f.conn != conn {
		// already replaced or closed
		f.mu.Unlock()
		return
	}
	f.conn = nil
	f.cancel = nil
	subs := make([]*feedSubscriber, 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.subs = map[int]*feedSubscriber{}
	f.mu.Unlock()

	for _, s := range subs {
		if s.onStale != nil {
			s.onStale()
		}
	}
}

func eventType(op string) backend.EventType {
	switch op {
	case "INSERT":
		return backend.EventInsert
	case "UPDATE":
		return backend.EventUpdate
	default:
		return backend.EventDelete
	}
}
