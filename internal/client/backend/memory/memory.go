// Package memory implements every backend interface in process memory. It
// backs the package tests and the CLI's demo mode, and mimics the remote
// platform's observable behavior: server-assigned ids and timestamps,
// uniqueness constraints reported as conflicts, change events fanned out to
// subscribers, and delete payloads carrying only the row id.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
	"github.com/dmitrijs2005/framefeed/internal/client/models"
	"github.com/dmitrijs2005/framefeed/internal/common"
)

type row map[string]any

type account struct {
	id       string
	email    string
	password string
}

type subscriber struct {
	id      int
	table   string
	filter  backend.Filter
	onEvent func(backend.Event)
	onStale func()
}

// Backend is a single in-process instance of the whole platform surface.
// Safe for concurrent use.
type Backend struct {
	mu      sync.Mutex
	tables  map[string][]row
	uniques map[string][][]string

	nextSub int
	subs    map[int]*subscriber

	accounts     map[string]*account // by email
	session      *backend.Session
	nextListener int
	listeners    map[int]func(*backend.Session)

	blobs   map[string][]byte
	baseURL string

	lastTS time.Time
}

// New returns an empty backend with the likes uniqueness constraint the
// remote schema carries.
func New() *Backend {
	b := &Backend{
		tables:    map[string][]row{},
		uniques:   map[string][][]string{},
		subs:      map[int]*subscriber{},
		accounts:  map[string]*account{},
		listeners: map[int]func(*backend.Session){},
		blobs:     map[string][]byte{},
		baseURL:   "memory://storage",
	}
	b.RegisterUnique(common.TableLikes, "post_id", "user_id")
	return b
}

// RegisterUnique declares a uniqueness constraint; a violating insert is
// answered with common.ErrConflict, as the remote store would.
func (b *Backend) RegisterUnique(table string, columns ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uniques[table] = append(b.uniques[table], columns)
}

// --- Gateway ---

func (b *Backend) Select(ctx context.Context, table string, filter backend.Filter, order backend.Order, dest any) error {
	b.mu.Lock()
	var matched []row
	for _, r := range b.tables[table] {
		if matchRow(r, filter) {
			matched = append(matched, cloneRow(r))
		}
	}
	b.mu.Unlock()

	if order.Column != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			cmp := compareValues(matched[i][order.Column], matched[j][order.Column])
			if order.Descending {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	return decode(matched, dest)
}

func (b *Backend) Count(ctx context.Context, table string, filter backend.Filter) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.tables[table] {
		if matchRow(r, filter) {
			n++
		}
	}
	return n, nil
}

func (b *Backend) Insert(ctx context.Context, table string, value any, dest any) error {
	r, err := normalize(value)
	if err != nil {
		return err
	}

	b.mu.Lock()
	for _, cols := range b.uniques[table] {
		for _, existing := range b.tables[table] {
			if sameColumns(existing, r, cols) {
				b.mu.Unlock()
				return fmt.Errorf("unique violation on %s(%s): %w", table, strings.Join(cols, ","), common.ErrConflict)
			}
		}
	}
	if _, ok := r["id"]; !ok || r["id"] == "" {
		r["id"] = uuid.NewString()
	}
	if isUnsetTimestamp(r["created_at"]) {
		r["created_at"] = b.nextTimestampLocked().Format(time.RFC3339Nano)
	}
	b.tables[table] = append(b.tables[table], r)
	stored := cloneRow(r)
	b.mu.Unlock()

	b.emit(backend.Event{Type: backend.EventInsert, Table: table, New: stored})

	if dest != nil {
		return decode(stored, dest)
	}
	return nil
}

func (b *Backend) Update(ctx context.Context, table string, filter backend.Filter, delta map[string]any) (int64, error) {
	var events []backend.Event
	b.mu.Lock()
	var affected int64
	for i, r := range b.tables[table] {
		if !matchRow(r, filter) {
			continue
		}
		old := cloneRow(r)
		updated := cloneRow(r)
		for k, v := range delta {
			updated[k] = v
		}
		b.tables[table][i] = updated
		affected++
		events = append(events, backend.Event{Type: backend.EventUpdate, Table: table, New: cloneRow(updated), Old: old})
	}
	b.mu.Unlock()

	for _, ev := range events {
		b.emit(ev)
	}
	return affected, nil
}

func (b *Backend) Delete(ctx context.Context, table string, filter backend.Filter) (int64, error) {
	var events []backend.Event
	b.mu.Lock()
	kept := b.tables[table][:0]
	var affected int64
	for _, r := range b.tables[table] {
		if matchRow(r, filter) {
			affected++
			// Delete payloads carry the id only, like the real feed.
			events = append(events, backend.Event{Type: backend.EventDelete, Table: table, Old: row{"id": r["id"]}})
			continue
		}
		kept = append(kept, r)
	}
	b.tables[table] = kept
	b.mu.Unlock()

	for _, ev := range events {
		b.emit(ev)
	}
	return affected, nil
}

// --- ChangeFeed ---

type subscription struct {
	backend *Backend
	id      int
	once    sync.Once
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.backend.mu.Lock()
		delete(s.backend.subs, s.id)
		s.backend.mu.Unlock()
	})
	return nil
}

func (b *Backend) Subscribe(ctx context.Context, table string, filter backend.Filter, onEvent func(backend.Event), onStale func()) (backend.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSub++
	id := b.nextSub
	b.subs[id] = &subscriber{id: id, table: table, filter: filter, onEvent: onEvent, onStale: onStale}
	return &subscription{backend: b, id: id}, nil
}

// OpenSubscriptions reports the number of live change-feed channels; tests
// use it to prove mounts and unmounts balance.
func (b *Backend) OpenSubscriptions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// DropFeed simulates the transport dropping: every subscriber is told it is
// stale and all channels are closed.
func (b *Backend) DropFeed() {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.subs = map[int]*subscriber{}
	b.mu.Unlock()

	for _, s := range subs {
		if s.onStale != nil {
			s.onStale()
		}
	}
}

// Emit injects a raw event, letting tests simulate duplicate or partial
// deliveries.
func (b *Backend) Emit(ev backend.Event) { b.emit(ev) }

func (b *Backend) emit(ev backend.Event) {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if s.table == ev.Table && ev.Matches(s.filter) {
			subs = append(subs, s)
		}
	}
	b.mu.Unlock()

	for _, s := range subs {
		if s.onEvent != nil {
			s.onEvent(ev)
		}
	}
}

// --- BlobStore ---

func (b *Backend) Upload(ctx context.Context, bucket, name string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[bucket+"/"+name] = append([]byte(nil), data...)
	return nil
}

func (b *Backend) PublicURL(bucket, name string) string {
	return b.baseURL + "/" + bucket + "/" + name
}

// Blob returns stored content for assertions in tests.
func (b *Backend) Blob(bucket, name string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blobs[bucket+"/"+name]
	return data, ok
}

// --- Auth ---

func (b *Backend) SignUp(ctx context.Context, email, password string) (*backend.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password required: %w", common.ErrValidation)
	}

	b.mu.Lock()
	if _, exists := b.accounts[email]; exists {
		b.mu.Unlock()
		return nil, fmt.Errorf("account exists: %w", common.ErrConflict)
	}
	acc := &account{id: uuid.NewString(), email: email, password: password}
	b.accounts[email] = acc
	b.mu.Unlock()

	username := email
	if i := strings.IndexByte(email, '@'); i > 0 {
		username = email[:i]
	}
	user := models.User{ID: acc.id, Email: email, Username: username}
	if err := b.Insert(ctx, common.TableUsers, user, nil); err != nil {
		return nil, err
	}
	return b.establishSession(acc)
}

func (b *Backend) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	b.mu.Lock()
	acc, ok := b.accounts[email]
	b.mu.Unlock()
	if !ok || acc.password != password {
		return nil, fmt.Errorf("invalid credentials: %w", common.ErrUnauthorized)
	}
	return b.establishSession(acc)
}

func (b *Backend) SignOut(ctx context.Context) error {
	b.mu.Lock()
	b.session = nil
	listeners := b.listenersLocked()
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(nil)
	}
	return nil
}

func (b *Backend) OnSessionChange(fn func(*backend.Session)) func() {
	b.mu.Lock()
	b.nextListener++
	id := b.nextListener
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

func (b *Backend) establishSession(acc *account) (*backend.Session, error) {
	s := &backend.Session{
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         models.User{ID: acc.id, Email: acc.email},
	}

	b.mu.Lock()
	b.session = s
	listeners := b.listenersLocked()
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
	return s, nil
}

func (b *Backend) listenersLocked() []func(*backend.Session) {
	out := make([]func(*backend.Session), 0, len(b.listeners))
	for _, fn := range b.listeners {
		out = append(out, fn)
	}
	return out
}

// --- helpers ---

// nextTimestampLocked returns a strictly increasing timestamp so insertion
// order is total even within one clock tick.
func (b *Backend) nextTimestampLocked() time.Time {
	now := time.Now().UTC()
	if !now.After(b.lastTS) {
		now = b.lastTS.Add(time.Microsecond)
	}
	b.lastTS = now
	return now
}

// isUnsetTimestamp treats missing, empty, and zero-value timestamps as
// unset; structs marshalling a zero time.Time still get a server-assigned
// created_at.
func isUnsetTimestamp(v any) bool {
	s, ok := v.(string)
	if v == nil || (ok && s == "") {
		return true
	}
	if !ok {
		return false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	return err == nil && t.IsZero()
}

func normalize(value any) (row, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var r row
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return r, nil
}

func decode(value any, dest any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func cloneRow(r row) row {
	out := make(row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func matchRow(r row, filter backend.Filter) bool {
	for col, want := range filter {
		got, ok := r[col]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

func sameColumns(a, b row, cols []string) bool {
	for _, c := range cols {
		if fmt.Sprintf("%v", a[c]) != fmt.Sprintf("%v", b[c]) {
			return false
		}
	}
	return true
}

// compareValues orders timestamps chronologically and everything else
// lexically.
func compareValues(a, b any) int {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		at, aerr := time.Parse(time.RFC3339Nano, as)
		bt, berr := time.Parse(time.RFC3339Nano, bs)
		if aerr == nil && berr == nil {
			return at.Compare(bt)
		}
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}
