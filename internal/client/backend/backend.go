// Package backend declares the interfaces of the external collaborators the
// framefeed client consumes: the relational query gateway, the change-feed
// transport, blob storage, and the auth platform. Implementations live in
// the subpackages rest (hosted platform), postgres (self-hosted), s3, and
// memory (tests, demo mode).
package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/framefeed/internal/client/models"
)

// Filter is a conjunction of column equality predicates. A nil or empty
// Filter matches every row.
type Filter map[string]any

// Columns returns the filter's column names in deterministic order, so
// implementations can build stable queries and topic names.
func (f Filter) Columns() []string {
	cols := make([]string, 0, len(f))
	for c := range f {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Key renders the filter as a canonical string, e.g. "post_id=eq.42", used
// for subscription topics and for keying one live view per (table, filter).
func (f Filter) Key() string {
	parts := make([]string, 0, len(f))
	for _, c := range f.Columns() {
		parts = append(parts, fmt.Sprintf("%s=eq.%v", c, f[c]))
	}
	return strings.Join(parts, ",")
}

// Order is the single sort key a select carries.
type Order struct {
	Column     string
	Descending bool
}

// Gateway executes filtered reads and writes against the remote store.
// Select and Insert decode returned rows into dest via JSON, so dest follows
// the usual pointer conventions of encoding/json.
type Gateway interface {
	// Select reads all rows matching filter into dest (a pointer to a
	// slice), applying order.
	Select(ctx context.Context, table string, filter Filter, order Order, dest any) error

	// Count returns the number of matching rows without transferring them.
	Count(ctx context.Context, table string, filter Filter) (int, error)

	// Insert writes one row. If dest is non-nil the stored row, including
	// server-assigned id and created_at, is decoded into it. A uniqueness
	// violation is reported as common.ErrConflict.
	Insert(ctx context.Context, table string, row any, dest any) error

	// Update applies delta to all rows matching filter and returns the
	// number of rows affected.
	Update(ctx context.Context, table string, filter Filter, delta map[string]any) (int64, error)

	// Delete removes all rows matching filter and returns the number of
	// rows affected.
	Delete(ctx context.Context, table string, filter Filter) (int64, error)
}

// EventType classifies a change-feed notification.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one change notification. Old and New carry whatever subset of
// the mutated row the transport delivered; delete events in particular may
// carry only the primary key in Old. Consumers must tolerate partial
// payloads and at-least-once delivery.
type Event struct {
	Type  EventType
	Table string
	New   map[string]any
	Old   map[string]any
}

// ID returns the affected row's id if the payload carries one.
func (e Event) ID() string {
	for _, row := range []map[string]any{e.New, e.Old} {
		if id, ok := row["id"].(string); ok && id != "" {
			return id
		}
	}
	return ""
}

// Matches reports whether the event's payload satisfies the filter. Events
// whose payload lacks a filtered column still match: a partial delete
// payload must not be silently dropped.
func (e Event) Matches(filter Filter) bool {
	for col, want := range filter {
		got, ok := e.New[col]
		if !ok {
			got, ok = e.Old[col]
		}
		if !ok {
			continue
		}
		if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

// Subscription is one open change-feed channel. Close releases the
// underlying transport resources; it is safe to call more than once but
// only the first call has effect.
type Subscription interface {
	Close() error
}

// ChangeFeed delivers change notifications for a table. onEvent is invoked
// for every delivered event matching the filter; onStale is invoked at most
// once, when the transport connection drops and delivery can no longer be
// trusted. Either callback may be nil.
type ChangeFeed interface {
	Subscribe(ctx context.Context, table string, filter Filter, onEvent func(Event), onStale func()) (Subscription, error)
}

// BlobStore holds user-uploaded binary content (post images, avatars).
type BlobStore interface {
	Upload(ctx context.Context, bucket, name string, data []byte, contentType string) error
	PublicURL(bucket, name string) string
}

// Session is the authenticated state handed to the rest of the client. The
// User starts with only the auth platform's id and email; the profile row
// is merged in asynchronously after sign-in.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         models.User
}

// Auth is the authentication platform. OnSessionChange registers a callback
// fired on sign-in, sign-out, and token refresh; the returned cancel func
// unregisters it. A nil session means signed out.
type Auth interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	OnSessionChange(fn func(*Session)) (cancel func())
}
