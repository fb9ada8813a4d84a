package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
	"github.com/dmitrijs2005/framefeed/internal/client/config"
	"github.com/dmitrijs2005/framefeed/internal/logging"
)

const feedWriteTimeout = 10 * time.Second

// Feed implements backend.ChangeFeed over the platform's realtime
// websocket. Each subscription owns one connection joined to one topic, so
// closing a scope tears down exactly its channel and nothing else.
//
// Delivery is best effort. When the socket drops the subscriber is told it
// is stale, once, and the channel stays dead until the owning scope
// resubscribes or refreshes.
type Feed struct {
	wsURL     string
	apiKey    string
	tokens    interface{ accessToken() string }
	heartbeat time.Duration
	log       logging.Logger
}

func NewFeed(cfg *config.Config, client *Client, log logging.Logger) *Feed {
	if log == nil {
		log = logging.Discard()
	}
	return &Feed{
		wsURL:     websocketURL(cfg.BaseURL),
		apiKey:    cfg.APIKey,
		tokens:    client,
		heartbeat: cfg.HeartbeatInterval,
		log:       log,
	}
}

func websocketURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	u = strings.Replace(u, "http://", "ws://", 1)
	u = strings.Replace(u, "https://", "wss://", 1)
	return u + "/realtime/v1/websocket"
}

// wsMessage is the framing of the realtime protocol.
type wsMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Ref     string          `json:"ref,omitempty"`
}

// changePayload is the body of a postgres change event.
type changePayload struct {
	Type   string         `json:"type"`
	Record map[string]any `json:"record"`
	Old    map[string]any `json:"old_record"`
}

type feedSub struct {
	cancel context.CancelFunc
	conn   *websocket.Conn
	once   sync.Once
}

func (s *feedSub) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.conn.Close()
	})
	return err
}

func topicFor(table string, filter backend.Filter) string {
	key := filter.Key()
	if key == "" {
		key = "*"
	}
	return "realtime:" + table + ":" + key
}

func (f *Feed) Subscribe(ctx context.Context, table string, filter backend.Filter, onEvent func(backend.Event), onStale func()) (backend.Subscription, error) {
	q := url.Values{"apikey": {f.apiKey}}
	if token := f.tokens.accessToken(); token != "" {
		q.Set("token", token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.wsURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("realtime dial: %w", err)
	}

	topic := topicFor(table, filter)
	join := wsMessage{Topic: topic, Event: "phx_join", Ref: "1"}
	conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	if err := conn.WriteJSON(join); err != nil {
		conn.Close()
		return nil, fmt.Errorf("realtime join %s: %w", topic, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &feedSub{cancel: cancel, conn: conn}

	go f.heartbeatLoop(subCtx, conn)
	go f.readLoop(subCtx, conn, table, filter, onEvent, onStale)

	f.log.Debug(ctx, "realtime channel joined", "topic", topic)
	return sub, nil
}

func (f *Feed) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(f.heartbeat)
	defer ticker.Stop()

	ref := 1
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ref++
			conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			msg := wsMessage{Topic: "phoenix", Event: "heartbeat", Ref: strconv.Itoa(ref)}
			if err := conn.WriteJSON(msg); err != nil {
				// a failed write also fails the pending read, which
				// reports staleness
				return
			}
		}
	}
}

func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn, table string, filter backend.Filter, onEvent func(backend.Event), onStale func()) {
	topic := topicFor(table, filter)
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				f.log.Warn(ctx, "realtime channel dropped", "topic", topic, "error", err)
				if onStale != nil {
					onStale()
				}
			}
			return
		}

		switch msg.Event {
		case "INSERT", "UPDATE", "DELETE":
			if msg.Topic != topic {
				continue
			}
			var body changePayload
			if err := json.Unmarshal(msg.Payload, &body); err != nil {
				f.log.Warn(ctx, "malformed change payload", "topic", topic, "error", err)
				continue
			}
			ev := backend.Event{
				Type:  eventType(msg.Event),
				Table: table,
				New:   body.Record,
				Old:   body.Old,
			}
			if onEvent != nil && ev.Matches(filter) {
				onEvent(ev)
			}
		default:
			// phx_reply, heartbeat acks, presence noise
		}
	}
}

func eventType(event string) backend.EventType {
	switch event {
	case "INSERT":
		return backend.EventInsert
	case "UPDATE":
		return backend.EventUpdate
	default:
		return backend.EventDelete
	}
}
