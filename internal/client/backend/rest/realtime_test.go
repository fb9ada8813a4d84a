package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
	"github.com/dmitrijs2005/framefeed/internal/client/config"
	"github.com/dmitrijs2005/framefeed/internal/common"
)

// feedServer upgrades connections, records the join message, and hands the
// test a channel to push frames through.
type feedServer struct {
	t      *testing.T
	srv    *httptest.Server
	joins  chan wsMessage
	conns  chan *websocket.Conn
	closed chan struct{}
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()
	fs := &feedServer{
		t:      t,
		joins:  make(chan wsMessage, 4),
		conns:  make(chan *websocket.Conn, 4),
		closed: make(chan struct{}),
	}
	upgrader := websocket.Upgrader{}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		var join wsMessage
		require.NoError(t, conn.ReadJSON(&join))
		fs.joins <- join
		fs.conns <- conn
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func newTestFeed(t *testing.T, fs *feedServer) *Feed {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.BaseURL = fs.srv.URL
	cfg.APIKey = "anon-key"
	cfg.HeartbeatInterval = time.Hour // keep heartbeats out of the way
	return NewFeed(cfg, NewClient(cfg, nil), nil)
}

func waitConn(t *testing.T, fs *feedServer) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-fs.conns:
		return conn
	case <-time.After(time.Second):
		t.Fatal("no websocket connection")
		return nil
	}
}

func TestFeed_JoinTopic(t *testing.T) {
	fs := newFeedServer(t)
	f := newTestFeed(t, fs)

	sub, err := f.Subscribe(context.Background(), common.TableComments,
		backend.Filter{"post_id": "p1"}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })

	join := <-fs.joins
	assert.Equal(t, "phx_join", join.Event)
	assert.Equal(t, "realtime:comments:post_id=eq.p1", join.Topic)
}

func TestFeed_DeliversMatchingEvents(t *testing.T) {
	fs := newFeedServer(t)
	f := newTestFeed(t, fs)

	events := make(chan backend.Event, 4)
	sub, err := f.Subscribe(context.Background(), common.TablePosts, nil,
		func(ev backend.Event) { events <- ev }, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })

	conn := waitConn(t, fs)
	payload, _ := json.Marshal(changePayload{Type: "INSERT", Record: map[string]any{"id": "p7", "content": "hi"}})
	require.NoError(t, conn.WriteJSON(wsMessage{
		Topic: "realtime:posts:*", Event: "INSERT", Payload: payload,
	}))

	select {
	case ev := <-events:
		assert.Equal(t, backend.EventInsert, ev.Type)
		assert.Equal(t, common.TablePosts, ev.Table)
		assert.Equal(t, "p7", ev.ID())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestFeed_IgnoresOtherTopicsAndReplies(t *testing.T) {
	fs := newFeedServer(t)
	f := newTestFeed(t, fs)

	events := make(chan backend.Event, 4)
	sub, err := f.Subscribe(context.Background(), common.TablePosts, nil,
		func(ev backend.Event) { events <- ev }, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })

	conn := waitConn(t, fs)
	require.NoError(t, conn.WriteJSON(wsMessage{Topic: "realtime:posts:*", Event: "phx_reply"}))
	payload, _ := json.Marshal(changePayload{Type: "INSERT", Record: map[string]any{"id": "x"}})
	require.NoError(t, conn.WriteJSON(wsMessage{Topic: "realtime:comments:*", Event: "INSERT", Payload: payload}))
	require.NoError(t, conn.WriteJSON(wsMessage{Topic: "realtime:posts:*", Event: "INSERT", Payload: payload}))

	ev := <-events
	assert.Equal(t, "x", ev.ID())
	assert.Empty(t, events)
}

func TestFeed_StaleOnDrop(t *testing.T) {
	fs := newFeedServer(t)
	f := newTestFeed(t, fs)

	stale := make(chan struct{}, 1)
	sub, err := f.Subscribe(context.Background(), common.TablePosts, nil, nil,
		func() { stale <- struct{}{} })
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })

	conn := waitConn(t, fs)
	conn.Close()

	select {
	case <-stale:
	case <-time.After(time.Second):
		t.Fatal("staleness not reported")
	}
}

func TestFeed_CloseIsQuiet(t *testing.T) {
	fs := newFeedServer(t)
	f := newTestFeed(t, fs)

	stale := make(chan struct{}, 1)
	sub, err := f.Subscribe(context.Background(), common.TablePosts, nil, nil,
		func() { stale <- struct{}{} })
	require.NoError(t, err)
	waitConn(t, fs)

	require.NoError(t, sub.Close())
	sub.Close()

	select {
	case <-stale:
		t.Fatal("deliberate close reported staleness")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWebsocketURL(t *testing.T) {
	assert.Equal(t, "ws://h:8000/realtime/v1/websocket", websocketURL("http://h:8000/"))
	assert.Equal(t, "wss://h/realtime/v1/websocket", websocketURL("https://h"))
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, "realtime:posts:*", topicFor("posts", nil))
	assert.True(t, strings.HasPrefix(topicFor("likes", backend.Filter{"post_id": "p1"}), "realtime:likes:post_id=eq.p1"))
}
