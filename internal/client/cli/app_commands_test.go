package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/framefeed/internal/client/config"
)

type output struct {
	mu    sync.Mutex
	lines []string
}

func (o *output) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return strings.Join(o.lines, "\n")
}

func captureOutput(t *testing.T) *output {
	t.Helper()
	o := &output{}
	orig := printlnFn
	printlnFn = func(args ...any) (int, error) {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.lines = append(o.lines, strings.TrimRight(fmt.Sprintln(args...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return o
}

// scriptInputs replaces the interactive prompt with a fixed answer queue.
func scriptInputs(t *testing.T, lines ...string) {
	t.Helper()
	orig := getSimpleText
	queue := append([]string(nil), lines...)
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) {
		if len(queue) == 0 {
			return "", io.EOF
		}
		next := queue[0]
		queue = queue[1:]
		return next, nil
	}
	t.Cleanup(func() { getSimpleText = orig })
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := getPassword
	getPassword = func(_ io.Writer) (string, error) { return pw, nil }
	t.Cleanup(func() { getPassword = orig })
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	app, err := NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func signUpAs(t *testing.T, app *App, email string) {
	t.Helper()
	scriptInputs(t, email)
	stubPassword(t, "secret")
	require.NoError(t, app.SignUp(context.Background()))
}

func TestNewApp_UnknownBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.Backend = "dbase"

	_, err := NewApp(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "dbase")
}

func TestApp_SignUpComposeAndFeed(t *testing.T) {
	ctx := context.Background()
	out := captureOutput(t)
	app := newTestApp(t)

	signUpAs(t, app, "alice@example.org")
	require.True(t, app.isLoggedIn())
	assert.Contains(t, out.String(), "alice")

	app.reader = bufio.NewReader(strings.NewReader("hello feed\n\n"))
	scriptInputs(t, "") // no image
	require.NoError(t, app.Compose(ctx))
	assert.Contains(t, out.String(), "Posted:")

	require.NoError(t, app.Feed(ctx))
	assert.Contains(t, out.String(), "hello feed")
}

func TestApp_ShowPrintsLikesAndThread(t *testing.T) {
	ctx := context.Background()
	out := captureOutput(t)
	app := newTestApp(t)

	signUpAs(t, app, "alice@example.org")
	post, err := app.feed.Create(ctx, "shown post", nil, "")
	require.NoError(t, err)

	scriptInputs(t, post.ID, "great shot")
	require.NoError(t, app.Comment(ctx))

	scriptInputs(t, post.ID)
	require.NoError(t, app.Show(ctx))

	s := out.String()
	assert.Contains(t, s, "shown post")
	assert.Contains(t, s, "0 likes")
	assert.Contains(t, s, "great shot")
}

func TestApp_DeletePostPatchesFeed(t *testing.T) {
	ctx := context.Background()
	out := captureOutput(t)
	app := newTestApp(t)

	signUpAs(t, app, "alice@example.org")
	post, err := app.feed.Create(ctx, "ephemeral", nil, "")
	require.NoError(t, err)

	require.NoError(t, app.Feed(ctx))
	assert.Contains(t, out.String(), "ephemeral")

	scriptInputs(t, post.ID)
	require.NoError(t, app.DeletePost(ctx))
	assert.Contains(t, out.String(), "Post deleted.")

	view, err := app.ensureFeedView(ctx)
	require.NoError(t, err)
	for _, p := range view.Snapshot() {
		require.NotEqual(t, post.ID, p.ID)
	}
}

func TestApp_LikeNotifiesAuthor(t *testing.T) {
	ctx := context.Background()
	out := captureOutput(t)
	app := newTestApp(t)

	signUpAs(t, app, "alice@example.org")
	post, err := app.feed.Create(ctx, "like me", nil, "")
	require.NoError(t, err)
	require.NoError(t, app.Logout(ctx))

	signUpAs(t, app, "bob@example.org")
	scriptInputs(t, post.ID)
	require.NoError(t, app.Like(ctx))
	assert.Contains(t, out.String(), "Liked. 1 likes now.")
	require.NoError(t, app.Logout(ctx))

	scriptInputs(t, "alice@example.org")
	stubPassword(t, "secret")
	require.NoError(t, app.Login(ctx))

	require.NoError(t, app.Notifications(ctx))
	assert.Contains(t, out.String(), "bob liked your post")
	assert.Contains(t, app.getStatus(), "1 unread")

	require.NoError(t, app.MarkAllRead(ctx))
	require.Eventually(t, func() bool {
		return !strings.Contains(app.getStatus(), "unread")
	}, time.Second, 5*time.Millisecond)
}

func TestApp_MarkRead(t *testing.T) {
	ctx := context.Background()
	captureOutput(t)
	app := newTestApp(t)

	signUpAs(t, app, "alice@example.org")
	post, err := app.feed.Create(ctx, "p", nil, "")
	require.NoError(t, err)
	require.NoError(t, app.Logout(ctx))

	signUpAs(t, app, "bob@example.org")
	scriptInputs(t, post.ID, "hi")
	require.NoError(t, app.Comment(ctx))
	require.NoError(t, app.Logout(ctx))

	scriptInputs(t, "alice@example.org")
	stubPassword(t, "secret")
	require.NoError(t, app.Login(ctx))

	sess := app.auth.Current()
	view := app.notifications.View(sess.User.ID)
	require.NoError(t, view.Start(ctx))
	rows := view.Snapshot()
	require.NoError(t, view.Close())
	require.Len(t, rows, 1)
	require.False(t, rows[0].IsRead)

	scriptInputs(t, rows[0].ID)
	require.NoError(t, app.MarkRead(ctx))

	view = app.notifications.View(sess.User.ID)
	require.NoError(t, view.Start(ctx))
	rows = view.Snapshot()
	require.NoError(t, view.Close())
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsRead)
}

func TestApp_ProfileAndAvatar(t *testing.T) {
	ctx := context.Background()
	out := captureOutput(t)
	app := newTestApp(t)

	signUpAs(t, app, "alice@example.org")
	_, err := app.feed.Create(ctx, "my own post", nil, "")
	require.NoError(t, err)

	origRead := readFile
	readFile = func(path string) ([]byte, error) {
		return []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}, nil
	}
	t.Cleanup(func() { readFile = origRead })

	scriptInputs(t, "pic.png")
	require.NoError(t, app.Avatar(ctx))
	assert.Contains(t, out.String(), "Avatar updated:")
	assert.Contains(t, out.String(), "memory://storage/")

	scriptInputs(t, "") // empty id means own profile
	require.NoError(t, app.Profile(ctx))
	s := out.String()
	assert.Contains(t, s, "alice")
	assert.Contains(t, s, "my own post")
}

func TestApp_CommandsSignedOut(t *testing.T) {
	ctx := context.Background()
	captureOutput(t)
	app := newTestApp(t)

	require.Error(t, app.Notifications(ctx))
	require.Error(t, app.MarkAllRead(ctx))

	app.reader = bufio.NewReader(strings.NewReader("drive-by post\n\n"))
	scriptInputs(t, "")
	require.Error(t, app.Compose(ctx))
}
