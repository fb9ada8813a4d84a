package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
	"github.com/dmitrijs2005/framefeed/internal/client/backend/memory"
	"github.com/dmitrijs2005/framefeed/internal/common"
)

func newAuthService(t *testing.T, b *memory.Backend) *AuthService {
	t.Helper()
	s := NewAuthService(context.Background(), b, b, nil)
	t.Cleanup(s.Close)
	return s
}

func TestAuthService_SignUpMergesProfile(t *testing.T) {
	b := memory.New()
	s := newAuthService(t, b)

	require.NoError(t, s.SignUp(context.Background(), "alice@example.com", "secret"))

	sess := s.Current()
	require.NotNil(t, sess)
	assert.Equal(t, "alice@example.com", sess.User.Email)

	// the profile row is merged in asynchronously
	require.Eventually(t, func() bool {
		cur := s.Current()
		return cur != nil && cur.User.Username == "alice"
	}, time.Second, 5*time.Millisecond)
}

func TestAuthService_SignInWrongPassword(t *testing.T) {
	b := memory.New()
	s := newAuthService(t, b)
	require.NoError(t, s.SignUp(context.Background(), "bob@example.com", "secret"))
	require.NoError(t, s.SignOut(context.Background()))

	err := s.SignIn(context.Background(), "bob@example.com", "wrong")
	require.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Nil(t, s.Current())
}

func TestAuthService_SignOut(t *testing.T) {
	b := memory.New()
	s := newAuthService(t, b)
	require.NoError(t, s.SignUp(context.Background(), "carol@example.com", "secret"))
	require.NotNil(t, s.Current())

	require.NoError(t, s.SignOut(context.Background()))
	assert.Nil(t, s.Current())
}

func TestAuthService_ListenersAndDedup(t *testing.T) {
	b := memory.New()
	s := newAuthService(t, b)

	var mu sync.Mutex
	var changes []*backend.Session
	cancel := s.OnChange(func(sess *backend.Session) {
		mu.Lock()
		changes = append(changes, sess)
		mu.Unlock()
	})
	defer cancel()

	require.NoError(t, s.SignUp(context.Background(), "dave@example.com", "secret"))

	// the platform listener and the direct call both report the session,
	// but the duplicate collapses: one bare notification, then one with
	// the profile merged
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Empty(t, changes[0].User.Username)
	assert.Equal(t, "dave", changes[1].User.Username)
	mu.Unlock()

	require.NoError(t, s.SignOut(context.Background()))
	mu.Lock()
	require.Len(t, changes, 3)
	assert.Nil(t, changes[2])
	mu.Unlock()

	cancel()
	require.NoError(t, s.SignIn(context.Background(), "dave@example.com", "secret"))
	mu.Lock()
	assert.Len(t, changes, 3)
	mu.Unlock()
}

func TestAuthService_RefreshProfile(t *testing.T) {
	b := memory.New()
	s := newAuthService(t, b)

	require.ErrorIs(t, s.RefreshProfile(context.Background()), common.ErrUnauthorized)

	require.NoError(t, s.SignUp(context.Background(), "erin@example.com", "secret"))
	require.Eventually(t, func() bool {
		cur := s.Current()
		return cur != nil && cur.User.Username == "erin"
	}, time.Second, 5*time.Millisecond)

	userID := s.Current().User.ID
	_, err := b.Update(context.Background(), common.TableUsers,
		backend.Filter{"id": userID}, map[string]any{"avatar_url": "https://cdn/av.png"})
	require.NoError(t, err)

	require.NoError(t, s.RefreshProfile(context.Background()))
	assert.Equal(t, "https://cdn/av.png", s.Current().User.AvatarURL)
}
