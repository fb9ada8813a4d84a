package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
	"github.com/dmitrijs2005/framefeed/internal/client/backend/memory"
	"github.com/dmitrijs2005/framefeed/internal/client/models"
	"github.com/dmitrijs2005/framefeed/internal/common"
)

func TestCommentService_Add(t *testing.T) {
	b := memory.New()
	s := NewCommentService(b, b, sessionFor("u2", "bob"), nil)
	post := mustInsertPost(t, b, "u1", "hello")

	stored, err := s.Add(context.Background(), post, "  nice post  ")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, post.ID, stored.PostID)
	assert.Equal(t, "u2", stored.UserID)
	assert.Equal(t, "bob", stored.AuthorName)
	assert.Equal(t, "nice post", stored.Content)

	// the post's author got notified
	var notifs []models.Notification
	require.NoError(t, b.Select(context.Background(), common.TableNotifications,
		backend.Filter{"user_id": "u1"}, backend.Order{}, &notifs))
	require.Len(t, notifs, 1)
	assert.Equal(t, common.NotificationTypeComment, notifs[0].Type)
	assert.Equal(t, "u2", notifs[0].ActorID)
	assert.Equal(t, post.ID, notifs[0].PostID)
	assert.False(t, notifs[0].IsRead)
}

func TestCommentService_AddOwnPostNoNotification(t *testing.T) {
	b := memory.New()
	s := NewCommentService(b, b, sessionFor("u1", "alice"), nil)
	post := mustInsertPost(t, b, "u1", "hello")

	_, err := s.Add(context.Background(), post, "replying to myself")
	require.NoError(t, err)

	n, err := b.Count(context.Background(), common.TableNotifications, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCommentService_AddValidation(t *testing.T) {
	b := memory.New()
	post := mustInsertPost(t, b, "u1", "hello")

	t.Run("signed out", func(t *testing.T) {
		s := NewCommentService(b, b, signedOut(), nil)
		_, err := s.Add(context.Background(), post, "hi")
		require.ErrorIs(t, err, common.ErrUnauthorized)
	})

	t.Run("empty after trim", func(t *testing.T) {
		s := NewCommentService(b, b, sessionFor("u2", "bob"), nil)
		_, err := s.Add(context.Background(), post, "   \n\t ")
		require.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("length limit counts runes", func(t *testing.T) {
		s := NewCommentService(b, b, sessionFor("u2", "bob"), nil)

		_, err := s.Add(context.Background(), post, strings.Repeat("ы", common.MaxCommentLength))
		require.NoError(t, err)

		_, err = s.Add(context.Background(), post, strings.Repeat("ы", common.MaxCommentLength+1))
		require.ErrorIs(t, err, common.ErrValidation)
	})
}

func TestCommentService_Delete(t *testing.T) {
	b := memory.New()
	author := NewCommentService(b, b, sessionFor("u2", "bob"), nil)
	other := NewCommentService(b, b, sessionFor("u3", "carol"), nil)
	post := mustInsertPost(t, b, "u1", "hello")

	stored, err := author.Add(context.Background(), post, "mine")
	require.NoError(t, err)

	require.ErrorIs(t, other.Delete(context.Background(), stored), common.ErrUnauthorized)
	require.NoError(t, author.Delete(context.Background(), stored))
	require.ErrorIs(t, author.Delete(context.Background(), stored), common.ErrNotFound)
}

func TestCommentService_ThreadViewOldestFirst(t *testing.T) {
	b := memory.New()
	s := NewCommentService(b, b, sessionFor("u2", "bob"), nil)
	post := mustInsertPost(t, b, "u1", "hello")
	mustInsertPost(t, b, "u1", "unrelated")

	first, err := s.Add(context.Background(), post, "first")
	require.NoError(t, err)
	second, err := s.Add(context.Background(), post, "second")
	require.NoError(t, err)

	v := s.ThreadView(post.ID)
	t.Cleanup(func() { v.Close() })
	require.NoError(t, v.Start(context.Background()))

	snap := v.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, first.ID, snap[0].ID)
	assert.Equal(t, second.ID, snap[1].ID)

	third, err := s.Add(context.Background(), post, "third")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		snap := v.Snapshot()
		return len(snap) == 3 && snap[2].ID == third.ID
	}, time.Second, 5*time.Millisecond)
}

func TestCommentService_Count(t *testing.T) {
	b := memory.New()
	s := NewCommentService(b, b, sessionFor("u2", "bob"), nil)
	post := mustInsertPost(t, b, "u1", "hello")

	c := s.Count(post.ID)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.Start(context.Background()))
	require.Equal(t, 0, c.Value())

	_, err := s.Add(context.Background(), post, "one")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Value() == 1 }, time.Second, 5*time.Millisecond)
}
