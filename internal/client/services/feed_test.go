package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/framefeed/internal/client/backend/memory"
	"github.com/dmitrijs2005/framefeed/internal/common"
)

func TestFeedService_Create(t *testing.T) {
	b := memory.New()
	sess := sessionFor("u1", "alice")
	s := NewFeedService(b, b, b, sess, nil)

	stored, err := s.Create(context.Background(), "  hello world  ", nil, "")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.False(t, stored.CreatedAt.IsZero())
	assert.Equal(t, "u1", stored.AuthorID)
	assert.Equal(t, "alice", stored.AuthorName)
	assert.Equal(t, "hello world", stored.Content)
	assert.Empty(t, stored.ImageURL)
}

func TestFeedService_CreateWithImage(t *testing.T) {
	b := memory.New()
	s := NewFeedService(b, b, b, sessionFor("u1", "alice"), nil)

	img := []byte{0x89, 0x50, 0x4E, 0x47}
	stored, err := s.Create(context.Background(), "", img, "image/png")
	require.NoError(t, err)
	require.NotEmpty(t, stored.ImageURL)
	assert.True(t, strings.HasPrefix(stored.ImageURL, "memory://storage/"))
	assert.True(t, strings.HasSuffix(stored.ImageURL, ".png"))

	name := stored.ImageURL[strings.LastIndexByte(stored.ImageURL, '/')+1:]
	data, ok := b.Blob(common.BucketPosts, name)
	require.True(t, ok)
	assert.Equal(t, img, data)
}

func TestFeedService_CreateValidation(t *testing.T) {
	b := memory.New()

	t.Run("signed out", func(t *testing.T) {
		s := NewFeedService(b, b, b, signedOut(), nil)
		_, err := s.Create(context.Background(), "hi", nil, "")
		require.ErrorIs(t, err, common.ErrUnauthorized)
	})

	t.Run("no content and no image", func(t *testing.T) {
		s := NewFeedService(b, b, b, sessionFor("u1", "alice"), nil)
		_, err := s.Create(context.Background(), "   ", nil, "")
		require.ErrorIs(t, err, common.ErrValidation)
	})
}

func TestFeedService_Delete(t *testing.T) {
	b := memory.New()
	author := NewFeedService(b, b, b, sessionFor("u1", "alice"), nil)
	other := NewFeedService(b, b, b, sessionFor("u2", "bob"), nil)

	post := mustInsertPost(t, b, "u1", "mine")

	require.ErrorIs(t, other.Delete(context.Background(), post), common.ErrUnauthorized)

	require.NoError(t, author.Delete(context.Background(), post))
	_, err := author.Get(context.Background(), post.ID)
	require.ErrorIs(t, err, common.ErrNotFound)

	// already gone
	require.ErrorIs(t, author.Delete(context.Background(), post), common.ErrNotFound)
}

func TestFeedService_Get(t *testing.T) {
	b := memory.New()
	s := NewFeedService(b, b, b, signedOut(), nil)

	post := mustInsertPost(t, b, "u1", "hello")

	got, err := s.Get(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, got.ID)
	assert.Equal(t, "hello", got.Content)

	_, err = s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestFeedService_ViewIsLive(t *testing.T) {
	b := memory.New()
	s := NewFeedService(b, b, b, sessionFor("u1", "alice"), nil)
	mustInsertPost(t, b, "u2", "older")

	v := s.View()
	t.Cleanup(func() { v.Close() })
	require.NoError(t, v.Start(context.Background()))
	require.Len(t, v.Snapshot(), 1)

	created, err := s.Create(context.Background(), "newest", nil, "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap := v.Snapshot()
		return len(snap) == 2 && snap[0].ID == created.ID
	}, time.Second, 5*time.Millisecond)
}

func TestFeedService_AuthorView(t *testing.T) {
	b := memory.New()
	s := NewFeedService(b, b, b, signedOut(), nil)
	mustInsertPost(t, b, "u1", "mine")
	mustInsertPost(t, b, "u2", "other")

	v := s.AuthorView("u1")
	t.Cleanup(func() { v.Close() })
	require.NoError(t, v.Start(context.Background()))

	snap := v.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "mine", snap[0].Content)
}
