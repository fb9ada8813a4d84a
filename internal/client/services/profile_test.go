package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
	"github.com/dmitrijs2005/framefeed/internal/client/backend/memory"
	"github.com/dmitrijs2005/framefeed/internal/client/models"
	"github.com/dmitrijs2005/framefeed/internal/common"
)

func TestProfileService_GetFromUsersTable(t *testing.T) {
	b := memory.New()
	s := NewProfileService(b, b, signedOut(), nil)
	ctx := context.Background()

	require.NoError(t, b.Insert(ctx, common.TableUsers, models.User{
		ID: "u1", Email: "alice@example.com", Username: "alice", AvatarURL: "https://cdn/a.png",
	}, nil))

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "https://cdn/a.png", got.AvatarURL)
}

func TestProfileService_GetFallsBackToPosts(t *testing.T) {
	b := memory.New()
	s := NewProfileService(b, b, signedOut(), nil)
	ctx := context.Background()

	require.NoError(t, b.Insert(ctx, common.TablePosts, models.Post{
		AuthorID: "legacy", AuthorName: "old-timer", AuthorAvatar: "https://cdn/legacy.png", Content: "hi",
	}, nil))

	got, err := s.Get(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, "legacy", got.ID)
	assert.Equal(t, "old-timer", got.Username)
	assert.Equal(t, "https://cdn/legacy.png", got.AvatarURL)
}

func TestProfileService_GetFallsBackToComments(t *testing.T) {
	b := memory.New()
	s := NewProfileService(b, b, signedOut(), nil)
	ctx := context.Background()

	require.NoError(t, b.Insert(ctx, common.TableComments, models.Comment{
		PostID: "p1", UserID: "lurker", AuthorName: "quiet-one", Content: "just commenting",
	}, nil))

	got, err := s.Get(ctx, "lurker")
	require.NoError(t, err)
	assert.Equal(t, "quiet-one", got.Username)
}

func TestProfileService_GetNotFound(t *testing.T) {
	b := memory.New()
	s := NewProfileService(b, b, signedOut(), nil)

	_, err := s.Get(context.Background(), "nobody")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestProfileService_UploadAvatar(t *testing.T) {
	b := memory.New()
	ctx := context.Background()
	require.NoError(t, b.Insert(ctx, common.TableUsers, models.User{ID: "u1", Username: "alice"}, nil))

	s := NewProfileService(b, b, sessionFor("u1", "alice"), nil)

	data := []byte{0x89, 0x50}
	url, err := s.UploadAvatar(ctx, data, "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "memory://storage/"))
	assert.Contains(t, url, "avatar-u1-")
	assert.True(t, strings.HasSuffix(url, ".png"))

	name := url[strings.LastIndexByte(url, '/')+1:]
	stored, ok := b.Blob(common.BucketAvatars, name)
	require.True(t, ok)
	assert.Equal(t, data, stored)

	// the profile row points at the new avatar
	var users []models.User
	require.NoError(t, b.Select(ctx, common.TableUsers, backend.Filter{"id": "u1"}, backend.Order{}, &users))
	require.Len(t, users, 1)
	assert.Equal(t, url, users[0].AvatarURL)
}

func TestProfileService_UploadAvatarValidation(t *testing.T) {
	b := memory.New()

	t.Run("signed out", func(t *testing.T) {
		s := NewProfileService(b, b, signedOut(), nil)
		_, err := s.UploadAvatar(context.Background(), []byte{1}, "image/png")
		require.ErrorIs(t, err, common.ErrUnauthorized)
	})

	t.Run("empty data", func(t *testing.T) {
		s := NewProfileService(b, b, sessionFor("u1", "alice"), nil)
		_, err := s.UploadAvatar(context.Background(), nil, "image/png")
		require.ErrorIs(t, err, common.ErrValidation)
	})
}
