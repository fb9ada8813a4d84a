package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
	"github.com/dmitrijs2005/framefeed/internal/client/backend/memory"
	"github.com/dmitrijs2005/framefeed/internal/client/models"
	"github.com/dmitrijs2005/framefeed/internal/common"
)

// fixedSession is a SessionSource tests control directly.
type fixedSession struct {
	mu   sync.Mutex
	sess *backend.Session
}

func (f *fixedSession) Current() *backend.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sess == nil {
		return nil
	}
	copied := *f.sess
	return &copied
}

func (f *fixedSession) set(s *backend.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess = s
}

func sessionFor(id, username string) *fixedSession {
	return &fixedSession{sess: &backend.Session{
		AccessToken: "token-" + id,
		User:        models.User{ID: id, Email: username + "@example.com", Username: username},
	}}
}

func signedOut() *fixedSession { return &fixedSession{} }

func mustInsertPost(t *testing.T, b *memory.Backend, authorID, content string) models.Post {
	t.Helper()
	var stored models.Post
	require.NoError(t, b.Insert(context.Background(), common.TablePosts, models.Post{
		AuthorID:   authorID,
		AuthorName: authorID,
		Content:    content,
	}, &stored))
	return stored
}
