package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
	"github.com/dmitrijs2005/framefeed/internal/client/models"
	"github.com/dmitrijs2005/framefeed/internal/common"
	"github.com/dmitrijs2005/framefeed/internal/logging"
)

// ProfileService resolves user profiles and handles avatar changes.
type ProfileService struct {
	gateway backend.Gateway
	blobs   backend.BlobStore
	session SessionSource
	log     logging.Logger
}

func NewProfileService(gateway backend.Gateway, blobs backend.BlobStore, session SessionSource, log logging.Logger) *ProfileService {
	if log == nil {
		log = logging.Discard()
	}
	return &ProfileService{gateway: gateway, blobs: blobs, session: session, log: log}
}

// Get resolves a user profile. Users who signed up before the users table
// existed have no row there, so the lookup falls back to the author fields
// denormalized onto their posts, then their comments, before giving up
// with ErrNotFound.
func (s *ProfileService) Get(ctx context.Context, userID string) (models.User, error) {
	var users []models.User
	if err := s.gateway.Select(ctx, common.TableUsers, backend.Filter{"id": userID}, backend.Order{}, &users); err != nil {
		return models.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if len(users) > 0 {
		return users[0], nil
	}

	var posts []models.Post
	if err := s.gateway.Select(ctx, common.TablePosts, backend.Filter{"author_id": userID}, backend.Order{}, &posts); err == nil && len(posts) > 0 {
		return models.User{
			ID:        userID,
			Username:  posts[0].AuthorName,
			AvatarURL: posts[0].AuthorAvatar,
		}, nil
	}

	var comments []models.Comment
	if err := s.gateway.Select(ctx, common.TableComments, backend.Filter{"user_id": userID}, backend.Order{}, &comments); err == nil && len(comments) > 0 {
		return models.User{
			ID:        userID,
			Username:  comments[0].AuthorName,
			AvatarURL: comments[0].UserAvatar,
		}, nil
	}

	return models.User{}, fmt.Errorf("user %s: %w", userID, common.ErrNotFound)
}

// UploadAvatar stores a new avatar for the signed-in user and points their
// profile row at it. The name embeds a timestamp so stale cached copies are
// never served. Returns the public URL.
func (s *ProfileService) UploadAvatar(ctx context.Context, data []byte, contentType string) (string, error) {
	sess := s.session.Current()
	if sess == nil {
		return "", common.ErrUnauthorized
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty avatar: %w", common.ErrValidation)
	}

	name := fmt.Sprintf("avatar-%s-%d%s", sess.User.ID, time.Now().UnixMilli(), extensionFor(contentType))
	if err := s.blobs.Upload(ctx, common.BucketAvatars, name, data, contentType); err != nil {
		return "", fmt.Errorf("avatar upload: %w", err)
	}
	url := s.blobs.PublicURL(common.BucketAvatars, name)

	if _, err := s.gateway.Update(ctx, common.TableUsers,
		backend.Filter{"id": sess.User.ID},
		map[string]any{"avatar_url": url}); err != nil {
		return "", fmt.Errorf("avatar update: %w", err)
	}
	return url, nil
}
