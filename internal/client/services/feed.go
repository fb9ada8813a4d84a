package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
	"github.com/dmitrijs2005/framefeed/internal/client/livesync"
	"github.com/dmitrijs2005/framefeed/internal/client/models"
	"github.com/dmitrijs2005/framefeed/internal/common"
	"github.com/dmitrijs2005/framefeed/internal/logging"
)

// FeedService owns the posts collection: the home feed, per-author feeds,
// and post creation and deletion.
type FeedService struct {
	gateway backend.Gateway
	feed    backend.ChangeFeed
	blobs   backend.BlobStore
	session SessionSource
	log     logging.Logger
}

func NewFeedService(gateway backend.Gateway, feed backend.ChangeFeed, blobs backend.BlobStore, session SessionSource, log logging.Logger) *FeedService {
	if log == nil {
		log = logging.Discard()
	}
	return &FeedService{gateway: gateway, feed: feed, blobs: blobs, session: session, log: log}
}

// View is the home feed: every post, newest first, refetched on any posts
// change.
func (s *FeedService) View() *livesync.View[models.Post] {
	return livesync.NewView[models.Post](s.gateway, s.feed, common.TablePosts, nil,
		backend.Order{Column: "created_at", Descending: true}, s.log)
}

// AuthorView is one user's posts, newest first. Used by profile screens.
func (s *FeedService) AuthorView(userID string) *livesync.View[models.Post] {
	return livesync.NewView[models.Post](s.gateway, s.feed, common.TablePosts,
		backend.Filter{"author_id": userID},
		backend.Order{Column: "created_at", Descending: true}, s.log)
}

// Create stores a new post. Content or an image is required. The image, if
// present, is uploaded first and its public URL stored on the row.
func (s *FeedService) Create(ctx context.Context, content string, image []byte, imageType string) (models.Post, error) {
	sess := s.session.Current()
	if sess == nil {
		return models.Post{}, common.ErrUnauthorized
	}
	content = strings.TrimSpace(content)
	if content == "" && len(image) == 0 {
		return models.Post{}, fmt.Errorf("post needs content or an image: %w", common.ErrValidation)
	}

	imageURL := ""
	if len(image) > 0 {
		name := fmt.Sprintf("post-%d%s", time.Now().UnixMilli(), extensionFor(imageType))
		if err := s.blobs.Upload(ctx, common.BucketPosts, name, image, imageType); err != nil {
			return models.Post{}, fmt.Errorf("image upload: %w", err)
		}
		imageURL = s.blobs.PublicURL(common.BucketPosts, name)
	}

	row := models.Post{
		AuthorID:     sess.User.ID,
		AuthorName:   sess.User.DisplayName(),
		AuthorAvatar: sess.User.AvatarURL,
		Content:      content,
		ImageURL:     imageURL,
	}
	var stored models.Post
	if err := s.gateway.Insert(ctx, common.TablePosts, row, &stored); err != nil {
		return models.Post{}, fmt.Errorf("create post: %w", err)
	}
	return stored, nil
}

// Delete removes a post. Only the author may delete; the remote store
// enforces this too, but checking locally gives the right error without a
// round trip.
func (s *FeedService) Delete(ctx context.Context, post models.Post) error {
	sess := s.session.Current()
	if sess == nil || sess.User.ID != post.AuthorID {
		return fmt.Errorf("not the author of post %s: %w", post.ID, common.ErrUnauthorized)
	}
	affected, err := s.gateway.Delete(ctx, common.TablePosts, backend.Filter{"id": post.ID})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("post %s: %w", post.ID, common.ErrNotFound)
	}
	return nil
}

// Get fetches a single post, e.g. when navigating from a notification that
// carries only the post id.
func (s *FeedService) Get(ctx context.Context, postID string) (models.Post, error) {
	var posts []models.Post
	if err := s.gateway.Select(ctx, common.TablePosts, backend.Filter{"id": postID}, backend.Order{}, &posts); err != nil {
		return models.Post{}, fmt.Errorf("fetch post: %w", err)
	}
	if len(posts) == 0 {
		return models.Post{}, fmt.Errorf("post %s: %w", postID, common.ErrNotFound)
	}
	return posts[0], nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
