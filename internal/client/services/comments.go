package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
	"github.com/dmitrijs2005/framefeed/internal/client/livesync"
	"github.com/dmitrijs2005/framefeed/internal/client/models"
	"github.com/dmitrijs2005/framefeed/internal/common"
	"github.com/dmitrijs2005/framefeed/internal/logging"
)

// CommentService owns comment threads and per-post comment counts.
type CommentService struct {
	gateway backend.Gateway
	feed    backend.ChangeFeed
	session SessionSource
	log     logging.Logger
}

func NewCommentService(gateway backend.Gateway, feed backend.ChangeFeed, session SessionSource, log logging.Logger) *CommentService {
	if log == nil {
		log = logging.Discard()
	}
	return &CommentService{gateway: gateway, feed: feed, session: session, log: log}
}

// ThreadView is one post's comments, oldest first, refetched live. The
// caller owns any draft text; refetches never touch it.
func (s *CommentService) ThreadView(postID string) *livesync.View[models.Comment] {
	return livesync.NewView[models.Comment](s.gateway, s.feed, common.TableComments,
		backend.Filter{"post_id": postID},
		backend.Order{Column: "created_at"}, s.log)
}

// Count is a live comment count for one post, e.g. on a feed list item.
func (s *CommentService) Count(postID string) *livesync.Counter {
	return livesync.NewCounter(s.gateway, s.feed, common.TableComments,
		backend.Filter{"post_id": postID}, s.log)
}

// Add stores a new comment on the post and, when commenting on someone
// else's post, writes the corresponding notification row. The notification
// is best-effort: its failure does not unwind the stored comment.
func (s *CommentService) Add(ctx context.Context, post models.Post, content string) (models.Comment, error) {
	sess := s.session.Current()
	if sess == nil {
		return models.Comment{}, common.ErrUnauthorized
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, fmt.Errorf("empty comment: %w", common.ErrValidation)
	}
	if len([]rune(content)) > common.MaxCommentLength {
		return models.Comment{}, fmt.Errorf("comment exceeds %d characters: %w", common.MaxCommentLength, common.ErrValidation)
	}

	row := models.Comment{
		PostID:     post.ID,
		UserID:     sess.User.ID,
		AuthorName: sess.User.DisplayName(),
		UserAvatar: sess.User.AvatarURL,
		Content:    content,
	}
	var stored models.Comment
	if err := s.gateway.Insert(ctx, common.TableComments, row, &stored); err != nil {
		return models.Comment{}, fmt.Errorf("add comment: %w", err)
	}

	if post.AuthorID != "" && post.AuthorID != sess.User.ID {
		notification := models.Notification{
			UserID:    post.AuthorID,
			ActorID:   sess.User.ID,
			ActorName: sess.User.DisplayName(),
			PostID:    post.ID,
			Type:      common.NotificationTypeComment,
			Message:   fmt.Sprintf("%s commented on your post", sess.User.DisplayName()),
		}
		if err := s.gateway.Insert(ctx, common.TableNotifications, notification, nil); err != nil {
			s.log.Warn(ctx, "comment notification failed", "post_id", post.ID, "error", err)
		}
	}
	return stored, nil
}

// Delete removes a comment. Only its author may delete it.
func (s *CommentService) Delete(ctx context.Context, comment models.Comment) error {
	sess := s.session.Current()
	if sess == nil || sess.User.ID != comment.UserID {
		return fmt.Errorf("not the author of comment %s: %w", comment.ID, common.ErrUnauthorized)
	}
	affected, err := s.gateway.Delete(ctx, common.TableComments, backend.Filter{"id": comment.ID})
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("comment %s: %w", comment.ID, common.ErrNotFound)
	}
	return nil
}
