package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
	"github.com/dmitrijs2005/framefeed/internal/client/livesync"
	"github.com/dmitrijs2005/framefeed/internal/client/models"
	"github.com/dmitrijs2005/framefeed/internal/common"
	"github.com/dmitrijs2005/framefeed/internal/logging"
)

// LikeService owns like state: live counts, the viewer's like status, and
// the optimistic toggle.
type LikeService struct {
	gateway backend.Gateway
	feed    backend.ChangeFeed
	session SessionSource
	log     logging.Logger
}

func NewLikeService(gateway backend.Gateway, feed backend.ChangeFeed, session SessionSource, log logging.Logger) *LikeService {
	if log == nil {
		log = logging.Discard()
	}
	return &LikeService{gateway: gateway, feed: feed, session: session, log: log}
}

// Count is a live like count for one post.
func (s *LikeService) Count(postID string) *livesync.Counter {
	return livesync.NewCounter(s.gateway, s.feed, common.TableLikes,
		backend.Filter{"post_id": postID}, s.log)
}

// Status fetches the server-confirmed like state for the post as seen by
// the current viewer: the total count and whether the viewer liked it.
// Signed-out viewers get Active=false.
func (s *LikeService) Status(ctx context.Context, postID string) (livesync.ToggleState, error) {
	count, err := s.gateway.Count(ctx, common.TableLikes, backend.Filter{"post_id": postID})
	if err != nil {
		return livesync.ToggleState{}, fmt.Errorf("like count: %w", err)
	}
	state := livesync.ToggleState{Count: count}

	if sess := s.session.Current(); sess != nil {
		mine, err := s.gateway.Count(ctx, common.TableLikes,
			backend.Filter{"post_id": postID, "user_id": sess.User.ID})
		if err != nil {
			return livesync.ToggleState{}, fmt.Errorf("like status: %w", err)
		}
		state.Active = mine > 0
	}
	return state, nil
}

// Toggle builds the optimistic like toggle for one post, seeded with a
// server-confirmed state from Status. Liking someone else's post also
// writes a notification row, best-effort.
func (s *LikeService) Toggle(post models.Post, initial livesync.ToggleState) *livesync.Toggle {
	ops := livesync.ToggleOps{
		Activate: func(ctx context.Context) error {
			sess := s.session.Current()
			if sess == nil {
				return common.ErrUnauthorized
			}
			like := models.Like{PostID: post.ID, UserID: sess.User.ID}
			if err := s.gateway.Insert(ctx, common.TableLikes, like, nil); err != nil {
				return err
			}
			if post.AuthorID != "" && post.AuthorID != sess.User.ID {
				notification := models.Notification{
					UserID:    post.AuthorID,
					ActorID:   sess.User.ID,
					ActorName: sess.User.DisplayName(),
					PostID:    post.ID,
					Type:      common.NotificationTypeLike,
					Message:   fmt.Sprintf("%s liked your post", sess.User.DisplayName()),
				}
				if err := s.gateway.Insert(ctx, common.TableNotifications, notification, nil); err != nil {
					s.log.Warn(ctx, "like notification failed", "post_id", post.ID, "error", err)
				}
			}
			return nil
		},
		Deactivate: func(ctx context.Context) error {
			sess := s.session.Current()
			if sess == nil {
				return common.ErrUnauthorized
			}
			_, err := s.gateway.Delete(ctx, common.TableLikes,
				backend.Filter{"post_id": post.ID, "user_id": sess.User.ID})
			return err
		},
	}
	return livesync.NewToggle(initial, ops, s.log.With("post_id", post.ID))
}
