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

// NotificationService owns the signed-in user's notification list, the
// unread badge, and read-state writes. All writes are scoped to the
// recipient so one user cannot mark another's notifications.
type NotificationService struct {
	gateway backend.Gateway
	feed    backend.ChangeFeed
	session SessionSource
	log     logging.Logger
}

func NewNotificationService(gateway backend.Gateway, feed backend.ChangeFeed, session SessionSource, log logging.Logger) *NotificationService {
	if log == nil {
		log = logging.Discard()
	}
	return &NotificationService{gateway: gateway, feed: feed, session: session, log: log}
}

// View is the user's notifications, newest first, live.
func (s *NotificationService) View(userID string) *livesync.View[models.Notification] {
	return livesync.NewView[models.Notification](s.gateway, s.feed, common.TableNotifications,
		backend.Filter{"user_id": userID},
		backend.Order{Column: "created_at", Descending: true}, s.log)
}

// UnreadBadge is the live count of unread notifications. It counts rows
// with is_read=false but subscribes to every change for the user: a
// mark-as-read update flips is_read to true, which a subscription filtered
// on is_read=false would never see.
func (s *NotificationService) UnreadBadge(userID string) *livesync.Counter {
	c := livesync.NewCounter(s.gateway, s.feed, common.TableNotifications,
		backend.Filter{"user_id": userID, "is_read": false}, s.log)
	c.SubscribeTo(common.TableNotifications, backend.Filter{"user_id": userID})
	return c
}

// MarkRead flags one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID string) error {
	sess := s.session.Current()
	if sess == nil {
		return common.ErrUnauthorized
	}
	affected, err := s.gateway.Update(ctx, common.TableNotifications,
		backend.Filter{"id": notificationID, "user_id": sess.User.ID},
		map[string]any{"is_read": true})
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("notification %s: %w", notificationID, common.ErrNotFound)
	}
	return nil
}

// MarkAllRead flags every unread notification of the signed-in user as
// read. Having none is not an error.
func (s *NotificationService) MarkAllRead(ctx context.Context) error {
	sess := s.session.Current()
	if sess == nil {
		return common.ErrUnauthorized
	}
	_, err := s.gateway.Update(ctx, common.TableNotifications,
		backend.Filter{"user_id": sess.User.ID, "is_read": false},
		map[string]any{"is_read": true})
	if err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}
