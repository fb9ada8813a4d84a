package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/framefeed/internal/common"
)

// Notifications prints the current user's notification list, newest first.
func (a *App) Notifications(ctx context.Context) error {
	sess := a.auth.Current()
	if sess == nil {
		return common.ErrUnauthorized
	}

	view := a.notifications.View(sess.User.ID)
	if err := view.Start(ctx); err != nil {
		return err
	}
	defer view.Close()

	rows := view.Snapshot()
	if len(rows) == 0 {
		printlnFn("No notifications.")
		return nil
	}
	for _, n := range rows {
		marker := " "
		if !n.IsRead {
			marker = "*"
		}
		printlnFn(fmt.Sprintf("%s [%s] %s  %s", marker, n.ID, n.CreatedAt.Format("2006-01-02 15:04"), n.Message))
	}
	return nil
}

// MarkRead prompts for a notification id and marks it read.
func (a *App) MarkRead(ctx context.Context) error {
	id, err := getSimpleText(a.reader, "Enter notification id", os.Stdout)
	if err != nil {
		return err
	}
	if err := a.notifications.MarkRead(ctx, id); err != nil {
		return err
	}
	printlnFn("Marked read.")
	return nil
}

// MarkAllRead marks every unread notification of the current user read.
func (a *App) MarkAllRead(ctx context.Context) error {
	if err := a.notifications.MarkAllRead(ctx); err != nil {
		return err
	}
	printlnFn("All notifications marked read.")
	return nil
}
