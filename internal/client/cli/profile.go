package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/dmitrijs2005/framefeed/internal/common"
)

// Profile looks up and prints a user profile. An empty id means the current
// user. The user's own posts are listed below the profile.
func (a *App) Profile(ctx context.Context) error {
	id, err := getSimpleText(a.reader, "Enter user id (empty for your own)", os.Stdout)
	if err != nil {
		return err
	}
	if id == "" {
		sess := a.auth.Current()
		if sess == nil {
			return common.ErrUnauthorized
		}
		id = sess.User.ID
	}

	user, err := a.profile.Get(ctx, id)
	if err != nil {
		return err
	}
	printlnFn(user.DisplayName())
	if user.AvatarURL != "" {
		printlnFn("  avatar: " + user.AvatarURL)
	}

	view := a.feed.AuthorView(id)
	if err := view.Start(ctx); err != nil {
		return err
	}
	defer view.Close()

	for _, p := range view.Snapshot() {
		printPost(p)
	}
	return nil
}

// Avatar prompts for an image path and uploads it as the current user's
// profile picture.
func (a *App) Avatar(ctx context.Context) error {
	path, err := getSimpleText(a.reader, "Enter image path", os.Stdout)
	if err != nil {
		return err
	}
	data, err := readFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	url, err := a.profile.UploadAvatar(ctx, data, http.DetectContentType(data))
	if err != nil {
		return err
	}
	printlnFn("Avatar updated:", url)
	return nil
}
