package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/dmitrijs2005/framefeed/internal/client/livesync"
	"github.com/dmitrijs2005/framefeed/internal/client/models"
)

// readFile is a test seam for os.ReadFile.
var readFile = os.ReadFile

// Feed prints the current feed snapshot. The underlying live view is started
// on first use and kept open, so later calls reflect changes made by other
// clients without refetching.
func (a *App) Feed(ctx context.Context) error {
	view, err := a.ensureFeedView(ctx)
	if err != nil {
		return err
	}
	if view.Stale() {
		if err := view.Refresh(ctx); err != nil {
			return err
		}
	}

	posts := view.Snapshot()
	if len(posts) == 0 {
		printlnFn("The feed is empty.")
		return nil
	}
	for _, p := range posts {
		printPost(p)
	}
	return nil
}

// Compose prompts for post content and an optional image and publishes it.
func (a *App) Compose(ctx context.Context) error {
	content, err := GetMultiline(a.reader, "What's on your mind?", os.Stdout)
	if err != nil {
		return err
	}
	path, err := getSimpleText(a.reader, "Image path (empty for none)", os.Stdout)
	if err != nil {
		return err
	}

	var image []byte
	var imageType string
	if path != "" {
		image, err = readFile(path)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		imageType = http.DetectContentType(image)
	}

	post, err := a.feed.Create(ctx, content, image, imageType)
	if err != nil {
		return err
	}
	printlnFn("Posted:", post.ID)
	return nil
}

// Show fetches a single post and prints it together with its like count,
// whether the current user liked it, and the full comment thread.
func (a *App) Show(ctx context.Context) error {
	id, err := getSimpleText(a.reader, "Enter post id", os.Stdout)
	if err != nil {
		return err
	}

	post, err := a.feed.Get(ctx, id)
	if err != nil {
		return err
	}
	printPost(post)

	status, err := a.likes.Status(ctx, post.ID)
	if err != nil {
		return err
	}
	liked := ""
	if status.Active {
		liked = " (you liked this)"
	}
	printlnFn(fmt.Sprintf("%d likes%s", status.Count, liked))

	thread := a.comments.ThreadView(post.ID)
	if err := thread.Start(ctx); err != nil {
		return err
	}
	defer thread.Close()

	for _, c := range thread.Snapshot() {
		printlnFn(fmt.Sprintf("  %s  %s: %s", c.CreatedAt.Format("2006-01-02 15:04"), c.AuthorName, c.Content))
	}
	return nil
}

// Comment prompts for a post id and a comment body and adds the comment.
func (a *App) Comment(ctx context.Context) error {
	id, err := getSimpleText(a.reader, "Enter post id", os.Stdout)
	if err != nil {
		return err
	}
	post, err := a.feed.Get(ctx, id)
	if err != nil {
		return err
	}
	content, err := getSimpleText(a.reader, "Enter comment", os.Stdout)
	if err != nil {
		return err
	}

	if _, err := a.comments.Add(ctx, post, content); err != nil {
		return err
	}
	printlnFn("Comment added.")
	return nil
}

// Like toggles the current user's like on a post.
func (a *App) Like(ctx context.Context) error {
	id, err := getSimpleText(a.reader, "Enter post id", os.Stdout)
	if err != nil {
		return err
	}
	post, err := a.feed.Get(ctx, id)
	if err != nil {
		return err
	}
	status, err := a.likes.Status(ctx, post.ID)
	if err != nil {
		return err
	}

	toggle := a.likes.Toggle(post, status)
	if err := toggle.Do(ctx); err != nil {
		return err
	}

	state := toggle.State()
	if state.Active {
		printlnFn(fmt.Sprintf("Liked. %d likes now.", state.Count))
	} else {
		printlnFn(fmt.Sprintf("Unliked. %d likes now.", state.Count))
	}
	return nil
}

// DeletePost removes one of the current user's posts. The open feed view is
// patched locally so the row disappears without waiting for the change feed.
func (a *App) DeletePost(ctx context.Context) error {
	id, err := getSimpleText(a.reader, "Enter post id", os.Stdout)
	if err != nil {
		return err
	}
	post, err := a.feed.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := a.feed.Delete(ctx, post); err != nil {
		return err
	}

	a.mu.Lock()
	if a.feedView != nil {
		a.feedView.ApplyRemove(post.ID)
	}
	a.mu.Unlock()
	printlnFn("Post deleted.")
	return nil
}

func (a *App) ensureFeedView(ctx context.Context) (*livesync.View[models.Post], error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.feedView != nil {
		return a.feedView, nil
	}

	view := a.feed.View()
	if err := view.Start(ctx); err != nil {
		return nil, err
	}
	a.feedView = view
	return view, nil
}

func printPost(p models.Post) {
	printlnFn(fmt.Sprintf("[%s] %s  %s", p.ID, p.AuthorName, p.CreatedAt.Format("2006-01-02 15:04")))
	if p.Content != "" {
		printlnFn("  " + p.Content)
	}
	if p.ImageURL != "" {
		printlnFn("  image: " + p.ImageURL)
	}
}
