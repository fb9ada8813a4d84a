package cli

import (
	"context"
	"os"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// SignUp prompts the user for an email and password and attempts to create
// a new account. The platform signs the user in as part of signup, so on
// success the session is live and the unread badge starts.
func (a *App) SignUp(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}

	if err := a.auth.SignUp(ctx, email, password); err != nil {
		return err
	}
	a.startBadge(ctx)
	printlnFn("Welcome,", a.auth.Current().User.DisplayName())
	return nil
}

// Login prompts the user for credentials and signs in.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}

	if err := a.auth.SignIn(ctx, email, password); err != nil {
		return err
	}
	a.startBadge(ctx)
	printlnFn("Signed in as", a.auth.Current().User.DisplayName())
	return nil
}

// Logout signs out and stops the unread badge.
func (a *App) Logout(ctx context.Context) error {
	a.stopBadge()
	return a.auth.SignOut(ctx)
}

// startBadge opens the live unread-notification counter shown in the prompt.
// A failure to start it is logged and ignored; the badge is cosmetic.
func (a *App) startBadge(ctx context.Context) {
	sess := a.auth.Current()
	if sess == nil {
		return
	}

	a.stopBadge()

	badge := a.notifications.UnreadBadge(sess.User.ID)
	if err := badge.Start(ctx); err != nil {
		a.log.Warn(ctx, "unread badge unavailable", "error", err)
		return
	}
	a.mu.Lock()
	a.badge = badge
	a.mu.Unlock()
}

func (a *App) stopBadge() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.badge != nil {
		a.badge.Close()
		a.badge = nil
	}
}
