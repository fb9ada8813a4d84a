package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	SignUp(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Feed(ctx context.Context) error
	Compose(ctx context.Context) error
	DeletePost(ctx context.Context) error
	Show(ctx context.Context) error
	Comment(ctx context.Context) error
	Like(ctx context.Context) error
	Notifications(ctx context.Context) error
	MarkRead(ctx context.Context) error
	MarkAllRead(ctx context.Context) error
	Profile(ctx context.Context) error
	Avatar(ctx context.Context) error
}

// runREPL starts a simple read-eval-print loop for the framefeed CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Not signed in:
//	  - help           — show available commands
//	  - signup         — create an account
//	  - login          — authenticate
//	  - feed           — browse the live feed
//	  - show           — open a single post with its comments
//	  - profile        — look up a user profile
//	  - exit | quit    — leave the program
//
//	Signed in, additionally:
//	  - post           — compose a post (text and/or image)
//	  - delpost        — delete one of your posts
//	  - comment        — comment on a post
//	  - like           — toggle a like on a post
//	  - notifs         — list notifications
//	  - read           — mark one notification read
//	  - readall        — mark all notifications read
//	  - avatar         — upload a profile picture
//	  - logout         — sign out
//
// Errors returned by command handlers are printed and the loop continues,
// keeping the REPL resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	report := func(err error) {
		if err != nil {
			printlnFn("error:", err.Error())
		}
	}

	for {
		printlnFn(fmt.Sprintf("ff> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: feed, post, delpost, show, comment, like, notifs, read, readall, profile, avatar, logout, exit")
			} else {
				printlnFn("Available commands: signup, login, feed, show, profile, exit")
			}

		case "signup":
			report(a.SignUp(ctx))

		case "login":
			report(a.Login(ctx))

		case "logout":
			report(a.Logout(ctx))

		case "f", "feed":
			report(a.Feed(ctx))

		case "post":
			report(a.Compose(ctx))

		case "delpost":
			report(a.DeletePost(ctx))

		case "show":
			report(a.Show(ctx))

		case "comment":
			report(a.Comment(ctx))

		case "like":
			report(a.Like(ctx))

		case "n", "notifs":
			report(a.Notifications(ctx))

		case "read":
			report(a.MarkRead(ctx))

		case "readall":
			report(a.MarkAllRead(ctx))

		case "profile":
			report(a.Profile(ctx))

		case "avatar":
			report(a.Avatar(ctx))

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
