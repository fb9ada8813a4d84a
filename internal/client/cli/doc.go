// Package cli provides the interactive framefeed command-line client.
//
// It wires configuration, a backend (in-memory, hosted platform, or
// self-hosted postgres), the per-entity services, and an interactive REPL.
// Typical flow: sign in, browse the live feed, open a post with its
// comments, like and comment, and watch the unread badge in the prompt.
//
// Key features:
//   - Sign up / sign in / sign out against the configured backend
//   - Live feed and per-post comment threads backed by livesync views
//   - Optimistic like toggle
//   - Notifications list with unread badge and mark-read commands
//   - Profile lookup and avatar upload
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
