// Package models defines the domain entities of the social feed as the
// remote store exposes them. Identifiers and creation timestamps are
// server-assigned; the client never fabricates them for durable rows.
package models

import "time"

// Record is the minimal shape the live-view machinery needs from an entity:
// a stable identifier and the server-assigned creation timestamp used as the
// sort key.
type Record interface {
	RecordID() string
	RecordCreatedAt() time.Time
}

// User is a row of the users table. Username and AvatarURL are editable by
// the owner; Email comes from the auth platform.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) RecordID() string           { return u.ID }
func (u User) RecordCreatedAt() time.Time { return u.CreatedAt }

// DisplayName returns the name shown next to the user's content.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	if u.Email != "" {
		return u.Email
	}
	return "Anonymous"
}

// Post is a feed entry. Author fields are denormalized onto the row so a
// feed render needs no join.
type Post struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"author_id"`
	AuthorName   string    `json:"author_name"`
	AuthorAvatar string    `json:"author_avatar,omitempty"`
	Content      string    `json:"content"`
	ImageURL     string    `json:"image_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (p Post) RecordID() string           { return p.ID }
func (p Post) RecordCreatedAt() time.Time { return p.CreatedAt }

// Comment belongs to exactly one post. The relationship is enforced by the
// remote store, not checked client-side.
type Comment struct {
	ID         string    `json:"id"`
	PostID     string    `json:"post_id"`
	UserID     string    `json:"user_id"`
	AuthorName string    `json:"author_name"`
	UserAvatar string    `json:"user_avatar,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

func (c Comment) RecordID() string           { return c.ID }
func (c Comment) RecordCreatedAt() time.Time { return c.CreatedAt }

// Like marks that one user liked one post. The remote store enforces
// uniqueness of (post_id, user_id); the client relies on the resulting
// conflict error for toggle semantics.
type Like struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (l Like) RecordID() string           { return l.ID }
func (l Like) RecordCreatedAt() time.Time { return l.CreatedAt }

// Notification is addressed to UserID and describes an action ActorID took,
// optionally on PostID.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ActorID   string    `json:"actor_id"`
	ActorName string    `json:"actor_name"`
	PostID    string    `json:"post_id,omitempty"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func (n Notification) RecordID() string           { return n.ID }
func (n Notification) RecordCreatedAt() time.Time { return n.CreatedAt }
