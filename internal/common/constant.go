package common

// Table names of the remote relational store consumed by the client.
const (
	TableUsers         = "users"
	TablePosts         = "posts"
	TableComments      = "comments"
	TableLikes         = "likes"
	TableNotifications = "notifications"
)

// Storage buckets for user-generated binary content.
const (
	BucketPosts   = "posts"
	BucketAvatars = "avatars"
)

// Notification types written by the acting client.
const (
	NotificationTypeLike    = "like"
	NotificationTypeComment = "comment"
)

// MaxCommentLength is the longest comment body accepted by the client.
const MaxCommentLength = 500
