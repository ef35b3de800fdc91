package models

import "time"

// MediaKind is the declared type of an attached media payload.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// MediaItem is an opaque encoded payload attached to a post. The engine
// never inspects the payload beyond decoding it for the size check; the
// digest is a blake2b-256 over the decoded bytes and doubles as the
// item's stable id.
type MediaItem struct {
	Kind    MediaKind `json:"kind" validate:"required,oneof=image video"`
	Mime    string    `json:"mime,omitempty"`
	Digest  string    `json:"digest"`
	Size    int64     `json:"size"`
	Payload []byte    `json:"payload"`
}

// Post is a short feed entry with optional text and media. Likers is the
// source of truth for engagement; LikesCount is a cached projection of
// len(Likers) and CommentsCount tracks live comments (roots and replies).
type Post struct {
	ID            string      `json:"id" validate:"required"`
	AuthorID      string      `json:"authorId" validate:"required"`
	Text          string      `json:"text" validate:"max=2000"`
	Media         []MediaItem `json:"media,omitempty" validate:"dive"`
	Likers        []string    `json:"likers,omitempty"`
	LikesCount    int         `json:"likesCount"`
	CommentsCount int         `json:"commentsCount"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Comment belongs to a post. A comment with an empty ParentID is a root;
// otherwise it is a reply and ParentID must name a root comment on the
// same post (depth is capped at 2).
type Comment struct {
	ID         string    `json:"id" validate:"required"`
	PostID     string    `json:"postId" validate:"required"`
	AuthorID   string    `json:"authorId" validate:"required"`
	Text       string    `json:"text" validate:"required,max=280"`
	ParentID   string    `json:"parentId,omitempty"`
	Voters     []string  `json:"voters,omitempty"`
	VotesCount int       `json:"votesCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Profile is read-only display metadata resolved from the user directory.
type Profile struct {
	ID          string `json:"id" validate:"required"`
	DisplayName string `json:"displayName"`
	Handle      string `json:"handle" validate:"required"`
	Role        string `json:"role"`
}

// Notification is a creation request handed to the notification sink.
// Delivery and read-state are the sink's problem, not the feed engine's.
type Notification struct {
	ID        string            `json:"id"`
	Recipient string            `json:"recipient" validate:"required"`
	Type      string            `json:"type" validate:"required"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
