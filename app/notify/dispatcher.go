// Package notify turns feed actions into notification creation
// requests. Dispatch is fire-and-forget from the caller's point of
// view: a failing sink is logged and swallowed, never surfaced to the
// write path that triggered it.
package notify

import (
	"fmt"

	"go.uber.org/zap"

	"ripple/app/models"
	"ripple/app/repositories"
)

// Notification types produced by the feed engine.
const (
	TypePostCreated  = "post.created"
	TypePostLiked    = "post.liked"
	TypeCommentAdded = "comment.added"
	TypeCommentVoted = "comment.voted"
)

// Dispatcher builds and enqueues notification records.
type Dispatcher struct {
	sink  repositories.NotificationSink
	users repositories.UserDirectory
	log   *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(sink repositories.NotificationSink, users repositories.UserDirectory, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{sink: sink, users: users, log: log}
}

// PostCreated notifies every recipient except the author.
func (d *Dispatcher) PostCreated(post *models.Post, recipients []string) {
	d.dispatch(recipients, post.AuthorID, &models.Notification{
		Type:  TypePostCreated,
		Title: "New post",
		Body:  fmt.Sprintf("%s shared a new post", d.displayName(post.AuthorID)),
		Data:  map[string]string{"postId": post.ID},
	})
}

// PostLiked notifies the post's author, unless the actor is the author.
func (d *Dispatcher) PostLiked(post *models.Post, actorID string) {
	d.dispatch([]string{post.AuthorID}, actorID, &models.Notification{
		Type:  TypePostLiked,
		Title: "Post liked",
		Body:  fmt.Sprintf("%s liked your post", d.displayName(actorID)),
		Data:  map[string]string{"postId": post.ID, "actorId": actorID},
	})
}

// CommentAdded notifies the post's author, unless the actor is the
// author.
func (d *Dispatcher) CommentAdded(post *models.Post, comment *models.Comment, actorID string) {
	d.dispatch([]string{post.AuthorID}, actorID, &models.Notification{
		Type:  TypeCommentAdded,
		Title: "New comment",
		Body:  fmt.Sprintf("%s commented on your post", d.displayName(actorID)),
		Data: map[string]string{
			"postId":    post.ID,
			"commentId": comment.ID,
			"actorId":   actorID,
		},
	})
}

// CommentVoted notifies the comment's author, unless the actor is the
// author.
func (d *Dispatcher) CommentVoted(comment *models.Comment, actorID string) {
	d.dispatch([]string{comment.AuthorID}, actorID, &models.Notification{
		Type:  TypeCommentVoted,
		Title: "Comment upvoted",
		Body:  fmt.Sprintf("%s upvoted your comment", d.displayName(actorID)),
		Data: map[string]string{
			"postId":    comment.PostID,
			"commentId": comment.ID,
			"actorId":   actorID,
		},
	})
}

// dispatch enqueues one record per distinct recipient, excluding the
// actor. An empty recipient set after exclusion is skipped entirely.
func (d *Dispatcher) dispatch(recipients []string, actorID string, template *models.Notification) {
	seen := make(map[string]bool, len(recipients))
	for _, recipient := range recipients {
		if recipient == "" || recipient == actorID || seen[recipient] {
			continue
		}
		seen[recipient] = true

		n := *template
		n.Recipient = recipient
		if err := d.sink.Create(&n); err != nil {
			d.log.Warn("notification dispatch failed",
				zap.String("type", n.Type),
				zap.String("recipient", recipient),
				zap.Error(err))
		}
	}
}

func (d *Dispatcher) displayName(actorID string) string {
	profile, err := d.users.ResolveByID(actorID)
	if err != nil || profile.DisplayName == "" {
		return "Someone"
	}
	return profile.DisplayName
}
