package repositories

import (
	"ripple/app/engage"
	"ripple/app/models"
)

// PostRepository defines the interface for post data access. Mutating
// single-entity operations (ToggleLike, the comment counter bumps) are
// atomic per post: concurrent calls on the same post are serialized by
// the store, calls on different posts are independent.
type PostRepository interface {
	Create(post *models.Post) error
	GetByID(id string) (*models.Post, error)
	// ListBefore returns up to limit posts strictly older than beforeID
	// (all posts when beforeID is empty), newest first.
	ListBefore(limit int, beforeID string) ([]*models.Post, error)
	// ListByAuthorBefore is ListBefore scoped to one author.
	ListByAuthorBefore(authorID string, limit int, beforeID string) ([]*models.Post, error)
	// ToggleLike flips actorID's membership in the post's liker set and
	// keeps LikesCount equal to the set's cardinality.
	ToggleLike(id, actorID string) (engage.Result, error)
	// SetCommentsCount overwrites the comment counter. Repair path only;
	// normal maintenance happens inside CommentRepository.Create and
	// Delete's cascade.
	SetCommentsCount(id string, count int) error
	// Delete removes the post and cascades to all of its comments in one
	// atomic operation, so no comment can outlive its post.
	Delete(id string) error
	// ReconcileCounters repairs LikesCount to len(Likers) for every
	// post and returns the number of posts that had drifted.
	ReconcileCounters() (int, error)
}

// CommentRepository defines the interface for comment data access.
type CommentRepository interface {
	// Create persists the comment and increments the parent post's
	// comment counter in the same atomic operation. Returns ErrNotFound
	// when the post does not exist; nothing is written in that case.
	Create(comment *models.Comment) error
	GetByID(id string) (*models.Comment, error)
	// ListRoots returns up to limit root comments of a post, newest first.
	ListRoots(postID string, limit int) ([]*models.Comment, error)
	// ListRootsForPosts returns root comments for a set of posts in one
	// call, at most limitPerPost per post, newest first within a post.
	ListRootsForPosts(postIDs []string, limitPerPost int) (map[string][]*models.Comment, error)
	// ListReplies returns all replies whose parent is in rootIDs, oldest
	// first.
	ListReplies(rootIDs []string) ([]*models.Comment, error)
	// ToggleVote flips actorID's membership in the comment's voter set.
	ToggleVote(id, actorID string) (engage.Result, error)
	// CountByPost counts live comments of a post, roots and replies.
	CountByPost(postID string) (int, error)
	// ReconcileVotes repairs VotesCount to len(Voters) for every comment
	// and returns the number of comments that had drifted.
	ReconcileVotes() (int, error)
}

// UserDirectory resolves display metadata for actor ids. The feed engine
// only reads from it during request handling; Put exists for seeding.
type UserDirectory interface {
	ResolveByID(id string) (*models.Profile, error)
	ResolveByHandle(handle string) (*models.Profile, error)
	ListIDs() ([]string, error)
	Put(profile *models.Profile) error
}

// NotificationSink accepts notification creation requests. Callers treat
// it as fire-and-forget; a failing sink must never fail a write path.
type NotificationSink interface {
	Create(n *models.Notification) error
}
