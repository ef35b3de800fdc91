// Package feed reconstructs nested comment threads from flat storage.
// Comments are stored flat with an optional parent reference; depth is
// capped at 2, so reconstruction is a single grouping pass keyed by
// parent id.
package feed

import (
	"errors"
	"sort"

	"ripple/app/models"
	"ripple/app/repositories"
)

// Thread is one root comment with its replies attached, both in display
// order (oldest first).
type Thread struct {
	Root    *models.Comment
	Replies []*models.Comment
}

// Builder assembles comment threads. The fetch window is newest-first;
// the assembled output is re-sorted oldest-first for display. Replies
// whose root falls outside the fetched window are dropped from the
// output rather than surfaced as orphans; preview truncation is the
// documented behavior.
type Builder struct {
	comments repositories.CommentRepository
}

// NewBuilder creates a Builder over the given comment repository.
func NewBuilder(comments repositories.CommentRepository) *Builder {
	return &Builder{comments: comments}
}

// Full builds the thread list for one post with up to limit roots and
// all of their replies.
func (b *Builder) Full(postID string, limit int) ([]*Thread, error) {
	roots, err := b.comments.ListRoots(postID, limit)
	if err != nil {
		return nil, err
	}
	return b.assemble(roots)
}

// Preview builds bounded thread previews for a set of posts in one
// batch. Roots listed in pinned are force-included for their post even
// when they fall outside the newest-limitPerPost window, so a reply to
// an old root stays visible in the response that reports it.
func (b *Builder) Preview(postIDs []string, limitPerPost int, pinned map[string][]string) (map[string][]*Thread, error) {
	buckets, err := b.comments.ListRootsForPosts(postIDs, limitPerPost)
	if err != nil {
		return nil, err
	}

	for postID, pinnedIDs := range pinned {
		for _, id := range pinnedIDs {
			if containsComment(buckets[postID], id) {
				continue
			}
			root, err := b.comments.GetByID(id)
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			// Only roots of the right post can be pinned.
			if root.IsReply() || root.PostID != postID {
				continue
			}
			buckets[postID] = append(buckets[postID], root)
		}
	}

	out := make(map[string][]*Thread, len(postIDs))
	for _, postID := range postIDs {
		threads, err := b.assemble(buckets[postID])
		if err != nil {
			return nil, err
		}
		out[postID] = threads
	}
	return out, nil
}

// assemble groups replies under their roots and orders everything
// oldest-first.
func (b *Builder) assemble(roots []*models.Comment) ([]*Thread, error) {
	if len(roots) == 0 {
		return nil, nil
	}

	rootIDs := make([]string, len(roots))
	for i, root := range roots {
		rootIDs[i] = root.ID
	}
	replies, err := b.comments.ListReplies(rootIDs)
	if err != nil {
		return nil, err
	}

	byParent := make(map[string][]*models.Comment)
	for _, reply := range replies {
		byParent[reply.ParentID] = append(byParent[reply.ParentID], reply)
	}

	threads := make([]*Thread, len(roots))
	for i, root := range roots {
		group := byParent[root.ID]
		sort.Slice(group, func(a, b int) bool {
			return olderThan(group[a], group[b])
		})
		threads[i] = &Thread{Root: root, Replies: group}
	}
	sort.Slice(threads, func(a, b int) bool {
		return olderThan(threads[a].Root, threads[b].Root)
	})
	return threads, nil
}

func olderThan(a, b *models.Comment) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func containsComment(comments []*models.Comment, id string) bool {
	for _, c := range comments {
		if c.ID == id {
			return true
		}
	}
	return false
}
