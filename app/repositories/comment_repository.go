package repositories

import (
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"ripple/app/engage"
	"ripple/app/models"
)

// BadgerCommentRepository implements CommentRepository using BadgerDB.
// Besides the `comment:<id>` document, each comment maintains one index
// entry: `root:<postID>:<id>` for roots, `reply:<parentID>:<id>` for
// replies. Index keys order by UUIDv7 id, which is creation order.
type BadgerCommentRepository struct {
	db *badger.DB
}

// NewBadgerCommentRepository creates a new BadgerCommentRepository
func NewBadgerCommentRepository(db *badger.DB) *BadgerCommentRepository {
	return &BadgerCommentRepository{db: db}
}

// Create persists the comment, its root or reply index entry, and the
// parent post's incremented comment counter in one transaction. Fails
// with ErrNotFound before writing anything when the post is gone.
func (r *BadgerCommentRepository) Create(comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.Must(uuid.NewV7()).String()
	}
	comment.BeforeCreate()

	data, err := marshalEntity(comment)
	if err != nil {
		return err
	}

	return runUpdate(r.db, func(txn *badger.Txn) error {
		var post models.Post
		if err := readPost(txn, comment.PostID, &post); err != nil {
			return err
		}
		if err := txn.Set(commentKey(comment.ID), data); err != nil {
			return err
		}
		if comment.IsReply() {
			if err := txn.Set(replyIndexKey(comment.ParentID, comment.ID), nil); err != nil {
				return err
			}
		} else {
			if err := txn.Set(rootIndexKey(comment.PostID, comment.ID), nil); err != nil {
				return err
			}
		}
		post.CommentsCount++
		post.UpdatedAt = time.Now().UTC()
		return writePost(txn, &post)
	})
}

// GetByID retrieves a comment by ID
func (r *BadgerCommentRepository) GetByID(id string) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.View(func(txn *badger.Txn) error {
		return readComment(txn, id, &comment)
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListRoots retrieves up to limit root comments of a post, newest first.
func (r *BadgerCommentRepository) ListRoots(postID string, limit int) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.View(func(txn *badger.Txn) error {
		ids := collectIndexReverse(txn, RootIndexPrefix+postID+":", limit)
		for _, id := range ids {
			var comment models.Comment
			if err := readComment(txn, id, &comment); err != nil {
				return err
			}
			comments = append(comments, &comment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// ListRootsForPosts retrieves root comments for a set of posts in one
// call, bounded at limitPerPost per post, newest first within a post.
func (r *BadgerCommentRepository) ListRootsForPosts(postIDs []string, limitPerPost int) (map[string][]*models.Comment, error) {
	buckets := make(map[string][]*models.Comment, len(postIDs))
	err := r.db.View(func(txn *badger.Txn) error {
		for _, postID := range postIDs {
			ids := collectIndexReverse(txn, RootIndexPrefix+postID+":", limitPerPost)
			for _, id := range ids {
				var comment models.Comment
				if err := readComment(txn, id, &comment); err != nil {
					return err
				}
				buckets[postID] = append(buckets[postID], &comment)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buckets, nil
}

// ListReplies retrieves all replies whose parent is in rootIDs, oldest
// first. Replies of roots outside rootIDs are never touched.
func (r *BadgerCommentRepository) ListReplies(rootIDs []string) ([]*models.Comment, error) {
	var replies []*models.Comment
	err := r.db.View(func(txn *badger.Txn) error {
		for _, rootID := range rootIDs {
			ids := collectIndexForward(txn, ReplyIndexPrefix+rootID+":", 0)
			for _, id := range ids {
				var comment models.Comment
				if err := readComment(txn, id, &comment); err != nil {
					return err
				}
				replies = append(replies, &comment)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return replies, nil
}

// ToggleVote flips actorID in the comment's voter set inside one
// transaction; the counter stays equal to the set's cardinality.
func (r *BadgerCommentRepository) ToggleVote(id, actorID string) (engage.Result, error) {
	var result engage.Result
	err := runUpdate(r.db, func(txn *badger.Txn) error {
		var comment models.Comment
		if err := readComment(txn, id, &comment); err != nil {
			return err
		}
		comment.Voters, result = engage.Toggle(comment.Voters, actorID)
		comment.VotesCount = result.Count
		return writeComment(txn, &comment)
	})
	if err != nil {
		return engage.Result{}, err
	}
	return result, nil
}

// CountByPost counts live comments of a post, roots and replies.
func (r *BadgerCommentRepository) CountByPost(postID string) (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		rootIDs := collectIndexForward(txn, RootIndexPrefix+postID+":", 0)
		count = len(rootIDs)
		for _, rootID := range rootIDs {
			count += len(collectIndexForward(txn, ReplyIndexPrefix+rootID+":", 0))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ReconcileVotes repairs VotesCount to len(Voters) for every comment.
func (r *BadgerCommentRepository) ReconcileVotes() (int, error) {
	var drifted []string
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(CommentKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var comment models.Comment
			err := it.Item().Value(func(val []byte) error {
				return unmarshalEntity(val, &comment)
			})
			if err != nil {
				return err
			}
			if engage.Drifted(comment.Voters, comment.VotesCount) {
				drifted = append(drifted, comment.ID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, id := range drifted {
		err := runUpdate(r.db, func(txn *badger.Txn) error {
			var comment models.Comment
			if err := readComment(txn, id, &comment); err != nil {
				return err
			}
			comment.VotesCount = len(comment.Voters)
			return writeComment(txn, &comment)
		})
		if err != nil {
			return 0, err
		}
	}
	return len(drifted), nil
}

// collectIndexReverse gathers ids from an index prefix, newest first.
// A limit of 0 means unbounded.
func collectIndexReverse(txn *badger.Txn, prefix string, limit int) []string {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	p := []byte(prefix)
	var ids []string
	for it.Seek(reverseSeekKey(p)); it.ValidForPrefix(p); it.Next() {
		if limit > 0 && len(ids) >= limit {
			break
		}
		ids = append(ids, idFromIndexKey(it.Item().Key()))
	}
	return ids
}

// collectIndexForward gathers ids from an index prefix, oldest first.
// A limit of 0 means unbounded.
func collectIndexForward(txn *badger.Txn, prefix string, limit int) []string {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	p := []byte(prefix)
	var ids []string
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		if limit > 0 && len(ids) >= limit {
			break
		}
		ids = append(ids, idFromIndexKey(it.Item().Key()))
	}
	return ids
}

func readComment(txn *badger.Txn, id string, comment *models.Comment) error {
	item, err := txn.Get(commentKey(id))
	if err == badger.ErrKeyNotFound {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return unmarshalEntity(val, comment)
	})
}

func writeComment(txn *badger.Txn, comment *models.Comment) error {
	data, err := marshalEntity(comment)
	if err != nil {
		return err
	}
	return txn.Set(commentKey(comment.ID), data)
}
