package repositories

import (
	"time"

	"ripple/app/engage"
	"ripple/app/models"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// BadgerPostRepository implements PostRepository using BadgerDB. Post ids
// are UUIDv7 strings, so lexicographic key order equals creation order
// and a reverse prefix scan yields newest-first pages.
type BadgerPostRepository struct {
	db *badger.DB
}

// NewBadgerPostRepository creates a new BadgerPostRepository
func NewBadgerPostRepository(db *badger.DB) *BadgerPostRepository {
	return &BadgerPostRepository{db: db}
}

// Create creates a new post and its author index entry
func (r *BadgerPostRepository) Create(post *models.Post) error {
	if post.ID == "" {
		post.ID = uuid.Must(uuid.NewV7()).String()
	}
	post.BeforeCreate()

	data, err := marshalEntity(post)
	if err != nil {
		return err
	}

	return runUpdate(r.db, func(txn *badger.Txn) error {
		if err := txn.Set(postKey(post.ID), data); err != nil {
			return err
		}
		return txn.Set(authorIndexKey(post.AuthorID, post.ID), nil)
	})
}

// GetByID retrieves a post by ID
func (r *BadgerPostRepository) GetByID(id string) (*models.Post, error) {
	var post models.Post
	err := r.db.View(func(txn *badger.Txn) error {
		return readPost(txn, id, &post)
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// ListBefore retrieves up to limit posts strictly older than beforeID,
// newest first. An empty beforeID starts from the newest post.
func (r *BadgerPostRepository) ListBefore(limit int, beforeID string) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(PostKeyPrefix)
		seek := reverseSeekKey(prefix)
		if beforeID != "" {
			// Exclusive bound: land on the cursor key, then skip it.
			seek = postKey(beforeID)
		}
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(posts) < limit; it.Next() {
			item := it.Item()
			if beforeID != "" && string(item.Key()) == string(postKey(beforeID)) {
				continue
			}
			var post models.Post
			err := item.Value(func(val []byte) error {
				return unmarshalEntity(val, &post)
			})
			if err != nil {
				return err
			}
			posts = append(posts, &post)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// ListByAuthorBefore retrieves one author's posts with the same cursor
// contract as ListBefore, via the author index.
func (r *BadgerPostRepository) ListByAuthorBefore(authorID string, limit int, beforeID string) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.db.View(func(txn *badger.Txn) error {
		ids := func() []string {
			opts := badger.DefaultIteratorOptions
			opts.Reverse = true
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()

			prefix := []byte(AuthorIndexPrefix + authorID + ":")
			seek := reverseSeekKey(prefix)
			if beforeID != "" {
				seek = authorIndexKey(authorID, beforeID)
			}
			var ids []string
			for it.Seek(seek); it.ValidForPrefix(prefix) && len(ids) < limit; it.Next() {
				id := idFromIndexKey(it.Item().Key())
				if beforeID != "" && id == beforeID {
					continue
				}
				ids = append(ids, id)
			}
			return ids
		}()

		for _, id := range ids {
			var post models.Post
			if err := readPost(txn, id, &post); err != nil {
				return err
			}
			posts = append(posts, &post)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// ToggleLike flips actorID in the post's liker set inside one
// transaction; the counter stays equal to the set's cardinality.
func (r *BadgerPostRepository) ToggleLike(id, actorID string) (engage.Result, error) {
	var result engage.Result
	err := runUpdate(r.db, func(txn *badger.Txn) error {
		var post models.Post
		if err := readPost(txn, id, &post); err != nil {
			return err
		}
		post.Likers, result = engage.Toggle(post.Likers, actorID)
		post.LikesCount = result.Count
		post.UpdatedAt = time.Now().UTC()
		return writePost(txn, &post)
	})
	if err != nil {
		return engage.Result{}, err
	}
	return result, nil
}

// SetCommentsCount overwrites the comment counter (repair path).
func (r *BadgerPostRepository) SetCommentsCount(id string, count int) error {
	return runUpdate(r.db, func(txn *badger.Txn) error {
		var post models.Post
		if err := readPost(txn, id, &post); err != nil {
			return err
		}
		if post.CommentsCount == count {
			return nil
		}
		post.CommentsCount = count
		return writePost(txn, &post)
	})
}

// Delete removes the post, its author index entry, and every comment
// under it (roots, replies, their index keys) in one transaction.
func (r *BadgerPostRepository) Delete(id string) error {
	return runUpdate(r.db, func(txn *badger.Txn) error {
		var post models.Post
		if err := readPost(txn, id, &post); err != nil {
			return err
		}
		rootIDs := collectIndexForward(txn, RootIndexPrefix+id+":", 0)
		for _, rootID := range rootIDs {
			replyIDs := collectIndexForward(txn, ReplyIndexPrefix+rootID+":", 0)
			for _, replyID := range replyIDs {
				if err := txn.Delete(commentKey(replyID)); err != nil {
					return err
				}
				if err := txn.Delete(replyIndexKey(rootID, replyID)); err != nil {
					return err
				}
			}
			if err := txn.Delete(commentKey(rootID)); err != nil {
				return err
			}
			if err := txn.Delete(rootIndexKey(id, rootID)); err != nil {
				return err
			}
		}
		if err := txn.Delete(authorIndexKey(post.AuthorID, id)); err != nil {
			return err
		}
		return txn.Delete(postKey(id))
	})
}

// ReconcileCounters repairs LikesCount to len(Likers) for every post.
func (r *BadgerPostRepository) ReconcileCounters() (int, error) {
	var drifted []string
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(PostKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var post models.Post
			err := it.Item().Value(func(val []byte) error {
				return unmarshalEntity(val, &post)
			})
			if err != nil {
				return err
			}
			if engage.Drifted(post.Likers, post.LikesCount) {
				drifted = append(drifted, post.ID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, id := range drifted {
		err := runUpdate(r.db, func(txn *badger.Txn) error {
			var post models.Post
			if err := readPost(txn, id, &post); err != nil {
				return err
			}
			post.LikesCount = len(post.Likers)
			return writePost(txn, &post)
		})
		if err != nil {
			return 0, err
		}
	}
	return len(drifted), nil
}

func readPost(txn *badger.Txn, id string, post *models.Post) error {
	item, err := txn.Get(postKey(id))
	if err == badger.ErrKeyNotFound {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return unmarshalEntity(val, post)
	})
}

func writePost(txn *badger.Txn, post *models.Post) error {
	data, err := marshalEntity(post)
	if err != nil {
		return err
	}
	return txn.Set(postKey(post.ID), data)
}
