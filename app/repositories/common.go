package repositories

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

var (
	ErrNotFound = errors.New("record not found")
)

const (
	// Key prefixes for different entity types
	PostKeyPrefix         = "post:"
	CommentKeyPrefix      = "comment:"
	AuthorIndexPrefix     = "author:"
	RootIndexPrefix       = "root:"
	ReplyIndexPrefix      = "reply:"
	ProfileKeyPrefix      = "user:"
	HandleIndexPrefix     = "handle:"
	NotificationKeyPrefix = "notif:"
)

// conflictRetries bounds the optimistic-concurrency retry loop. Retry
// policy for contended single-entity updates lives here, in the store
// adapter, not in callers.
const conflictRetries = 8

func postKey(id string) []byte {
	return []byte(PostKeyPrefix + id)
}

func commentKey(id string) []byte {
	return []byte(CommentKeyPrefix + id)
}

func authorIndexKey(authorID, postID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", AuthorIndexPrefix, authorID, postID))
}

func rootIndexKey(postID, commentID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", RootIndexPrefix, postID, commentID))
}

func replyIndexKey(parentID, commentID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", ReplyIndexPrefix, parentID, commentID))
}

// idFromIndexKey extracts the trailing id from a composite index key.
func idFromIndexKey(key []byte) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return string(key[i+1:])
		}
	}
	return string(key)
}

// reverseSeekKey positions a reverse iterator at the end of a prefix
// range. 0xff sorts after every byte that appears in our keys.
func reverseSeekKey(prefix []byte) []byte {
	return append(append([]byte{}, prefix...), 0xff)
}

// runUpdate wraps db.Update with a bounded retry on write conflicts so
// concurrent read-modify-write cycles on the same entity all take
// effect.
func runUpdate(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < conflictRetries; i++ {
		err = db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// marshalEntity marshals an entity to JSON
func marshalEntity(entity interface{}) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %v", err)
	}
	return data, nil
}

// unmarshalEntity unmarshals JSON data into an entity
func unmarshalEntity(data []byte, entity interface{}) error {
	if err := json.Unmarshal(data, entity); err != nil {
		return fmt.Errorf("failed to unmarshal entity: %v", err)
	}
	return nil
}
