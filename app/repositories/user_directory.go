package repositories

import (
	"github.com/dgraph-io/badger/v4"

	"ripple/app/models"
)

// BadgerUserDirectory implements UserDirectory over BadgerDB. The feed
// engine treats it as an external collaborator: request handling only
// reads; Put is for the seeding command.
type BadgerUserDirectory struct {
	db *badger.DB
}

// NewBadgerUserDirectory creates a new BadgerUserDirectory
func NewBadgerUserDirectory(db *badger.DB) *BadgerUserDirectory {
	return &BadgerUserDirectory{db: db}
}

// ResolveByID retrieves a profile by its id
func (r *BadgerUserDirectory) ResolveByID(id string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(ProfileKeyPrefix + id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return unmarshalEntity(val, &profile)
		})
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// ResolveByHandle retrieves a profile by its public handle
func (r *BadgerUserDirectory) ResolveByHandle(handle string) (*models.Profile, error) {
	var id string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(HandleIndexPrefix + handle))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return r.ResolveByID(id)
}

// ListIDs returns the ids of every known profile.
func (r *BadgerUserDirectory) ListIDs() ([]string, error) {
	var ids []string
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(ProfileKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Put stores a profile and its handle index entry
func (r *BadgerUserDirectory) Put(profile *models.Profile) error {
	data, err := marshalEntity(profile)
	if err != nil {
		return err
	}
	return runUpdate(r.db, func(txn *badger.Txn) error {
		if err := txn.Set([]byte(ProfileKeyPrefix+profile.ID), data); err != nil {
			return err
		}
		return txn.Set([]byte(HandleIndexPrefix+profile.Handle), []byte(profile.ID))
	})
}
