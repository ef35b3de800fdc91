package repositories

import (
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"ripple/app/models"
)

// BadgerNotificationSink appends notification records to BadgerDB.
// Delivery is somebody else's job; this sink only persists the creation
// request.
type BadgerNotificationSink struct {
	db *badger.DB
}

// NewBadgerNotificationSink creates a new BadgerNotificationSink
func NewBadgerNotificationSink(db *badger.DB) *BadgerNotificationSink {
	return &BadgerNotificationSink{db: db}
}

// Create stores a notification record
func (r *BadgerNotificationSink) Create(n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.Must(uuid.NewV7()).String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	data, err := marshalEntity(n)
	if err != nil {
		return err
	}
	return runUpdate(r.db, func(txn *badger.Txn) error {
		return txn.Set([]byte(NotificationKeyPrefix+n.ID), data)
	})
}
