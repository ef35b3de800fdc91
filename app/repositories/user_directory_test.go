package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ripple/app/models"
)

func TestUserDirectoryResolve(t *testing.T) {
	dir := NewBadgerUserDirectory(newTestDB(t))

	alice := &models.Profile{ID: "u-alice", DisplayName: "Alice", Handle: "alice"}
	require.NoError(t, dir.Put(alice))

	byID, err := dir.ResolveByID("u-alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", byID.DisplayName)

	byHandle, err := dir.ResolveByHandle("alice")
	require.NoError(t, err)
	assert.Equal(t, "u-alice", byHandle.ID)

	_, err = dir.ResolveByID("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = dir.ResolveByHandle("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserDirectoryListIDs(t *testing.T) {
	dir := NewBadgerUserDirectory(newTestDB(t))

	require.NoError(t, dir.Put(&models.Profile{ID: "u-a", Handle: "a"}))
	require.NoError(t, dir.Put(&models.Profile{ID: "u-b", Handle: "b"}))

	ids, err := dir.ListIDs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u-a", "u-b"}, ids)
}

func TestNotificationSinkCreate(t *testing.T) {
	sink := NewBadgerNotificationSink(newTestDB(t))

	n := &models.Notification{Recipient: "u-a", Type: "post.liked", Title: "Alice liked your post"}
	require.NoError(t, sink.Create(n))
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())
}
