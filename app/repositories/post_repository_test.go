package repositories

import (
	"fmt"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ripple/app/models"
)

func createPosts(t *testing.T, repo *BadgerPostRepository, author string, n int) []*models.Post {
	t.Helper()
	posts := make([]*models.Post, n)
	for i := 0; i < n; i++ {
		post := &models.Post{AuthorID: author, Text: fmt.Sprintf("post %d", i)}
		require.NoError(t, repo.Create(post))
		posts[i] = post
	}
	return posts
}

func TestPostCreateAndGet(t *testing.T) {
	repo := NewBadgerPostRepository(newTestDB(t))

	post := &models.Post{AuthorID: "alice", Text: "hello"}
	require.NoError(t, repo.Create(post))
	require.NotEmpty(t, post.ID)

	got, err := repo.GetByID(post.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, "alice", got.AuthorID)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = repo.GetByID("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostListBefore(t *testing.T) {
	repo := NewBadgerPostRepository(newTestDB(t))
	created := createPosts(t, repo, "alice", 5)

	t.Run("newest first", func(t *testing.T) {
		page, err := repo.ListBefore(10, "")
		require.NoError(t, err)
		require.Len(t, page, 5)
		assert.Equal(t, created[4].ID, page[0].ID)
		assert.Equal(t, created[0].ID, page[4].ID)
	})

	t.Run("cursor pages are disjoint and strictly older", func(t *testing.T) {
		first, err := repo.ListBefore(2, "")
		require.NoError(t, err)
		require.Len(t, first, 2)

		second, err := repo.ListBefore(2, first[len(first)-1].ID)
		require.NoError(t, err)
		require.Len(t, second, 2)

		seen := map[string]bool{}
		for _, post := range append(first, second...) {
			assert.False(t, seen[post.ID], "duplicate id %s across pages", post.ID)
			seen[post.ID] = true
		}
		assert.Less(t, second[0].ID, first[len(first)-1].ID)
	})

	t.Run("cursor past the oldest yields empty", func(t *testing.T) {
		page, err := repo.ListBefore(2, created[0].ID)
		require.NoError(t, err)
		assert.Empty(t, page)
	})
}

func TestPostListByAuthor(t *testing.T) {
	repo := NewBadgerPostRepository(newTestDB(t))
	alice := createPosts(t, repo, "alice", 3)
	createPosts(t, repo, "bob", 2)

	page, err := repo.ListByAuthorBefore("alice", 10, "")
	require.NoError(t, err)
	require.Len(t, page, 3)
	for _, post := range page {
		assert.Equal(t, "alice", post.AuthorID)
	}
	assert.Equal(t, alice[2].ID, page[0].ID)

	older, err := repo.ListByAuthorBefore("alice", 10, alice[1].ID)
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, alice[0].ID, older[0].ID)
}

func TestPostToggleLike(t *testing.T) {
	repo := NewBadgerPostRepository(newTestDB(t))
	post := createPosts(t, repo, "alice", 1)[0]

	t.Run("idempotent pair", func(t *testing.T) {
		result, err := repo.ToggleLike(post.ID, "bob")
		require.NoError(t, err)
		assert.True(t, result.Active)
		assert.Equal(t, 1, result.Count)

		result, err = repo.ToggleLike(post.ID, "bob")
		require.NoError(t, err)
		assert.False(t, result.Active)
		assert.Equal(t, 0, result.Count)
	})

	t.Run("concurrent toggles by different actors all take effect", func(t *testing.T) {
		actors := []string{"a1", "a2", "a3", "a4", "a5"}
		var wg sync.WaitGroup
		for _, actor := range actors {
			wg.Add(1)
			go func(actor string) {
				defer wg.Done()
				_, err := repo.ToggleLike(post.ID, actor)
				assert.NoError(t, err)
			}(actor)
		}
		wg.Wait()

		got, err := repo.GetByID(post.ID)
		require.NoError(t, err)
		assert.Equal(t, len(actors), got.LikesCount)
		assert.Equal(t, len(got.Likers), got.LikesCount)
	})

	t.Run("missing post", func(t *testing.T) {
		_, err := repo.ToggleLike("missing", "bob")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPostSetCommentsCount(t *testing.T) {
	repo := NewBadgerPostRepository(newTestDB(t))
	post := createPosts(t, repo, "alice", 1)[0]

	require.NoError(t, repo.SetCommentsCount(post.ID, 7))
	got, err := repo.GetByID(post.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.CommentsCount)

	assert.ErrorIs(t, repo.SetCommentsCount("missing", 1), ErrNotFound)
}

func TestPostDelete(t *testing.T) {
	db := newTestDB(t)
	repo := NewBadgerPostRepository(db)
	post := createPosts(t, repo, "alice", 1)[0]

	require.NoError(t, repo.Delete(post.ID))

	_, err := repo.GetByID(post.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The author index entry is gone too.
	page, err := repo.ListByAuthorBefore("alice", 10, "")
	require.NoError(t, err)
	assert.Empty(t, page)

	assert.ErrorIs(t, repo.Delete(post.ID), ErrNotFound)
}

func TestPostDeleteCascadesToComments(t *testing.T) {
	db := newTestDB(t)
	repo := NewBadgerPostRepository(db)
	comments := NewBadgerCommentRepository(db)
	post := createPosts(t, repo, "alice", 1)[0]
	other := createPosts(t, repo, "bob", 1)[0]

	root := createRoot(t, comments, post.ID, "first")
	reply := createReply(t, comments, post.ID, root.ID, "under it")
	kept := createRoot(t, comments, other.ID, "unrelated")

	require.NoError(t, repo.Delete(post.ID))

	// Root, reply, and their index entries are all gone.
	_, err := comments.GetByID(root.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = comments.GetByID(reply.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	count, err := comments.CountByPost(post.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// The other post's thread is untouched.
	got, err := comments.GetByID(kept.ID)
	require.NoError(t, err)
	assert.Equal(t, "unrelated", got.Text)
}

func TestPostReconcileCounters(t *testing.T) {
	db := newTestDB(t)
	repo := NewBadgerPostRepository(db)
	post := createPosts(t, repo, "alice", 1)[0]

	// Introduce drift directly in storage.
	post.Likers = []string{"x", "y"}
	post.LikesCount = 9
	data, err := marshalEntity(post)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return txn.Set(postKey(post.ID), data)
	}))

	fixed, err := repo.ReconcileCounters()
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)

	got, err := repo.GetByID(post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.LikesCount)

	// A second pass finds nothing to repair.
	fixed, err = repo.ReconcileCounters()
	require.NoError(t, err)
	assert.Equal(t, 0, fixed)
}
