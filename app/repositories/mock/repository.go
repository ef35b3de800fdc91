// Package mock provides in-memory implementations of the repository
// interfaces for tests. Ordering and cursor semantics match the Badger
// implementations: ids are UUIDv7, so sorting by id is creation order.
package mock

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"ripple/app/engage"
	"ripple/app/models"
	"ripple/app/repositories"
)

// feedState backs the post and comment mocks with one mutex so the
// cross-entity operations (comment create, post delete) behave like the
// Badger transactions they stand in for.
type feedState struct {
	mutex    sync.RWMutex
	posts    map[string]*models.Post
	comments map[string]*models.Comment
}

// NewFeedStore returns a post and a comment repository sharing one
// in-memory state, mirroring the single Badger database underneath the
// real implementations.
func NewFeedStore() (*PostRepository, *CommentRepository) {
	state := &feedState{
		posts:    make(map[string]*models.Post),
		comments: make(map[string]*models.Comment),
	}
	return &PostRepository{state: state}, &CommentRepository{state: state}
}

type PostRepository struct {
	state *feedState
}

func (m *PostRepository) Create(post *models.Post) error {
	m.state.mutex.Lock()
	defer m.state.mutex.Unlock()

	if post.ID == "" {
		post.ID = uuid.Must(uuid.NewV7()).String()
	}
	post.BeforeCreate()
	m.state.posts[post.ID] = clonePost(post)
	return nil
}

func (m *PostRepository) GetByID(id string) (*models.Post, error) {
	m.state.mutex.RLock()
	defer m.state.mutex.RUnlock()

	post, exists := m.state.posts[id]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	return clonePost(post), nil
}

func (m *PostRepository) ListBefore(limit int, beforeID string) ([]*models.Post, error) {
	return m.list(limit, beforeID, "")
}

func (m *PostRepository) ListByAuthorBefore(authorID string, limit int, beforeID string) ([]*models.Post, error) {
	return m.list(limit, beforeID, authorID)
}

func (m *PostRepository) list(limit int, beforeID, authorID string) ([]*models.Post, error) {
	m.state.mutex.RLock()
	defer m.state.mutex.RUnlock()

	var all []*models.Post
	for _, post := range m.state.posts {
		if authorID != "" && post.AuthorID != authorID {
			continue
		}
		if beforeID != "" && post.ID >= beforeID {
			continue
		}
		all = append(all, post)
	}
	// Newest first: UUIDv7 ids sort by creation time.
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]*models.Post, len(all))
	for i, post := range all {
		out[i] = clonePost(post)
	}
	return out, nil
}

func (m *PostRepository) ToggleLike(id, actorID string) (engage.Result, error) {
	m.state.mutex.Lock()
	defer m.state.mutex.Unlock()

	post, exists := m.state.posts[id]
	if !exists {
		return engage.Result{}, repositories.ErrNotFound
	}
	var result engage.Result
	post.Likers, result = engage.Toggle(post.Likers, actorID)
	post.LikesCount = result.Count
	return result, nil
}

func (m *PostRepository) SetCommentsCount(id string, count int) error {
	m.state.mutex.Lock()
	defer m.state.mutex.Unlock()

	post, exists := m.state.posts[id]
	if !exists {
		return repositories.ErrNotFound
	}
	post.CommentsCount = count
	return nil
}

// Delete removes the post together with all of its comments, matching
// the cascading Badger transaction.
func (m *PostRepository) Delete(id string) error {
	m.state.mutex.Lock()
	defer m.state.mutex.Unlock()

	if _, exists := m.state.posts[id]; !exists {
		return repositories.ErrNotFound
	}
	delete(m.state.posts, id)
	for cid, comment := range m.state.comments {
		if comment.PostID == id {
			delete(m.state.comments, cid)
		}
	}
	return nil
}

func (m *PostRepository) ReconcileCounters() (int, error) {
	m.state.mutex.Lock()
	defer m.state.mutex.Unlock()

	fixed := 0
	for _, post := range m.state.posts {
		if engage.Drifted(post.Likers, post.LikesCount) {
			post.LikesCount = len(post.Likers)
			fixed++
		}
	}
	return fixed, nil
}

// CommentRepository is the comment view of the shared feed state.
// FailWith makes every Create fail without writing anything, for
// exercising error paths.
type CommentRepository struct {
	state    *feedState
	FailWith error
}

// Create persists the comment and bumps the parent post's counter under
// the shared lock, so the two writes land together or not at all.
func (m *CommentRepository) Create(comment *models.Comment) error {
	m.state.mutex.Lock()
	defer m.state.mutex.Unlock()

	if m.FailWith != nil {
		return m.FailWith
	}
	post, exists := m.state.posts[comment.PostID]
	if !exists {
		return repositories.ErrNotFound
	}
	if comment.ID == "" {
		comment.ID = uuid.Must(uuid.NewV7()).String()
	}
	comment.BeforeCreate()
	m.state.comments[comment.ID] = cloneComment(comment)
	post.CommentsCount++
	return nil
}

func (m *CommentRepository) GetByID(id string) (*models.Comment, error) {
	m.state.mutex.RLock()
	defer m.state.mutex.RUnlock()

	comment, exists := m.state.comments[id]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	return cloneComment(comment), nil
}

func (m *CommentRepository) ListRoots(postID string, limit int) ([]*models.Comment, error) {
	m.state.mutex.RLock()
	defer m.state.mutex.RUnlock()
	return m.rootsLocked(postID, limit), nil
}

func (m *CommentRepository) ListRootsForPosts(postIDs []string, limitPerPost int) (map[string][]*models.Comment, error) {
	m.state.mutex.RLock()
	defer m.state.mutex.RUnlock()

	buckets := make(map[string][]*models.Comment, len(postIDs))
	for _, postID := range postIDs {
		if roots := m.rootsLocked(postID, limitPerPost); len(roots) > 0 {
			buckets[postID] = roots
		}
	}
	return buckets, nil
}

func (m *CommentRepository) rootsLocked(postID string, limit int) []*models.Comment {
	var roots []*models.Comment
	for _, comment := range m.state.comments {
		if comment.PostID == postID && !comment.IsReply() {
			roots = append(roots, cloneComment(comment))
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].ID > roots[j].ID })
	if limit > 0 && len(roots) > limit {
		roots = roots[:limit]
	}
	return roots
}

func (m *CommentRepository) ListReplies(rootIDs []string) ([]*models.Comment, error) {
	m.state.mutex.RLock()
	defer m.state.mutex.RUnlock()

	parents := make(map[string]bool, len(rootIDs))
	for _, id := range rootIDs {
		parents[id] = true
	}
	var replies []*models.Comment
	for _, comment := range m.state.comments {
		if comment.IsReply() && parents[comment.ParentID] {
			replies = append(replies, cloneComment(comment))
		}
	}
	sort.Slice(replies, func(i, j int) bool { return replies[i].ID < replies[j].ID })
	return replies, nil
}

func (m *CommentRepository) ToggleVote(id, actorID string) (engage.Result, error) {
	m.state.mutex.Lock()
	defer m.state.mutex.Unlock()

	comment, exists := m.state.comments[id]
	if !exists {
		return engage.Result{}, repositories.ErrNotFound
	}
	var result engage.Result
	comment.Voters, result = engage.Toggle(comment.Voters, actorID)
	comment.VotesCount = result.Count
	return result, nil
}

func (m *CommentRepository) CountByPost(postID string) (int, error) {
	m.state.mutex.RLock()
	defer m.state.mutex.RUnlock()

	count := 0
	for _, comment := range m.state.comments {
		if comment.PostID == postID {
			count++
		}
	}
	return count, nil
}

func (m *CommentRepository) ReconcileVotes() (int, error) {
	m.state.mutex.Lock()
	defer m.state.mutex.Unlock()

	fixed := 0
	for _, comment := range m.state.comments {
		if engage.Drifted(comment.Voters, comment.VotesCount) {
			comment.VotesCount = len(comment.Voters)
			fixed++
		}
	}
	return fixed, nil
}

type UserDirectory struct {
	mutex    sync.RWMutex
	profiles map[string]*models.Profile
	handles  map[string]string
}

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{
		profiles: make(map[string]*models.Profile),
		handles:  make(map[string]string),
	}
}

func (m *UserDirectory) ResolveByID(id string) (*models.Profile, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	profile, exists := m.profiles[id]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	p := *profile
	return &p, nil
}

func (m *UserDirectory) ResolveByHandle(handle string) (*models.Profile, error) {
	m.mutex.RLock()
	id, exists := m.handles[handle]
	m.mutex.RUnlock()
	if !exists {
		return nil, repositories.ErrNotFound
	}
	return m.ResolveByID(id)
}

func (m *UserDirectory) ListIDs() ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	ids := make([]string, 0, len(m.profiles))
	for id := range m.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *UserDirectory) Put(profile *models.Profile) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	p := *profile
	m.profiles[p.ID] = &p
	m.handles[p.Handle] = p.ID
	return nil
}

// NotificationSink records creation requests for assertions. FailWith
// makes every Create fail, for exercising the fire-and-forget contract.
type NotificationSink struct {
	mutex    sync.Mutex
	Records  []*models.Notification
	FailWith error
}

func NewNotificationSink() *NotificationSink {
	return &NotificationSink{}
}

func (m *NotificationSink) Create(n *models.Notification) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.FailWith != nil {
		return m.FailWith
	}
	c := *n
	m.Records = append(m.Records, &c)
	return nil
}

// ForRecipient returns recorded notifications addressed to recipient.
func (m *NotificationSink) ForRecipient(recipient string) []*models.Notification {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var out []*models.Notification
	for _, n := range m.Records {
		if n.Recipient == recipient {
			out = append(out, n)
		}
	}
	return out
}

func clonePost(post *models.Post) *models.Post {
	c := *post
	c.Likers = append([]string(nil), post.Likers...)
	c.Media = append([]models.MediaItem(nil), post.Media...)
	return &c
}

func cloneComment(comment *models.Comment) *models.Comment {
	c := *comment
	c.Voters = append([]string(nil), comment.Voters...)
	return &c
}
