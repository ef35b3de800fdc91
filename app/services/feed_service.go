package services

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"ripple/app/engage"
	"ripple/app/events"
	"ripple/app/feed"
	"ripple/app/models"
	"ripple/app/notify"
	"ripple/app/repositories"
)

// Limits bound page sizes, preview windows, and media ingestion.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
	PreviewRoots    int
	FullThreadRoots int
	MediaByteLimit  int64
	MaxPostText     int
	MaxCommentText  int
}

// DefaultLimits returns the standard limits.
func DefaultLimits() Limits {
	return Limits{
		DefaultPageSize: 20,
		MaxPageSize:     50,
		PreviewRoots:    3,
		FullThreadRoots: 50,
		MediaByteLimit:  8 << 20,
		MaxPostText:     2000,
		MaxCommentText:  280,
	}
}

// MediaUpload is an inbound media attachment: a declared kind and an
// opaque base64 payload. The engine decodes it only to enforce the byte
// ceiling and compute a digest.
type MediaUpload struct {
	Kind    string `json:"kind"`
	Mime    string `json:"mime,omitempty"`
	Payload string `json:"payload"`
}

// FeedService orchestrates posts, comments, and engagement. Side
// effects (event publish, notification dispatch) are best-effort and
// never fail the primary write.
type FeedService struct {
	posts    repositories.PostRepository
	comments repositories.CommentRepository
	users    repositories.UserDirectory
	trees    *feed.Builder
	bus      *events.Bus
	notifier *notify.Dispatcher
	limits   Limits
	log      *zap.Logger
}

// NewFeedService creates a FeedService.
func NewFeedService(
	posts repositories.PostRepository,
	comments repositories.CommentRepository,
	users repositories.UserDirectory,
	bus *events.Bus,
	notifier *notify.Dispatcher,
	limits Limits,
	log *zap.Logger,
) *FeedService {
	if log == nil {
		log = zap.NewNop()
	}
	return &FeedService{
		posts:    posts,
		comments: comments,
		users:    users,
		trees:    feed.NewBuilder(comments),
		bus:      bus,
		notifier: notifier,
		limits:   limits,
		log:      log,
	}
}

// CreatePost validates and persists a new post, publishes post.created,
// and fans a notification out to every other known profile. The
// returned view has an empty comment list.
func (s *FeedService) CreatePost(authorID, text string, media []MediaUpload) (*PostView, error) {
	if authorID == "" {
		return nil, invalidf("author", "author is required")
	}
	text = strings.TrimSpace(text)
	if text == "" && len(media) == 0 {
		return nil, invalidf("post", "text or media is required")
	}
	if len(text) > s.limits.MaxPostText {
		return nil, invalidf("text", "exceeds %d characters", s.limits.MaxPostText)
	}

	items, err := s.ingestMedia(media)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		ID:       uuid.Must(uuid.NewV7()).String(),
		AuthorID: authorID,
		Text:     text,
		Media:    items,
	}
	post.BeforeCreate()
	if err := post.Validate(); err != nil {
		return nil, invalidf("post", "%v", err)
	}
	if err := s.posts.Create(post); err != nil {
		return nil, err
	}

	s.publish(events.PostCreated, post.ID, authorID)
	if recipients, err := s.users.ListIDs(); err != nil {
		s.log.Warn("recipient lookup failed", zap.Error(err))
	} else {
		s.notifier.PostCreated(post, recipients)
	}

	return newSerializer(s.users, authorID).post(post, nil), nil
}

// ListPosts returns a reverse-chronological page of posts with bounded
// comment previews, serialized for the given viewer (empty viewerID
// means anonymous).
func (s *FeedService) ListPosts(viewerID string, limit int, beforeID string) ([]*PostView, error) {
	limit, err := s.clampLimit(limit, beforeID)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.ListBefore(limit, beforeID)
	if err != nil {
		return nil, err
	}
	return s.renderPage(viewerID, posts)
}

// ListProfilePosts is ListPosts scoped to the author resolved from a
// public handle. Viewer-relative fields behave exactly as in ListPosts.
func (s *FeedService) ListProfilePosts(handle, viewerID string, limit int, beforeID string) ([]*PostView, error) {
	profile, err := s.users.ResolveByHandle(handle)
	if err != nil {
		return nil, err
	}
	limit, err = s.clampLimit(limit, beforeID)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.ListByAuthorBefore(profile.ID, limit, beforeID)
	if err != nil {
		return nil, err
	}
	return s.renderPage(viewerID, posts)
}

// ToggleLike flips the actor's like on a post and returns the refreshed
// post with its full comment thread, so the caller observes a
// consistent snapshot rather than just the toggle result.
func (s *FeedService) ToggleLike(postID, actorID string) (*PostView, error) {
	if actorID == "" {
		return nil, invalidf("actor", "actor is required")
	}
	result, err := s.posts.ToggleLike(postID, actorID)
	if err != nil {
		return nil, err
	}

	post, err := s.posts.GetByID(postID)
	if err != nil {
		return nil, err
	}

	s.publish(events.PostUpdated, postID, actorID)
	if result.Active {
		s.notifier.PostLiked(post, actorID)
	}

	threads, err := s.trees.Full(postID, s.limits.FullThreadRoots)
	if err != nil {
		return nil, err
	}
	return newSerializer(s.users, actorID).post(post, threads), nil
}

// AddComment appends a root comment or a reply. Reply parents must be
// root comments on the same post; reply-to-reply is rejected. Returns
// the new comment and the refreshed post with the affected root pinned
// into the preview.
func (s *FeedService) AddComment(postID, authorID, text, parentID string) (*CommentView, *PostView, error) {
	if authorID == "" {
		return nil, nil, invalidf("author", "author is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, invalidf("text", "text is required")
	}
	if len(text) > s.limits.MaxCommentText {
		return nil, nil, invalidf("text", "exceeds %d characters", s.limits.MaxCommentText)
	}

	post, err := s.posts.GetByID(postID)
	if err != nil {
		return nil, nil, err
	}

	if parentID != "" {
		parent, err := s.comments.GetByID(parentID)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, invalidf("parent", "parent comment not found")
		}
		if err != nil {
			return nil, nil, err
		}
		if parent.PostID != postID {
			return nil, nil, invalidf("parent", "parent belongs to a different post")
		}
		if parent.IsReply() {
			return nil, nil, invalidf("parent", "replies cannot be replied to")
		}
	}

	comment := &models.Comment{
		ID:       uuid.Must(uuid.NewV7()).String(),
		PostID:   postID,
		AuthorID: authorID,
		Text:     text,
		ParentID: parentID,
	}
	comment.BeforeCreate()
	if err := comment.Validate(); err != nil {
		return nil, nil, invalidf("comment", "%v", err)
	}
	// Create also bumps the post's comment counter; the store does both
	// writes atomically.
	if err := s.comments.Create(comment); err != nil {
		return nil, nil, err
	}

	s.notifier.CommentAdded(post, comment, authorID)
	s.publish(events.PostUpdated, postID, authorID)

	// Pin the affected root so the preview always shows the thread the
	// caller just touched, even when it falls outside the window.
	rootID := comment.ID
	if comment.IsReply() {
		rootID = comment.ParentID
	}
	refreshed, err := s.posts.GetByID(postID)
	if err != nil {
		return nil, nil, err
	}
	previews, err := s.trees.Preview([]string{postID}, s.limits.PreviewRoots,
		map[string][]string{postID: {rootID}})
	if err != nil {
		return nil, nil, err
	}

	viewer := newSerializer(s.users, authorID)
	return viewer.comment(comment), viewer.post(refreshed, previews[postID]), nil
}

// ToggleCommentVote flips the actor's vote on a comment. Comment votes
// are independent of post engagement, so no post.updated is published.
func (s *FeedService) ToggleCommentVote(commentID, actorID string) (engage.Result, error) {
	if actorID == "" {
		return engage.Result{}, invalidf("actor", "actor is required")
	}
	comment, err := s.comments.GetByID(commentID)
	if err != nil {
		return engage.Result{}, err
	}
	result, err := s.comments.ToggleVote(commentID, actorID)
	if err != nil {
		return engage.Result{}, err
	}
	if result.Active {
		s.notifier.CommentVoted(comment, actorID)
	}
	return result, nil
}

// DeletePost removes a post and cascades to all of its comments. Only
// the author may delete; deletion is immediate and irreversible.
func (s *FeedService) DeletePost(postID, requesterID string) error {
	post, err := s.posts.GetByID(postID)
	if err != nil {
		return err
	}
	if requesterID == "" || post.AuthorID != requesterID {
		return ErrForbidden
	}
	// Delete cascades to the post's comments in the same store operation.
	if err := s.posts.Delete(postID); err != nil {
		return err
	}
	s.publish(events.PostDeleted, postID, requesterID)
	return nil
}

// ReconcileReport summarizes a counter repair pass.
type ReconcileReport struct {
	LikeCounters    int
	VoteCounters    int
	CommentCounters int
}

// Reconcile repairs every cached counter to the cardinality of the set
// it projects. This is the safety net; incremental maintenance is the
// primary mechanism.
func (s *FeedService) Reconcile() (ReconcileReport, error) {
	var report ReconcileReport
	var err error

	if report.LikeCounters, err = s.posts.ReconcileCounters(); err != nil {
		return report, err
	}
	if report.VoteCounters, err = s.comments.ReconcileVotes(); err != nil {
		return report, err
	}

	cursor := ""
	for {
		page, err := s.posts.ListBefore(s.limits.MaxPageSize, cursor)
		if err != nil {
			return report, err
		}
		if len(page) == 0 {
			return report, nil
		}
		for _, post := range page {
			count, err := s.comments.CountByPost(post.ID)
			if err != nil {
				return report, err
			}
			if count != post.CommentsCount {
				if err := s.posts.SetCommentsCount(post.ID, count); err != nil {
					return report, err
				}
				report.CommentCounters++
			}
		}
		cursor = page[len(page)-1].ID
	}
}

func (s *FeedService) clampLimit(limit int, beforeID string) (int, error) {
	if beforeID != "" {
		if _, err := uuid.Parse(beforeID); err != nil {
			return 0, invalidf("before", "malformed cursor")
		}
	}
	if limit <= 0 {
		return s.limits.DefaultPageSize, nil
	}
	if limit > s.limits.MaxPageSize {
		return s.limits.MaxPageSize, nil
	}
	return limit, nil
}

func (s *FeedService) renderPage(viewerID string, posts []*models.Post) ([]*PostView, error) {
	postIDs := make([]string, len(posts))
	for i, post := range posts {
		postIDs[i] = post.ID
	}
	previews, err := s.trees.Preview(postIDs, s.limits.PreviewRoots, nil)
	if err != nil {
		return nil, err
	}

	viewer := newSerializer(s.users, viewerID)
	views := make([]*PostView, len(posts))
	for i, post := range posts {
		views[i] = viewer.post(post, previews[post.ID])
	}
	return views, nil
}

func (s *FeedService) ingestMedia(media []MediaUpload) ([]models.MediaItem, error) {
	if len(media) == 0 {
		return nil, nil
	}
	items := make([]models.MediaItem, 0, len(media))
	for i, upload := range media {
		kind := models.MediaKind(upload.Kind)
		if kind != models.MediaImage && kind != models.MediaVideo {
			return nil, invalidf("media", "item %d has unsupported kind %q", i, upload.Kind)
		}
		raw, err := base64.StdEncoding.DecodeString(upload.Payload)
		if err != nil {
			return nil, invalidf("media", "item %d is not valid base64", i)
		}
		if int64(len(raw)) > s.limits.MediaByteLimit {
			return nil, invalidf("media", "item %d exceeds %d bytes", i, s.limits.MediaByteLimit)
		}
		if len(raw) == 0 {
			return nil, invalidf("media", "item %d is empty", i)
		}
		digest := blake2b.Sum256(raw)
		items = append(items, models.MediaItem{
			Kind:    kind,
			Mime:    upload.Mime,
			Digest:  hex.EncodeToString(digest[:]),
			Size:    int64(len(raw)),
			Payload: raw,
		})
	}
	return items, nil
}

func (s *FeedService) publish(t events.Type, postID, actorID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type:      t,
		PostID:    postID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
	})
}
