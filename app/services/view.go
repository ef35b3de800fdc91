package services

import (
	"encoding/base64"
	"time"

	"ripple/app/feed"
	"ripple/app/models"
	"ripple/app/repositories"
)

// AuthorView is the display metadata attached to serialized content.
type AuthorView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Handle      string `json:"handle,omitempty"`
	Role        string `json:"role,omitempty"`
}

// MediaView is a serialized media item. The payload goes back out the
// way it came in, base64-encoded.
type MediaView struct {
	Kind    string `json:"kind"`
	Mime    string `json:"mime,omitempty"`
	Digest  string `json:"digest"`
	Size    int64  `json:"size"`
	Payload string `json:"payload"`
}

// CommentView is a serialized comment with viewer-relative flags.
// Replies is only populated on roots; replies themselves never nest.
type CommentView struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	Author     *AuthorView    `json:"author"`
	ParentID   string         `json:"parentId,omitempty"`
	VotesCount int            `json:"votesCount"`
	Voted      bool           `json:"voted"`
	CanDelete  bool           `json:"canDelete"`
	Replies    []*CommentView `json:"replies,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// PostView is a serialized post with viewer-relative flags. Anonymous
// viewers get Liked and CanDelete uniformly false.
type PostView struct {
	ID            string         `json:"id"`
	Author        *AuthorView    `json:"author"`
	Text          string         `json:"text,omitempty"`
	Media         []MediaView    `json:"media,omitempty"`
	LikesCount    int            `json:"likesCount"`
	Liked         bool           `json:"liked"`
	CommentsCount int            `json:"commentsCount"`
	CanDelete     bool           `json:"canDelete"`
	Comments      []*CommentView `json:"comments"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// serializer renders entities for one viewer, caching profile lookups
// for the duration of a request.
type serializer struct {
	users    repositories.UserDirectory
	viewerID string
	cache    map[string]*AuthorView
}

func newSerializer(users repositories.UserDirectory, viewerID string) *serializer {
	return &serializer{
		users:    users,
		viewerID: viewerID,
		cache:    make(map[string]*AuthorView),
	}
}

func (s *serializer) author(id string) *AuthorView {
	if view, ok := s.cache[id]; ok {
		return view
	}
	view := &AuthorView{ID: id}
	if profile, err := s.users.ResolveByID(id); err == nil {
		view.DisplayName = profile.DisplayName
		view.Handle = profile.Handle
		view.Role = profile.Role
	}
	s.cache[id] = view
	return view
}

func (s *serializer) post(post *models.Post, threads []*feed.Thread) *PostView {
	view := &PostView{
		ID:            post.ID,
		Author:        s.author(post.AuthorID),
		Text:          post.Text,
		LikesCount:    post.LikesCount,
		Liked:         post.LikedBy(s.viewerID),
		CommentsCount: post.CommentsCount,
		CanDelete:     s.viewerID != "" && s.viewerID == post.AuthorID,
		Comments:      s.threads(threads),
		CreatedAt:     post.CreatedAt,
		UpdatedAt:     post.UpdatedAt,
	}
	for _, item := range post.Media {
		view.Media = append(view.Media, MediaView{
			Kind:    string(item.Kind),
			Mime:    item.Mime,
			Digest:  item.Digest,
			Size:    item.Size,
			Payload: base64.StdEncoding.EncodeToString(item.Payload),
		})
	}
	return view
}

func (s *serializer) threads(threads []*feed.Thread) []*CommentView {
	views := make([]*CommentView, 0, len(threads))
	for _, thread := range threads {
		root := s.comment(thread.Root)
		for _, reply := range thread.Replies {
			root.Replies = append(root.Replies, s.comment(reply))
		}
		views = append(views, root)
	}
	return views
}

func (s *serializer) comment(comment *models.Comment) *CommentView {
	return &CommentView{
		ID:         comment.ID,
		Text:       comment.Text,
		Author:     s.author(comment.AuthorID),
		ParentID:   comment.ParentID,
		VotesCount: comment.VotesCount,
		Voted:      comment.VotedBy(s.viewerID),
		CanDelete:  s.viewerID != "" && s.viewerID == comment.AuthorID,
		CreatedAt:  comment.CreatedAt,
	}
}
