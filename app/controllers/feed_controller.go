package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"ripple/app/middleware"
	"ripple/app/services"
)

// FeedController handles HTTP requests for the social feed
type FeedController struct {
	feed *services.FeedService
}

// NewFeedController creates a new FeedController
func NewFeedController(feed *services.FeedService) *FeedController {
	return &FeedController{feed: feed}
}

type createPostRequest struct {
	Text  string                 `json:"text"`
	Media []services.MediaUpload `json:"media"`
}

type addCommentRequest struct {
	Text     string `json:"text"`
	ParentID string `json:"parentId"`
}

// List handles GET /api/feed
func (fc *FeedController) List(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ActorFrom(r.Context())
	limit, before, err := pageParams(r)
	if err != nil {
		fc.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	posts, err := fc.feed.ListPosts(viewer, limit, before)
	if err != nil {
		fc.sendFailure(w, err)
		return
	}
	fc.sendJSON(w, map[string]interface{}{"posts": posts})
}

// Create handles POST /api/feed
func (fc *FeedController) Create(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())
	if actor == "" {
		fc.sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fc.sendError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	post, err := fc.feed.CreatePost(actor, req.Text, req.Media)
	if err != nil {
		fc.sendFailure(w, err)
		return
	}
	fc.sendJSONStatus(w, http.StatusCreated, post)
}

// Delete handles DELETE /api/feed/{id}
func (fc *FeedController) Delete(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())
	if actor == "" {
		fc.sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	if err := fc.feed.DeletePost(mux.Vars(r)["id"], actor); err != nil {
		fc.sendFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleLike handles POST /api/feed/{id}/like
func (fc *FeedController) ToggleLike(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())
	if actor == "" {
		fc.sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	post, err := fc.feed.ToggleLike(mux.Vars(r)["id"], actor)
	if err != nil {
		fc.sendFailure(w, err)
		return
	}
	fc.sendJSON(w, post)
}

// AddComment handles POST /api/feed/{id}/comments
func (fc *FeedController) AddComment(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())
	if actor == "" {
		fc.sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fc.sendError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	comment, post, err := fc.feed.AddComment(mux.Vars(r)["id"], actor, req.Text, req.ParentID)
	if err != nil {
		fc.sendFailure(w, err)
		return
	}
	fc.sendJSONStatus(w, http.StatusCreated, map[string]interface{}{"comment": comment, "post": post})
}

// ToggleCommentVote handles POST /api/comments/{id}/vote
func (fc *FeedController) ToggleCommentVote(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())
	if actor == "" {
		fc.sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	result, err := fc.feed.ToggleCommentVote(mux.Vars(r)["id"], actor)
	if err != nil {
		fc.sendFailure(w, err)
		return
	}
	fc.sendJSON(w, result)
}

// ProfileFeed handles GET /api/profiles/{handle}/feed
func (fc *FeedController) ProfileFeed(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ActorFrom(r.Context())
	limit, before, err := pageParams(r)
	if err != nil {
		fc.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	posts, err := fc.feed.ListProfilePosts(mux.Vars(r)["handle"], viewer, limit, before)
	if err != nil {
		fc.sendFailure(w, err)
		return
	}
	fc.sendJSON(w, map[string]interface{}{"posts": posts})
}

func pageParams(r *http.Request) (int, string, error) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return 0, "", errors.New("invalid limit")
		}
		limit = parsed
	}
	return limit, r.URL.Query().Get("before"), nil
}

// Helper methods for consistent response handling

func (fc *FeedController) sendJSON(w http.ResponseWriter, data interface{}) {
	fc.sendJSONStatus(w, http.StatusOK, data)
}

func (fc *FeedController) sendJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (fc *FeedController) sendFailure(w http.ResponseWriter, err error) {
	switch {
	case services.IsValidation(err):
		fc.sendError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrForbidden):
		fc.sendError(w, "only the author may do that", http.StatusForbidden)
	case errors.Is(err, services.ErrNotFound):
		fc.sendError(w, "not found", http.StatusNotFound)
	default:
		fc.sendError(w, "internal error", http.StatusInternalServerError)
	}
}

func (fc *FeedController) sendError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
