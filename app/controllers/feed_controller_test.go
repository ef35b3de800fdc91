package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ripple/app/events"
	"ripple/app/middleware"
	"ripple/app/models"
	"ripple/app/notify"
	"ripple/app/repositories/mock"
	"ripple/app/services"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	users := mock.NewUserDirectory()
	for _, p := range []*models.Profile{
		{ID: "u-alice", DisplayName: "Alice", Handle: "alice"},
		{ID: "u-bob", DisplayName: "Bob", Handle: "bob"},
	} {
		require.NoError(t, users.Put(p))
	}

	posts, comments := mock.NewFeedStore()
	svc := services.NewFeedService(
		posts,
		comments,
		users,
		events.NewBus(8, zap.NewNop()),
		notify.NewDispatcher(mock.NewNotificationSink(), users, zap.NewNop()),
		services.DefaultLimits(),
		zap.NewNop(),
	)

	fc := NewFeedController(svc)
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/feed", fc.List).Methods("GET")
	api.HandleFunc("/feed", fc.Create).Methods("POST")
	api.HandleFunc("/feed/{id}", fc.Delete).Methods("DELETE")
	api.HandleFunc("/feed/{id}/like", fc.ToggleLike).Methods("POST")
	api.HandleFunc("/feed/{id}/comments", fc.AddComment).Methods("POST")
	api.HandleFunc("/comments/{id}/vote", fc.ToggleCommentVote).Methods("POST")
	api.HandleFunc("/profiles/{handle}/feed", fc.ProfileFeed).Methods("GET")

	return middleware.WithActor(router)
}

func doJSON(t *testing.T, handler http.Handler, method, path, actor string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if actor != "" {
		req.Header.Set(middleware.ActorHeader, actor)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func createTestPost(t *testing.T, handler http.Handler, actor, text string) string {
	t.Helper()
	w := doJSON(t, handler, "POST", "/api/feed", actor, map[string]string{"text": text})
	require.Equal(t, http.StatusCreated, w.Code)
	return decodeBody(t, w)["id"].(string)
}

func TestMutationsRequireActor(t *testing.T) {
	handler := newTestHandler(t)

	paths := []struct {
		method string
		path   string
	}{
		{"POST", "/api/feed"},
		{"DELETE", "/api/feed/some-id"},
		{"POST", "/api/feed/some-id/like"},
		{"POST", "/api/feed/some-id/comments"},
		{"POST", "/api/comments/some-id/vote"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			w := doJSON(t, handler, p.method, p.path, "", map[string]string{})
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.NotEmpty(t, decodeBody(t, w)["error"])
		})
	}
}

func TestCreatePostEndpoint(t *testing.T) {
	handler := newTestHandler(t)

	t.Run("created", func(t *testing.T) {
		w := doJSON(t, handler, "POST", "/api/feed", "u-alice", map[string]string{"text": "hello"})
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		body := decodeBody(t, w)
		assert.Equal(t, "hello", body["text"])
		author := body["author"].(map[string]interface{})
		assert.Equal(t, "alice", author["handle"])
	})

	t.Run("invalid JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/feed", bytes.NewReader([]byte("{broken")))
		req.Header.Set(middleware.ActorHeader, "u-alice")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty post rejected", func(t *testing.T) {
		w := doJSON(t, handler, "POST", "/api/feed", "u-alice", map[string]string{"text": "   "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListFeedEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	createTestPost(t, handler, "u-alice", "first")
	createTestPost(t, handler, "u-alice", "second")

	w := doJSON(t, handler, "GET", "/api/feed", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	posts := decodeBody(t, w)["posts"].([]interface{})
	require.Len(t, posts, 2)
	assert.Equal(t, "second", posts[0].(map[string]interface{})["text"])

	w = doJSON(t, handler, "GET", "/api/feed?limit=junk", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, handler, "GET", "/api/feed?before=junk", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToggleLikeEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	postID := createTestPost(t, handler, "u-alice", "hello")

	w := doJSON(t, handler, "POST", "/api/feed/"+postID+"/like", "u-bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["liked"])
	assert.Equal(t, float64(1), body["likesCount"])

	w = doJSON(t, handler, "POST", "/api/feed/missing/like", "u-bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddCommentEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	postID := createTestPost(t, handler, "u-alice", "hello")

	w := doJSON(t, handler, "POST", "/api/feed/"+postID+"/comments", "u-bob",
		map[string]string{"text": "nice"})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	comment := body["comment"].(map[string]interface{})
	assert.Equal(t, "nice", comment["text"])
	post := body["post"].(map[string]interface{})
	assert.Equal(t, float64(1), post["commentsCount"])

	rootID := comment["id"].(string)
	w = doJSON(t, handler, "POST", "/api/feed/"+postID+"/comments", "u-alice",
		map[string]string{"text": "thanks", "parentId": rootID})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, handler, "POST", "/api/feed/"+postID+"/comments", "u-bob",
		map[string]string{"text": "too deep", "parentId": decodeBody(t, w)["comment"].(map[string]interface{})["id"].(string)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToggleCommentVoteEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	postID := createTestPost(t, handler, "u-alice", "hello")

	w := doJSON(t, handler, "POST", "/api/feed/"+postID+"/comments", "u-bob",
		map[string]string{"text": "nice"})
	require.Equal(t, http.StatusCreated, w.Code)
	commentID := decodeBody(t, w)["comment"].(map[string]interface{})["id"].(string)

	w = doJSON(t, handler, "POST", "/api/comments/"+commentID+"/vote", "u-alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["active"])
	assert.Equal(t, float64(1), body["count"])
}

func TestDeletePostEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	postID := createTestPost(t, handler, "u-alice", "hello")

	w := doJSON(t, handler, "DELETE", "/api/feed/"+postID, "u-bob", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, handler, "DELETE", "/api/feed/"+postID, "u-alice", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, handler, "DELETE", "/api/feed/"+postID, "u-alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProfileFeedEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	createTestPost(t, handler, "u-alice", "mine")
	createTestPost(t, handler, "u-bob", "theirs")

	w := doJSON(t, handler, "GET", "/api/profiles/alice/feed", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	posts := decodeBody(t, w)["posts"].([]interface{})
	require.Len(t, posts, 1)
	assert.Equal(t, "mine", posts[0].(map[string]interface{})["text"])

	w = doJSON(t, handler, "GET", "/api/profiles/nobody/feed", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
