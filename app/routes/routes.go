package routes

import (
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"ripple/app/controllers"
	"ripple/app/middleware"
	"ripple/app/stream"
)

// SetupRoutes defines the application's routes and returns a router.
func SetupRoutes(feed *controllers.FeedController, gateway *stream.Gateway, log *zap.Logger) *mux.Router {
	router := mux.NewRouter()

	// Apply global middleware
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recoverer(log))
	router.Use(middleware.WithActor)
	router.Use(middleware.ContentTypeJSON)

	api := router.PathPrefix("/api").Subrouter()

	// Feed endpoints
	api.HandleFunc("/feed", feed.List).Methods("GET")
	api.HandleFunc("/feed", feed.Create).Methods("POST")
	api.Handle("/feed/stream", gateway).Methods("GET")
	api.HandleFunc("/feed/{id}", feed.Delete).Methods("DELETE")
	api.HandleFunc("/feed/{id}/like", feed.ToggleLike).Methods("POST")
	api.HandleFunc("/feed/{id}/comments", feed.AddComment).Methods("POST")

	// Comment endpoints
	api.HandleFunc("/comments/{id}/vote", feed.ToggleCommentVote).Methods("POST")

	// Public profile feed
	api.HandleFunc("/profiles/{handle}/feed", feed.ProfileFeed).Methods("GET")

	return router
}
