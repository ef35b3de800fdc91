package models

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrEmptyPost is returned when a post has neither text nor media.
var ErrEmptyPost = errors.New("post must have text or at least one media item")

// Validate checks if the post meets all validation requirements
func (p *Post) Validate() error {
	if err := validate.Struct(p); err != nil {
		return err
	}

	if p.Text == "" && len(p.Media) == 0 {
		return ErrEmptyPost
	}

	if p.CreatedAt.IsZero() {
		return errors.New("created_at cannot be zero")
	}

	return nil
}

// BeforeCreate sets up any necessary fields before creation
func (p *Post) BeforeCreate() {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	p.LikesCount = len(p.Likers)
}

// LikedBy reports whether the given actor is in the post's liker set.
func (p *Post) LikedBy(actorID string) bool {
	if actorID == "" {
		return false
	}
	for _, id := range p.Likers {
		if id == actorID {
			return true
		}
	}
	return false
}
