package models

import (
	"errors"
	"time"
)

// Validate checks if the comment meets all validation requirements
func (c *Comment) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.ParentID == c.ID && c.ParentID != "" {
		return errors.New("comment cannot be its own parent")
	}

	if c.CreatedAt.IsZero() {
		return errors.New("created_at cannot be zero")
	}

	return nil
}

// BeforeCreate sets up any necessary fields before creation
func (c *Comment) BeforeCreate() {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.VotesCount = len(c.Voters)
}

// IsReply reports whether the comment is attached to a root comment
// rather than directly to its post.
func (c *Comment) IsReply() bool {
	return c.ParentID != ""
}

// VotedBy reports whether the given actor is in the comment's voter set.
func (c *Comment) VotedBy(actorID string) bool {
	if actorID == "" {
		return false
	}
	for _, id := range c.Voters {
		if id == actorID {
			return true
		}
	}
	return false
}
