package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SectionType describes how a content section is rendered.
type SectionType string

const (
	SectionText  SectionType = "text"
	SectionImage SectionType = "image"
	SectionList  SectionType = "list"
)

// ContentSection is an admin-editable unit of page content.
type ContentSection struct {
	ID        string          `json:"id"`
	Key       string          `json:"key"`
	Title     string          `json:"title"`
	Type      SectionType     `json:"type"`
	Body      json.RawMessage `json:"body"`
	ImageURL  string          `json:"image_url,omitempty"`
	UpdatedBy *uuid.UUID      `json:"updated_by,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Post is a blog-style entry in a category (news, events, sermons...).
type Post struct {
	ID        uuid.UUID  `json:"id"`
	Category  string     `json:"category"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ImageURL  string     `json:"image_url,omitempty"`
	Published bool       `json:"published"`
	AuthorID  uuid.UUID  `json:"author_id"`
	PublishAt *time.Time `json:"publish_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
