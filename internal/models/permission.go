package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PostSectionPrefix prefixes the synthetic section id of a post category.
const PostSectionPrefix = "posts-"

// PermissionGrant authorizes one user to edit one content section.
type PermissionGrant struct {
	ID               string    `json:"id"` // userId_sectionId
	UserID           uuid.UUID `json:"user_id"`
	ContentSectionID string    `json:"content_section_id"`
	CanEdit          bool      `json:"can_edit"`
	GrantedBy        uuid.UUID `json:"granted_by"`
	GrantedAt        time.Time `json:"granted_at"`
}

// GrantID returns the compound key of a (user, section) grant.
func GrantID(userID uuid.UUID, sectionID string) string {
	return userID.String() + "_" + sectionID
}

// NormalizeSectionID canonicalizes a section id. Section ids and post
// categories are lowercase slugs, so grants and checks compare this form.
func NormalizeSectionID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// PostSectionID maps a post category onto its content-section id.
func PostSectionID(category string) string {
	return PostSectionPrefix + NormalizeSectionID(category)
}
