// Package permissions decides which content sections and post categories an editor may change.
package permissions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shul-site/backend/internal/models"
)

var (
	// ErrNotSuperAdmin is returned when a non super-admin tries to manage grants.
	ErrNotSuperAdmin = errors.New("only a super-admin can manage permissions")
	// ErrGrantNotFound is returned by a Store when no grant exists for the key.
	ErrGrantNotFound = errors.New("permission grant not found")
	// ErrInvalidSection is returned for an empty section id.
	ErrInvalidSection = errors.New("section id is required")
	// ErrUserNotFound is returned by a Store when a grant names an unknown user.
	ErrUserNotFound = errors.New("user not found")
)

// Store persists grants keyed by models.GrantID.
type Store interface {
	GetGrant(ctx context.Context, id string) (*models.PermissionGrant, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PermissionGrant, error)
	Upsert(ctx context.Context, g *models.PermissionGrant) error
	Delete(ctx context.Context, id string) error
}

// Principal is the authenticated editor a check is made for.
type Principal struct {
	UserID uuid.UUID
	Role   models.Role
}

// IsSuperAdmin reports whether the principal bypasses grant checks.
func (p Principal) IsSuperAdmin() bool { return p.Role == models.RoleSuperAdmin }

// Editable is what the admin UI needs to decide which edit controls to show.
type Editable struct {
	All      bool     `json:"all"`
	Sections []string `json:"sections"`
}

// Service is the permission gate. Lookups fail closed: store errors are logged
// and answered as "no permission".
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a permission gate over store.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// lookup returns the editable section set, keeping "lookup failed" distinct
// from "no grants" for callers inside the package.
func (s *Service) lookup(ctx context.Context, userID uuid.UUID) (map[string]struct{}, error) {
	grants, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	set := make(map[string]struct{}, len(grants))
	for _, g := range grants {
		if g.CanEdit {
			set[g.ContentSectionID] = struct{}{}
		}
	}
	return set, nil
}

// GetUserPermissions returns the sorted section ids userID may edit. Empty on lookup failure.
func (s *Service) GetUserPermissions(ctx context.Context, userID uuid.UUID) []string {
	set, err := s.lookup(ctx, userID)
	if err != nil {
		s.logger.Warn("permission lookup failed; denying", zap.String("user_id", userID.String()), zap.Error(err))
		return []string{}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasContentPermission reports whether p may edit sectionID. Super-admins always may.
func (s *Service) HasContentPermission(ctx context.Context, p Principal, sectionID string) bool {
	if p.IsSuperAdmin() {
		return true
	}
	sectionID = models.NormalizeSectionID(sectionID)
	if p.Role != models.RoleAdmin || sectionID == "" {
		return false
	}
	g, err := s.store.GetGrant(ctx, models.GrantID(p.UserID, sectionID))
	if err != nil {
		if !errors.Is(err, ErrGrantNotFound) {
			s.logger.Warn("permission check failed; denying",
				zap.String("user_id", p.UserID.String()), zap.String("section_id", sectionID), zap.Error(err))
		}
		return false
	}
	return g != nil && g.CanEdit
}

// HasPostPermission reports whether p may edit posts in category.
func (s *Service) HasPostPermission(ctx context.Context, p Principal, category string) bool {
	category = strings.TrimSpace(category)
	if category == "" {
		return p.IsSuperAdmin()
	}
	return s.HasContentPermission(ctx, p, models.PostSectionID(category))
}

// Editable lists what p may edit.
func (s *Service) Editable(ctx context.Context, p Principal) Editable {
	if p.IsSuperAdmin() {
		return Editable{All: true, Sections: []string{}}
	}
	if p.Role != models.RoleAdmin {
		return Editable{Sections: []string{}}
	}
	return Editable{Sections: s.GetUserPermissions(ctx, p.UserID)}
}

// Grant lets userID edit sectionID. Granting twice refreshes the audit fields.
func (s *Service) Grant(ctx context.Context, actor Principal, userID uuid.UUID, sectionID string) (*models.PermissionGrant, error) {
	if !actor.IsSuperAdmin() {
		return nil, ErrNotSuperAdmin
	}
	sectionID = models.NormalizeSectionID(sectionID)
	if sectionID == "" {
		return nil, ErrInvalidSection
	}
	g := &models.PermissionGrant{
		ID:               models.GrantID(userID, sectionID),
		UserID:           userID,
		ContentSectionID: sectionID,
		CanEdit:          true,
		GrantedBy:        actor.UserID,
		GrantedAt:        s.now().UTC(),
	}
	if err := s.store.Upsert(ctx, g); err != nil {
		return nil, fmt.Errorf("upsert grant: %w", err)
	}
	s.logger.Info("permission granted",
		zap.String("user_id", userID.String()),
		zap.String("section_id", sectionID),
		zap.String("granted_by", actor.UserID.String()),
	)
	return g, nil
}

// Revoke removes the grant if it exists.
func (s *Service) Revoke(ctx context.Context, actor Principal, userID uuid.UUID, sectionID string) error {
	if !actor.IsSuperAdmin() {
		return ErrNotSuperAdmin
	}
	sectionID = models.NormalizeSectionID(sectionID)
	if sectionID == "" {
		return ErrInvalidSection
	}
	if err := s.store.Delete(ctx, models.GrantID(userID, sectionID)); err != nil && !errors.Is(err, ErrGrantNotFound) {
		return fmt.Errorf("delete grant: %w", err)
	}
	s.logger.Info("permission revoked",
		zap.String("user_id", userID.String()),
		zap.String("section_id", sectionID),
		zap.String("revoked_by", actor.UserID.String()),
	)
	return nil
}
