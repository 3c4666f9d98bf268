package users

import (
	"context"
	"fmt"

	"github.com/meridian-fsm/meridian/internal/permission"
	"github.com/meridian-fsm/meridian/internal/platform/httpx"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (User, error)
	PrimaryRoleName(ctx context.Context, userID int64) (string, error)
	AssignRole(ctx context.Context, userID, roleID int64, isDefault bool) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
	GrantDirect(ctx context.Context, userID int64, action permission.Action) error
}

// Invalidator drops a user's cached effective permission set.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID, companyID int64)
}

// Service handles user-role assignment logic.
type Service struct {
	repo        RepositoryPort
	invalidator Invalidator
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, invalidator Invalidator) *Service {
	return &Service{repo: repo, invalidator: invalidator}
}

// Get fetches a user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// PrimaryRoleName resolves the user's primary role name.
func (s *Service) PrimaryRoleName(ctx context.Context, userID int64) (string, error) {
	return s.repo.PrimaryRoleName(ctx, userID)
}

// AssignRole links a role to a user and drops their cached permissions.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64, isDefault bool) error {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.repo.AssignRole(ctx, userID, roleID, isDefault); err != nil {
		return err
	}
	s.invalidate(ctx, user)
	return nil
}

// RemoveRole detaches a role from a user and drops their cached permissions.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64) error {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.repo.RemoveRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.invalidate(ctx, user)
	return nil
}

// GrantDirect grants one catalog permission straight to a user via the
// synthetic direct-grant role.
func (s *Service) GrantDirect(ctx context.Context, userID int64, action permission.Action) error {
	if !permission.IsValid(action) {
		return fmt.Errorf("unknown permission %q: %w", action, httpx.ErrValidation)
	}
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.repo.GrantDirect(ctx, userID, action); err != nil {
		return err
	}
	s.invalidate(ctx, user)
	return nil
}

func (s *Service) invalidate(ctx context.Context, user User) {
	if s.invalidator != nil {
		s.invalidator.InvalidateUser(ctx, user.ID, user.CompanyID)
	}
}
