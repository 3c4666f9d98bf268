package roles

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/meridian-fsm/meridian/internal/permission"
	"github.com/meridian-fsm/meridian/internal/platform/httpx"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	Create(ctx context.Context, role Role) (Role, error)
	Get(ctx context.Context, id int64) (Role, error)
	List(ctx context.Context, companyID int64) ([]Role, error)
	ListForUser(ctx context.Context, userID, companyID int64) ([]Role, error)
	ReplacePermissions(ctx context.Context, roleID int64, perms []permission.Action) (Role, error)
	Delete(ctx context.Context, roleID int64) error
	HolderIDs(ctx context.Context, roleID int64) ([]int64, error)
}

// Invalidator drops cached effective permission sets after a role mutation.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID, companyID int64)
	Clear(ctx context.Context)
}

// CreateRoleInput carries validated input for role creation.
type CreateRoleInput struct {
	Name        string              `json:"name" validate:"required,min=2,max=64"`
	DisplayName string              `json:"display_name" validate:"required,max=128"`
	Description string              `json:"description" validate:"max=512"`
	CompanyID   *int64              `json:"company_id"`
	Permissions []permission.Action `json:"permissions" validate:"required,min=1"`
}

// Service handles role business logic.
type Service struct {
	repo        RepositoryPort
	invalidator Invalidator
	validate    *validator.Validate
	logger      *slog.Logger

	mu        sync.Mutex
	roleLocks map[int64]*sync.Mutex
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, invalidator Invalidator, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		invalidator: invalidator,
		validate:    validator.New(),
		logger:      logger,
		roleLocks:   make(map[int64]*sync.Mutex),
	}
}

// Create validates input and inserts a new role. Permissions outside the
// catalog are rejected before anything is stored.
func (s *Service) Create(ctx context.Context, in CreateRoleInput) (Role, error) {
	if err := s.validate.Struct(in); err != nil {
		return Role{}, fmt.Errorf("%v: %w", err, httpx.ErrValidation)
	}
	if err := validateActions(in.Permissions); err != nil {
		return Role{}, err
	}
	return s.repo.Create(ctx, Role{
		Name:        in.Name,
		DisplayName: in.DisplayName,
		Description: in.Description,
		CompanyID:   in.CompanyID,
		Permissions: permission.NewSet(in.Permissions...).List(),
	})
}

// Get fetches one role.
func (s *Service) Get(ctx context.Context, id int64) (Role, error) {
	return s.repo.Get(ctx, id)
}

// List returns roles visible to a company.
func (s *Service) List(ctx context.Context, companyID int64) ([]Role, error) {
	return s.repo.List(ctx, companyID)
}

// ListForUser returns the roles a user holds within a company.
func (s *Service) ListForUser(ctx context.Context, userID, companyID int64) ([]Role, error) {
	return s.repo.ListForUser(ctx, userID, companyID)
}

// UpdatePermissions replaces a role's permission set. Updates to the same
// role are serialized so two concurrent edits cannot interleave into a
// corrupted set; different roles do not contend.
func (s *Service) UpdatePermissions(ctx context.Context, roleID int64, perms []permission.Action) (Role, error) {
	if err := validateActions(perms); err != nil {
		return Role{}, err
	}

	lock := s.lockFor(roleID)
	lock.Lock()
	defer lock.Unlock()

	role, err := s.repo.ReplacePermissions(ctx, roleID, permission.NewSet(perms...).List())
	if err != nil {
		return Role{}, err
	}
	s.invalidateHolders(ctx, role)
	return role, nil
}

// Delete removes a custom role. System roles and roles still held are
// refused by the repository.
func (s *Service) Delete(ctx context.Context, roleID int64) error {
	return s.repo.Delete(ctx, roleID)
}

// invalidateHolders drops cached effective sets for every user holding the
// role. Tenant roles invalidate precisely; global roles (holders can live in
// any tenant) and index failures fall back to a full flush, which is always
// race-free.
func (s *Service) invalidateHolders(ctx context.Context, role Role) {
	if s.invalidator == nil {
		return
	}
	if role.CompanyID == nil {
		s.invalidator.Clear(ctx)
		return
	}
	holders, err := s.repo.HolderIDs(ctx, role.ID)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("role holder lookup failed, flushing permission cache", slog.Any("error", err))
		}
		s.invalidator.Clear(ctx)
		return
	}
	for _, userID := range holders {
		s.invalidator.InvalidateUser(ctx, userID, *role.CompanyID)
	}
}

func (s *Service) lockFor(roleID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.roleLocks[roleID]
	if !ok {
		lock = &sync.Mutex{}
		s.roleLocks[roleID] = lock
	}
	return lock
}

func validateActions(perms []permission.Action) error {
	for _, p := range perms {
		if !permission.IsValid(p) {
			return fmt.Errorf("unknown permission %q: %w", p, httpx.ErrValidation)
		}
	}
	return nil
}
