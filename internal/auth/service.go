package auth

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-fsm/meridian/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials. All failure modes
// collapse into ErrInvalidCredentials so the response does not reveal
// whether the account exists.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return account, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// ResolveIdentity turns a session's user reference into the request identity.
// The raw value is the user ID string stored at login.
func (s *Service) ResolveIdentity(ctx context.Context, raw string) (shared.Identity, error) {
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID == 0 {
		return shared.Identity{}, shared.ErrNotFound
	}
	account, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return shared.Identity{}, err
	}
	if !account.IsActive {
		return shared.Identity{}, shared.ErrNotFound
	}
	roleName, err := s.repo.PrimaryRoleName(ctx, account.ID)
	if err != nil {
		roleName = ""
	}
	return shared.Identity{
		UserID:    account.ID,
		CompanyID: account.CompanyID,
		UserName:  account.Name,
		RoleHint:  roleName,
	}, nil
}
