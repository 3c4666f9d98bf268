package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-fsm/meridian/internal/authz"
	"github.com/meridian-fsm/meridian/internal/platform/httpx"
	"github.com/meridian-fsm/meridian/internal/shared"
)

// RepositoryPort defines persistence for audit entries.
type RepositoryPort interface {
	Insert(ctx context.Context, e Entry) error
	Query(ctx context.Context, f Filter, offset, limit int) ([]Entry, int, error)
}

// Dispatcher hands an entry to a background writer. Used when the caller's
// latency budget cannot pay for a synchronous insert.
type Dispatcher interface {
	Dispatch(ctx context.Context, e Entry) error
}

// Service coordinates audit writes and the compliance read path.
type Service struct {
	repo       RepositoryPort
	dispatcher Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates an audit service. dispatcher may be nil, in which case
// every write is a direct insert.
func NewService(repo RepositoryPort, dispatcher Dispatcher, logger *slog.Logger) *Service {
	return &Service{repo: repo, dispatcher: dispatcher, logger: logger, now: time.Now}
}

// Record appends an entry. It never returns an error and never panics: the
// audit trail is a compliance side-channel, and a store hiccup here must not
// roll back or block the operation being described. Failures degrade to an
// operational log line.
func (s *Service) Record(ctx context.Context, e Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	if e.Action == "" || e.Resource == "" {
		s.warn("audit entry missing action or resource", nil, e)
		return
	}

	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(ctx, e); err == nil {
			return
		} else {
			s.warn("audit dispatch failed, falling back to direct write", err, e)
		}
	}
	if err := s.repo.Insert(ctx, e); err != nil {
		s.warn("audit write failed", err, e)
	}
}

// Query returns a page of entries with pagination metadata. Page sizes are
// clamped to keep compliance review queries bounded.
func (s *Service) Query(ctx context.Context, f Filter, page, perPage int) ([]Entry, shared.Pagination, error) {
	if f.CompanyID == 0 {
		return nil, shared.Pagination{}, fmt.Errorf("company id required: %w", httpx.ErrValidation)
	}
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	if page <= 0 {
		page = 1
	}
	entries, total, err := s.repo.Query(ctx, f, (page-1)*perPage, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return entries, shared.NewPagination(page, perPage, total), nil
}

func (s *Service) warn(msg string, err error, e Entry) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(msg,
		slog.Any("error", err),
		slog.String("action", e.Action),
		slog.String("resource", e.Resource),
		slog.Int64("company_id", e.CompanyID))
}

// DecisionRecorder adapts the service to the authorizer's Recorder port:
// authorization decisions become ordinary audit entries.
type DecisionRecorder struct {
	Service *Service
}

// RecordDecision implements authz.Recorder.
func (r DecisionRecorder) RecordDecision(ctx context.Context, d authz.Decision) {
	details := map[string]any{"allowed": d.Allowed}
	if d.Reason != "" {
		details["reason"] = d.Reason
	}
	resource := d.Resource
	if resource == "" {
		resource = "authorization"
	}
	entry := Entry{
		CompanyID:  d.Actor.CompanyID,
		UserName:   d.Actor.UserName,
		UserRole:   d.Actor.RoleHint,
		Action:     string(d.Action),
		Resource:   resource,
		ResourceID: d.ResourceID,
		Details:    details,
	}
	if d.Actor.UserID != 0 {
		userID := d.Actor.UserID
		entry.UserID = &userID
	}
	r.Service.Record(ctx, entry)
}
