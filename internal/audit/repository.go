package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for audit entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one entry.
func (r *Repository) Insert(ctx context.Context, e Entry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("audit: marshal details: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_logs
		 (id, company_id, user_id, user_name, user_role, action, resource, resource_id, details, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.CompanyID, e.UserID, nullable(e.UserName), nullable(e.UserRole),
		e.Action, e.Resource, nullable(e.ResourceID), details,
		nullable(e.IPAddress), nullable(e.UserAgent), e.CreatedAt)
	return err
}

// Query returns a page of entries matching the filter, newest first, plus
// the total match count.
func (r *Repository) Query(ctx context.Context, f Filter, offset, limit int) ([]Entry, int, error) {
	where, args := buildWhere(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx,
		`SELECT id, company_id, user_id, user_name, user_role, action, resource, resource_id, details, ip_address, user_agent, created_at
		 FROM audit_logs `+where+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var userName, userRole, resourceID, ipAddress, userAgent *string
		var details []byte
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.UserID, &userName, &userRole,
			&e.Action, &e.Resource, &resourceID, &details, &ipAddress, &userAgent, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		e.UserName = deref(userName)
		e.UserRole = deref(userRole)
		e.ResourceID = deref(resourceID)
		e.IPAddress = deref(ipAddress)
		e.UserAgent = deref(userAgent)
		if len(details) > 0 {
			_ = json.Unmarshal(details, &e.Details)
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func buildWhere(f Filter) (string, []any) {
	clauses := []string{"company_id = $1"}
	args := []any{f.CompanyID}
	next := func() int { return len(args) + 1 }

	if f.UserID != nil {
		clauses = append(clauses, fmt.Sprintf("user_id = $%d", next()))
		args = append(args, *f.UserID)
	}
	if f.Action != "" {
		clauses = append(clauses, fmt.Sprintf("action = $%d", next()))
		args = append(args, f.Action)
	}
	if f.Resource != "" {
		clauses = append(clauses, fmt.Sprintf("resource = $%d", next()))
		args = append(args, f.Resource)
	}
	if f.ResourceID != "" {
		clauses = append(clauses, fmt.Sprintf("resource_id = $%d", next()))
		args = append(args, f.ResourceID)
	}
	if !f.From.IsZero() {
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", next()))
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", next()))
		args = append(args, f.To)
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
