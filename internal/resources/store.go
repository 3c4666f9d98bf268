// Package resources exposes the narrow ownership view of operational records
// that contextual authorization reads. It deliberately knows nothing about
// the records beyond tenancy, creator and assignee.
package resources

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-fsm/meridian/internal/authz"
	"github.com/meridian-fsm/meridian/internal/platform/httpx"
)

// Store reads ownership descriptors from PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// resourceTables maps resource names onto the tables carrying their
// ownership columns. Resources not listed here cannot be target of an
// ownership check.
var resourceTables = map[string]struct {
	table       string
	ownerColumn string
	hasAssignee bool
}{
	"task":       {table: "tasks", ownerColumn: "created_by", hasAssignee: true},
	"attendance": {table: "attendance_records", ownerColumn: "user_id"},
	"order":      {table: "orders", ownerColumn: "created_by", hasAssignee: true},
	"quotation":  {table: "quotations", ownerColumn: "created_by"},
	"payment":    {table: "payments", ownerColumn: "recorded_by"},
	"delivery":   {table: "deliveries", ownerColumn: "created_by", hasAssignee: true},
}

// OwnershipDescriptor implements authz.DescriptorSource.
func (s *Store) OwnershipDescriptor(ctx context.Context, resource string, resourceID int64) (authz.OwnershipDescriptor, error) {
	spec, ok := resourceTables[resource]
	if !ok {
		return authz.OwnershipDescriptor{}, fmt.Errorf("resource %q has no ownership view: %w", resource, httpx.ErrValidation)
	}

	assigneeExpr := "NULL"
	if spec.hasAssignee {
		assigneeExpr = "assigned_to"
	}
	query := fmt.Sprintf(`SELECT company_id, %s, %s FROM %s WHERE id = $1`,
		spec.ownerColumn, assigneeExpr, spec.table)

	var d authz.OwnershipDescriptor
	err := s.pool.QueryRow(ctx, query, resourceID).Scan(&d.CompanyID, &d.OwnerID, &d.AssigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.OwnershipDescriptor{}, fmt.Errorf("%s %d: %w", resource, resourceID, httpx.ErrNotFound)
		}
		return authz.OwnershipDescriptor{}, err
	}
	return d, nil
}

var _ authz.DescriptorSource = (*Store)(nil)
