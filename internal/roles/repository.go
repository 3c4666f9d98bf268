package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-fsm/meridian/internal/permission"
	"github.com/meridian-fsm/meridian/internal/platform/db"
	"github.com/meridian-fsm/meridian/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for roles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a role together with its permission set.
func (r *Repository) Create(ctx context.Context, role Role) (Role, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO roles (name, display_name, description, is_system, company_id)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at, updated_at`,
			role.Name, role.DisplayName, role.Description, role.IsSystem, role.CompanyID)
		if err := row.Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return err
		}
		return insertPermissions(ctx, tx, role.ID, role.Permissions)
	})
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return Role{}, fmt.Errorf("role name %q already taken: %w", role.Name, httpx.ErrDuplicate)
		}
		return Role{}, err
	}
	return role, nil
}

// Get fetches a role with its permissions.
func (r *Repository) Get(ctx context.Context, id int64) (Role, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, display_name, description, is_system, company_id, created_at, updated_at
		 FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, httpx.ErrNotFound
		}
		return Role{}, err
	}
	perms, err := r.loadPermissions(ctx, id)
	if err != nil {
		return Role{}, err
	}
	role.Permissions = perms
	return role, nil
}

// List returns every role visible to the given company (global roles
// included), ordered by name.
func (r *Repository) List(ctx context.Context, companyID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, display_name, description, is_system, company_id, created_at, updated_at
		 FROM roles WHERE company_id IS NULL OR company_id = $1 ORDER BY name`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectWithPermissions(ctx, rows)
}

// ListForUser returns the roles assigned to a user, filtered to roles that
// are global or belong to the given company. Unknown users yield an empty
// slice, not an error.
func (r *Repository) ListForUser(ctx context.Context, userID, companyID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.name, r.display_name, r.description, r.is_system, r.company_id, r.created_at, r.updated_at
		 FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1 AND (r.company_id IS NULL OR r.company_id = $2)
		 ORDER BY r.name`, userID, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectWithPermissions(ctx, rows)
}

// ReplacePermissions swaps the role's permission set atomically and returns
// the updated role.
func (r *Repository) ReplacePermissions(ctx context.Context, roleID int64, perms []permission.Action) (Role, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE roles SET updated_at = NOW() WHERE id = $1`, roleID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return httpx.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		return insertPermissions(ctx, tx, roleID, perms)
	})
	if err != nil {
		return Role{}, err
	}
	return r.Get(ctx, roleID)
}

// Delete removes a non-system role that no user currently holds.
func (r *Repository) Delete(ctx context.Context, roleID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var isSystem bool
		var holders int64
		err := tx.QueryRow(ctx,
			`SELECT r.is_system, COUNT(ur.user_id)
			 FROM roles r LEFT JOIN user_roles ur ON ur.role_id = r.id
			 WHERE r.id = $1 GROUP BY r.is_system`, roleID).Scan(&isSystem, &holders)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return httpx.ErrNotFound
			}
			return err
		}
		if isSystem {
			return fmt.Errorf("system roles cannot be deleted: %w", httpx.ErrValidation)
		}
		if holders > 0 {
			return fmt.Errorf("role is still assigned to %d user(s): %w", holders, httpx.ErrValidation)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, roleID)
		return err
	})
}

// HolderIDs returns the ids of users currently assigned the role. Used for
// precise cache invalidation after a permission change.
func (r *Repository) HolderIDs(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM user_roles WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) collectWithPermissions(ctx context.Context, rows pgx.Rows) ([]Role, error) {
	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		perms, err := r.loadPermissions(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Permissions = perms
	}
	return out, nil
}

func (r *Repository) loadPermissions(ctx context.Context, roleID int64) ([]permission.Action, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT action FROM role_permissions WHERE role_id = $1 ORDER BY action`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []permission.Action
	for rows.Next() {
		var action string
		if err := rows.Scan(&action); err != nil {
			return nil, err
		}
		perms = append(perms, permission.Action(action))
	}
	return perms, rows.Err()
}

func insertPermissions(ctx context.Context, tx pgx.Tx, roleID int64, perms []permission.Action) error {
	for _, p := range perms {
		if _, err := tx.Exec(ctx,
			`INSERT INTO role_permissions (role_id, action) VALUES ($1, $2)`, roleID, string(p)); err != nil {
			return err
		}
	}
	return nil
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description,
		&role.IsSystem, &role.CompanyID, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}
