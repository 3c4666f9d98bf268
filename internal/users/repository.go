package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-fsm/meridian/internal/permission"
	"github.com/meridian-fsm/meridian/internal/platform/db"
	"github.com/meridian-fsm/meridian/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for users and their role
// assignments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches a user by id.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, name, company_id, is_active, created_at, updated_at
		 FROM users WHERE id = $1`, id)
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.CompanyID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, httpx.ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// PrimaryRoleName returns the user's primary role: the default assignment
// when present, otherwise the first role by name. Synthetic direct-grant
// roles never count as primary.
func (r *Repository) PrimaryRoleName(ctx context.Context, userID int64) (string, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT r.name
		 FROM user_roles ur
		 JOIN roles r ON r.id = ur.role_id
		 WHERE ur.user_id = $1 AND r.name NOT LIKE 'user:%'
		 ORDER BY ur.is_default DESC, r.name
		 LIMIT 1`, userID)
	var name string
	if err := row.Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", httpx.ErrNotFound
		}
		return "", err
	}
	return name, nil
}

// AssignRole links a user to a role. Assigning an already-held role is a
// no-op.
func (r *Repository) AssignRole(ctx context.Context, userID, roleID int64, isDefault bool) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id, is_default)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID, isDefault)
	return err
}

// RemoveRole detaches a role from a user.
func (r *Repository) RemoveRole(ctx context.Context, userID, roleID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// GrantDirect grants a single permission straight to a user. Direct grants
// are stored as a synthetic single-user role so effective-set resolution
// stays a pure union over roles.
func (r *Repository) GrantDirect(ctx context.Context, userID int64, action permission.Action) error {
	user, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("user:%d:direct", userID)
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var roleID int64
		err := tx.QueryRow(ctx,
			`INSERT INTO roles (name, display_name, description, is_system, company_id)
			 VALUES ($1, $2, 'Direct grants', FALSE, $3)
			 ON CONFLICT (name) DO UPDATE SET updated_at = NOW()
			 RETURNING id`,
			name, "Direct grants for user "+user.Name, user.CompanyID).Scan(&roleID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO role_permissions (role_id, action) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, roleID, string(action)); err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_id, is_default)
			 VALUES ($1, $2, FALSE)
			 ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID)
		return err
	})
}
