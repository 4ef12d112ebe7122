package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for permission rules.
// The permissions table carries a unique constraint on
// (role, resource, action); the constraint, not the service's read-first
// check, is what makes concurrent duplicate creates impossible.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Lookup fetches the single rule governing the triple, if any.
func (r *Repository) Lookup(ctx context.Context, role Role, resource, action string) (Rule, error) {
	var rule Rule
	err := r.pool.QueryRow(ctx,
		`SELECT id, role, resource, action, allowed FROM permissions WHERE role = $1 AND resource = $2 AND action = $3`,
		string(role), resource, action,
	).Scan(&rule.ID, &rule.Role, &rule.Resource, &rule.Action, &rule.Allowed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rule{}, ErrPermissionNotFound
		}
		return Rule{}, fmt.Errorf("rbac: lookup rule: %w", err)
	}
	return rule, nil
}

// Create inserts a new rule and returns it with its assigned id.
func (r *Repository) Create(ctx context.Context, rule Rule) (Rule, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO permissions (role, resource, action, allowed) VALUES ($1, $2, $3, $4) RETURNING id`,
		string(rule.Role), rule.Resource, rule.Action, rule.Allowed,
	).Scan(&rule.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Rule{}, ErrRuleExists
		}
		return Rule{}, fmt.Errorf("rbac: create rule: %w", err)
	}
	return rule, nil
}

// UpdateAllowed mutates only the allowed flag of the addressed rule.
func (r *Repository) UpdateAllowed(ctx context.Context, id int64, allowed bool) (Rule, error) {
	var rule Rule
	err := r.pool.QueryRow(ctx,
		`UPDATE permissions SET allowed = $2 WHERE id = $1 RETURNING id, role, resource, action, allowed`,
		id, allowed,
	).Scan(&rule.ID, &rule.Role, &rule.Resource, &rule.Action, &rule.Allowed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rule{}, ErrRuleNotFound
		}
		return Rule{}, fmt.Errorf("rbac: update rule: %w", err)
	}
	return rule, nil
}

// Delete removes a rule by id. Returns ErrRuleNotFound if nothing was deleted.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("rbac: delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// ListAll returns every rule in insertion order.
func (r *Repository) ListAll(ctx context.Context) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, role, resource, action, allowed FROM permissions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list rules: %w", err)
	}
	defer rows.Close()
	var rules []Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(&rule.ID, &rule.Role, &rule.Resource, &rule.Action, &rule.Allowed); err != nil {
			return nil, fmt.Errorf("rbac: scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: list rules: %w", err)
	}
	return rules, nil
}

// ListForRole returns only the granting rules for a role. Explicit
// denials are excluded: "what can this role do" is a positive set.
func (r *Repository) ListForRole(ctx context.Context, role Role) ([]Rule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, role, resource, action, allowed FROM permissions WHERE role = $1 AND allowed ORDER BY id`,
		string(role),
	)
	if err != nil {
		return nil, fmt.Errorf("rbac: list role rules: %w", err)
	}
	defer rows.Close()
	var rules []Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(&rule.ID, &rule.Role, &rule.Resource, &rule.Action, &rule.Allowed); err != nil {
			return nil, fmt.Errorf("rbac: scan role rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: list role rules: %w", err)
	}
	return rules, nil
}
