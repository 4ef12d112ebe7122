package rbac

import (
	"context"
	"errors"
	"strings"
)

// RepositoryPort defines data access methods for permission rules.
type RepositoryPort interface {
	Lookup(ctx context.Context, role Role, resource, action string) (Rule, error)
	Create(ctx context.Context, rule Rule) (Rule, error)
	UpdateAllowed(ctx context.Context, id int64, allowed bool) (Rule, error)
	Delete(ctx context.Context, id int64) error
	ListAll(ctx context.Context) ([]Rule, error)
	ListForRole(ctx context.Context, role Role) ([]Rule, error)
}

// Service orchestrates administrative operations on the permission table.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Lookup returns the rule governing the triple, or ErrPermissionNotFound.
func (s *Service) Lookup(ctx context.Context, role Role, resource, action string) (Rule, error) {
	return s.repo.Lookup(ctx, role, resource, action)
}

// Create inserts a new rule. The read-first duplicate check keeps the
// common error path cheap; the storage unique constraint remains the
// actual guard against concurrent duplicates.
func (s *Service) Create(ctx context.Context, role Role, resource, action string, allowed bool) (Rule, error) {
	resource = strings.TrimSpace(resource)
	action = strings.TrimSpace(action)
	if !role.Valid() {
		return Rule{}, ErrInvalidRole
	}
	if resource == "" {
		return Rule{}, errors.New("rbac: resource required")
	}
	if action == "" {
		return Rule{}, errors.New("rbac: action required")
	}
	if _, err := s.repo.Lookup(ctx, role, resource, action); err == nil {
		return Rule{}, ErrRuleExists
	} else if !errors.Is(err, ErrPermissionNotFound) {
		return Rule{}, err
	}
	return s.repo.Create(ctx, Rule{Role: role, Resource: resource, Action: action, Allowed: allowed})
}

// UpdateAllowed changes the allowed flag of an existing rule. Nothing
// else about a rule is mutable; re-pointing a rule at another triple is
// a delete plus a create.
func (s *Service) UpdateAllowed(ctx context.Context, id int64, allowed bool) (Rule, error) {
	return s.repo.UpdateAllowed(ctx, id, allowed)
}

// Delete removes a rule by id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// ListAll returns every rule for administrative auditing.
func (s *Service) ListAll(ctx context.Context) ([]Rule, error) {
	return s.repo.ListAll(ctx)
}

// ListForRole returns the granting rules for one role.
func (s *Service) ListForRole(ctx context.Context, role Role) ([]Rule, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	return s.repo.ListForRole(ctx, role)
}
