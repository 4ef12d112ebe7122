package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRuleRepo struct {
	rules  map[int64]Rule
	order  []int64
	nextID int64
}

func newMemoryRuleRepo() *memoryRuleRepo {
	return &memoryRuleRepo{rules: make(map[int64]Rule)}
}

func (r *memoryRuleRepo) Lookup(ctx context.Context, role Role, resource, action string) (Rule, error) {
	for _, id := range r.order {
		rule := r.rules[id]
		if rule.Role == role && rule.Resource == resource && rule.Action == action {
			return rule, nil
		}
	}
	return Rule{}, ErrPermissionNotFound
}

func (r *memoryRuleRepo) Create(ctx context.Context, rule Rule) (Rule, error) {
	if _, err := r.Lookup(ctx, rule.Role, rule.Resource, rule.Action); err == nil {
		return Rule{}, ErrRuleExists
	}
	r.nextID++
	rule.ID = r.nextID
	r.rules[rule.ID] = rule
	r.order = append(r.order, rule.ID)
	return rule, nil
}

func (r *memoryRuleRepo) UpdateAllowed(ctx context.Context, id int64, allowed bool) (Rule, error) {
	rule, ok := r.rules[id]
	if !ok {
		return Rule{}, ErrRuleNotFound
	}
	rule.Allowed = allowed
	r.rules[id] = rule
	return rule, nil
}

func (r *memoryRuleRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.rules[id]; !ok {
		return ErrRuleNotFound
	}
	delete(r.rules, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memoryRuleRepo) ListAll(ctx context.Context) ([]Rule, error) {
	rules := make([]Rule, 0, len(r.order))
	for _, id := range r.order {
		rules = append(rules, r.rules[id])
	}
	return rules, nil
}

func (r *memoryRuleRepo) ListForRole(ctx context.Context, role Role) ([]Rule, error) {
	var rules []Rule
	for _, id := range r.order {
		rule := r.rules[id]
		if rule.Role == role && rule.Allowed {
			rules = append(rules, rule)
		}
	}
	return rules, nil
}

func TestCreateRuleAssignsID(t *testing.T) {
	svc := NewService(newMemoryRuleRepo())

	rule, err := svc.Create(context.Background(), RoleManager, "orders", "delete", true)
	require.NoError(t, err)
	require.NotZero(t, rule.ID)
	require.Equal(t, RoleManager, rule.Role)
	require.True(t, rule.Allowed)
}

func TestCreateRuleRejectsDuplicateTriple(t *testing.T) {
	svc := NewService(newMemoryRuleRepo())

	_, err := svc.Create(context.Background(), RoleManager, "orders", "delete", true)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), RoleManager, "orders", "delete", false)
	require.ErrorIs(t, err, ErrRuleExists)

	// A different triple is still fine.
	_, err = svc.Create(context.Background(), RoleManager, "orders", "update", true)
	require.NoError(t, err)
}

func TestCreateRuleValidatesInput(t *testing.T) {
	svc := NewService(newMemoryRuleRepo())

	_, err := svc.Create(context.Background(), Role("owner"), "orders", "delete", true)
	require.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.Create(context.Background(), RoleUser, "  ", "read", true)
	require.Error(t, err)

	_, err = svc.Create(context.Background(), RoleUser, "products", "", true)
	require.Error(t, err)
}

func TestUpdateAllowedMutatesOnlyTheFlag(t *testing.T) {
	svc := NewService(newMemoryRuleRepo())

	created, err := svc.Create(context.Background(), RoleViewer, "reports", "read", false)
	require.NoError(t, err)

	updated, err := svc.UpdateAllowed(context.Background(), created.ID, true)
	require.NoError(t, err)
	require.True(t, updated.Allowed)
	require.Equal(t, created.ID, updated.ID)
	require.Equal(t, created.Role, updated.Role)
	require.Equal(t, created.Resource, updated.Resource)
	require.Equal(t, created.Action, updated.Action)
}

func TestUpdateAllowedUnknownID(t *testing.T) {
	svc := NewService(newMemoryRuleRepo())

	_, err := svc.UpdateAllowed(context.Background(), 404, true)
	require.ErrorIs(t, err, ErrRuleNotFound)
}

func TestDeleteRule(t *testing.T) {
	svc := NewService(newMemoryRuleRepo())

	created, err := svc.Create(context.Background(), RoleUser, "orders", "read", true)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	require.ErrorIs(t, svc.Delete(context.Background(), created.ID), ErrRuleNotFound)

	_, err = svc.Lookup(context.Background(), RoleUser, "orders", "read")
	require.ErrorIs(t, err, ErrPermissionNotFound)
}

func TestListForRoleExcludesDenials(t *testing.T) {
	svc := NewService(newMemoryRuleRepo())

	_, err := svc.Create(context.Background(), RoleUser, "products", "read", true)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), RoleUser, "products", "delete", false)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), RoleViewer, "products", "read", true)
	require.NoError(t, err)

	rules, err := svc.ListForRole(context.Background(), RoleUser)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.Equal(t, "read", rules[0].Action)

	_, err = svc.ListForRole(context.Background(), Role("root"))
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestParseRole(t *testing.T) {
	for _, role := range Roles() {
		parsed, err := ParseRole(string(role))
		require.NoError(t, err)
		require.Equal(t, role, parsed)
	}
	_, err := ParseRole("superuser")
	require.ErrorIs(t, err, ErrInvalidRole)
}
