package rbac

import (
	"context"
	"errors"
)

// Directory resolves live account state. Implementations must return
// ErrUserNotFound for ids that do not reference an account.
type Directory interface {
	Account(ctx context.Context, userID int64) (Account, error)
}

// RuleSource is the read surface of the permission table the evaluator
// consults. Every call re-reads storage: an administrative rule change
// is visible on the very next evaluation.
type RuleSource interface {
	Lookup(ctx context.Context, role Role, resource, action string) (Rule, error)
	ListForRole(ctx context.Context, role Role) ([]Rule, error)
}

// DecisionRecorder counts evaluation outcomes for observability.
type DecisionRecorder interface {
	RecordDecision(outcome string)
}

// Decision outcomes reported to the recorder.
const (
	DecisionAllow       = "allow"
	DecisionDeny        = "deny"
	DecisionAbsent      = "absent"
	DecisionUnknownUser = "unknown_user"
)

// Evaluator answers "may this user perform this action on this resource"
// against the user's current role and the permission table.
type Evaluator struct {
	rules     RuleSource
	directory Directory
	decisions DecisionRecorder
}

// NewEvaluator constructs an Evaluator. The recorder may be nil.
func NewEvaluator(rules RuleSource, directory Directory, decisions DecisionRecorder) *Evaluator {
	return &Evaluator{rules: rules, directory: directory, decisions: decisions}
}

// Authorize resolves the user's current role and returns the stored
// decision for (role, resource, action) verbatim.
//
// The account check is repeated here even though the session boundary
// performs it too: Authorize may be handed a user id that did not come
// from a freshly verified token.
//
// Absence of a rule is ErrPermissionNotFound, never a silent false;
// an explicit deny is (false, nil). Callers gating a request must treat
// both as access denied.
func (e *Evaluator) Authorize(ctx context.Context, userID int64, resource, action string) (bool, error) {
	account, err := e.directory.Account(ctx, userID)
	if err != nil {
		e.record(DecisionUnknownUser)
		if errors.Is(err, ErrUserNotFound) {
			return false, ErrUserNotFound
		}
		// Storage failure: fail closed.
		return false, err
	}
	if !account.Active {
		e.record(DecisionUnknownUser)
		return false, ErrUserNotFound
	}

	rule, err := e.rules.Lookup(ctx, account.Role, resource, action)
	if err != nil {
		if errors.Is(err, ErrPermissionNotFound) {
			e.record(DecisionAbsent)
			return false, ErrPermissionNotFound
		}
		return false, err
	}
	if rule.Allowed {
		e.record(DecisionAllow)
	} else {
		e.record(DecisionDeny)
	}
	return rule.Allowed, nil
}

// ListEffectivePermissions returns the positive permission set for the
// user's current role. Explicit denials are excluded.
func (e *Evaluator) ListEffectivePermissions(ctx context.Context, userID int64) ([]EffectivePermission, error) {
	account, err := e.directory.Account(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !account.Active {
		return nil, ErrUserNotFound
	}

	rules, err := e.rules.ListForRole(ctx, account.Role)
	if err != nil {
		return nil, err
	}
	perms := make([]EffectivePermission, 0, len(rules))
	for _, rule := range rules {
		perms = append(perms, EffectivePermission{
			Resource: rule.Resource,
			Action:   rule.Action,
			Allowed:  rule.Allowed,
		})
	}
	return perms, nil
}

func (e *Evaluator) record(outcome string) {
	if e.decisions != nil {
		e.decisions.RecordDecision(outcome)
	}
}
