package feature

import (
	"errors"
	"fmt"

	"studentcenter/internal/domain/role"
)

// Key names one feature subtree of an organization.
type Key string

// Feature keys
const (
	Finances      Key = "finances"
	Competition   Key = "competition"
	Workshops     Key = "workshops"
	Surveys       Key = "surveys"
	Forums        Key = "forums"
	AnonymousChat Key = "anonymousChat"
	Posts         Key = "posts"
)

// All lists every feature key.
var All = []Key{Finances, Competition, Workshops, Surveys, Forums, AnonymousChat, Posts}

// Domain errors
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnknownFeature   = errors.New("unknown feature")
	ErrUnknownRule      = errors.New("unknown permission rule")
)

// Parse converts a path segment into a Key.
func Parse(s string) (Key, error) {
	for _, k := range All {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFeature, s)
}

// Permissions is the per-feature record saying who besides the owner may manage it.
type Permissions struct {
	Managers           map[string]bool `json:"managers,omitempty"`
	PublicVisibility   bool            `json:"publicVisibility"`
	AdminPlusCanManage bool            `json:"adminPlusCanManage"`
}

// IsManager reports whether userID is a delegated manager.
// Delegation holds whatever organization tier the user has.
func (p Permissions) IsManager(userID string) bool {
	return userID != "" && p.Managers[userID]
}

// Rule is a predicate over a resolved role.
type Rule string

// Permission rules
const (
	RuleOwnerOnly                 Rule = "owner-only"
	RuleOwnerOrManager            Rule = "owner-or-manager"
	RuleOwnerOrAdminPlusIfEnabled Rule = "owner-or-admin-plus-if-enabled"
	RuleStaff                     Rule = "staff"
	RuleMember                    Rule = "member"
)

// Allows evaluates the rule for a caller.
// PRE: a was resolved against the same feature's permissions as p
// POST: returns false for unknown rules
func (r Rule) Allows(a role.Access, p Permissions) bool {
	switch r {
	case RuleOwnerOnly:
		return a.Role == role.Owner
	case RuleOwnerOrManager:
		return a.Role == role.Owner || a.Role == role.Manager || p.IsManager(a.UserID)
	case RuleOwnerOrAdminPlusIfEnabled:
		if a.Role == role.Owner || a.Role == role.Manager || p.IsManager(a.UserID) {
			return true
		}
		return a.Role == role.AdminPlus && p.AdminPlusCanManage
	case RuleStaff:
		return a.IsMember && a.Role.IsStaff()
	case RuleMember:
		return a.IsMember
	default:
		return false
	}
}

// Check returns ErrPermissionDenied when the rule does not allow the caller.
func (r Rule) Check(a role.Access, p Permissions) error {
	if !r.Allows(a, p) {
		return fmt.Errorf("%w: %s requires %s", ErrPermissionDenied, a.Role, r)
	}
	return nil
}

// ManageRule returns the rule that gates writes to k's shared records.
func ManageRule(k Key) Rule {
	switch k {
	case AnonymousChat:
		return RuleOwnerOrManager
	case Forums, Posts:
		return RuleStaff
	default:
		return RuleOwnerOrAdminPlusIfEnabled
	}
}

// CanRead reports whether a caller may read a feature's records.
// Members always can; finances are hidden from students unless made public.
func CanRead(k Key, a role.Access, p Permissions) bool {
	if !a.IsMember {
		return false
	}
	if k != Finances {
		return true
	}
	return p.PublicVisibility || RuleOwnerOrAdminPlusIfEnabled.Allows(a, p) || a.Role == role.Admin
}
