// Package gate resolves a caller's role from storage at the point of use.
//
// Roles are never cached: every check reads the center record and the
// feature permissions again, so a demotion takes effect on the next call.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/organization"
	"studentcenter/internal/domain/role"
)

// Reader is the read half of tree.Store.
type Reader interface {
	Get(ctx context.Context, path string) (tree.Snapshot, error)
}

// Gate is a caller's position in one feature of one organization.
type Gate struct {
	Feature     feature.Key
	Center      organization.Center
	Permissions feature.Permissions
	Access      role.Access
}

// LoadCenter reads the center record.
// POST: returns organization.ErrNotFound when the center does not exist
func LoadCenter(ctx context.Context, r Reader, orgID string) (organization.Center, error) {
	if err := paths.CheckIDs(orgID); err != nil {
		return organization.Center{}, err
	}
	snap, err := r.Get(ctx, paths.Center(orgID))
	if err != nil {
		return organization.Center{}, fmt.Errorf("load center %s: %w", orgID, err)
	}
	if !snap.Exists() {
		return organization.Center{}, organization.ErrNotFound
	}
	var c organization.Center
	if err := snap.Decode(&c); err != nil {
		return organization.Center{}, err
	}
	c.ID = orgID
	return c, nil
}

// LoadPermissions reads a feature's permissions. A missing record is the zero value.
func LoadPermissions(ctx context.Context, r Reader, orgID string, k feature.Key) (feature.Permissions, error) {
	var p feature.Permissions
	snap, err := r.Get(ctx, paths.Permissions(orgID, k))
	if err != nil {
		return p, fmt.Errorf("load %s permissions: %w", k, err)
	}
	if !snap.Exists() {
		return p, nil
	}
	if err := snap.Decode(&p); err != nil {
		return p, err
	}
	return p, nil
}

// Load resolves userID's access to feature k of orgID.
// An empty k resolves the organization-level tier only.
func Load(ctx context.Context, r Reader, orgID string, k feature.Key, userID string) (Gate, error) {
	if err := paths.CheckIDs(userID); err != nil {
		return Gate{}, err
	}
	c, err := LoadCenter(ctx, r, orgID)
	if err != nil {
		return Gate{}, err
	}
	g := Gate{Feature: k, Center: c}
	if k != "" {
		if g.Permissions, err = LoadPermissions(ctx, r, orgID, k); err != nil {
			return Gate{}, err
		}
	}
	g.Access = role.ResolveAccess(userID, c.Membership, g.Permissions.Managers)
	return g, nil
}

// Check evaluates rule against the resolved access.
func (g Gate) Check(rule feature.Rule) error {
	if err := rule.Check(g.Access, g.Permissions); err != nil {
		slog.Info("auth_event", "event", "auth_denied", "org_id", g.Center.ID, "feature", g.Feature,
			"user_id", g.Access.UserID, "role", g.Access.Role, "rule", rule)
		return err
	}
	return nil
}

// Allows is Check without logging.
func (g Gate) Allows(rule feature.Rule) bool {
	return rule.Allows(g.Access, g.Permissions)
}

// CanRead reports whether the caller may read the feature's records.
func (g Gate) CanRead() bool {
	return feature.CanRead(g.Feature, g.Access, g.Permissions)
}

// CheckRead returns feature.ErrPermissionDenied when the caller may not read the feature.
func (g Gate) CheckRead() error {
	if g.CanRead() {
		return nil
	}
	slog.Info("auth_event", "event", "auth_denied", "org_id", g.Center.ID, "feature", g.Feature,
		"user_id", g.Access.UserID, "role", g.Access.Role, "rule", "read")
	return fmt.Errorf("%w: %s cannot read %s", feature.ErrPermissionDenied, g.Access.Role, g.Feature)
}

// Authorize loads the gate and checks rule in one step.
func Authorize(ctx context.Context, r Reader, orgID string, k feature.Key, userID string, rule feature.Rule) (Gate, error) {
	g, err := Load(ctx, r, orgID, k, userID)
	if err != nil {
		return Gate{}, err
	}
	if err := g.Check(rule); err != nil {
		return Gate{}, err
	}
	return g, nil
}

// IsDenied reports whether err is a permission failure.
func IsDenied(err error) bool {
	return errors.Is(err, feature.ErrPermissionDenied)
}
