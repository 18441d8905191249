package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/application/gate"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/notification"
	"studentcenter/internal/domain/organization"
)

// PermissionDeps holds dependencies for the owner's permission settings.
type PermissionDeps struct {
	Tree tree.Store
	Now  func() time.Time
}

// --- Set Finance Visibility ---

// SetFinanceVisibilityInput carries input for publishing or hiding the finances.
type SetFinanceVisibilityInput struct {
	OrgID  string
	UserID string
	Public bool
}

// ExecuteSetFinanceVisibility sets permissions.publicVisibility on the finances feature
// and notifies every member when the value changes.
// PRE: caller is the owner
// POST: publicVisibility == Public; one FINANCE_VISIBILITY_CHANGED per member when it changed
func ExecuteSetFinanceVisibility(ctx context.Context, input SetFinanceVisibilityInput, deps PermissionDeps) (FanoutResult, error) {
	g, err := gate.Authorize(ctx, deps.Tree, input.OrgID, feature.Finances, input.UserID, feature.RuleOwnerOnly)
	if err != nil {
		return FanoutResult{}, err
	}
	if g.Permissions.PublicVisibility == input.Public {
		return FanoutResult{}, nil
	}
	if err := deps.Tree.Set(ctx, tree.Join(paths.Permissions(input.OrgID, feature.Finances), "publicVisibility"), input.Public); err != nil {
		return FanoutResult{}, err
	}
	slog.Info("permission_event", "event", "finance_visibility_changed", "org_id", input.OrgID, "public", input.Public, "by", input.UserID)

	return ExecuteFanout(ctx, FanoutInput{
		OrgID:    input.OrgID,
		OrgName:  g.Center.Name,
		Type:     notification.TypeFinanceVisibilityChanged,
		Payload:  map[string]string{"publicVisibility": strconv.FormatBool(input.Public)},
		Audience: notification.AllMembers{Membership: g.Center.Membership},
	}, FanoutDeps{Tree: deps.Tree, Now: deps.Now})
}

// --- Set Feature Managers ---

// SetFeatureManagersInput carries input for replacing a feature's delegated managers.
type SetFeatureManagersInput struct {
	OrgID    string
	UserID   string
	Feature  feature.Key
	Managers []string
}

// ExecuteSetFeatureManagers replaces permissions.managers of one feature.
// PRE: caller is the owner; every manager is a member other than the owner
// POST: managers set equals the input set
func ExecuteSetFeatureManagers(ctx context.Context, input SetFeatureManagersInput, deps PermissionDeps) error {
	if _, err := feature.Parse(string(input.Feature)); err != nil {
		return err
	}
	g, err := gate.Authorize(ctx, deps.Tree, input.OrgID, input.Feature, input.UserID, feature.RuleOwnerOnly)
	if err != nil {
		return err
	}
	managers := make(map[string]bool, len(input.Managers))
	for _, uid := range input.Managers {
		if uid == g.Center.OwnerID {
			continue
		}
		if !g.Center.IsMember(uid) {
			return fmt.Errorf("%w: %s", organization.ErrNotMember, uid)
		}
		managers[uid] = true
	}
	if err := deps.Tree.Set(ctx, tree.Join(paths.Permissions(input.OrgID, input.Feature), "managers"), managers); err != nil {
		return err
	}
	slog.Info("permission_event", "event", "managers_set", "org_id", input.OrgID, "feature", input.Feature, "count", len(managers))
	return nil
}

// --- Set Admin-Plus Can Manage ---

// SetAdminPlusCanManageInput carries input for the admin-plus delegation flag.
type SetAdminPlusCanManageInput struct {
	OrgID   string
	UserID  string
	Feature feature.Key
	Enabled bool
}

// ExecuteSetAdminPlusCanManage toggles permissions.adminPlusCanManage of one feature.
// PRE: caller is the owner
func ExecuteSetAdminPlusCanManage(ctx context.Context, input SetAdminPlusCanManageInput, deps PermissionDeps) error {
	if _, err := feature.Parse(string(input.Feature)); err != nil {
		return err
	}
	if _, err := gate.Authorize(ctx, deps.Tree, input.OrgID, input.Feature, input.UserID, feature.RuleOwnerOnly); err != nil {
		return err
	}
	if err := deps.Tree.Set(ctx, tree.Join(paths.Permissions(input.OrgID, input.Feature), "adminPlusCanManage"), input.Enabled); err != nil {
		return err
	}
	slog.Info("permission_event", "event", "admin_plus_can_manage_set", "org_id", input.OrgID, "feature", input.Feature, "enabled", input.Enabled)
	return nil
}

// memberName returns the display name of a user, or "" when the profile is missing.
func memberName(ctx context.Context, r gate.Reader, userID string) string {
	u, err := loadUser(ctx, r, userID)
	if err != nil {
		return ""
	}
	return u.DisplayName()
}

// staffOrAuthor allows the record's author or any staff member.
func staffOrAuthor(g gate.Gate, authorID string) error {
	if g.Access.IsMember && g.Access.UserID == authorID {
		return nil
	}
	return g.Check(feature.RuleStaff)
}
