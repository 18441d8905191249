package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/application/gate"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/finance"
	"studentcenter/internal/domain/organization"
)

// EnsureFeatureInput carries input for the lazy initializer.
type EnsureFeatureInput struct {
	OrgID   string
	Feature feature.Key
}

// EnsureFeatureDeps holds dependencies for EnsureFeature.
type EnsureFeatureDeps struct {
	Tree tree.Store
}

// ExecuteEnsureFeature writes a feature's default shape if it has never been initialized.
// Defaults depend only on the center record, so concurrent first calls write
// identical values and the race between them is harmless.
// PRE: the center exists
// POST: initializedAt exists; returns true if this call wrote the defaults
func ExecuteEnsureFeature(ctx context.Context, input EnsureFeatureInput, deps EnsureFeatureDeps) (bool, error) {
	if err := paths.CheckIDs(input.OrgID); err != nil {
		return false, err
	}
	if _, err := feature.Parse(string(input.Feature)); err != nil {
		return false, err
	}
	initialized, err := deps.Tree.Exists(ctx, paths.Initialized(input.OrgID, input.Feature))
	if err != nil {
		return false, err
	}
	if initialized {
		return false, nil
	}

	c, err := gate.LoadCenter(ctx, deps.Tree, input.OrgID)
	if err != nil {
		return false, err
	}
	// Permission writes do not require initialization, so an owner's grant may
	// already be here. Only absent fields get their default.
	if _, err := deps.Tree.Transact(ctx, paths.Permissions(input.OrgID, input.Feature), mergePermissionDefaults); err != nil {
		return false, fmt.Errorf("initialize %s permissions: %w", input.Feature, err)
	}
	if err := deps.Tree.Update(ctx, paths.Feature(input.OrgID, input.Feature), featureDefaults(input.Feature, c)); err != nil {
		return false, fmt.Errorf("initialize %s: %w", input.Feature, err)
	}

	slog.Info("feature_event", "event", "feature_initialized", "org_id", input.OrgID, "feature", input.Feature)
	return true, nil
}

// featureDefaults is the initial shape of a feature subtree. Empty collections
// are implicit: a missing child reads as an empty list.
func featureDefaults(k feature.Key, c organization.Center) map[string]any {
	defaults := map[string]any{
		"initializedAt": c.CreatedAt,
	}
	switch k {
	case feature.Finances:
		defaults["categories"] = finance.DefaultCategories
	case feature.Competition:
		for _, course := range c.Courses {
			defaults["scores/"+course] = 0
		}
	}
	return defaults
}

var permissionDefaults = map[string]any{
	"publicVisibility":   false,
	"adminPlusCanManage": false,
}

// mergePermissionDefaults keeps every stored permission field and adds the missing defaults.
func mergePermissionDefaults(cur tree.Snapshot) (any, error) {
	merged := map[string]any{}
	if cur.Exists() {
		raw, err := cur.JSON()
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &merged); err != nil {
			return nil, fmt.Errorf("decode permissions: %w", err)
		}
	}
	for k, v := range permissionDefaults {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return merged, nil
}
