// Package projections holds the read side: each query resolves the caller's
// role from storage, then shapes stored records into views that are safe to
// send to that caller.
package projections

import (
	"context"
	"time"

	"studentcenter/internal/application/gate"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/organization"
	"studentcenter/internal/domain/role"
)

// CenterView is a center record without its access code hash.
type CenterView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	Courses     []string  `json:"courses"`
	OwnerID     string    `json:"ownerId"`
	MemberCount int       `json:"memberCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewCenterView strips the access code hash from c.
func NewCenterView(c organization.Center) CenterView {
	courses := c.Courses
	if courses == nil {
		courses = []string{}
	}
	return CenterView{
		ID:          c.ID,
		Name:        c.Name,
		Color:       c.EffectiveColor(),
		Courses:     courses,
		OwnerID:     c.OwnerID,
		MemberCount: len(c.Members()),
		CreatedAt:   c.CreatedAt,
	}
}

// AccessQuery asks for a caller's standing in one feature, or in the
// organization when Feature is empty.
type AccessQuery struct {
	OrgID   string
	UserID  string
	Feature feature.Key
}

// AccessResult carries the query result.
type AccessResult struct {
	Center      CenterView       `json:"center"`
	Access      role.Access      `json:"access"`
	Tier        role.Role        `json:"tier,omitempty"`
	CanRead     bool             `json:"canRead"`
	CanManage   bool             `json:"canManage"`
	Permissions *PermissionsView `json:"permissions,omitempty"`
}

// PermissionsView is a feature's permission record as shown to its owner.
type PermissionsView struct {
	Managers           []string `json:"managers"`
	PublicVisibility   bool     `json:"publicVisibility"`
	AdminPlusCanManage bool     `json:"adminPlusCanManage"`
}

// AccessDeps holds dependencies for QueryAccess.
type AccessDeps struct {
	Tree gate.Reader
}

// QueryAccess resolves the caller's role the same way every write does.
// PRE: OrgID and UserID are valid ids
// POST: Permissions is set only for the owner of a feature query
func QueryAccess(ctx context.Context, query AccessQuery, deps AccessDeps) (AccessResult, error) {
	g, err := gate.Load(ctx, deps.Tree, query.OrgID, query.Feature, query.UserID)
	if err != nil {
		return AccessResult{}, err
	}
	res := AccessResult{
		Center: NewCenterView(g.Center),
		Access: g.Access,
	}
	res.Tier, _ = g.Center.Tier(query.UserID)
	if query.Feature == "" {
		res.CanRead = g.Access.IsMember
		res.CanManage = g.Access.Role == role.Owner
		return res, nil
	}
	res.CanRead = g.CanRead()
	res.CanManage = g.Allows(feature.ManageRule(query.Feature))
	if g.Access.Role == role.Owner {
		res.Permissions = &PermissionsView{
			Managers:           sortedSet(g.Permissions.Managers),
			PublicVisibility:   g.Permissions.PublicVisibility,
			AdminPlusCanManage: g.Permissions.AdminPlusCanManage,
		}
	}
	return res, nil
}
