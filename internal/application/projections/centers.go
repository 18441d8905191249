package projections

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"studentcenter/internal/application/gate"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/organization"
	"studentcenter/internal/domain/profile"
	"studentcenter/internal/domain/role"
)

// tierOrder ranks organization tiers for listings.
var tierOrder = map[role.Role]int{role.Owner: 0, role.AdminPlus: 1, role.Admin: 2, role.Student: 3}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k, ok := range set {
		if ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// --- My Centers ---

// MyCentersQuery carries query parameters.
type MyCentersQuery struct {
	UserID string
}

// MyCenter is one entry of the caller's center list.
type MyCenter struct {
	Center CenterView `json:"center"`
	Tier   role.Role  `json:"tier"`
}

// MyCentersResult carries the query result.
type MyCentersResult struct {
	Centers []MyCenter `json:"centers"`
}

// MyCentersDeps holds dependencies for QueryMyCenters.
type MyCentersDeps struct {
	Tree gate.Reader
}

// QueryMyCenters lists the centers the caller belongs to, by name.
// The userCenters index only narrows the search; membership is confirmed
// against each center record, so stale index entries are skipped.
// POST: every returned center lists UserID as a member
func QueryMyCenters(ctx context.Context, query MyCentersQuery, deps MyCentersDeps) (MyCentersResult, error) {
	if err := paths.CheckIDs(query.UserID); err != nil {
		return MyCentersResult{}, err
	}
	snap, err := deps.Tree.Get(ctx, paths.UserCenterIndex(query.UserID))
	if err != nil {
		return MyCentersResult{}, err
	}
	res := MyCentersResult{Centers: []MyCenter{}}
	for _, orgID := range snap.Keys() {
		c, err := gate.LoadCenter(ctx, deps.Tree, orgID)
		if errors.Is(err, organization.ErrNotFound) {
			slog.Warn("center_event", "event", "stale_center_index", "user_id", query.UserID, "org_id", orgID)
			continue
		}
		if err != nil {
			return MyCentersResult{}, err
		}
		tier, ok := c.Tier(query.UserID)
		if !ok {
			continue
		}
		res.Centers = append(res.Centers, MyCenter{Center: NewCenterView(c), Tier: tier})
	}
	sort.SliceStable(res.Centers, func(i, j int) bool {
		return strings.ToLower(res.Centers[i].Center.Name) < strings.ToLower(res.Centers[j].Center.Name)
	})
	return res, nil
}

// --- Members ---

// MembersQuery carries query parameters.
type MembersQuery struct {
	OrgID  string
	UserID string
	Course string // optional filter
}

// MemberRow is one member as shown in the directory.
type MemberRow struct {
	UserID         string    `json:"userId"`
	Name           string    `json:"name"`
	Username       string    `json:"username"`
	Photo          string    `json:"photo,omitempty"`
	Tier           role.Role `json:"tier"`
	Course         string    `json:"course"`
	DocumentNumber string    `json:"documentNumber,omitempty"`
}

// MembersResult carries the query result.
type MembersResult struct {
	Members []MemberRow `json:"members"`
}

// MembersDeps holds dependencies for QueryMembers.
type MembersDeps struct {
	Tree gate.Reader
}

// QueryMembers lists a center's members, highest tier first.
// PRE: caller is a member
// POST: document numbers are present only when the caller is staff
func QueryMembers(ctx context.Context, query MembersQuery, deps MembersDeps) (MembersResult, error) {
	g, err := gate.Authorize(ctx, deps.Tree, query.OrgID, "", query.UserID, feature.RuleMember)
	if err != nil {
		return MembersResult{}, err
	}
	staff := g.Access.Role.IsStaff()

	profiles := map[string]profile.OrgProfile{}
	snap, err := deps.Tree.Get(ctx, paths.OrgProfiles(query.OrgID))
	if err != nil {
		return MembersResult{}, err
	}
	for _, child := range snap.Children() {
		var op profile.OrgProfile
		if err := child.Decode(&op); err != nil {
			slog.Warn("member_event", "event", "skip_undecodable", "path", child.Path(), "error", err)
			continue
		}
		profiles[child.Key()] = op
	}

	rows := make([]MemberRow, 0, len(profiles))
	for _, uid := range sortedSet(g.Center.Members()) {
		op := profiles[uid]
		if query.Course != "" && op.Course != query.Course {
			continue
		}
		tier, _ := g.Center.Tier(uid)
		row := MemberRow{UserID: uid, Tier: tier, Course: op.Course}
		if staff {
			row.DocumentNumber = op.DocumentNumber
		}
		var u profile.User
		usnap, err := deps.Tree.Get(ctx, paths.User(uid))
		if err != nil {
			return MembersResult{}, err
		}
		if usnap.Exists() {
			if err := usnap.Decode(&u); err != nil {
				return MembersResult{}, err
			}
			row.Name = u.DisplayName()
			row.Username = u.Username
			row.Photo = u.Photo
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if tierOrder[rows[i].Tier] != tierOrder[rows[j].Tier] {
			return tierOrder[rows[i].Tier] < tierOrder[rows[j].Tier]
		}
		return strings.ToLower(rows[i].Name) < strings.ToLower(rows[j].Name)
	})
	return MembersResult{Members: rows}, nil
}
