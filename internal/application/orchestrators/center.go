package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"studentcenter/internal/adapters/storage/outbox"
	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/application/gate"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/notification"
	outboxDomain "studentcenter/internal/domain/outbox"
	"studentcenter/internal/domain/organization"
	"studentcenter/internal/domain/profile"
	"studentcenter/internal/domain/role"
)

// CenterDeps holds dependencies for center lifecycle and membership orchestrators.
type CenterDeps struct {
	Tree       tree.Store
	Outbox     outbox.Store // optional; emails are skipped when nil
	GenerateID func() string
	Now        func() time.Time
}

func (d CenterDeps) fanout() FanoutDeps { return FanoutDeps{Tree: d.Tree, Now: d.Now} }

// --- Create Center ---

// CreateCenterInput carries input for the center wizard.
type CreateCenterInput struct {
	UserID     string
	Name       string
	Color      string
	Courses    []string
	AccessCode string
}

// ExecuteCreateCenter creates a center owned by the caller.
// PRE: caller has a profile; at least one course; access code >= 6 characters
// POST: organizations/{id}/center exists with OwnerID == caller; the owner's index lists it
func ExecuteCreateCenter(ctx context.Context, input CreateCenterInput, deps CenterDeps) (organization.Center, error) {
	if _, err := loadUser(ctx, deps.Tree, input.UserID); err != nil {
		return organization.Center{}, err
	}
	courses := make([]string, 0, len(input.Courses))
	for _, c := range input.Courses {
		courses = append(courses, strings.TrimSpace(c))
	}
	color := input.Color
	if color == "" {
		color = organization.ColorIndigo
	}
	c := organization.Center{
		Membership: role.Membership{OwnerID: input.UserID},
		ID:         deps.GenerateID(),
		Name:       strings.TrimSpace(input.Name),
		Color:      color,
		Courses:    courses,
		CreatedAt:  deps.Now(),
	}
	if err := c.Validate(); err != nil {
		return organization.Center{}, err
	}
	if err := c.SetAccessCode(input.AccessCode); err != nil {
		return organization.Center{}, err
	}
	err := deps.Tree.Update(ctx, "", map[string]any{
		paths.Center(c.ID):                  c,
		paths.UserCenter(input.UserID, c.ID): true,
	})
	if err != nil {
		return organization.Center{}, err
	}
	slog.Info("center_event", "event", "center_created", "org_id", c.ID, "owner", input.UserID, "courses", len(courses))
	return c, nil
}

// --- Join Center ---

// JoinCenterInput carries input for joining with an access code.
type JoinCenterInput struct {
	OrgID          string
	UserID         string
	AccessCode     string
	Course         string
	DocumentNumber string
}

// ExecuteJoinCenter adds the caller as a student and writes the per-org profile.
// PRE: access code matches; course is one of the center's courses
// POST: students[caller] and orgProfiles/{org}/{caller} written atomically
func ExecuteJoinCenter(ctx context.Context, input JoinCenterInput, deps CenterDeps) (profile.OrgProfile, error) {
	if _, err := loadUser(ctx, deps.Tree, input.UserID); err != nil {
		return profile.OrgProfile{}, err
	}
	c, err := gate.LoadCenter(ctx, deps.Tree, input.OrgID)
	if err != nil {
		return profile.OrgProfile{}, err
	}
	if err := c.CheckAccessCode(input.AccessCode); err != nil {
		slog.Info("center_event", "event", "join_rejected", "org_id", input.OrgID, "user_id", input.UserID, "reason", "access_code")
		return profile.OrgProfile{}, err
	}
	if err := c.Join(input.UserID); err != nil {
		return profile.OrgProfile{}, err
	}
	if !c.HasCourse(input.Course) {
		return profile.OrgProfile{}, organization.ErrUnknownCourse
	}
	op := profile.OrgProfile{
		Course:         input.Course,
		DocumentNumber: strings.TrimSpace(input.DocumentNumber),
		JoinedAt:       deps.Now(),
	}
	if err := op.Validate(); err != nil {
		return profile.OrgProfile{}, err
	}
	err = deps.Tree.Update(ctx, "", map[string]any{
		tree.Join(paths.Center(input.OrgID), "students", input.UserID): true,
		paths.OrgProfile(input.OrgID, input.UserID):                    op,
		paths.UserCenter(input.UserID, input.OrgID):                    true,
	})
	if err != nil {
		return profile.OrgProfile{}, err
	}
	slog.Info("center_event", "event", "member_joined", "org_id", input.OrgID, "user_id", input.UserID, "course", op.Course)
	return op, nil
}

// --- Change Member Tier ---

// ChangeMemberTierInput carries input for promoting or demoting a member.
type ChangeMemberTierInput struct {
	OrgID    string
	ActorID  string
	MemberID string
	Tier     role.Role
}

// ExecuteChangeMemberTier moves a member between admin-plus, admin and student.
// The owner may assign any tier; admin-plus may only move admins and students.
// PRE: member exists and is not the owner
// POST: member appears in exactly one tier set; the member is notified
func ExecuteChangeMemberTier(ctx context.Context, input ChangeMemberTierInput, deps CenterDeps) (FanoutResult, error) {
	if err := paths.CheckIDs(input.MemberID); err != nil {
		return FanoutResult{}, err
	}
	g, err := gate.Load(ctx, deps.Tree, input.OrgID, "", input.ActorID)
	if err != nil {
		return FanoutResult{}, err
	}
	c := g.Center
	from, ok := c.Tier(input.MemberID)
	if !ok {
		return FanoutResult{}, organization.ErrNotMember
	}
	if !g.Access.IsMember || !organization.CanAssignTier(g.Access.Role, from, input.Tier) {
		slog.Info("auth_event", "event", "auth_denied", "org_id", input.OrgID, "user_id", input.ActorID,
			"action", "change_tier", "from", from, "to", input.Tier)
		return FanoutResult{}, fmt.Errorf("%w: %s cannot move %s to %s", feature.ErrPermissionDenied, g.Access.Role, from, input.Tier)
	}
	if err := c.SetTier(input.MemberID, input.Tier); err != nil {
		return FanoutResult{}, err
	}
	if from == input.Tier {
		return FanoutResult{}, nil
	}

	updates := tierUpdates(input.MemberID)
	updates[tierSet(input.Tier)+"/"+input.MemberID] = true
	if err := deps.Tree.Update(ctx, paths.Center(input.OrgID), updates); err != nil {
		return FanoutResult{}, err
	}
	slog.Info("center_event", "event", "tier_changed", "org_id", input.OrgID, "member", input.MemberID,
		"from", from, "to", input.Tier, "by", input.ActorID)

	return ExecuteFanout(ctx, FanoutInput{
		OrgID:    input.OrgID,
		OrgName:  c.Name,
		Type:     notification.TypeRoleChanged,
		Payload:  map[string]string{"role": string(input.Tier), "previousRole": string(from)},
		Audience: notification.Single{UserID: input.MemberID},
	}, deps.fanout())
}

// tierUpdates clears memberID from every tier set.
func tierUpdates(memberID string) map[string]any {
	return map[string]any{
		"adminsPlus/" + memberID: nil,
		"admins/" + memberID:     nil,
		"students/" + memberID:   nil,
	}
}

func tierSet(r role.Role) string {
	switch r {
	case role.AdminPlus:
		return "adminsPlus"
	case role.Admin:
		return "admins"
	default:
		return "students"
	}
}

// --- Expel Member ---

// ExpelMemberInput carries input for removing a member from a center.
type ExpelMemberInput struct {
	OrgID    string
	ActorID  string
	MemberID string
	Reason   string
}

// ExecuteExpelMember removes a member, their per-org profile and any feature manager grants,
// then notifies them in-app and by email.
// PRE: actor is the owner, or admin-plus expelling an admin or student
// POST: member is no longer a member of any feature; EXPULSION notification written
func ExecuteExpelMember(ctx context.Context, input ExpelMemberInput, deps CenterDeps) (FanoutResult, error) {
	if err := paths.CheckIDs(input.MemberID); err != nil {
		return FanoutResult{}, err
	}
	g, err := gate.Load(ctx, deps.Tree, input.OrgID, "", input.ActorID)
	if err != nil {
		return FanoutResult{}, err
	}
	c := g.Center
	from, ok := c.Tier(input.MemberID)
	if !ok {
		return FanoutResult{}, organization.ErrNotMember
	}
	if !g.Access.IsMember || !organization.CanAssignTier(g.Access.Role, from, role.Student) || input.ActorID == input.MemberID {
		slog.Info("auth_event", "event", "auth_denied", "org_id", input.OrgID, "user_id", input.ActorID,
			"action", "expel", "member_tier", from)
		return FanoutResult{}, fmt.Errorf("%w: %s cannot expel %s", feature.ErrPermissionDenied, g.Access.Role, from)
	}
	if err := c.Remove(input.MemberID); err != nil {
		return FanoutResult{}, err
	}

	updates := map[string]any{
		paths.OrgProfile(input.OrgID, input.MemberID): nil,
		paths.UserCenter(input.MemberID, input.OrgID): nil,
	}
	for set := range tierUpdates(input.MemberID) {
		updates[tree.Join(paths.Center(input.OrgID), set)] = nil
	}
	for _, k := range feature.All {
		updates[tree.Join(paths.Permissions(input.OrgID, k), "managers", input.MemberID)] = nil
	}
	if err := deps.Tree.Update(ctx, "", updates); err != nil {
		return FanoutResult{}, err
	}
	slog.Info("center_event", "event", "member_expelled", "org_id", input.OrgID, "member", input.MemberID, "by", input.ActorID)

	payload := map[string]string{}
	if r := strings.TrimSpace(input.Reason); r != "" {
		payload["reason"] = r
	}
	res, err := ExecuteFanout(ctx, FanoutInput{
		OrgID:    input.OrgID,
		OrgName:  c.Name,
		Type:     notification.TypeExpulsion,
		Payload:  payload,
		Audience: notification.Single{UserID: input.MemberID},
	}, deps.fanout())
	if err != nil {
		return res, err
	}
	body := fmt.Sprintf("Has sido retirado del centro **%s**.", c.Name)
	if r := payload["reason"]; r != "" {
		body += "\n\nMotivo: " + r
	}
	queueEmails(ctx, deps, []string{input.MemberID}, "Has sido retirado de "+c.Name, body)
	return res, nil
}

// --- Delete Center ---

// DeleteCenterInput carries input for deleting a center.
type DeleteCenterInput struct {
	OrgID   string
	ActorID string
}

// ExecuteDeleteCenter notifies every member, queues their emails, then removes
// the organization and its per-org profiles in one atomic write.
// PRE: actor is the owner
// POST: organizations/{id}, orgProfiles/{id} and every member's index entry no longer exist
func ExecuteDeleteCenter(ctx context.Context, input DeleteCenterInput, deps CenterDeps) (FanoutResult, error) {
	g, err := gate.Load(ctx, deps.Tree, input.OrgID, "", input.ActorID)
	if err != nil {
		return FanoutResult{}, err
	}
	if err := g.Check(feature.RuleOwnerOnly); err != nil {
		return FanoutResult{}, err
	}
	c := g.Center

	res, err := ExecuteFanout(ctx, FanoutInput{
		OrgID:    input.OrgID,
		OrgName:  c.Name,
		Type:     notification.TypeCenterDeleted,
		Audience: notification.AllMembers{Membership: c.Membership},
	}, deps.fanout())
	if err != nil {
		return res, err
	}
	emailTo := make([]string, 0, len(res.Delivered))
	for _, uid := range res.Delivered {
		if uid != c.OwnerID {
			emailTo = append(emailTo, uid)
		}
	}
	queueEmails(ctx, deps, emailTo, c.Name+" ha sido eliminado",
		fmt.Sprintf("El centro **%s** ha sido eliminado por su propietario.", c.Name))

	updates := map[string]any{
		paths.Org(input.OrgID):         nil,
		paths.OrgProfiles(input.OrgID): nil,
	}
	for uid := range c.Members() {
		updates[paths.UserCenter(uid, input.OrgID)] = nil
	}
	err = deps.Tree.Update(ctx, "", updates)
	if err != nil {
		return res, err
	}
	slog.Info("center_event", "event", "center_deleted", "org_id", input.OrgID, "members_notified", len(res.Delivered))
	return res, nil
}

// queueEmails stores one outbox email per recipient that has an address.
// Failures are logged; the in-app notification is the primary channel.
func queueEmails(ctx context.Context, deps CenterDeps, userIDs []string, subject, body string) {
	if deps.Outbox == nil {
		return
	}
	for _, uid := range userIDs {
		u, err := loadUser(ctx, deps.Tree, uid)
		if err != nil || u.Email == "" {
			continue
		}
		entry, err := outboxDomain.NewEmail(deps.GenerateID(), outboxDomain.EmailPayload{
			To:      u.Email,
			Subject: subject,
			Body:    fmt.Sprintf("Hola %s,\n\n%s", u.Name, body),
		}, deps.Now())
		if err != nil {
			slog.Warn("outbox_event", "event", "email_invalid", "user_id", uid, "error", err)
			continue
		}
		if err := deps.Outbox.Save(ctx, entry); err != nil {
			slog.Error("outbox_event", "event", "email_enqueue_failed", "user_id", uid, "error", err)
			continue
		}
		slog.Info("outbox_event", "event", "email_enqueued", "entry_id", entry.ID, "user_id", uid)
	}
}
