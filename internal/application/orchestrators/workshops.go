package orchestrators

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/application/gate"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/notification"
	"studentcenter/internal/domain/workshop"
)

const workshopManageRule = feature.RuleOwnerOrAdminPlusIfEnabled

// WorkshopDeps holds dependencies for the workshop orchestrators.
type WorkshopDeps struct {
	Tree tree.Store
	Now  func() time.Time
}

func loadWorkshop(ctx context.Context, r gate.Reader, orgID, id string) (workshop.Workshop, error) {
	if err := paths.CheckIDs(id); err != nil {
		return workshop.Workshop{}, err
	}
	snap, err := r.Get(ctx, paths.Record(orgID, feature.Workshops, "items", id))
	if err != nil {
		return workshop.Workshop{}, err
	}
	if !snap.Exists() {
		return workshop.Workshop{}, workshop.ErrNotFound
	}
	var w workshop.Workshop
	if err := snap.Decode(&w); err != nil {
		return workshop.Workshop{}, err
	}
	w.ID = id
	return w, nil
}

// --- Create Workshop ---

// CreateWorkshopInput carries input for scheduling a workshop.
type CreateWorkshopInput struct {
	OrgID       string
	UserID      string
	Title       string
	Description string
	Location    string
	Date        time.Time
	Capacity    int
}

// ExecuteCreateWorkshop stores a workshop and notifies every member.
// PRE: caller may manage workshops; date in the future
// POST: workshop stored with no attendees; NEW_WORKSHOP written per member
func ExecuteCreateWorkshop(ctx context.Context, input CreateWorkshopInput, deps WorkshopDeps) (workshop.Workshop, FanoutResult, error) {
	g, err := gate.Authorize(ctx, deps.Tree, input.OrgID, feature.Workshops, input.UserID, workshopManageRule)
	if err != nil {
		return workshop.Workshop{}, FanoutResult{}, err
	}
	w := workshop.Workshop{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Location:    strings.TrimSpace(input.Location),
		Date:        input.Date,
		Capacity:    input.Capacity,
		AuthorID:    input.UserID,
		CreatedAt:   deps.Now(),
	}
	if err := w.Validate(); err != nil {
		return workshop.Workshop{}, FanoutResult{}, err
	}
	key, err := deps.Tree.Push(ctx, paths.Records(input.OrgID, feature.Workshops, "items"), w)
	if err != nil {
		return workshop.Workshop{}, FanoutResult{}, err
	}
	w.ID = key
	slog.Info("workshop_event", "event", "workshop_created", "org_id", input.OrgID, "workshop_id", key, "by", input.UserID)

	res, err := ExecuteFanout(ctx, FanoutInput{
		OrgID:    input.OrgID,
		OrgName:  g.Center.Name,
		Type:     notification.TypeNewWorkshop,
		Payload:  map[string]string{"workshopId": key, "title": w.Title, "date": w.Date.UTC().Format(time.RFC3339)},
		Audience: notification.AllMembers{Membership: g.Center.Membership},
	}, FanoutDeps{Tree: deps.Tree, Now: deps.Now})
	return w, res, err
}

// --- Delete Workshop ---

// DeleteWorkshopInput carries input for cancelling a workshop.
type DeleteWorkshopInput struct {
	OrgID      string
	UserID     string
	WorkshopID string
}

// ExecuteDeleteWorkshop removes a workshop and its attendee list.
func ExecuteDeleteWorkshop(ctx context.Context, input DeleteWorkshopInput, deps WorkshopDeps) error {
	if _, err := gate.Authorize(ctx, deps.Tree, input.OrgID, feature.Workshops, input.UserID, workshopManageRule); err != nil {
		return err
	}
	if _, err := loadWorkshop(ctx, deps.Tree, input.OrgID, input.WorkshopID); err != nil {
		return err
	}
	if err := deps.Tree.Delete(ctx, paths.Record(input.OrgID, feature.Workshops, "items", input.WorkshopID)); err != nil {
		return err
	}
	slog.Info("workshop_event", "event", "workshop_deleted", "org_id", input.OrgID, "workshop_id", input.WorkshopID, "by", input.UserID)
	return nil
}

// --- Enroll / Unenroll ---

// EnrollmentInput carries input for joining or leaving a workshop.
type EnrollmentInput struct {
	OrgID      string
	UserID     string
	WorkshopID string
}

// ExecuteEnroll adds the caller to the attendees. Capacity is checked inside the
// atomic update, so two callers cannot both take the last seat.
// PRE: caller is a member; workshop not started and not full
// POST: attendees[caller] is true; returns seats left (-1 when unlimited)
func ExecuteEnroll(ctx context.Context, input EnrollmentInput, deps WorkshopDeps) (int, error) {
	return changeEnrollment(ctx, input, deps, true)
}

// ExecuteUnenroll removes the caller from the attendees.
func ExecuteUnenroll(ctx context.Context, input EnrollmentInput, deps WorkshopDeps) (int, error) {
	return changeEnrollment(ctx, input, deps, false)
}

func changeEnrollment(ctx context.Context, input EnrollmentInput, deps WorkshopDeps, enroll bool) (int, error) {
	if _, err := gate.Authorize(ctx, deps.Tree, input.OrgID, feature.Workshops, input.UserID, feature.RuleMember); err != nil {
		return 0, err
	}
	w, err := loadWorkshop(ctx, deps.Tree, input.OrgID, input.WorkshopID)
	if err != nil {
		return 0, err
	}
	now := deps.Now()
	record := paths.Record(input.OrgID, feature.Workshops, "items", input.WorkshopID)
	err = transactField(ctx, deps.Tree, record, "attendees", workshop.ErrNotFound, func(cur tree.Snapshot) (any, error) {
		w.Attendees = map[string]bool{}
		if cur.Exists() {
			if err := cur.Decode(&w.Attendees); err != nil {
				return nil, err
			}
		}
		if enroll {
			if err := w.Enroll(input.UserID, now); err != nil {
				return nil, err
			}
		} else if err := w.Unenroll(input.UserID); err != nil {
			return nil, err
		}
		return w.Attendees, nil
	})
	if err != nil {
		return 0, err
	}
	event := "enrolled"
	if !enroll {
		event = "unenrolled"
	}
	slog.Info("workshop_event", "event", event, "org_id", input.OrgID, "workshop_id", input.WorkshopID, "user_id", input.UserID)
	return w.SeatsLeft(), nil
}
