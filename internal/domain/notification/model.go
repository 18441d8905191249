package notification

import (
	"errors"
	"sort"
	"time"

	"studentcenter/internal/domain/role"
)

// Type tags a notification record.
type Type string

// Notification types
const (
	TypeNewAnonymousChat         Type = "NEW_ANONYMOUS_CHAT"
	TypeFinanceVisibilityChanged Type = "FINANCE_VISIBILITY_CHANGED"
	TypeExpulsion                Type = "EXPULSION"
	TypeCenterDeleted            Type = "CENTER_DELETED"
	TypeRoleChanged              Type = "ROLE_CHANGED"
	TypeNewSurvey                Type = "NEW_SURVEY"
	TypeNewWorkshop              Type = "NEW_WORKSHOP"
)

// ValidTypes contains all valid notification types.
var ValidTypes = []Type{
	TypeNewAnonymousChat, TypeFinanceVisibilityChanged, TypeExpulsion,
	TypeCenterDeleted, TypeRoleChanged, TypeNewSurvey, TypeNewWorkshop,
}

// Domain errors
var (
	ErrInvalidType  = errors.New("unknown notification type")
	ErrEmptyOrg     = errors.New("notification must reference an organization")
	ErrAlreadyRead  = errors.New("notification is already read")
	ErrNoRecipients = errors.New("audience resolved to no recipients")
	ErrNotFound     = errors.New("notification not found")
)

// Notification is one per-recipient record stored at notifications/{userId}/{id}.
// Lifecycle: created unread, then read by the recipient. There is no way back.
type Notification struct {
	ID        string            `json:"id,omitempty"`
	Type      Type              `json:"type"`
	OrgID     string            `json:"orgId"`
	OrgName   string            `json:"orgName,omitempty"`
	Payload   map[string]string `json:"payload,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	Read      bool              `json:"read"`
	ReadAt    time.Time         `json:"readAt,omitzero"`
}

// Validate checks if the Notification has valid data.
// PRE: Notification struct is populated
// POST: Returns nil if valid, error otherwise
func (n *Notification) Validate() error {
	if !isValidType(n.Type) {
		return ErrInvalidType
	}
	if n.OrgID == "" {
		return ErrEmptyOrg
	}
	if n.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	return nil
}

// MarkRead moves the notification to its terminal state.
// PRE: Read is false
// POST: Read is true, ReadAt is now
func (n *Notification) MarkRead(now time.Time) error {
	if n.Read {
		return ErrAlreadyRead
	}
	n.Read = true
	n.ReadAt = now
	return nil
}

func isValidType(t Type) bool {
	for _, v := range ValidTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Audience selects the recipients of a fanout.
type Audience interface {
	Recipients() []string
}

// AllMembers is the owner plus every admin-plus, admin and student.
type AllMembers struct {
	Membership role.Membership
}

// Recipients returns the de-duplicated, sorted member ids.
func (a AllMembers) Recipients() []string {
	return sortedKeys(a.Membership.Members())
}

// OwnerAndManagers is the owner plus a feature's delegated managers.
type OwnerAndManagers struct {
	OwnerID  string
	Managers map[string]bool
}

// Recipients returns the de-duplicated, sorted ids.
func (a OwnerAndManagers) Recipients() []string {
	set := map[string]bool{}
	if a.OwnerID != "" {
		set[a.OwnerID] = true
	}
	for uid, ok := range a.Managers {
		if ok && uid != "" {
			set[uid] = true
		}
	}
	return sortedKeys(set)
}

// Single targets one user.
type Single struct {
	UserID string
}

// Recipients returns the user id, or nothing when it is empty.
func (a Single) Recipients() []string {
	if a.UserID == "" {
		return nil
	}
	return []string{a.UserID}
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for uid := range set {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out
}

// NewestFirst sorts notifications by CreatedAt descending, then ID descending.
func NewestFirst(list []Notification) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}
