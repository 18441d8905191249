package role

// Role is a caller's permission tier for one feature of one organization.
type Role string

// Role labels, highest precedence first.
const (
	Owner     Role = "owner"
	AdminPlus Role = "admin-plus"
	Admin     Role = "admin"
	Manager   Role = "manager"
	Student   Role = "student"
)

// All lists every role in precedence order.
var All = []Role{Owner, AdminPlus, Admin, Manager, Student}

// Membership is the organization-level role data stored on the center record.
// Each set maps user id to true; nil sets are treated as empty.
type Membership struct {
	OwnerID    string          `json:"ownerId"`
	AdminsPlus map[string]bool `json:"adminsPlus,omitempty"`
	Admins     map[string]bool `json:"admins,omitempty"`
	Students   map[string]bool `json:"students,omitempty"`
}

// Resolve derives exactly one role for userID.
// Precedence: owner > admin-plus > admin > feature manager > student.
// PRE: none; nil maps and an empty userID are tolerated
// POST: returns Owner only when userID is non-empty and equals m.OwnerID
func Resolve(userID string, m Membership, managers map[string]bool) Role {
	switch {
	case userID != "" && userID == m.OwnerID:
		return Owner
	case m.AdminsPlus[userID]:
		return AdminPlus
	case m.Admins[userID]:
		return Admin
	case managers[userID]:
		return Manager
	default:
		return Student
	}
}

// IsMember reports whether userID belongs to the organization at any tier.
func (m Membership) IsMember(userID string) bool {
	if userID == "" {
		return false
	}
	return userID == m.OwnerID || m.AdminsPlus[userID] || m.Admins[userID] || m.Students[userID]
}

// Members returns every distinct member id, owner included.
func (m Membership) Members() map[string]bool {
	out := make(map[string]bool, 1+len(m.AdminsPlus)+len(m.Admins)+len(m.Students))
	if m.OwnerID != "" {
		out[m.OwnerID] = true
	}
	for _, set := range []map[string]bool{m.AdminsPlus, m.Admins, m.Students} {
		for uid, ok := range set {
			if ok {
				out[uid] = true
			}
		}
	}
	return out
}

// Tier returns the organization-level tier of userID, ignoring feature managers.
// The second result is false for non-members.
func (m Membership) Tier(userID string) (Role, bool) {
	if !m.IsMember(userID) {
		return "", false
	}
	return Resolve(userID, m, nil), true
}

// Access is a resolved role together with membership, since non-members
// also resolve to Student but must not pass member-level checks.
type Access struct {
	UserID   string `json:"userId"`
	Role     Role   `json:"role"`
	IsMember bool   `json:"isMember"`
}

// ResolveAccess resolves userID against m and the feature managers.
// Feature managers outside the membership still count as members of that feature.
func ResolveAccess(userID string, m Membership, managers map[string]bool) Access {
	r := Resolve(userID, m, managers)
	return Access{
		UserID:   userID,
		Role:     r,
		IsMember: m.IsMember(userID) || r == Manager,
	}
}

// IsStaff reports whether the role is above Student.
func (r Role) IsStaff() bool {
	return r != Student && r != ""
}
