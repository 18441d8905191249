package organization

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"studentcenter/internal/domain/role"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength    = 80
	MaxCourseLength  = 40
	MaxCourses       = 40
	MinAccessCodeLen = 6
)

// Color presets for a center's theme.
const (
	ColorIndigo  = "indigo" // default
	ColorEmerald = "emerald"
	ColorRose    = "rose"
	ColorAmber   = "amber"
	ColorSky     = "sky"
	ColorSlate   = "slate"
)

// ColorHex maps preset names to hex values.
var ColorHex = map[string]string{
	ColorIndigo:  "#4f46e5",
	ColorEmerald: "#059669",
	ColorRose:    "#e11d48",
	ColorAmber:   "#d97706",
	ColorSky:     "#0284c7",
	ColorSlate:   "#475569",
}

// Domain errors
var (
	ErrNotFound          = errors.New("center not found")
	ErrEmptyName         = errors.New("center name cannot be empty")
	ErrNameTooLong       = errors.New("center name cannot exceed 80 characters")
	ErrEmptyOwner        = errors.New("center owner is required")
	ErrInvalidColor      = errors.New("center color must be one of: indigo, emerald, rose, amber, sky, slate")
	ErrNoCourses         = errors.New("center needs at least one course")
	ErrInvalidCourse     = errors.New("course names must be unique, non-empty and at most 40 characters")
	ErrUnknownCourse     = errors.New("course does not exist in this center")
	ErrAccessCodeShort   = errors.New("access code must be at least 6 characters")
	ErrWrongAccessCode   = errors.New("incorrect access code")
	ErrNotMember         = errors.New("user is not a member of this center")
	ErrAlreadyMember     = errors.New("user is already a member of this center")
	ErrCannotChangeOwner = errors.New("the owner's tier cannot be changed")
	ErrCannotRemoveOwner = errors.New("the owner cannot be expelled")
	ErrInvalidTier       = errors.New("tier must be one of: admin-plus, admin, student")
)

// Center is the organization record stored at organizations/{id}/center.
// Membership sets are inlined so the stored shape keeps ownerId, adminsPlus,
// admins and students at the top level.
type Center struct {
	role.Membership
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Color          string    `json:"color"`
	Courses        []string  `json:"courses"`
	AccessCodeHash string    `json:"accessCodeHash,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Validate checks if the Center has valid data.
// PRE: Center struct is populated
// POST: Returns nil if valid, error otherwise
func (c *Center) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	if c.OwnerID == "" {
		return ErrEmptyOwner
	}
	if c.Color != "" {
		if _, ok := ColorHex[c.Color]; !ok {
			return ErrInvalidColor
		}
	}
	if len(c.Courses) == 0 {
		return ErrNoCourses
	}
	if len(c.Courses) > MaxCourses {
		return ErrInvalidCourse
	}
	seen := make(map[string]bool, len(c.Courses))
	for _, course := range c.Courses {
		course = strings.TrimSpace(course)
		if course == "" || len(course) > MaxCourseLength || seen[course] || strings.ContainsAny(course, "/.#$[]") {
			return ErrInvalidCourse
		}
		seen[course] = true
	}
	return nil
}

// EffectiveColor returns the theme hex value, defaulting to indigo.
func (c *Center) EffectiveColor() string {
	if hex, ok := ColorHex[c.Color]; ok {
		return hex
	}
	return ColorHex[ColorIndigo]
}

// HasCourse reports whether course is one of the center's courses.
func (c *Center) HasCourse(course string) bool {
	for _, existing := range c.Courses {
		if existing == course {
			return true
		}
	}
	return false
}

// SetAccessCode stores a bcrypt hash of the join code.
// PRE: code has at least MinAccessCodeLen characters
// POST: AccessCodeHash is set
func (c *Center) SetAccessCode(code string) error {
	if len(strings.TrimSpace(code)) < MinAccessCodeLen {
		return ErrAccessCodeShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	c.AccessCodeHash = string(hash)
	return nil
}

// CheckAccessCode compares code against the stored hash.
func (c *Center) CheckAccessCode(code string) error {
	if c.AccessCodeHash == "" {
		return ErrWrongAccessCode
	}
	if bcrypt.CompareHashAndPassword([]byte(c.AccessCodeHash), []byte(code)) != nil {
		return ErrWrongAccessCode
	}
	return nil
}

// Join adds userID to the students set.
// PRE: userID is not already a member
// POST: Students[userID] is true
func (c *Center) Join(userID string) error {
	if c.IsMember(userID) {
		return ErrAlreadyMember
	}
	if c.Students == nil {
		c.Students = map[string]bool{}
	}
	c.Students[userID] = true
	return nil
}

// SetTier moves a member into exactly one of the admin-plus, admin or student sets.
// PRE: userID is a member other than the owner
// POST: userID appears only in the set for tier
func (c *Center) SetTier(userID string, tier role.Role) error {
	if userID == c.OwnerID {
		return ErrCannotChangeOwner
	}
	if !c.IsMember(userID) {
		return ErrNotMember
	}
	if tier != role.AdminPlus && tier != role.Admin && tier != role.Student {
		return ErrInvalidTier
	}
	c.clear(userID)
	switch tier {
	case role.AdminPlus:
		c.AdminsPlus = put(c.AdminsPlus, userID)
	case role.Admin:
		c.Admins = put(c.Admins, userID)
	default:
		c.Students = put(c.Students, userID)
	}
	return nil
}

// Remove expels userID from every membership set.
// PRE: userID is a member other than the owner
// POST: IsMember(userID) is false
func (c *Center) Remove(userID string) error {
	if userID == c.OwnerID {
		return ErrCannotRemoveOwner
	}
	if !c.IsMember(userID) {
		return ErrNotMember
	}
	c.clear(userID)
	return nil
}

func (c *Center) clear(userID string) {
	delete(c.AdminsPlus, userID)
	delete(c.Admins, userID)
	delete(c.Students, userID)
}

func put(set map[string]bool, userID string) map[string]bool {
	if set == nil {
		set = map[string]bool{}
	}
	set[userID] = true
	return set
}

// CanAssignTier reports whether an actor may move a member from one tier to another.
// The owner may assign any tier; admin-plus may only move members between admin and student.
func CanAssignTier(actor, from, to role.Role) bool {
	switch actor {
	case role.Owner:
		return true
	case role.AdminPlus:
		lower := func(r role.Role) bool { return r == role.Admin || r == role.Student }
		return lower(from) && lower(to)
	default:
		return false
	}
}
