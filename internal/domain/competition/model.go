package competition

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// MaxDelta bounds a single score change.
const MaxDelta = 1000

// Domain errors
var (
	ErrEmptyCourse    = errors.New("course is required")
	ErrZeroDelta      = errors.New("score delta cannot be zero")
	ErrDeltaTooLarge  = errors.New("score delta cannot exceed 1000 points")
	ErrNoRounds       = errors.New("fixtures need at least one round")
	ErrInvalidMatch   = errors.New("a match needs two different teams")
	ErrUnknownTeam    = errors.New("fixtures reference a team that is not a course")
	ErrTooFewTeams    = errors.New("fixtures need at least two courses")
	ErrEmptySportName = errors.New("sport name cannot be empty")
)

// LogEntry records one score change under organizations/{orgId}/competition/log.
type LogEntry struct {
	ID        string    `json:"id,omitempty"`
	Course    string    `json:"course"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason,omitempty"`
	Total     int       `json:"total"`
	AuthorID  string    `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks if the LogEntry has valid data.
// PRE: LogEntry struct is populated
// POST: Returns nil if valid, error otherwise
func (e *LogEntry) Validate() error {
	if strings.TrimSpace(e.Course) == "" {
		return ErrEmptyCourse
	}
	if e.Delta == 0 {
		return ErrZeroDelta
	}
	if e.Delta > MaxDelta || e.Delta < -MaxDelta {
		return ErrDeltaTooLarge
	}
	return nil
}

// Standing is one row of the scoreboard.
type Standing struct {
	Course string `json:"course"`
	Score  int    `json:"score"`
}

// Standings orders scores highest first, ties by course name.
func Standings(scores map[string]int) []Standing {
	out := make([]Standing, 0, len(scores))
	for c, s := range scores {
		out = append(out, Standing{Course: c, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Course < out[j].Course
	})
	return out
}

// Match pairs two courses.
type Match struct {
	Home string `json:"home"`
	Away string `json:"away"`
}

// Round is one set of matches played together.
type Round struct {
	Name    string  `json:"name"`
	Matches []Match `json:"matches"`
}

// Group is a pool of teams in a group stage.
type Group struct {
	Name  string   `json:"name"`
	Teams []string `json:"teams"`
}

// Fixtures is a drafted tournament schedule stored under competition/fixtures.
type Fixtures struct {
	Sport       string    `json:"sport"`
	Groups      []Group   `json:"groups"`
	Rounds      []Round   `json:"rounds"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Validate checks the schedule against the center's courses.
// PRE: courses lists the valid team names
// POST: Returns nil if every match pairs two distinct known courses
func (f *Fixtures) Validate(courses []string) error {
	known := make(map[string]bool, len(courses))
	for _, c := range courses {
		known[c] = true
	}
	if len(f.Rounds) == 0 {
		return ErrNoRounds
	}
	for _, g := range f.Groups {
		for _, team := range g.Teams {
			if !known[team] {
				return fmt.Errorf("%w: %q", ErrUnknownTeam, team)
			}
		}
	}
	for _, r := range f.Rounds {
		for _, m := range r.Matches {
			if m.Home == "" || m.Away == "" || m.Home == m.Away {
				return ErrInvalidMatch
			}
			if !known[m.Home] || !known[m.Away] {
				return fmt.Errorf("%w: %s vs %s", ErrUnknownTeam, m.Home, m.Away)
			}
		}
	}
	if f.Groups == nil {
		f.Groups = []Group{}
	}
	return nil
}
