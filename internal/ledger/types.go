// Package ledger parses and renders the Markdown story ledger.
//
// The ledger is a checklist grouped by lifecycle section. It is both the
// durable store and the human-facing artifact, so parsing and rendering are
// pure text transforms with no file access:
//
//	## BACKLOG
//	### Milestone 2.0: Advanced Features
//	- [ ] **[STORY-011]** Sub-workflows support | 13 points
//	## IN PROGRESS
//	- [ ] **[STORY-013]** Agent composition | 21 points | @alice | Started: 2025-10-25
//	## DONE
//	- [x] **[STORY-007]** Basic setup | 5 points | Completed: 2025-10-20
//
// Key types:
//   - [Story] - A single ledger item
//   - [State] - The lifecycle section a story lives in
//   - [Result] - Parsed stories plus per-line errors
//
// Use [Parse] to read ledger text and [Render] to write it back.
package ledger

import (
	"fmt"
	"strings"
	"time"
)

// State represents the lifecycle state of a story.
//
// The state is determined by the ledger section ("## TODO", ...) the story
// appears under.
type State string

// Lifecycle states, in ledger order.
const (
	StateBacklog    State = "BACKLOG"
	StateTodo       State = "TODO"
	StateInProgress State = "IN_PROGRESS"
	StateDone       State = "DONE"
)

// States returns all lifecycle states in the order their sections appear
// in a rendered ledger.
func States() []State {
	return []State{StateBacklog, StateTodo, StateInProgress, StateDone}
}

// IsValid returns true if the state is one of the four lifecycle states.
func (s State) IsValid() bool {
	switch s {
	case StateBacklog, StateTodo, StateInProgress, StateDone:
		return true
	}
	return false
}

// Heading returns the section title used for this state in the ledger.
func (s State) Heading() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// ParseState converts user or ledger input into a [State].
//
// Matching is case-insensitive and treats spaces, hyphens and underscores
// alike, so "in progress", "In-Progress" and "IN_PROGRESS" are all accepted.
func ParseState(s string) (State, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	state := State(norm)
	if !state.IsValid() {
		return "", fmt.Errorf("unknown state %q", s)
	}
	return state, nil
}

// dateLayout is the on-disk format of every ledger date.
const dateLayout = "2006-01-02"

// Date is a calendar date without time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the [Date] for the given year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// String returns the date in YYYY-MM-DD form.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Story is a single work item from the ledger.
//
// Optional fields are pointers (or empty strings) so that "absent" is
// distinguishable from a zero value: a story with no points (or "0 points",
// which the ledger treats as unestimated) has a nil Points.
type Story struct {
	// ID is the canonical upper-case identifier, e.g. "STORY-011".
	ID string `json:"id"`

	// Title is the free text between the ID and the first "|".
	Title string `json:"title"`

	// State is the lifecycle section the story was found under.
	State State `json:"state"`

	Points        *int   `json:"points,omitempty"`
	Assignee      string `json:"assignee,omitempty"`
	DueDate       *Date  `json:"dueDate,omitempty"`
	StartedDate   *Date  `json:"startedDate,omitempty"`
	CompletedDate *Date  `json:"completedDate,omitempty"`

	// Milestone is inherited from the nearest "### Milestone" heading
	// above the story within its section.
	Milestone string `json:"milestone,omitempty"`

	// Completed mirrors the checkbox marker. It must be true exactly when
	// State is DONE; the state machine keeps them in step.
	Completed bool `json:"completed"`
}

// Clone returns a deep copy of the story.
func (s Story) Clone() Story {
	c := s
	if s.Points != nil {
		p := *s.Points
		c.Points = &p
	}
	c.DueDate = cloneDate(s.DueDate)
	c.StartedDate = cloneDate(s.StartedDate)
	c.CompletedDate = cloneDate(s.CompletedDate)
	return c
}

// CloneAll returns a deep copy of a story slice.
func CloneAll(stories []Story) []Story {
	if stories == nil {
		return nil
	}
	out := make([]Story, len(stories))
	for i, s := range stories {
		out[i] = s.Clone()
	}
	return out
}

func cloneDate(d *Date) *Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// CanonicalID upper-cases and trims a story ID.
func CanonicalID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
