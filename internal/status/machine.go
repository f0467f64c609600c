package status

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storyflow/internal/apperr"
	"storyflow/internal/ledger"
	"storyflow/internal/router"
)

// Work-in-progress limits. They are soft: [Machine.Validate] reports a
// violation, [Machine.Transition] never blocks on one.
const (
	MaxTodo       = 1
	MaxInProgress = 1
)

// Board groups stories by state, each list in ledger order.
type Board struct {
	Backlog    []ledger.Story `json:"backlog"`
	Todo       []ledger.Story `json:"todo"`
	InProgress []ledger.Story `json:"inProgress"`
	Done       []ledger.Story `json:"done"`
}

// Of returns the stories in the given state.
func (b Board) Of(s ledger.State) []ledger.Story {
	switch s {
	case ledger.StateBacklog:
		return b.Backlog
	case ledger.StateTodo:
		return b.Todo
	case ledger.StateInProgress:
		return b.InProgress
	case ledger.StateDone:
		return b.Done
	}
	return nil
}

// Counts returns the number of stories per state.
func (b Board) Counts() map[ledger.State]int {
	counts := make(map[ledger.State]int, 4)
	for _, s := range ledger.States() {
		counts[s] = len(b.Of(s))
	}
	return counts
}

// ValidationReport lists every rule the loaded ledger breaks.
type ValidationReport struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Option configures a [Machine].
type Option func(*Machine)

// WithClock sets the clock used for Started and Completed dates.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithLogger sets the logger for transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

// Machine is the story state machine for one ledger file.
//
// A Machine is not safe for concurrent use, and it assumes it is the only
// writer of its ledger for the lifetime of the command that created it.
type Machine struct {
	reader *Reader
	writer *Writer
	now    func() time.Time
	logger *slog.Logger

	stories     []ledger.Story
	parseErrors []string
}

// NewMachine creates a [Machine] for the ledger at path. The path is used
// as given; use [ResolvePath] for discovery.
func NewMachine(path string, opts ...Option) *Machine {
	m := &Machine{
		reader: &Reader{path: path},
		writer: NewWriter(path),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Path returns the ledger path.
func (m *Machine) Path() string {
	return m.reader.Path()
}

// Load reads and parses the ledger, replacing the in-memory story set.
func (m *Machine) Load() error {
	result, err := m.reader.Read()
	if err != nil {
		return err
	}
	m.stories = result.Stories
	m.parseErrors = result.Errors
	if result.HasErrors() {
		m.logger.Warn("ledger has malformed lines",
			slog.String("path", m.Path()),
			slog.Int("count", len(result.Errors)))
	}
	return nil
}

// ParseErrors returns the line errors from the last load.
func (m *Machine) ParseErrors() []string {
	return append([]string(nil), m.parseErrors...)
}

// Stories returns a copy of every loaded story in ledger order.
func (m *Machine) Stories() []ledger.Story {
	return ledger.CloneAll(m.stories)
}

// GetStatus returns the loaded stories grouped by state.
func (m *Machine) GetStatus() Board {
	var b Board
	for _, s := range m.stories {
		c := s.Clone()
		switch s.State {
		case ledger.StateBacklog:
			b.Backlog = append(b.Backlog, c)
		case ledger.StateTodo:
			b.Todo = append(b.Todo, c)
		case ledger.StateInProgress:
			b.InProgress = append(b.InProgress, c)
		case ledger.StateDone:
			b.Done = append(b.Done, c)
		}
	}
	return b
}

// Story returns the story with the given ID (case-insensitive).
func (m *Machine) Story(id string) (ledger.Story, bool) {
	i := m.indexOf(id)
	if i < 0 {
		return ledger.Story{}, false
	}
	return m.stories[i].Clone(), true
}

// StoryState returns the current state of a story.
func (m *Machine) StoryState(id string) (ledger.State, error) {
	s, ok := m.Story(id)
	if !ok {
		return "", &StateMachineError{ID: ledger.CanonicalID(id), Err: apperr.ErrNotFound}
	}
	return s.State, nil
}

// CanTransition reports whether the story exists and may move to the given
// state. It does not touch the ledger file.
func (m *Machine) CanTransition(id string, to ledger.State) bool {
	s, ok := m.Story(id)
	if !ok {
		return false
	}
	return router.Legal(s.State, to)
}

// Transition moves a story to a new state and persists the ledger.
//
// The ledger is re-read first so the change applies to the file as it is now.
// Entering DONE checks the story off and stamps its completed date; entering
// any other state clears both. Entering IN_PROGRESS stamps the started date
// if it is not already set. On any error the file and the in-memory view are
// left unchanged.
func (m *Machine) Transition(id string, to ledger.State) error {
	if err := m.Load(); err != nil {
		return err
	}
	if len(m.parseErrors) > 0 {
		// Rendering would drop the malformed lines.
		return fmt.Errorf("%w: ledger %s has %d malformed line(s), fix them before changing it",
			apperr.ErrValidation, m.Path(), len(m.parseErrors))
	}

	canonical := ledger.CanonicalID(id)
	i := m.indexOf(canonical)
	if i < 0 {
		return &StateMachineError{ID: canonical, To: to, Err: apperr.ErrNotFound}
	}

	from := m.stories[i].State
	if !router.Legal(from, to) {
		return &StateMachineError{ID: canonical, From: from, To: to, Err: apperr.ErrIllegalTransition}
	}

	next := ledger.CloneAll(m.stories)
	m.apply(&next[i], to)

	if err := m.writer.Write(next); err != nil {
		return err
	}
	m.stories = next

	m.logger.Info("story transitioned",
		slog.String("story", canonical),
		slog.String("from", string(from)),
		slog.String("to", string(to)))
	return nil
}

func (m *Machine) apply(s *ledger.Story, to ledger.State) {
	today := ledger.DateOf(m.now())

	s.State = to
	if to == ledger.StateDone {
		s.Completed = true
		s.CompletedDate = &today
		return
	}

	s.Completed = false
	s.CompletedDate = nil
	if to == ledger.StateInProgress && s.StartedDate == nil {
		s.StartedDate = &today
	}
}

// Validate checks the loaded stories against the work-in-progress limits and
// the completed-flag rule, and includes any line errors from the last load.
// It never fails; violations are returned as data.
func (m *Machine) Validate() ValidationReport {
	var errs []string
	errs = append(errs, m.parseErrors...)

	board := m.GetStatus()
	errs = appendWIP(errs, ledger.StateTodo, board.Todo, MaxTodo)
	errs = appendWIP(errs, ledger.StateInProgress, board.InProgress, MaxInProgress)

	for _, s := range m.stories {
		switch {
		case s.Completed && s.State != ledger.StateDone:
			errs = append(errs, fmt.Sprintf("story %s is checked off but is in %s", s.ID, s.State.Heading()))
		case !s.Completed && s.State == ledger.StateDone:
			errs = append(errs, fmt.Sprintf("story %s is in DONE but is not checked off", s.ID))
		}
	}

	return ValidationReport{Valid: len(errs) == 0, Errors: errs}
}

func appendWIP(errs []string, state ledger.State, stories []ledger.Story, limit int) []string {
	if len(stories) <= limit {
		return errs
	}
	ids := make([]string, len(stories))
	for i, s := range stories {
		ids[i] = s.ID
	}
	return append(errs, fmt.Sprintf("%d stories in %s (limit %d): %s",
		len(stories), state.Heading(), limit, strings.Join(ids, ", ")))
}

func (m *Machine) indexOf(id string) int {
	canonical := ledger.CanonicalID(id)
	for i, s := range m.stories {
		if s.ID == canonical {
			return i
		}
	}
	return -1
}
