package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLedger = `# Stories

## BACKLOG
### Milestone 2.0: Advanced Features
- [ ] **[STORY-011]** Sub-workflows support | 13 points
- [ ] **[story-012]** Nested templates | 8 points | @bob
## TODO
## IN PROGRESS
- [ ] **[STORY-013]** Agent composition | 21 points | @alice | Started: 2025-10-25
## DONE
- [x] **[STORY-007]** Basic setup | 5 points | Completed: 2025-10-20
`

func intPtr(n int) *int { return &n }

func datePtr(y, m, d int) *Date {
	date := NewDate(y, time.Month(m), d)
	return &date
}

func TestParse_SampleLedger(t *testing.T) {
	result := Parse(sampleLedger)

	require.Empty(t, result.Errors)
	require.Len(t, result.Stories, 4)

	assert.Equal(t, Story{
		ID:        "STORY-011",
		Title:     "Sub-workflows support",
		State:     StateBacklog,
		Points:    intPtr(13),
		Milestone: "2.0: Advanced Features",
	}, result.Stories[0])

	assert.Equal(t, "STORY-012", result.Stories[1].ID, "ids are canonicalized to upper case")
	assert.Equal(t, "bob", result.Stories[1].Assignee)
	assert.Equal(t, "2.0: Advanced Features", result.Stories[1].Milestone)

	assert.Equal(t, Story{
		ID:          "STORY-013",
		Title:       "Agent composition",
		State:       StateInProgress,
		Points:      intPtr(21),
		Assignee:    "alice",
		StartedDate: datePtr(2025, 10, 25),
	}, result.Stories[2], "milestone resets at the section boundary")

	assert.Equal(t, Story{
		ID:            "STORY-007",
		Title:         "Basic setup",
		State:         StateDone,
		Points:        intPtr(5),
		CompletedDate: datePtr(2025, 10, 20),
		Completed:     true,
	}, result.Stories[3])
}

func TestParse_MalformedLinesAreSkipped(t *testing.T) {
	text := `## BACKLOG
- [ ] **[STORY-001]** Good story
- [ ] **[NOPE]** Bad id
- [?] **[STORY-002]** Bad marker
- [ ] **[STORY-003]** | 3 points
- [ ] **[STORY-004]** Bad date | Due: 2025-13-45
- [ ] **[STORY-005]** Another good one | 2 points
`
	result := Parse(text)

	require.Len(t, result.Stories, 2)
	assert.Equal(t, "STORY-001", result.Stories[0].ID)
	assert.Equal(t, "STORY-005", result.Stories[1].ID)

	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "line 3:")
	assert.Contains(t, result.Errors[0], "invalid story id")
	assert.Contains(t, result.Errors[1], "line 4:")
	assert.Contains(t, result.Errors[2], "line 5:")
	assert.Contains(t, result.Errors[2], "empty title")
	assert.Contains(t, result.Errors[3], "line 6:")
	assert.Contains(t, result.Errors[3], "invalid date")
	assert.True(t, result.HasErrors())
}

func TestParse_DuplicateID(t *testing.T) {
	text := `## BACKLOG
- [ ] **[STORY-001]** First
## TODO
- [ ] **[story-001]** Second
`
	result := Parse(text)

	require.Len(t, result.Stories, 1)
	assert.Equal(t, "First", result.Stories[0].Title)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "line 4: duplicate story id STORY-001 (first defined on line 2)")
}

func TestParse_ItemOutsideSection(t *testing.T) {
	text := `# Stories
- [ ] **[STORY-001]** Orphan
## TODO
- [ ] **[STORY-003]** Fine
`
	result := Parse(text)

	require.Len(t, result.Stories, 1)
	assert.Equal(t, StateTodo, result.Stories[0].State)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "line 2:")
}

func TestParse_NonLifecycleSectionsIgnored(t *testing.T) {
	text := `## BACKLOG
- [ ] **[STORY-001]** Real story
- [Design doc](docs/design.md)
## Notes
- [Design doc](docs/design.md)
- [ ] buy milk
- [x] **[STORY-002]** Not tracked here
## DONE
- [x] **[STORY-003]** Shipped
`
	result := Parse(text)

	assert.Empty(t, result.Errors)
	require.Len(t, result.Stories, 2)
	assert.Equal(t, "STORY-001", result.Stories[0].ID)
	assert.Equal(t, "STORY-003", result.Stories[1].ID)
	assert.Equal(t, StateDone, result.Stories[1].State)
}

func TestParse_LinkIsNotAStoryLine(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantError bool
	}{
		{"markdown link", "- [Design doc](docs/design.md)", false},
		{"reference link", "* [RFC]: https://example.com", false},
		{"unchecked item without id", "- [ ] buy milk", true},
		{"checked item without id", "- [X] shipped something", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Parse("## BACKLOG\n" + tt.line + "\n")

			assert.Empty(t, result.Stories)
			assert.Equal(t, tt.wantError, result.HasErrors())
		})
	}
}

func TestParse_BareMilestoneHeadingClearsMilestone(t *testing.T) {
	text := `## BACKLOG
### Milestone 1.0: Core
- [ ] **[A-1]** In core
### Milestone
- [ ] **[A-2]** No milestone
### Milestones overview
- [ ] **[A-3]** Still none
`
	result := Parse(text)

	require.Empty(t, result.Errors)
	require.Len(t, result.Stories, 3)
	assert.Equal(t, "1.0: Core", result.Stories[0].Milestone)
	assert.Empty(t, result.Stories[1].Milestone)
	assert.Empty(t, result.Stories[2].Milestone)
}

func TestParse_Metadata(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		check func(t *testing.T, s Story)
	}{
		{
			name: "no points is absent, not zero",
			line: "- [ ] **[STORY-001]** Plain",
			check: func(t *testing.T, s Story) {
				assert.Nil(t, s.Points)
			},
		},
		{
			name: "zero points is unestimated",
			line: "- [ ] **[STORY-001]** Zero | 0 points",
			check: func(t *testing.T, s Story) {
				assert.Nil(t, s.Points)
			},
		},
		{
			name: "points without unit",
			line: "- [ ] **[STORY-001]** Bare | 3",
			check: func(t *testing.T, s Story) {
				require.NotNil(t, s.Points)
				assert.Equal(t, 3, *s.Points)
			},
		},
		{
			name: "singular point",
			line: "- [ ] **[STORY-001]** One | 1 point",
			check: func(t *testing.T, s Story) {
				require.NotNil(t, s.Points)
				assert.Equal(t, 1, *s.Points)
			},
		},
		{
			name: "unknown fields ignored",
			line: "- [ ] **[STORY-001]** Tagged | priority: high | 2 points | #label",
			check: func(t *testing.T, s Story) {
				require.NotNil(t, s.Points)
				assert.Equal(t, 2, *s.Points)
			},
		},
		{
			name: "due date and case-insensitive labels",
			line: "- [ ] **[STORY-001]** Dated | due: 2025-11-01",
			check: func(t *testing.T, s Story) {
				assert.Equal(t, datePtr(2025, 11, 1), s.DueDate)
			},
		},
		{
			name: "uppercase checkbox marker",
			line: "- [X] **[STORY-001]** Checked",
			check: func(t *testing.T, s Story) {
				assert.True(t, s.Completed)
			},
		},
		{
			name: "id without bold markers",
			line: "- [ ] [STORY-001] Unbolded",
			check: func(t *testing.T, s Story) {
				assert.Equal(t, "Unbolded", s.Title)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Parse("## BACKLOG\n" + tt.line + "\n")
			require.Empty(t, result.Errors)
			require.Len(t, result.Stories, 1)
			tt.check(t, result.Stories[0])
		})
	}
}

func TestParse_CRLF(t *testing.T) {
	result := Parse("## TODO\r\n- [ ] **[STORY-001]** Windows | @eve\r\n")

	require.Empty(t, result.Errors)
	require.Len(t, result.Stories, 1)
	assert.Equal(t, "eve", result.Stories[0].Assignee)
	assert.Equal(t, StateTodo, result.Stories[0].State)
}

func TestParseState(t *testing.T) {
	tests := []struct {
		in      string
		want    State
		wantErr bool
	}{
		{in: "BACKLOG", want: StateBacklog},
		{in: "todo", want: StateTodo},
		{in: "IN PROGRESS", want: StateInProgress},
		{in: "in-progress", want: StateInProgress},
		{in: "In_Progress", want: StateInProgress},
		{in: " done ", want: StateDone},
		{in: "review", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseState(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestState_Heading(t *testing.T) {
	assert.Equal(t, "IN PROGRESS", StateInProgress.Heading())
	assert.Equal(t, "BACKLOG", StateBacklog.Heading())
}

func TestDate_Text(t *testing.T) {
	d, err := ParseDate("2025-02-03")
	require.NoError(t, err)
	assert.Equal(t, "2025-02-03", d.String())

	var back Date
	require.NoError(t, back.UnmarshalText([]byte("2025-02-03")))
	assert.Equal(t, d, back)

	_, err = ParseDate("03/02/2025")
	assert.Error(t, err)
}
