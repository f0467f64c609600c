package ledger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	sectionRe   = regexp.MustCompile(`^##\s+(.+?)\s*#*\s*$`)
	milestoneRe = regexp.MustCompile(`^###\s+Milestone\b\s*(.*?)\s*$`)
	itemStartRe = regexp.MustCompile(`^\s*[-*]\s+\[[ xX]\]`)
	itemRe      = regexp.MustCompile(`^\s*[-*]\s+\[([ xX])\]\s+(?:\*\*)?\[([^\]]*)\](?:\*\*)?(.*)$`)
	idRe        = regexp.MustCompile(`^[A-Za-z]+-\d+$`)
	pointsRe    = regexp.MustCompile(`(?i)^(\d+)(?:\s*(?:points?|pts?))?$`)
	dateFieldRe = regexp.MustCompile(`(?i)^(due|started|completed)\s*:\s*(.*)$`)
)

// Result holds the outcome of parsing a ledger.
//
// Errors are human-readable and tagged with the 1-based line number of the
// offending line ("line 7: ..."). A line with an error contributes no story.
type Result struct {
	Stories []Story
	Errors  []string
}

// HasErrors returns true if any line failed to parse.
func (r Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// Parse reads ledger text into stories.
//
// Parse never fails as a whole. Each malformed item line is skipped and
// reported in [Result.Errors], so one bad line never hides the rest of the
// ledger. Unrecognized metadata fields are ignored. Lines that are neither
// headings nor checklist items are ignored, and so is everything under a
// "##" heading that is not one of the four states. A checklist item before
// the first "##" heading is an error.
func Parse(text string) Result {
	var (
		result    Result
		current   State
		inSection bool
		headed    bool
		milestone string
		seen      = make(map[string]int)
	)

	lines := strings.Split(text, "\n")
	for i, raw := range lines {
		lineNum := i + 1
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "###"):
			// A bare "### Milestone" ends the current milestone.
			if m := milestoneRe.FindStringSubmatch(trimmed); m != nil {
				milestone = m[1]
			}
			continue

		case strings.HasPrefix(trimmed, "## "):
			m := sectionRe.FindStringSubmatch(trimmed)
			milestone = ""
			inSection = false
			headed = true
			if m == nil {
				continue
			}
			state, err := ParseState(m[1])
			if err != nil {
				// Unknown sections end the current one.
				current = ""
				continue
			}
			current = state
			inSection = true
			continue

		case !itemStartRe.MatchString(line), headed && !inSection:
			continue
		}

		story, err := parseItem(line)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", lineNum, err))
			continue
		}
		if !inSection {
			result.Errors = append(result.Errors,
				fmt.Sprintf("line %d: story %s is not under a BACKLOG, TODO, IN PROGRESS or DONE section", lineNum, story.ID))
			continue
		}
		if first, dup := seen[story.ID]; dup {
			result.Errors = append(result.Errors,
				fmt.Sprintf("line %d: duplicate story id %s (first defined on line %d)", lineNum, story.ID, first))
			continue
		}
		seen[story.ID] = lineNum

		story.State = current
		story.Milestone = milestone
		result.Stories = append(result.Stories, story)
	}

	return result
}

// parseItem parses one checklist line. State and milestone are filled in by
// the caller from the surrounding headings.
func parseItem(line string) (Story, error) {
	m := itemRe.FindStringSubmatch(line)
	if m == nil {
		return Story{}, fmt.Errorf("malformed story line: expected \"- [ ] **[ID]** Title | metadata\"")
	}

	id := strings.TrimSpace(m[2])
	if !idRe.MatchString(id) {
		return Story{}, fmt.Errorf("invalid story id %q: expected PREFIX-NUMBER", id)
	}

	fields := strings.Split(m[3], "|")
	title := strings.TrimSpace(fields[0])
	if title == "" {
		return Story{}, fmt.Errorf("story %s has an empty title", CanonicalID(id))
	}

	story := Story{
		ID:        CanonicalID(id),
		Title:     title,
		Completed: m[1] != " ",
	}

	for _, field := range fields[1:] {
		if err := applyField(&story, strings.TrimSpace(field)); err != nil {
			return Story{}, fmt.Errorf("story %s: %w", story.ID, err)
		}
	}

	return story, nil
}

// applyField applies one pipe-delimited metadata field to the story.
// Unknown fields are ignored.
func applyField(story *Story, field string) error {
	if field == "" {
		return nil
	}

	if strings.HasPrefix(field, "@") {
		story.Assignee = strings.TrimSpace(strings.TrimPrefix(field, "@"))
		return nil
	}

	if m := pointsRe.FindStringSubmatch(field); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return fmt.Errorf("invalid points %q", field)
		}
		// Zero points means unestimated.
		if n == 0 {
			story.Points = nil
			return nil
		}
		story.Points = &n
		return nil
	}

	if m := dateFieldRe.FindStringSubmatch(field); m != nil {
		d, err := ParseDate(m[2])
		if err != nil {
			return fmt.Errorf("%s: %w", m[1], err)
		}
		switch strings.ToLower(m[1]) {
		case "due":
			story.DueDate = &d
		case "started":
			story.StartedDate = &d
		case "completed":
			story.CompletedDate = &d
		}
	}

	return nil
}
