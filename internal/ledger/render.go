package ledger

import (
	"strconv"
	"strings"
)

// Title is the top-level heading written by [Render].
const Title = "# Stories"

// Render writes stories back to ledger text.
//
// All four sections are always emitted in lifecycle order. Within a section,
// stories without a milestone come first, followed by one "### Milestone"
// group per milestone in order of first appearance. Story order inside each
// group is preserved. Re-parsing the output yields the same story values.
func Render(stories []Story) string {
	var b strings.Builder
	b.WriteString(Title)
	b.WriteString("\n")

	for _, state := range States() {
		b.WriteString("\n## ")
		b.WriteString(state.Heading())
		b.WriteString("\n")

		var (
			loose      []Story
			milestones []string
			grouped    = make(map[string][]Story)
		)
		for _, s := range stories {
			if s.State != state {
				continue
			}
			if s.Milestone == "" {
				loose = append(loose, s)
				continue
			}
			if _, ok := grouped[s.Milestone]; !ok {
				milestones = append(milestones, s.Milestone)
			}
			grouped[s.Milestone] = append(grouped[s.Milestone], s)
		}

		if len(loose) > 0 {
			b.WriteString("\n")
			for _, s := range loose {
				b.WriteString(RenderItem(s))
				b.WriteString("\n")
			}
		}
		for _, name := range milestones {
			b.WriteString("\n### Milestone ")
			b.WriteString(name)
			b.WriteString("\n")
			for _, s := range grouped[name] {
				b.WriteString(RenderItem(s))
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}

// RenderItem renders a single story as a checklist line.
func RenderItem(s Story) string {
	var b strings.Builder
	if s.Completed {
		b.WriteString("- [x] ")
	} else {
		b.WriteString("- [ ] ")
	}
	b.WriteString("**[")
	b.WriteString(s.ID)
	b.WriteString("]** ")
	b.WriteString(s.Title)

	if s.Points != nil && *s.Points != 0 {
		b.WriteString(" | ")
		b.WriteString(strconv.Itoa(*s.Points))
		b.WriteString(" points")
	}
	if s.Assignee != "" {
		b.WriteString(" | @")
		b.WriteString(s.Assignee)
	}
	writeDate(&b, "Due", s.DueDate)
	writeDate(&b, "Started", s.StartedDate)
	writeDate(&b, "Completed", s.CompletedDate)

	return b.String()
}

func writeDate(b *strings.Builder, label string, d *Date) {
	if d == nil {
		return
	}
	b.WriteString(" | ")
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(d.String())
}
