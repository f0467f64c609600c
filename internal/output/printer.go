// Package output renders storyflow data for the terminal.
//
// [Printer] is the only place that knows about colors and layout. Commands
// pass it the values returned by the state machine and the workflow
// executor, or ask for JSON with [Printer.JSON].
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"storyflow/internal/checkpoint"
	"storyflow/internal/ledger"
	"storyflow/internal/router"
	"storyflow/internal/status"
	"storyflow/internal/workflow"
)

// Printer writes styled output to a writer.
type Printer struct {
	out   io.Writer
	style styles
}

// NewPrinter creates a Printer writing to stdout.
func NewPrinter() *Printer {
	return NewPrinterWithWriter(os.Stdout)
}

// NewPrinterWithWriter creates a Printer writing to w. Styles adapt to w:
// a writer that is not a terminal gets plain text.
func NewPrinterWithWriter(w io.Writer) *Printer {
	return &Printer{out: w, style: newStyles(lipgloss.NewRenderer(w), true)}
}

// SetColor enables or disables styling.
func (p *Printer) SetColor(enabled bool) {
	p.style = newStyles(lipgloss.NewRenderer(p.out), enabled)
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.out
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// JSON writes v as indented JSON.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Success prints a success line.
func (p *Printer) Success(msg string) {
	p.printf("%s %s\n", p.style.success.Render("✓"), msg)
}

// Error prints a failure line.
func (p *Printer) Error(msg string) {
	p.printf("%s %s\n", p.style.failure.Render("✗"), msg)
}

// Info prints a plain line.
func (p *Printer) Info(msg string) {
	p.printf("%s\n", msg)
}

// Board prints stories grouped by lifecycle state.
func (p *Printer) Board(b status.Board) {
	for i, state := range ledger.States() {
		if i > 0 {
			p.printf("\n")
		}
		stories := b.Of(state)
		p.printf("%s %s\n",
			p.style.title.Render(state.Heading()),
			p.style.label.Render(fmt.Sprintf("(%d)", len(stories))))
		if len(stories) == 0 {
			p.printf("  %s\n", p.style.subtle.Render("none"))
			continue
		}
		for _, s := range stories {
			p.printf("  %s\n", p.storyLine(s))
		}
	}
}

func (p *Printer) storyLine(s ledger.Story) string {
	mark := "[ ]"
	if s.Completed {
		mark = "[x]"
	}
	parts := []string{mark, p.style.id.Render(s.ID), s.Title}

	var meta []string
	if s.Points != nil && *s.Points != 0 {
		meta = append(meta, fmt.Sprintf("%d pts", *s.Points))
	}
	if s.Assignee != "" {
		meta = append(meta, "@"+s.Assignee)
	}
	if s.DueDate != nil {
		meta = append(meta, "due "+s.DueDate.String())
	}
	if s.Milestone != "" {
		meta = append(meta, "milestone "+s.Milestone)
	}
	if len(meta) > 0 {
		parts = append(parts, p.style.label.Render(strings.Join(meta, " · ")))
	}
	return strings.Join(parts, " ")
}

// ValidationReport prints the result of a ledger validation.
func (p *Printer) ValidationReport(r status.ValidationReport) {
	if r.Valid {
		p.Success("ledger is valid")
		return
	}
	p.printf("%s\n", p.style.warning.Render(fmt.Sprintf("%d problem(s) found:", len(r.Errors))))
	for _, e := range r.Errors {
		p.printf("  - %s\n", e)
	}
}

// StepResult prints the outcome of one executed step.
func (p *Printer) StepResult(res workflow.StepResult) {
	if res.Success {
		p.Success(res.Message)
	} else {
		p.Error(res.Message)
	}
	if res.State != nil {
		p.printf("  %s %d/%d %s\n",
			p.style.label.Render("progress"),
			res.State.CurrentStep, res.State.TotalSteps,
			p.phase(workflow.PhaseOf(res.State)))
	}
}

// Run prints a checkpointed run with its steps.
func (p *Printer) Run(run *checkpoint.Run) {
	p.printf("%s %s\n", p.style.title.Render(run.Workflow), p.phase(workflow.PhaseOf(run)))
	p.field("run", run.RunID)
	p.field("progress", fmt.Sprintf("%d/%d", run.CurrentStep, run.TotalSteps))
	p.field("started", run.StartedAt.Format(time.RFC3339))
	p.field("updated", run.LastUpdated.Format(time.RFC3339))
	if run.ParentWorkflow != "" {
		p.field("parent", run.ParentWorkflow)
	}

	p.printf("\n%s\n", p.style.heading.Render("Steps"))
	for i, s := range run.Steps {
		p.printf("  %2d. %s %s\n", i+1, p.stepIcon(s.Status), s.ID)
		if s.Error != "" {
			p.printf("      %s\n", p.style.failure.Render(s.Error))
		}
	}

	if len(run.ChildWorkflows) > 0 {
		p.printf("\n%s\n", p.style.heading.Render("Child workflows"))
		for _, c := range run.ChildWorkflows {
			p.printf("  - %s %s\n", c.WorkflowPath, p.style.label.Render(string(c.Status)))
		}
	}

	if len(run.Variables) > 0 {
		p.printf("\n%s\n", p.style.heading.Render("Variables"))
		for _, k := range sortedKeys(run.Variables) {
			p.printf("  %s = %v\n", k, run.Variables[k])
		}
	}
}

func (p *Printer) field(label, value string) {
	p.printf("  %s %s\n", p.style.label.Render(fmt.Sprintf("%-9s", label)), value)
}

func (p *Printer) phase(ph workflow.Phase) string {
	text := strings.ReplaceAll(string(ph), "_", " ")
	switch ph {
	case workflow.PhaseCompleted:
		return p.style.success.Render(text)
	case workflow.PhaseFailed:
		return p.style.failure.Render(text)
	case workflow.PhaseRunning:
		return p.style.warning.Render(text)
	}
	return p.style.subtle.Render(text)
}

func (p *Printer) stepIcon(s checkpoint.StepStatus) string {
	switch s {
	case checkpoint.StepCompleted:
		return p.style.success.Render("✓")
	case checkpoint.StepFailed:
		return p.style.failure.Render("✗")
	case checkpoint.StepInProgress:
		return p.style.warning.Render("●")
	}
	return p.style.subtle.Render("○")
}

// Workflows prints the available workflow definitions.
func (p *Printer) Workflows(defs []workflow.DefinitionFile) {
	if len(defs) == 0 {
		p.Info("no workflow definitions found")
		return
	}
	for _, d := range defs {
		p.printf("%s %s\n",
			p.style.title.Render(d.Definition.Name),
			p.style.label.Render(fmt.Sprintf("(%d steps)", len(d.Definition.Steps))))
		if d.Definition.Description != "" {
			p.printf("  %s\n", d.Definition.Description)
		}
		p.printf("  %s\n", p.style.subtle.Render(d.Path))
	}
}

// LifecycleSteps prints the workflows that would move a story to DONE.
func (p *Printer) LifecycleSteps(storyID string, steps []router.LifecycleStep) {
	p.printf("%s %s\n", p.style.heading.Render("Lifecycle for"), p.style.id.Render(storyID))
	for i, s := range steps {
		p.printf("  %d. %s -> %s\n", i+1, s.Workflow, s.NextState)
	}
}

// Progress prints a step header before a workflow or step starts.
func (p *Printer) Progress(index, total int, name string) {
	p.printf("%s %s\n", p.style.label.Render(fmt.Sprintf("[%d/%d]", index, total)), p.style.heading.Render(name))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
