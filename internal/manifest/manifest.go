// Package manifest reads lifecycle workflow manifest files.
//
// The workflow manifest (typically at .storyflow/lifecycle.csv) catalogs the
// workflows that move a story through its lifecycle, with the state that
// triggers each one and the state the story moves to once it succeeds. This
// enables per-project routing instead of the hardcoded default chain.
//
// CSV format:
//
//	workflow,trigger_state,next_state,definition
//	plan-story,BACKLOG,TODO,
//	start-story,TODO,IN_PROGRESS,workflows/start.yaml
//	finish-story,IN_PROGRESS,DONE,
//	announce,,DONE,
//
// Rows are ordered by lifecycle execution sequence. A workflow may appear
// multiple times with different trigger_state values. The definition column
// is optional; when empty the workflow is resolved by name.
package manifest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"storyflow/internal/ledger"
)

// WorkflowEntry represents a single row in the workflow manifest CSV.
type WorkflowEntry struct {
	// Workflow is the workflow name, matching a definition in the workflows directory.
	Workflow string

	// TriggerState is the story state that triggers this workflow, in
	// canonical form (e.g. "IN_PROGRESS"). Empty for workflows that are only
	// part of the lifecycle chain.
	TriggerState string

	// NextState is the state to set after successful workflow completion.
	NextState string

	// Definition is an optional explicit path to the workflow definition.
	Definition string
}

// Manifest holds all workflow entries parsed from a manifest CSV file.
type Manifest struct {
	// Entries are the workflow entries in lifecycle execution order.
	Entries []WorkflowEntry
}

// ReadFromFile reads and parses a workflow manifest CSV file.
func ReadFromFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	return readFromReader(f)
}

// ReadFromString parses a workflow manifest from a CSV string.
// This is useful for testing and for embedding manifest data.
func ReadFromString(data string) (*Manifest, error) {
	return readFromReader(strings.NewReader(data))
}

func readFromReader(r io.Reader) (*Manifest, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest header: %w", err)
	}

	colIndex := buildColumnIndex(header)
	if err := validateColumns(colIndex); err != nil {
		return nil, err
	}

	var entries []WorkflowEntry
	lineNum := 1 // header was line 1
	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest line %d: %w", lineNum, err)
		}

		entry := WorkflowEntry{
			Workflow:     getField(record, colIndex, "workflow"),
			TriggerState: getField(record, colIndex, "trigger_state"),
			NextState:    getField(record, colIndex, "next_state"),
			Definition:   getField(record, colIndex, "definition"),
		}

		if entry.Workflow == "" {
			return nil, fmt.Errorf("manifest line %d: workflow name is required", lineNum)
		}

		next, err := ledger.ParseState(entry.NextState)
		if err != nil {
			return nil, fmt.Errorf("manifest line %d: next_state: %w", lineNum, err)
		}
		entry.NextState = string(next)

		if entry.TriggerState != "" {
			trigger, err := ledger.ParseState(entry.TriggerState)
			if err != nil {
				return nil, fmt.Errorf("manifest line %d: trigger_state: %w", lineNum, err)
			}
			entry.TriggerState = string(trigger)
		}

		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("manifest contains no workflow entries")
	}

	return &Manifest{Entries: entries}, nil
}

// requiredColumns are the columns that must be present in the manifest CSV.
var requiredColumns = []string{"workflow", "trigger_state", "next_state"}

func buildColumnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(strings.ToLower(col))] = i
	}
	return index
}

func validateColumns(colIndex map[string]int) error {
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			return fmt.Errorf("manifest missing required column: %s", col)
		}
	}
	return nil
}

func getField(record []string, colIndex map[string]int, column string) string {
	idx, ok := colIndex[column]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// Workflows returns the unique workflow names in lifecycle order.
// The order is determined by first appearance in the manifest.
func (m *Manifest) Workflows() []string {
	seen := make(map[string]bool)
	var workflows []string
	for _, e := range m.Entries {
		if !seen[e.Workflow] {
			seen[e.Workflow] = true
			workflows = append(workflows, e.Workflow)
		}
	}
	return workflows
}

// GetWorkflowEntry returns the first entry matching the given workflow name.
// Returns nil if not found.
func (m *Manifest) GetWorkflowEntry(name string) *WorkflowEntry {
	for _, e := range m.Entries {
		if e.Workflow == name {
			return &e
		}
	}
	return nil
}

// HasWorkflow returns true if the manifest contains the given workflow.
func (m *Manifest) HasWorkflow(name string) bool {
	return m.GetWorkflowEntry(name) != nil
}

// GetEntriesForState returns all entries that have the given trigger state.
func (m *Manifest) GetEntriesForState(triggerState ledger.State) []WorkflowEntry {
	var entries []WorkflowEntry
	for _, e := range m.Entries {
		if e.TriggerState == string(triggerState) {
			entries = append(entries, e)
		}
	}
	return entries
}
