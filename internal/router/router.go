// Package router provides the story transition graph and workflow routing
// based on story state.
//
// The transition graph ([Legal], [Next]) is the single source of truth for
// which state changes the story state machine accepts. The [Router] maps a
// story state to the workflow that moves it forward, and provides lifecycle
// step sequences for multi-step execution from any state to DONE.
//
// Routing can be driven by hardcoded defaults ([NewRouter]) or by a workflow
// manifest ([NewRouterFromManifest]).
//
// Key types:
//   - [Router] - Configurable workflow router (hardcoded or manifest-driven)
//   - [LifecycleStep] - A single step in a lifecycle sequence
package router

import (
	"errors"

	"storyflow/internal/ledger"
	"storyflow/internal/manifest"
)

// Sentinel errors for workflow routing.
var (
	// ErrStoryComplete is a sentinel error indicating the story is DONE
	// and no workflow is needed. Callers should skip the story rather than treat
	// this as a failure condition.
	ErrStoryComplete = errors.New("story is complete, no workflow needed")

	// ErrUnknownStatus is a sentinel error indicating the state value is not
	// recognized, or that no workflow is routed for it.
	ErrUnknownStatus = errors.New("unknown state value")
)

// chainStep is an internal representation of a step in the workflow chain.
type chainStep struct {
	Workflow   string
	NextState  ledger.State
	Definition string
}

// Router routes story states to workflows.
//
// Create with [NewRouter] for hardcoded defaults or [NewRouterFromManifest]
// for manifest-driven routing. The router supports two modes of operation:
//   - Single-step: [Router.GetWorkflow] returns one workflow for a state
//   - Multi-step: [Router.GetLifecycle] returns all remaining steps to DONE
type Router struct {
	// stateWorkflow maps trigger state → workflow name for single-step routing.
	stateWorkflow map[ledger.State]string

	// chain is the ordered workflow chain for lifecycle execution.
	chain []chainStep

	// stateChainIndex maps trigger state → index into chain where execution starts.
	stateChainIndex map[ledger.State]int
}

// NewRouter creates a [Router] with the default hardcoded routing rules.
//
// The default chain is: plan-story → start-story → finish-story.
// State mappings are:
//   - BACKLOG → plan-story (then TODO)
//   - TODO → start-story (then IN_PROGRESS)
//   - IN_PROGRESS → finish-story (then DONE)
//   - DONE → [ErrStoryComplete]
func NewRouter() *Router {
	return &Router{
		stateWorkflow: map[ledger.State]string{
			ledger.StateBacklog:    "plan-story",
			ledger.StateTodo:       "start-story",
			ledger.StateInProgress: "finish-story",
		},
		chain: []chainStep{
			{Workflow: "plan-story", NextState: ledger.StateTodo},
			{Workflow: "start-story", NextState: ledger.StateInProgress},
			{Workflow: "finish-story", NextState: ledger.StateDone},
		},
		stateChainIndex: map[ledger.State]int{
			ledger.StateBacklog:    0,
			ledger.StateTodo:       1,
			ledger.StateInProgress: 2,
		},
	}
}

// NewRouterFromManifest creates a [Router] from a workflow manifest.
//
// The manifest entries define:
//   - The workflow chain order (from entry order in the manifest)
//   - State-to-workflow mappings (from trigger_state fields)
//   - State transitions (from next_state fields)
//
// Entries without a trigger_state are included in the lifecycle chain but
// are not directly triggerable by state.
func NewRouterFromManifest(m *manifest.Manifest) *Router {
	r := &Router{
		stateWorkflow:   make(map[ledger.State]string),
		stateChainIndex: make(map[ledger.State]int),
	}

	seen := make(map[string]bool)
	for _, entry := range m.Entries {
		if seen[entry.Workflow] {
			// Already in the chain; only add the extra trigger state.
			if entry.TriggerState != "" {
				s := ledger.State(entry.TriggerState)
				r.stateWorkflow[s] = entry.Workflow
				for i, step := range r.chain {
					if step.Workflow == entry.Workflow {
						r.stateChainIndex[s] = i
						break
					}
				}
			}
			continue
		}
		seen[entry.Workflow] = true

		r.chain = append(r.chain, chainStep{
			Workflow:   entry.Workflow,
			NextState:  ledger.State(entry.NextState),
			Definition: entry.Definition,
		})

		if entry.TriggerState != "" {
			s := ledger.State(entry.TriggerState)
			r.stateWorkflow[s] = entry.Workflow
			r.stateChainIndex[s] = len(r.chain) - 1
		}
	}

	return r
}

// InsertStepAfter inserts a new workflow into the chain directly after an
// existing one.
//
// The new step inherits no trigger state, so [Router.GetWorkflow] results are
// unchanged; lifecycle sequences that pass through afterWorkflow will include
// it. Inserting after an unknown workflow, or inserting a workflow that is
// already in the chain, is a no-op.
func (r *Router) InsertStepAfter(afterWorkflow, workflow string, nextState ledger.State) {
	pos := -1
	for i, step := range r.chain {
		if step.Workflow == workflow {
			return
		}
		if step.Workflow == afterWorkflow {
			pos = i
		}
	}
	if pos < 0 {
		return
	}

	insertAt := pos + 1
	r.chain = append(r.chain, chainStep{})
	copy(r.chain[insertAt+1:], r.chain[insertAt:])
	r.chain[insertAt] = chainStep{Workflow: workflow, NextState: nextState}

	for s, idx := range r.stateChainIndex {
		if idx >= insertAt {
			r.stateChainIndex[s] = idx + 1
		}
	}
}

// GetWorkflow returns the single workflow name for the given story state.
//
// Returns [ErrStoryComplete] for DONE stories (caller should skip, not fail).
// Returns [ErrUnknownStatus] for unrouted state values.
func (r *Router) GetWorkflow(s ledger.State) (string, error) {
	if s == ledger.StateDone {
		return "", ErrStoryComplete
	}

	workflow, ok := r.stateWorkflow[s]
	if !ok {
		return "", ErrUnknownStatus
	}
	return workflow, nil
}

// GetLifecycle returns the complete sequence of lifecycle steps from the given
// state through to DONE.
//
// Returns [ErrStoryComplete] for DONE stories (caller should skip, not fail).
// Returns [ErrUnknownStatus] for unrouted state values.
func (r *Router) GetLifecycle(s ledger.State) ([]LifecycleStep, error) {
	if s == ledger.StateDone {
		return nil, ErrStoryComplete
	}

	startIdx, ok := r.stateChainIndex[s]
	if !ok {
		return nil, ErrUnknownStatus
	}

	remaining := r.chain[startIdx:]
	steps := make([]LifecycleStep, len(remaining))
	for i, cs := range remaining {
		steps[i] = LifecycleStep{
			Workflow:   cs.Workflow,
			NextState:  cs.NextState,
			Definition: cs.Definition,
		}
	}

	return steps, nil
}
