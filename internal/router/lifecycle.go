package router

import (
	"storyflow/internal/ledger"
)

// LifecycleStep represents a single step in the story lifecycle sequence.
//
// Each step contains the workflow to execute and the state to transition to
// after the workflow completes successfully. The lifecycle executor uses these
// steps to drive a story from its current state through to DONE.
type LifecycleStep struct {
	// Workflow is the name of the workflow definition to execute for this step.
	Workflow string `json:"workflow"`

	// NextState is the state to transition to after this step completes
	// successfully. The final step transitions to DONE.
	NextState ledger.State `json:"nextState"`

	// Definition is an optional explicit path to the workflow definition file.
	// When empty, the workflow is resolved by name in the workflows directory.
	Definition string `json:"definition,omitempty"`
}
