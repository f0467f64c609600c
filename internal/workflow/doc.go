// Package workflow loads declarative workflow definitions and executes them
// one step at a time with a durable checkpoint after every step.
//
// A [Definition] is an ordered list of steps, each naming an [Action] from a
// [Registry]. An [Executor] drives one run of one definition: it resolves the
// next step from the checkpoint, runs its action, merges the variables the
// action returns and persists the run before returning. A run that stops, for
// any reason, resumes from its last completed step.
//
// Key types:
//   - [Definition] / [Step] - Parsed workflow definitions
//   - [Executor] - Initialize, step, resume and reset one run
//   - [Registry] / [Action] - The closed set of step actions
//   - [Runner] - Resolves definitions by name and runs child workflows
package workflow
