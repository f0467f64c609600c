package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storyflow/internal/checkpoint"
)

// tracerName is the instrumentation scope name for workflow tracing.
const tracerName = "storyflow/internal/workflow"

// Phase is the execution state of a run, derived from its checkpoint.
type Phase string

// Run phases. A run that is not completed and has no executor driving it is
// paused; it resumes from its checkpoint.
const (
	PhaseNotStarted Phase = "not_started"
	PhaseRunning    Phase = "running"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// PhaseOf derives the phase of a checkpointed run. A nil run has not started.
func PhaseOf(run *checkpoint.Run) Phase {
	switch {
	case run == nil:
		return PhaseNotStarted
	case run.Completed:
		return PhaseCompleted
	case run.Status == checkpoint.StatusFailed:
		return PhaseFailed
	case run.Status == checkpoint.StatusNotStarted:
		return PhaseNotStarted
	}
	return PhaseRunning
}

// StepResult is the outcome of one [Executor.ExecuteNextStep] call.
type StepResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	State   *checkpoint.Run `json:"state"`
}

// ProgressFunc is called before a step runs with its 1-based index.
type ProgressFunc func(index, total int, step Step)

// Option configures an [Executor].
type Option func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithClock sets the clock used for checkpoint timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithTracer sets the tracer used for step spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) { e.tracer = tracer }
}

// WithParent records the parent workflow name on new runs.
func WithParent(name string) Option {
	return func(e *Executor) { e.parent = name }
}

// WithVariables seeds the variables of new runs. Resumed runs keep the
// variables from their checkpoint.
func WithVariables(vars map[string]any) Option {
	return func(e *Executor) {
		if e.initialVars == nil {
			e.initialVars = make(map[string]any, len(vars))
		}
		for k, v := range checkpoint.CloneVariables(vars) {
			e.initialVars[k] = v
		}
	}
}

// WithProgressCallback sets a callback invoked before each step.
func WithProgressCallback(fn ProgressFunc) Option {
	return func(e *Executor) { e.progress = fn }
}

// withLineage marks the executor as a child run nested under ancestors.
func withLineage(ancestors []string) Option {
	return func(e *Executor) {
		e.lineage = append([]string(nil), ancestors...)
		e.depth = len(ancestors)
	}
}

// Executor drives one run of one workflow definition.
//
// The checkpoint is the source of truth: every call that changes the run
// persists it before returning, and [Executor.Initialize] always rebuilds
// the in-memory run from the store. An Executor is not safe for concurrent
// use, and concurrent executors for the same workflow name race on the
// same checkpoint.
type Executor struct {
	def      Definition
	store    checkpoint.Store
	registry *Registry

	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
	parent      string
	lineage     []string
	depth       int
	initialVars map[string]any
	progress    ProgressFunc

	run *checkpoint.Run
}

// NewExecutor creates an executor for def. Runs are persisted in store under
// the definition name and step actions are resolved from registry.
func NewExecutor(def Definition, store checkpoint.Store, registry *Registry, opts ...Option) *Executor {
	e := &Executor{
		def:      def,
		store:    store,
		registry: registry,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Definition returns the workflow being executed.
func (e *Executor) Definition() Definition {
	return e.def
}

// State returns a copy of the current run, or nil before [Executor.Initialize].
func (e *Executor) State() *checkpoint.Run {
	return e.run.Clone()
}

// Initialize loads the run from its checkpoint, or creates and persists a
// fresh run at step 0 when there is none. Calling it again reloads the
// checkpoint.
//
// A checkpoint written for a definition with a different number of steps is
// reconciled: the step index is clamped to the current definition.
func (e *Executor) Initialize(ctx context.Context) (*checkpoint.Run, error) {
	run, err := e.store.Read(ctx, e.def.Name)
	switch {
	case err == nil:
		e.reconcile(run)
		e.logger.Debug("loaded workflow checkpoint",
			slog.String("workflow", e.def.Name),
			slog.String("run_id", run.RunID),
			slog.Int("step", run.CurrentStep))
	case errors.Is(err, checkpoint.ErrNotFound):
		run = e.newRun()
		if err := e.store.Write(ctx, e.def.Name, run); err != nil {
			return nil, err
		}
		e.logger.Debug("started workflow run",
			slog.String("workflow", e.def.Name),
			slog.String("run_id", run.RunID))
	default:
		return nil, err
	}

	e.run = run
	return run.Clone(), nil
}

func (e *Executor) newRun() *checkpoint.Run {
	now := e.now()
	total := len(e.def.Steps)
	run := &checkpoint.Run{
		Workflow:       e.def.Name,
		RunID:          uuid.NewString(),
		TotalSteps:     total,
		Status:         checkpoint.StatusNotStarted,
		Completed:      total == 0,
		StartedAt:      now,
		LastUpdated:    now,
		Steps:          make([]checkpoint.StepRecord, total),
		Variables:      checkpoint.CloneVariables(e.initialVars),
		ParentWorkflow: e.parent,
	}
	if run.Variables == nil {
		run.Variables = make(map[string]any)
	}
	if run.Completed {
		run.Status = checkpoint.StatusCompleted
	}
	for i, s := range e.def.Steps {
		run.Steps[i] = checkpoint.StepRecord{ID: s.Name, Status: checkpoint.StepPending}
	}
	return run
}

func (e *Executor) reconcile(run *checkpoint.Run) {
	total := len(e.def.Steps)
	run.TotalSteps = total
	if run.CurrentStep > total {
		run.CurrentStep = total
	}
	if run.CurrentStep < 0 {
		run.CurrentStep = 0
	}
	run.Completed = run.CurrentStep == total
	switch {
	case run.Completed:
		run.Status = checkpoint.StatusCompleted
	case run.Status == checkpoint.StatusCompleted:
		run.Status = checkpoint.StatusInProgress
	}

	steps := make([]checkpoint.StepRecord, total)
	for i, s := range e.def.Steps {
		if i < len(run.Steps) && run.Steps[i].ID == s.Name {
			steps[i] = run.Steps[i]
			continue
		}
		status := checkpoint.StepPending
		if i < run.CurrentStep {
			status = checkpoint.StepCompleted
		}
		steps[i] = checkpoint.StepRecord{ID: s.Name, Status: status}
	}
	run.Steps = steps

	if run.Variables == nil {
		run.Variables = make(map[string]any)
	}
}

// ExecuteNextStep runs the step at the current index.
//
// On success the action's variables are merged into the run, the index
// advances and the run completes when it reaches the end. On failure the
// step and the run are marked failed, the index does not move, and the
// result has Success false; a later call retries the same step. Either way
// the checkpoint is persisted before returning. A returned error means the
// checkpoint could not be read or written.
//
// Calling ExecuteNextStep on a completed run succeeds without running anything.
func (e *Executor) ExecuteNextStep(ctx context.Context) (StepResult, error) {
	if e.run == nil {
		if _, err := e.Initialize(ctx); err != nil {
			return StepResult{}, err
		}
	}

	if e.run.Completed {
		return StepResult{
			Success: true,
			Message: fmt.Sprintf("workflow %s already completed", e.def.Name),
			State:   e.run.Clone(),
		}, nil
	}

	idx := e.run.CurrentStep
	step := e.def.Steps[idx]

	started := e.now()
	next := e.run.Clone()
	next.Status = checkpoint.StatusInProgress
	next.LastUpdated = started
	next.Steps[idx] = checkpoint.StepRecord{ID: step.Name, Status: checkpoint.StepInProgress, StartedAt: &started}
	if err := e.commit(ctx, next); err != nil {
		return StepResult{}, err
	}

	if e.progress != nil {
		e.progress(idx+1, next.TotalSteps, step)
	}

	outcome, runErr := e.runStep(ctx, idx, step)

	// The outcome is recorded even if ctx was canceled during the action.
	saveCtx := context.WithoutCancel(ctx)
	finished := e.now()
	next = e.run.Clone()
	next.LastUpdated = finished

	if runErr != nil {
		next.Status = checkpoint.StatusFailed
		next.Steps[idx].Status = checkpoint.StepFailed
		next.Steps[idx].Error = runErr.Error()
		if err := e.commit(saveCtx, next); err != nil {
			return StepResult{}, err
		}

		e.logger.Warn("workflow step failed",
			slog.String("workflow", e.def.Name),
			slog.String("run_id", next.RunID),
			slog.String("step", step.Name),
			slog.Int("index", idx),
			slog.String("error", runErr.Error()))

		return StepResult{
			Success: false,
			Message: fmt.Sprintf("step %s failed: %v", step.Name, runErr),
			State:   next.Clone(),
		}, nil
	}

	for k, v := range checkpoint.CloneVariables(outcome.Variables) {
		next.Variables[k] = v
	}
	next.Steps[idx].Status = checkpoint.StepCompleted
	next.Steps[idx].CompletedAt = &finished
	next.CurrentStep++
	if next.CurrentStep == next.TotalSteps {
		next.Completed = true
		next.Status = checkpoint.StatusCompleted
	}
	if err := e.commit(saveCtx, next); err != nil {
		return StepResult{}, err
	}

	e.logger.Info("workflow step completed",
		slog.String("workflow", e.def.Name),
		slog.String("run_id", next.RunID),
		slog.String("step", step.Name),
		slog.Int("index", idx),
		slog.Bool("completed", next.Completed))

	msg := outcome.Message
	if msg == "" {
		msg = fmt.Sprintf("step %s completed", step.Name)
	}
	return StepResult{Success: true, Message: msg, State: next.Clone()}, nil
}

func (e *Executor) runStep(ctx context.Context, idx int, step Step) (outcome Outcome, err error) {
	ctx, span := e.tracer.Start(ctx, "storyflow.workflow.step",
		trace.WithAttributes(
			attribute.String("storyflow.workflow", e.def.Name),
			attribute.String("storyflow.run_id", e.run.RunID),
			attribute.String("storyflow.step", step.Name),
			attribute.String("storyflow.action", step.Action),
			attribute.Int("storyflow.step.index", idx),
			attribute.Int("storyflow.depth", e.depth),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %s panicked: %v", step.Action, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	action, err := e.registry.Lookup(step.Action)
	if err != nil {
		return Outcome{}, err
	}

	resolved := step
	resolved.Parameters = substituteParams(step.Parameters, e.run.Variables)

	sc := StepContext{
		Workflow:  e.def.Name,
		RunID:     e.run.RunID,
		Step:      resolved,
		Index:     idx,
		Variables: checkpoint.CloneVariables(e.run.Variables),
		Depth:     e.depth,
		Logger: e.logger.With(
			slog.String("workflow", e.def.Name),
			slog.String("step", step.Name)),
		recorder: e,
		lineage:  append(append([]string(nil), e.lineage...), e.def.Name),
	}
	return action.Run(ctx, sc)
}

// recordChild upserts a child reference, matched by path, and persists.
func (e *Executor) recordChild(ctx context.Context, ref checkpoint.ChildRef) error {
	if e.run == nil {
		return nil
	}
	next := e.run.Clone()
	found := false
	for i, c := range next.ChildWorkflows {
		if c.WorkflowPath == ref.WorkflowPath {
			next.ChildWorkflows[i] = ref
			found = true
			break
		}
	}
	if !found {
		next.ChildWorkflows = append(next.ChildWorkflows, ref)
	}
	return e.commit(ctx, next)
}

// commit persists run and makes it the current state. On a failed write the
// current state stays at the last stored checkpoint.
func (e *Executor) commit(ctx context.Context, run *checkpoint.Run) error {
	if err := e.store.Write(ctx, e.def.Name, run); err != nil {
		return err
	}
	e.run = run
	return nil
}

// Resume loads the checkpoint and runs the next step. It continues a paused
// or failed run from the step after the last one that completed.
func (e *Executor) Resume(ctx context.Context) (StepResult, error) {
	if _, err := e.Initialize(ctx); err != nil {
		return StepResult{}, err
	}
	return e.ExecuteNextStep(ctx)
}

// Reset deletes the checkpoint. The next [Executor.Initialize] starts a
// fresh run at step 0.
func (e *Executor) Reset(ctx context.Context) error {
	if err := e.store.Delete(ctx, e.def.Name); err != nil {
		return err
	}
	e.run = nil
	e.logger.Info("workflow run reset", slog.String("workflow", e.def.Name))
	return nil
}

// RunToCompletion calls [Executor.ExecuteNextStep] until the run completes
// or a step fails. Cancellation of ctx is checked between steps; the run is
// left resumable at the next step.
func (e *Executor) RunToCompletion(ctx context.Context) (StepResult, error) {
	if e.run == nil {
		if _, err := e.Initialize(ctx); err != nil {
			return StepResult{}, err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return StepResult{Message: "interrupted", State: e.run.Clone()}, err
		}
		res, err := e.ExecuteNextStep(ctx)
		if err != nil || !res.Success || res.State.Completed {
			return res, err
		}
	}
}
