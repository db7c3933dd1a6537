// Package orchestrator implements the dual-model pipeline: a planner model
// decomposes a request into steps, a router model resolves and calls one
// tool per step, and the planner model synthesizes the step results into a
// reply. Grounded on original_source's agent_core/orchestrator.rs
// (orchestrate_dual_model / plan_steps / execute_step / synthesize_response),
// carried into Go idiom on top of this repo's internal/modelcall,
// internal/toolexec, internal/embedindex, internal/planparse, and
// internal/plantemplate.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/localmind/cortex/internal/convstore"
	"github.com/localmind/cortex/internal/embedindex"
	"github.com/localmind/cortex/internal/event"
	"github.com/localmind/cortex/internal/modelcall"
	"github.com/localmind/cortex/internal/permission"
	"github.com/localmind/cortex/internal/planparse"
	"github.com/localmind/cortex/internal/registry"
	"github.com/localmind/cortex/internal/toolexec"
	"github.com/localmind/cortex/pkg/types"
)

// StepResult is the outcome of executing one plan step.
type StepResult struct {
	StepNumber   int
	Description  string
	ToolCalled   string
	ToolArgs     map[string]any
	ToolResult   string
	Success      bool
	Error        string
}

// Result is the full outcome of one orchestration run.
type Result struct {
	StepResults      []StepResult
	Synthesis        string
	AllStepsSucceeded bool
	// FellBack is true when the orchestrator could not produce a plan or
	// a critical step failed; the caller should run the single-model
	// agent loop instead.
	FellBack bool
}

// Orchestrator wires the dual-model pipeline's collaborators together for
// one request.
type Orchestrator struct {
	Caller     *modelcall.Caller
	Registry   *registry.Registry
	ToolExec   *toolexec.Executor
	Store      *convstore.Store
	Config     *types.Config
	Embeddings *embedindex.Client
}

// New builds an Orchestrator. embedEndpoint is the embeddings endpoint used
// to build the per-request Tool Embedding Index; the router
// model's configured endpoint is the natural choice since both run against
// the same local inference server.
func New(caller *modelcall.Caller, reg *registry.Registry, exec *toolexec.Executor, store *convstore.Store, cfg *types.Config, embedEndpoint string) *Orchestrator {
	return &Orchestrator{
		Caller:     caller,
		Registry:   reg,
		ToolExec:   exec,
		Store:      store,
		Config:     cfg,
		Embeddings: embedindex.NewClient(embedEndpoint),
	}
}

func (o *Orchestrator) maxPlanSteps() int {
	if o.Config != nil && o.Config.Orchestrator != nil && o.Config.Orchestrator.MaxPlanSteps > 0 {
		return o.Config.Orchestrator.MaxPlanSteps
	}
	return 10
}

func (o *Orchestrator) stepRetries() int {
	if o.Config != nil && o.Config.Orchestrator != nil && o.Config.Orchestrator.StepRetries > 0 {
		return o.Config.Orchestrator.StepRetries
	}
	return 2
}

func (o *Orchestrator) routerTopK() int {
	if o.Config != nil && o.Config.Orchestrator != nil && o.Config.Orchestrator.RouterTopK > 0 {
		return o.Config.Orchestrator.RouterTopK
	}
	return 15
}

// Run executes the three-phase pipeline for one user turn.
func (o *Orchestrator) Run(ctx context.Context, sessionID, userMessage string, perms permission.AgentPermissions) (*Result, error) {
	plan, fromTemplate, err := o.plan(ctx, sessionID, userMessage)
	if err != nil {
		return &Result{FellBack: true}, nil
	}

	if !plan.NeedsTools {
		event.Publish(event.Event{Type: event.PlanCreated, Data: event.PlanCreatedData{SessionID: sessionID, StepCount: 0, FromTemplate: fromTemplate}})
		return &Result{Synthesis: plan.DirectResponse, AllStepsSucceeded: true}, nil
	}

	if len(plan.Steps) > o.maxPlanSteps() {
		plan.Steps = plan.Steps[:o.maxPlanSteps()]
	}

	event.Publish(event.Event{Type: event.PlanCreated, Data: event.PlanCreatedData{SessionID: sessionID, StepCount: len(plan.Steps), FromTemplate: fromTemplate}})

	index, err := o.buildToolIndex(ctx)
	if err != nil {
		return &Result{FellBack: true}, nil
	}

	var results []StepResult
	criticalFailure := false

	for _, step := range plan.Steps {
		event.Publish(event.Event{Type: event.StepExecuting, Data: event.StepExecutingData{SessionID: sessionID, StepNumber: step.Step, Description: step.Description}})

		result := o.executeStep(ctx, sessionID, step, results, index, perms)
		results = append(results, result)

		event.Publish(event.Event{Type: event.StepCompleted, Data: event.StepCompletedData{
			SessionID:  sessionID,
			StepNumber: step.Step,
			Success:    result.Success,
			Summary:    condenseStepResult(result),
		}})

		if !result.Success && stepIsCritical(step.Step, plan.Steps) {
			criticalFailure = true
			break
		}
	}

	if criticalFailure {
		return &Result{StepResults: results, FellBack: true}, nil
	}

	synthesis := o.synthesize(ctx, userMessage, results)

	allSucceeded := true
	for _, r := range results {
		if !r.Success {
			allSucceeded = false
			break
		}
	}

	return &Result{StepResults: results, Synthesis: synthesis, AllStepsSucceeded: allSucceeded}, nil
}

// stepIsCritical reports whether any later step's description explicitly
// references failedStep by "step N" substring.
func stepIsCritical(failedStep int, steps []planparse.Step) bool {
	ref := fmt.Sprintf("step %d", failedStep)
	for _, s := range steps {
		if s.Step > failedStep && strings.Contains(strings.ToLower(s.Description), ref) {
			return true
		}
	}
	return false
}
