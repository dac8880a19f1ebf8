// Package workflow is the fixed state machine driving one run: preprocess,
// strategy, the fan-out of prompt branches with the listing side branch,
// aggregation, the optional image render, and the final listing review.
// Routing is pure data: validation verdicts and retry counters decide every
// edge, never a model judgment. The driving loop is the single writer of the
// run state.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/Brucegx/etsy-listing-agent/core/config"
	"github.com/Brucegx/etsy-listing-agent/core/executor"
	"github.com/Brucegx/etsy-listing-agent/core/fanout"
	"github.com/Brucegx/etsy-listing-agent/core/product"
	"github.com/Brucegx/etsy-listing-agent/core/run"
	"github.com/Brucegx/etsy-listing-agent/core/stages"
	"github.com/Brucegx/etsy-listing-agent/core/validate"
	"github.com/Brucegx/etsy-listing-agent/providers/notify"
	"github.com/Brucegx/etsy-listing-agent/providers/observability"
)

// ErrRunCancelled is returned when the caller's context ended before the run
// reached a terminal stage. In-flight artifacts are discarded; the state is
// marked failed at the interrupted stage.
var ErrRunCancelled = errors.New("listing-agent: run cancelled")

// Stage names. These are the nodes of the graph and the artifact keys.
const (
	StagePreprocess    = "preprocess"
	StageStrategy      = "strategy"
	StageFanOut        = "fan_out"
	StagePromptGen     = "prompt_gen"
	StagePrompts       = "prompts"
	StageListing       = "listing"
	StageImageRender   = "image_render"
	StageListingReview = "listing_review"
)

// listingBranchID keys the listing side branch inside the fan-out aggregate.
// Slot branches use their 1-based slot index.
const listingBranchID = 0

// Stages bundles the units of work the pipeline schedules. Render is
// optional and consulted only when rendering is enabled in configuration.
type Stages struct {
	Preprocess *stages.Preprocess
	Strategy   *stages.Strategy
	PromptGen  *stages.PromptGen
	Listing    *stages.ListingGen
	Render     *stages.ImageRender
}

// Pipeline owns one run at a time: it drives the graph, folds every branch's
// records into the state, and reports the terminal status exactly once.
type Pipeline struct {
	cfg      *config.Config
	stages   Stages
	judges   map[string]validate.TierValidator
	observer observability.Provider
	sink     EventSink
	notifier notify.Notifier
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver attaches an observability provider.
func WithObserver(observer observability.Provider) Option {
	return func(p *Pipeline) {
		p.observer = observer
	}
}

// WithEventSink replaces the default log-backed progress sink.
func WithEventSink(sink EventSink) Option {
	return func(p *Pipeline) {
		p.sink = sink
	}
}

// WithNotifier replaces the default log-backed terminal notifier.
func WithNotifier(notifier notify.Notifier) Option {
	return func(p *Pipeline) {
		p.notifier = notifier
	}
}

// WithSemanticJudge installs the semantic tier for one stage. Stages without
// a judge skip the semantic tier entirely.
func WithSemanticJudge(stage string, judge validate.TierValidator) Option {
	return func(p *Pipeline) {
		p.judges[stage] = judge
	}
}

// New creates a Pipeline from loaded configuration and stage units.
func New(cfg *config.Config, st Stages, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("workflow: config must not be nil")
	}
	if st.Preprocess == nil || st.Strategy == nil || st.PromptGen == nil || st.Listing == nil {
		return nil, fmt.Errorf("workflow: preprocess, strategy, prompt and listing stages are all required")
	}
	if cfg.Fanout.RenderImages && st.Render == nil {
		return nil, fmt.Errorf("workflow: rendering is enabled but no render stage is wired")
	}

	p := &Pipeline{
		cfg:    cfg,
		stages: st,
		judges: make(map[string]validate.TierValidator),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sink == nil {
		p.sink = NewLogSink(p.observer)
	}
	if p.notifier == nil {
		p.notifier = notify.NewLog(p.observer)
	}
	return p, nil
}

// Run executes the whole graph for one submission and returns the terminal
// run state. A non-nil error describes why the run failed; the state always
// carries the full validation history either way.
func (p *Pipeline) Run(ctx context.Context, inputs run.Inputs) (*run.State, error) {
	state := run.New(inputs)

	ctx, span := p.startRunSpan(ctx, state)
	defer p.endRunSpan(span, state)
	defer p.notifyTerminal(ctx, state)

	steps := p.progressSteps()
	completed := 0
	advance := func(stage string) {
		completed++
		p.emitProgress(state, stage, completed*100/len(steps))
	}

	// Preprocess.
	output, err := p.runStage(ctx, state, stageSpec{
		name: StagePreprocess,
		work: p.stages.Preprocess.Work(),
		gate: p.preprocessGate(),
	})
	if err != nil {
		return p.fail(ctx, state, StagePreprocess, err)
	}
	data := output.(*product.Data)
	if err := state.SetArtifact(StagePreprocess, data); err != nil {
		return p.fail(ctx, state, StagePreprocess, err)
	}
	advance(StagePreprocess)

	// Strategy.
	output, err = p.runStage(ctx, state, stageSpec{
		name: StageStrategy,
		work: p.stages.Strategy.Work(),
		gate: p.strategyGate(data.Category),
		keys: []string{StagePreprocess},
	})
	if err != nil {
		return p.fail(ctx, state, StageStrategy, err)
	}
	strategy := output.(*product.Strategy)
	if err := state.SetArtifact(StageStrategy, strategy); err != nil {
		return p.fail(ctx, state, StageStrategy, err)
	}
	advance(StageStrategy)

	// Fan-out: one prompt branch per slot plus the independent listing side
	// branch, all concurrent.
	listingDraft, promptSet, err := p.runFanOut(ctx, state, strategy, data)
	if err != nil {
		return p.fail(ctx, state, StageFanOut, err)
	}
	for i := range promptSet.Cards {
		card := &promptSet.Cards[i]
		if err := state.SetArtifact(fmt.Sprintf("prompts[%d]", card.SlotIndex), card); err != nil {
			return p.fail(ctx, state, StageFanOut, err)
		}
	}
	if err := state.SetArtifact(StagePrompts, promptSet); err != nil {
		return p.fail(ctx, state, StageFanOut, err)
	}
	advance(StageFanOut)

	// Optional image render.
	if p.cfg.Fanout.RenderImages {
		output, err = p.runStage(ctx, state, stageSpec{
			name: StageImageRender,
			work: p.stages.Render.Work(),
			gate: &validate.Gate{},
			keys: []string{StagePrompts},
		})
		if err != nil {
			return p.fail(ctx, state, StageImageRender, err)
		}
		if err := state.SetArtifact(StageImageRender, output); err != nil {
			return p.fail(ctx, state, StageImageRender, err)
		}
		advance(StageImageRender)
	}

	// Listing review: the full gate, semantic tier included, over the draft
	// the side branch produced. Retries regenerate the listing with the
	// review feedback.
	output, err = p.runStage(ctx, state, stageSpec{
		name: StageListingReview,
		work: p.listingReviewWork(listingDraft),
		gate: p.listingGate(true),
		keys: []string{StagePreprocess},
	})
	if err != nil {
		return p.fail(ctx, state, StageListingReview, err)
	}
	if err := state.SetArtifact(StageListing, output); err != nil {
		return p.fail(ctx, state, StageListingReview, err)
	}
	advance(StageListingReview)

	state.Complete()
	return state, nil
}

type stageSpec struct {
	name string
	work executor.WorkFunc
	gate *validate.Gate
	keys []string
}

// runStage executes one sequential stage and folds its records into the run
// state.
func (p *Pipeline) runStage(ctx context.Context, state *run.State, spec stageSpec) (any, error) {
	state.CurrentStage = spec.name

	scope, err := run.Fork(state, spec.keys...)
	if err != nil {
		return nil, err
	}

	outcome, err := executor.Execute(ctx, p.stageDef(spec), scope)
	if outcome != nil {
		p.foldOutcome(state, outcome)
	}
	if err != nil {
		return nil, err
	}
	return outcome.Output, nil
}

func (p *Pipeline) stageDef(spec stageSpec) executor.StageDef {
	return executor.StageDef{
		Name:     spec.name,
		Work:     spec.work,
		Gate:     spec.gate,
		RetryCap: p.cfg.Retry.CapFor(spec.name),
		Timeout:  p.cfg.Retry.AttemptTimeout(),
		Observer: p.observer,
	}
}

func (p *Pipeline) foldOutcome(state *run.State, outcome *executor.Outcome) {
	state.Record(outcome.Records...)
	if outcome.RetriesConsumed > 0 {
		state.RetryCounts[outcome.Stage] = outcome.RetriesConsumed
	}
}

// runFanOut schedules the prompt branches and the listing side branch,
// waits for fan-in, folds every branch's records, and aggregates the prompt
// cards into a complete set.
func (p *Pipeline) runFanOut(ctx context.Context, state *run.State, strategy *product.Strategy, data *product.Data) (*product.Listing, *product.PromptSet, error) {
	state.CurrentStage = StageFanOut

	branches := make([]fanout.BranchDef, 0, len(strategy.Slots)+1)
	branches = append(branches, fanout.BranchDef{
		ID:       listingBranchID,
		Required: true,
		Stage: p.stageDef(stageSpec{
			name: StageListing,
			work: p.stages.Listing.Work(),
			gate: p.listingGate(false),
		}),
		AllowedKeys: []string{StagePreprocess},
	})
	// Each prompt branch forks over its own slot artifact, never the full
	// strategy: a branch cannot see sibling slots or the analysis.
	for i := range strategy.Slots {
		slot := strategy.Slots[i]
		slotKey := stages.SlotArtifactKey(slot.Index)
		if err := state.SetArtifact(slotKey, &slot); err != nil {
			return nil, nil, err
		}
		branches = append(branches, fanout.BranchDef{
			ID:       slot.Index,
			Required: true,
			Stage: executor.StageDef{
				Name:     fmt.Sprintf("prompt_gen[%d]", slot.Index),
				Work:     p.stages.PromptGen.WorkFor(slot.Index),
				Gate:     p.promptGate(data.Materials),
				RetryCap: p.cfg.Retry.CapFor(StagePromptGen),
				Timeout:  p.cfg.Retry.AttemptTimeout(),
				Observer: p.observer,
			},
			AllowedKeys: []string{StagePreprocess, slotKey},
		})
	}

	coordinator := fanout.New(
		fanout.WithMaxConcurrency(p.cfg.Fanout.MaxConcurrency),
		fanout.WithObserver(p.observer),
	)
	aggregate, err := coordinator.Run(ctx, state, branches)
	if aggregate != nil {
		for _, result := range aggregate.Results {
			if result.Outcome != nil {
				p.foldOutcome(state, result.Outcome)
			}
		}
	}
	if err != nil {
		return nil, nil, err
	}

	listingDraft := aggregate.Result(listingBranchID).Outcome.Output.(*product.Listing)

	cards := make([]product.PromptCard, 0, len(strategy.Slots))
	for _, result := range aggregate.Results {
		if result.ID == listingBranchID {
			continue
		}
		cards = append(cards, *result.Outcome.Output.(*product.PromptCard))
	}
	promptSet := product.NewPromptSet(cards)
	if !promptSet.Complete(p.cfg.Fanout.SlotCount) {
		return nil, nil, fmt.Errorf("workflow: aggregate is missing prompt cards, got %d of %d", len(promptSet.Cards), p.cfg.Fanout.SlotCount)
	}
	return listingDraft, promptSet, nil
}

// listingReviewWork returns the draft unchanged on the first attempt; review
// failures regenerate the listing with the feedback attached.
func (p *Pipeline) listingReviewWork(draft *product.Listing) executor.WorkFunc {
	listingWork := p.stages.Listing.Work()
	return func(ctx context.Context, scope *run.Scope, feedback string) (any, error) {
		if feedback == "" {
			return draft, nil
		}
		return listingWork(ctx, scope, feedback)
	}
}

// --- Gates ---

func (p *Pipeline) preprocessGate() *validate.Gate {
	return &validate.Gate{
		Schema:   validate.NewSchemaValidator(),
		Rules:    validate.DataRules(p.cfg.Rules),
		Semantic: p.judges[StagePreprocess],
	}
}

func (p *Pipeline) strategyGate(category string) *validate.Gate {
	return &validate.Gate{
		Schema:   validate.NewSchemaValidator(validate.StrategySlotCount(p.cfg.Fanout.SlotCount)),
		Rules:    validate.StrategyRules(p.cfg.Rules, category),
		Semantic: p.judges[StageStrategy],
	}
}

func (p *Pipeline) promptGate(materials []string) *validate.Gate {
	return &validate.Gate{
		Schema:   validate.NewSchemaValidator(),
		Rules:    validate.PromptCardRules(p.cfg.Rules, materials),
		Semantic: p.judges[StagePromptGen],
	}
}

// listingGate builds the listing gate. The side branch runs only the cheap
// deterministic tiers; the final review adds the semantic tier.
func (p *Pipeline) listingGate(withSemantic bool) *validate.Gate {
	gate := &validate.Gate{
		Schema: validate.NewSchemaValidator(),
		Rules:  validate.ListingRules(p.cfg.Rules),
	}
	if withSemantic {
		gate.Semantic = p.judges[StageListing]
	}
	return gate
}

// --- Terminal handling ---

// fail marks the run failed and translates cancellation into ErrRunCancelled.
func (p *Pipeline) fail(ctx context.Context, state *run.State, stage string, err error) (*run.State, error) {
	if errors.Is(err, context.Canceled) {
		state.Fail(stage, "run cancelled before completion")
		if span := observability.SpanFromContext(ctx); span != nil {
			span.AddEvent(observability.EventRunCancelled,
				observability.String(observability.AttrStage, stage),
			)
		}
		return state, fmt.Errorf("workflow: stage %q: %w", stage, errors.Join(ErrRunCancelled, err))
	}
	state.Fail(stage, err.Error())
	return state, fmt.Errorf("workflow: stage %q: %w", stage, err)
}

func (p *Pipeline) notifyTerminal(ctx context.Context, state *run.State) {
	if p.notifier == nil || !state.Terminal() {
		return
	}
	summary := fmt.Sprintf("completed with %d artifacts", len(state.Artifacts))
	if state.Status == run.StatusFailed {
		summary = fmt.Sprintf("failed at %s: %s", state.FailureStage, state.FailureReason)
	}
	p.notifier.Notify(context.WithoutCancel(ctx), state.RunID, state.Status, summary)
}

// --- Progress ---

func (p *Pipeline) progressSteps() []string {
	steps := []string{StagePreprocess, StageStrategy, StageFanOut}
	if p.cfg.Fanout.RenderImages {
		steps = append(steps, StageImageRender)
	}
	return append(steps, StageListingReview)
}

func (p *Pipeline) emitProgress(state *run.State, stage string, percent int) {
	if p.sink == nil {
		return
	}
	p.sink.RecordEvent(state.RunID, stage, map[string]any{
		"percent_complete": percent,
		"status":           string(state.Status),
	})
}

// --- Observability ---

func (p *Pipeline) startRunSpan(ctx context.Context, state *run.State) (context.Context, observability.Span) {
	if p.observer == nil {
		return ctx, nil
	}
	ctx, span := p.observer.StartSpan(ctx, observability.SpanPipelineRun,
		observability.String(observability.AttrRunID, state.RunID),
	)
	ctx = observability.ContextWithSpan(ctx, span)
	ctx = observability.ContextWithObserver(ctx, p.observer)
	return ctx, span
}

func (p *Pipeline) endRunSpan(span observability.Span, state *run.State) {
	if span == nil {
		return
	}
	span.SetAttributes(observability.String(observability.AttrRunStatus, string(state.Status)))
	if state.Status == run.StatusCompleted {
		span.SetStatus(observability.StatusOK, "run completed")
	} else {
		span.SetStatus(observability.StatusError, "run failed")
	}
	span.End()
}
