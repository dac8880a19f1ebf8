package main

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/afero"

	"github.com/Brucegx/etsy-listing-agent/core/client"
	"github.com/Brucegx/etsy-listing-agent/core/client/middleware"
	"github.com/Brucegx/etsy-listing-agent/core/config"
	"github.com/Brucegx/etsy-listing-agent/core/product"
	"github.com/Brucegx/etsy-listing-agent/core/stages"
	"github.com/Brucegx/etsy-listing-agent/core/validate"
	"github.com/Brucegx/etsy-listing-agent/core/workflow"
	"github.com/Brucegx/etsy-listing-agent/providers/ai"
	"github.com/Brucegx/etsy-listing-agent/providers/ai/anthropic"
	"github.com/Brucegx/etsy-listing-agent/providers/ai/gemini"
	"github.com/Brucegx/etsy-listing-agent/providers/ai/openai"
	"github.com/Brucegx/etsy-listing-agent/providers/observability"
	"github.com/Brucegx/etsy-listing-agent/providers/storage"
	"github.com/Brucegx/etsy-listing-agent/providers/storage/localstore"
	"github.com/Brucegx/etsy-listing-agent/providers/tool"
)

// providerCallTimeout bounds a single provider HTTP call, inside the retry
// loop. The executor's per-attempt timeout bounds the whole unit of work.
const providerCallTimeout = 2 * time.Minute

// buildPipeline wires providers, clients, tools and stage units into a ready
// workflow.Pipeline.
func buildPipeline(cfg *config.Config, fs afero.Fs, observer observability.Provider) (*workflow.Pipeline, error) {
	middlewares := []client.Middleware{
		middleware.NewLoggingMiddleware(observer),
		middleware.NewRetryMiddleware(middleware.RetryConfig{}),
		middleware.NewTimeoutMiddleware(providerCallTimeout),
	}
	common := func(model string) []func(*client.Options) {
		return []func(*client.Options){
			client.WithModel(model),
			client.WithObserver(observer),
			client.WithMiddlewares(middlewares...),
		}
	}

	anthropicProvider := anthropic.New().WithAPIKey(cfg.Keys.Anthropic)
	openaiProvider := openai.New().WithAPIKey(cfg.Keys.OpenAI)
	if cfg.Keys.OpenAIBaseURL != "" {
		openaiProvider = openaiProvider.WithBaseURL(cfg.Keys.OpenAIBaseURL)
	}

	preprocessClient, err := client.NewStructured[product.Data](anthropicProvider, common(cfg.Models.Preprocess)...)
	if err != nil {
		return nil, err
	}
	strategyClient, err := client.NewStructured[product.Strategy](openaiProvider, common(cfg.Models.Strategy)...)
	if err != nil {
		return nil, err
	}
	listingClient, err := client.NewStructured[product.Listing](openaiProvider, common(cfg.Models.Listing)...)
	if err != nil {
		return nil, err
	}

	promptClient, err := buildPromptClient(cfg, fs, openaiProvider, common(cfg.Models.PromptGen))
	if err != nil {
		return nil, err
	}

	judge, err := buildJudge(anthropicProvider, common(cfg.Models.SemanticJudge))
	if err != nil {
		return nil, err
	}

	pipelineStages := workflow.Stages{
		Preprocess: stages.NewPreprocess(preprocessClient, cfg.Templates),
		Strategy:   stages.NewStrategy(strategyClient, cfg.Templates, cfg.Fanout.SlotCount),
		PromptGen:  stages.NewPromptGen(promptClient, cfg.Templates),
		Listing:    stages.NewListingGen(listingClient, cfg.Templates),
	}

	if cfg.Fanout.RenderImages {
		geminiProvider := gemini.New().WithImageOutput(true).WithAPIKey(cfg.Keys.Gemini)
		renderClient, err := client.New(geminiProvider, common(cfg.Models.ImageRender)...)
		if err != nil {
			return nil, err
		}
		pipelineStages.Render = stages.NewImageRender(renderClient, func(runID string) storage.Store {
			return localstore.New(fs, cfg.Paths.OutputDir, runID)
		})
	}

	options := []workflow.Option{workflow.WithObserver(observer)}
	for _, stage := range []string{
		workflow.StagePreprocess,
		workflow.StageStrategy,
		workflow.StagePromptGen,
		workflow.StageListing,
	} {
		if criteria := cfg.Templates.CriteriaFor(stage); criteria != "" {
			options = append(options, workflow.WithSemanticJudge(stage, validate.NewSemanticJudge(judge, criteria, observer)))
		}
	}

	return workflow.New(cfg, pipelineStages, options...)
}

// buildPromptClient assembles the agentic prompt generator: the structured
// client plus the reference reader, the deterministic prompt checker, and the
// page fetcher, all bounded by the configured tool-turn cap.
func buildPromptClient(cfg *config.Config, fs afero.Fs, provider ai.Provider, common []func(*client.Options)) (*client.StructuredClient[product.PromptCard], error) {
	readReference, err := tool.NewReadReference(fs, cfg.Paths.ReferenceDir)
	if err != nil {
		return nil, err
	}
	// Material-specific bans need the preprocessed materials, which the tool
	// cannot see at wiring time; the external gate enforces them.
	checkPrompt, err := tool.NewCheckPrompt(cfg.Rules, nil)
	if err != nil {
		return nil, err
	}
	fetchPage, err := tool.NewFetchPage(http.DefaultClient)
	if err != nil {
		return nil, err
	}

	opts := append(common,
		client.WithSystemPrompt(cfg.Templates.PromptGenSystem),
		client.WithTools(readReference, checkPrompt, fetchPage),
		client.WithMaxToolTurns(cfg.Fanout.MaxToolTurns),
	)
	return client.NewStructured[product.PromptCard](provider, opts...)
}

// buildJudge wraps a plain client as the semantic judge transport. The judge
// shares the provider but never any generator prompt.
func buildJudge(provider ai.Provider, common []func(*client.Options)) (validate.JudgeClient, error) {
	judgeBase, err := client.New(provider, common...)
	if err != nil {
		return nil, err
	}
	return validate.JudgeClientFunc(func(ctx context.Context, prompt string) (*ai.ChatResponse, error) {
		return judgeBase.SendMessage(ctx, prompt)
	}), nil
}
