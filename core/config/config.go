// Package config loads the pipeline's external configuration: engine settings
// and API keys from the environment (.env supported), validation rule content
// and prompt templates from YAML files. Rule and template content is opaque
// data to the engine; only the structure is fixed here.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// File names expected inside the config directory.
const (
	pipelineFile  = "pipeline.yaml"
	rulesFile     = "rules.yaml"
	templatesFile = "templates.yaml"
)

// Models names the model used by each stage. Providers are inferred from the
// stage: preprocess and the semantic judge run on Anthropic, strategy, prompt
// and listing generation on an OpenAI-compatible endpoint, image rendering on
// Gemini.
type Models struct {
	Preprocess    string `yaml:"preprocess"`
	Strategy      string `yaml:"strategy"`
	PromptGen     string `yaml:"prompt_gen"`
	Listing       string `yaml:"listing"`
	SemanticJudge string `yaml:"semantic_judge"`
	ImageRender   string `yaml:"image_render"`
}

// Retry holds the per-stage retry budget and the per-attempt timeout. A
// timeout consumes one retry, same as a validation failure.
type Retry struct {
	// DefaultCap is the retry cap applied to stages without an override.
	DefaultCap int `yaml:"default_cap"`

	// PerStage overrides the cap for specific stages by name.
	PerStage map[string]int `yaml:"per_stage"`

	// AttemptTimeoutSeconds bounds a single unit-of-work invocation.
	AttemptTimeoutSeconds int `yaml:"attempt_timeout_seconds"`
}

// AttemptTimeout returns the per-attempt timeout as a duration.
func (r Retry) AttemptTimeout() time.Duration {
	return time.Duration(r.AttemptTimeoutSeconds) * time.Second
}

// CapFor returns the retry cap for a stage.
func (r Retry) CapFor(stage string) int {
	if cap, ok := r.PerStage[stage]; ok {
		return cap
	}
	return r.DefaultCap
}

// Fanout configures the parallel prompt-generation phase.
type Fanout struct {
	// SlotCount is the number of image strategy slots, and therefore the
	// number of prompt-generation branches.
	SlotCount int `yaml:"slot_count"`

	// MaxConcurrency caps simultaneously running branches. Zero means
	// unbounded.
	MaxConcurrency int `yaml:"max_concurrency"`

	// MaxToolTurns bounds the agentic loop inside one prompt branch.
	MaxToolTurns int `yaml:"max_tool_turns"`

	// RenderImages enables the optional image-render stage.
	RenderImages bool `yaml:"render_images"`
}

// Paths locates the on-disk collaborators of the pipeline.
type Paths struct {
	// ReferenceDir holds the reference documents the prompt generator may
	// read through its read_reference tool.
	ReferenceDir string `yaml:"reference_dir"`

	// OutputDir is where the local storage backend writes rendered images.
	OutputDir string `yaml:"output_dir"`
}

// APIKeys carries provider credentials, read from the environment only.
type APIKeys struct {
	Anthropic     string
	OpenAI        string
	OpenAIBaseURL string
	Gemini        string
}

// Config is the fully loaded pipeline configuration.
type Config struct {
	Models    Models  `yaml:"models"`
	Retry     Retry   `yaml:"retry"`
	Fanout    Fanout  `yaml:"fanout"`
	Paths     Paths   `yaml:"paths"`
	Keys      APIKeys `yaml:"-"`
	Rules     *RuleSet
	Templates *Templates
}

// Load reads the configuration from dir on the given filesystem. rules.yaml
// and templates.yaml are required; pipeline.yaml is optional and missing
// fields fall back to defaults. Environment variables (optionally from a
// .env file) supply API keys.
func Load(fs afero.Fs, dir string) (*Config, error) {
	// Best effort: a missing .env just means the keys come from the real env.
	_ = godotenv.Load()

	cfg := &Config{}

	pipelineData, err := afero.ReadFile(fs, filepath.Join(dir, pipelineFile))
	if err == nil {
		if err := yaml.Unmarshal(pipelineData, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", pipelineFile, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: reading %s: %w", pipelineFile, err)
	}

	rulesData, err := afero.ReadFile(fs, filepath.Join(dir, rulesFile))
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", rulesFile, err)
	}
	cfg.Rules, err = ParseRuleSet(rulesData)
	if err != nil {
		return nil, err
	}

	templatesData, err := afero.ReadFile(fs, filepath.Join(dir, templatesFile))
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", templatesFile, err)
	}
	cfg.Templates, err = ParseTemplates(templatesData)
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.loadKeys()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Models.Preprocess == "" {
		c.Models.Preprocess = "claude-sonnet-4-5"
	}
	if c.Models.Strategy == "" {
		c.Models.Strategy = c.Models.Preprocess
	}
	if c.Models.PromptGen == "" {
		c.Models.PromptGen = c.Models.Strategy
	}
	if c.Models.Listing == "" {
		c.Models.Listing = c.Models.Strategy
	}
	if c.Models.SemanticJudge == "" {
		c.Models.SemanticJudge = c.Models.Preprocess
	}
	if c.Models.ImageRender == "" {
		c.Models.ImageRender = "gemini-2.5-flash-image"
	}

	if c.Retry.DefaultCap <= 0 {
		c.Retry.DefaultCap = 3
	}
	if c.Retry.AttemptTimeoutSeconds <= 0 {
		c.Retry.AttemptTimeoutSeconds = 300
	}

	if c.Fanout.SlotCount <= 0 {
		c.Fanout.SlotCount = 10
	}
	if c.Fanout.MaxToolTurns <= 0 {
		c.Fanout.MaxToolTurns = 10
	}

	if c.Paths.ReferenceDir == "" {
		c.Paths.ReferenceDir = "references"
	}
	if c.Paths.OutputDir == "" {
		c.Paths.OutputDir = "output"
	}
}

func (c *Config) loadKeys() {
	c.Keys = APIKeys{
		Anthropic:     os.Getenv("ANTHROPIC_API_KEY"),
		OpenAI:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		Gemini:        os.Getenv("GEMINI_API_KEY"),
	}
}

func (c *Config) validate() error {
	required := len(c.Rules.RequiredSlotTypes)
	if required > c.Fanout.SlotCount {
		return fmt.Errorf("config: %d required slot types exceed slot_count %d", required, c.Fanout.SlotCount)
	}
	return nil
}
