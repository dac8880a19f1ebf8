package config

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// RuleSet holds the externally injected validation rule content: category and
// style enumerations, banned keyword lists, and cross-field constraints. The
// engine treats all of it as data; swapping the rule file retargets the
// pipeline to a different product domain without a code change.
type RuleSet struct {
	Categories       []string `yaml:"categories"`
	Styles           []string `yaml:"styles"`
	Audiences        []string `yaml:"audiences"`
	Materials        []string `yaml:"materials"`
	Angles           []string `yaml:"angles"`
	ImageTypes       []string `yaml:"image_types"`
	SizeSources      []string `yaml:"size_sources"`
	MaterialFinish   []string `yaml:"material_finish"`
	ColorTone        []string `yaml:"color_tone"`
	SurfaceQuality   []string `yaml:"surface_quality"`
	LightInteraction []string `yaml:"light_interaction"`

	// Slot strategy constraints. RequiredSlotTypes is ordered: slot i must
	// carry RequiredSlotTypes[i-1] for i in 1..len.
	RequiredSlotTypes    []string `yaml:"required_slot_types"`
	StrategicTypes       []string `yaml:"strategic_types"`
	BannedStrategicTypes []string `yaml:"banned_strategic_types"`
	StyleSeries          []string `yaml:"style_series"`

	// PoseFeasibility maps a product category to the pose codes a wearing
	// shot may use for it.
	PoseFeasibility map[string][]string `yaml:"pose_feasibility"`

	EarringDesignTypes []string `yaml:"earring_design_types"`

	BannedTitleAdjectives    []string `yaml:"banned_title_adjectives"`
	BannedTitlePhrases       []string `yaml:"banned_title_phrases"`
	BannedKeywordsHero       []string `yaml:"banned_keywords_hero"`
	BannedKeywordsWearing    []string `yaml:"banned_keywords_wearing"`
	BannedKeywordsMoissanite []string `yaml:"banned_keywords_moissanite"`
	BannedHeroBackground     []string `yaml:"banned_hero_background"`
	AntiAIRealismKeywords    []string `yaml:"anti_ai_realism_keywords"`

	// SizePatternExpr recognizes a concrete size mention ("12 mm",
	// "1.5 x 2 cm") inside prompt text. Compiled once at load time.
	SizePatternExpr string `yaml:"size_pattern"`

	sizePattern *regexp.Regexp
}

// defaultSizePattern matches "12mm", "1.5 x 2 cm", "3 g" style size mentions.
const defaultSizePattern = `\d+(?:\.\d+)?(?:\s*(?:x|×)\s*\d+(?:\.\d+)?)?\s*(?:mm|cm|g\b)`

// ParseRuleSet decodes a YAML rule file and compiles its size pattern.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	var rules RuleSet
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("config: parsing rule set: %w", err)
	}
	if err := rules.compile(); err != nil {
		return nil, err
	}
	return &rules, nil
}

func (r *RuleSet) compile() error {
	expr := r.SizePatternExpr
	if expr == "" {
		expr = defaultSizePattern
	}
	pattern, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return fmt.Errorf("config: invalid size_pattern: %w", err)
	}
	r.sizePattern = pattern
	return nil
}

// SizePattern returns the compiled size-mention matcher.
func (r *RuleSet) SizePattern() *regexp.Regexp {
	if r.sizePattern == nil {
		r.sizePattern = regexp.MustCompile("(?i)" + defaultSizePattern)
	}
	return r.sizePattern
}

// ValidCategory reports whether category appears in the configured enum.
// An empty enum accepts everything, so a minimal rule file stays usable.
func (r *RuleSet) ValidCategory(category string) bool {
	return emptyOrContains(r.Categories, category)
}

// ValidStyle reports whether style appears in the configured enum.
func (r *RuleSet) ValidStyle(style string) bool {
	return emptyOrContains(r.Styles, style)
}

// ValidAudience reports whether audience appears in the configured enum.
func (r *RuleSet) ValidAudience(audience string) bool {
	return emptyOrContains(r.Audiences, audience)
}

// ValidMaterial reports whether material appears in the configured enum.
func (r *RuleSet) ValidMaterial(material string) bool {
	return emptyOrContains(r.Materials, material)
}

// ValidAngle reports whether an image angle appears in the configured enum.
func (r *RuleSet) ValidAngle(angle string) bool {
	return emptyOrContains(r.Angles, angle)
}

// ValidImageType reports whether an image type appears in the configured enum.
func (r *RuleSet) ValidImageType(imageType string) bool {
	return emptyOrContains(r.ImageTypes, imageType)
}

// ValidSizeSource reports whether a size source appears in the configured enum.
func (r *RuleSet) ValidSizeSource(source string) bool {
	return emptyOrContains(r.SizeSources, source)
}

// ValidStyleSeries reports whether a creative direction's style series
// appears in the configured enum.
func (r *RuleSet) ValidStyleSeries(series string) bool {
	return emptyOrContains(r.StyleSeries, series)
}

// ValidVisualFeature reports whether a visual feature value appears in the
// enum configured for its dimension.
func (r *RuleSet) ValidVisualFeature(dimension, value string) bool {
	switch dimension {
	case "material_finish":
		return emptyOrContains(r.MaterialFinish, value)
	case "color_tone":
		return emptyOrContains(r.ColorTone, value)
	case "surface_quality":
		return emptyOrContains(r.SurfaceQuality, value)
	case "light_interaction":
		return emptyOrContains(r.LightInteraction, value)
	}
	return true
}

// ValidSlotType reports whether slotType is either a required or a strategic
// type, and not banned.
func (r *RuleSet) ValidSlotType(slotType string) bool {
	if contains(r.BannedStrategicTypes, slotType) {
		return false
	}
	return contains(r.RequiredSlotTypes, slotType) || contains(r.StrategicTypes, slotType)
}

// ValidEarringDesignType reports whether designType is allowed.
func (r *RuleSet) ValidEarringDesignType(designType string) bool {
	return emptyOrContains(r.EarringDesignTypes, designType)
}

// PosesFor returns the allowed pose codes for a category, or nil when the
// category has no feasibility entry (meaning: unconstrained).
func (r *RuleSet) PosesFor(category string) []string {
	return r.PoseFeasibility[category]
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

func emptyOrContains(values []string, target string) bool {
	if len(values) == 0 {
		return true
	}
	return contains(values, target)
}
