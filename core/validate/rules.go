package validate

import (
	"context"
	"fmt"
	"strings"

	"github.com/Brucegx/etsy-listing-agent/core/config"
	"github.com/Brucegx/etsy-listing-agent/core/product"
)

// The rules tier: deterministic business checks against the externally
// configured rule set. Each constructor returns a TierValidator for one
// stage's output type; passing a different type is a programming error.

func wrongType(expected string, got any) error {
	return fmt.Errorf("validate: rules tier expects %s, got %T", expected, got)
}

// DataRules validates product.Data business constraints: enum membership,
// the earrings design-type requirement, estimated size only for rings, and
// the hero image requirement.
func DataRules(rules *config.RuleSet) TierValidator {
	return TierFunc(func(ctx context.Context, output any) (Result, error) {
		data, ok := output.(*product.Data)
		if !ok {
			return Result{}, wrongType("*product.Data", output)
		}

		var issues []Issue

		if !rules.ValidCategory(data.Category) {
			issues = append(issues, Issue{Field: "category", Reason: fmt.Sprintf("unknown category %q", data.Category)})
		}
		if data.Style != "" && !rules.ValidStyle(data.Style) {
			issues = append(issues, Issue{Field: "style", Reason: fmt.Sprintf("unknown style %q", data.Style)})
		}
		if data.TargetAudience != "" && !rules.ValidAudience(data.TargetAudience) {
			issues = append(issues, Issue{Field: "target_audience", Reason: fmt.Sprintf("unknown audience %q", data.TargetAudience)})
		}
		for i, material := range data.Materials {
			if !rules.ValidMaterial(material) {
				issues = append(issues, Issue{
					Field:  fmt.Sprintf("materials[%d]", i),
					Reason: fmt.Sprintf("unknown material %q", material),
				})
			}
		}
		if data.Size.Source != "" && !rules.ValidSizeSource(data.Size.Source) {
			issues = append(issues, Issue{
				Field:  "product_size.source",
				Reason: fmt.Sprintf("unknown size source %q", data.Size.Source),
			})
		}
		for i, image := range data.Images {
			if image.Angle != "" && !rules.ValidAngle(image.Angle) {
				issues = append(issues, Issue{
					Field:  fmt.Sprintf("images[%d].angle", i),
					Reason: fmt.Sprintf("unknown angle %q", image.Angle),
				})
			}
			if image.Type != "" && !rules.ValidImageType(image.Type) {
				issues = append(issues, Issue{
					Field:  fmt.Sprintf("images[%d].type", i),
					Reason: fmt.Sprintf("unknown image type %q", image.Type),
				})
			}
		}
		for _, feature := range []struct{ dimension, value string }{
			{"material_finish", data.VisualFeatures.MaterialFinish},
			{"color_tone", data.VisualFeatures.ColorTone},
			{"surface_quality", data.VisualFeatures.SurfaceQuality},
			{"light_interaction", data.VisualFeatures.LightInteraction},
		} {
			if feature.value != "" && !rules.ValidVisualFeature(feature.dimension, feature.value) {
				issues = append(issues, Issue{
					Field:  "visual_features." + feature.dimension,
					Reason: fmt.Sprintf("unknown %s %q", feature.dimension, feature.value),
				})
			}
		}

		if data.Category == "earrings" {
			if data.EarringDesignType == "" || !rules.ValidEarringDesignType(data.EarringDesignType) {
				issues = append(issues, Issue{
					Field:  "earring_design_type",
					Reason: "required for earrings and must be a configured design type",
				})
			}
		}

		if data.Size.Source == "estimated" && data.Category != "rings" {
			issues = append(issues, Issue{
				Field:  "product_size.source",
				Reason: fmt.Sprintf("estimated size is only allowed for rings, got category %q", data.Category),
			})
		}

		if data.HeroImage() == nil {
			issues = append(issues, Issue{Field: "images", Reason: "exactly one image must be flagged as hero"})
		}

		if len(issues) > 0 {
			return Fail(TierRules, issues...), nil
		}
		return Pass(TierRules), nil
	})
}

// StrategySlotCount is a schema-tier cardinality check: exactly n slots with
// unique, contiguous indices 1..n.
func StrategySlotCount(n int) CheckFunc {
	return func(output any) []Issue {
		strategy, ok := output.(*product.Strategy)
		if !ok {
			return []Issue{{Field: "slots", Reason: fmt.Sprintf("expected *product.Strategy, got %T", output)}}
		}
		if len(strategy.Slots) != n {
			return []Issue{{Field: "slots", Reason: fmt.Sprintf("must have exactly %d slots, got %d", n, len(strategy.Slots))}}
		}

		var issues []Issue
		seen := make(map[int]bool, n)
		for i, slot := range strategy.Slots {
			if slot.Index < 1 || slot.Index > n {
				issues = append(issues, Issue{
					Field:  fmt.Sprintf("slots[%d].index", i),
					Reason: fmt.Sprintf("must be between 1 and %d, got %d", n, slot.Index),
				})
				continue
			}
			if seen[slot.Index] {
				issues = append(issues, Issue{
					Field:  fmt.Sprintf("slots[%d].index", i),
					Reason: fmt.Sprintf("duplicate slot index %d", slot.Index),
				})
			}
			seen[slot.Index] = true
		}
		return issues
	}
}

// StrategyRules validates the image strategy against the rule set: slots
// 1..len(required) carry the fixed required types in order, later slots are
// strategic, types are unique and never banned, wearing shots use distinct
// style series, and poses are feasible for the product category.
func StrategyRules(rules *config.RuleSet, category string) TierValidator {
	return TierFunc(func(ctx context.Context, output any) (Result, error) {
		strategy, ok := output.(*product.Strategy)
		if !ok {
			return Result{}, wrongType("*product.Strategy", output)
		}

		var issues []Issue
		requiredCount := len(rules.RequiredSlotTypes)

		for _, slot := range strategy.Slots {
			position := slot.Index
			if position >= 1 && position <= requiredCount {
				expected := rules.RequiredSlotTypes[position-1]
				if slot.Type != expected {
					issues = append(issues, Issue{
						Field:  fmt.Sprintf("slots[%d].type", position),
						Reason: fmt.Sprintf("slot %d must be type %q, got %q", position, expected, slot.Type),
					})
				}
				if slot.Category != product.SlotCategoryRequired {
					issues = append(issues, Issue{
						Field:  fmt.Sprintf("slots[%d].category", position),
						Reason: fmt.Sprintf("slot %d must be category %q", position, product.SlotCategoryRequired),
					})
				}
			} else if position > requiredCount {
				if slot.Category != product.SlotCategoryStrategic {
					issues = append(issues, Issue{
						Field:  fmt.Sprintf("slots[%d].category", position),
						Reason: fmt.Sprintf("slot %d must be category %q", position, product.SlotCategoryStrategic),
					})
				}
			}

			if !rules.ValidSlotType(slot.Type) {
				issues = append(issues, Issue{
					Field:  fmt.Sprintf("slots[%d].type", position),
					Reason: fmt.Sprintf("type %q is not allowed", slot.Type),
				})
			}
			if series := slot.CreativeDirection.StyleSeries; series != "" && !rules.ValidStyleSeries(series) {
				issues = append(issues, Issue{
					Field:  fmt.Sprintf("slots[%d].creative_direction.style_series", position),
					Reason: fmt.Sprintf("unknown style series %q", series),
				})
			}
		}

		// Unique types across all slots.
		seenTypes := make(map[string]bool, len(strategy.Slots))
		for _, slot := range strategy.Slots {
			if seenTypes[slot.Type] {
				issues = append(issues, Issue{
					Field:  "slots",
					Reason: fmt.Sprintf("duplicate slot type %q", slot.Type),
				})
			}
			seenTypes[slot.Type] = true
		}

		// Wearing shots must diverge in style series.
		var wearingA, wearingB string
		for _, slot := range strategy.Slots {
			switch slot.Type {
			case "wearing_a":
				wearingA = slot.CreativeDirection.StyleSeries
			case "wearing_b":
				wearingB = slot.CreativeDirection.StyleSeries
			}
		}
		if wearingA != "" && wearingA == wearingB {
			issues = append(issues, Issue{
				Field:  "slots",
				Reason: fmt.Sprintf("wearing_a and wearing_b must use different style series, both use %q", wearingA),
			})
		}

		// Pose feasibility per category.
		if allowedPoses := rules.PosesFor(category); allowedPoses != nil {
			for _, slot := range strategy.Slots {
				pose := slot.CreativeDirection.Pose
				if pose == "" {
					continue
				}
				feasible := false
				for _, allowed := range allowedPoses {
					if pose == allowed {
						feasible = true
						break
					}
				}
				if !feasible {
					issues = append(issues, Issue{
						Field:  fmt.Sprintf("slots[%d].creative_direction.pose", slot.Index),
						Reason: fmt.Sprintf("pose %q is not feasible for category %q", pose, category),
					})
				}
			}
		}

		// No creative twins: two slots must not share the same style series
		// and scene module pairing.
		combos := make(map[string]int, len(strategy.Slots))
		for _, slot := range strategy.Slots {
			series := slot.CreativeDirection.StyleSeries
			module := slot.CreativeDirection.SceneModule
			if series == "" || module == "" {
				continue
			}
			key := series + "\x00" + module
			if first, dup := combos[key]; dup {
				issues = append(issues, Issue{
					Field:  fmt.Sprintf("slots[%d].creative_direction", slot.Index),
					Reason: fmt.Sprintf("duplicates the style series and scene module of slot %d", first),
				})
				continue
			}
			combos[key] = slot.Index
		}

		if len(issues) > 0 {
			return Fail(TierRules, issues...), nil
		}
		return Pass(TierRules), nil
	})
}

// promptMinChars is the minimum length of a usable rendering prompt.
const promptMinChars = 50

// PromptCardRules validates one branch's prompt card: anchor block format,
// banned keywords by shot type and material, anti-AI realism modifiers, and
// a size mention in the scene context.
func PromptCardRules(rules *config.RuleSet, materials []string) TierValidator {
	return TierFunc(func(ctx context.Context, output any) (Result, error) {
		card, ok := output.(*product.PromptCard)
		if !ok {
			return Result{}, wrongType("*product.PromptCard", output)
		}

		var issues []Issue
		promptText := card.Prompt
		promptLower := strings.ToLower(promptText)

		if len(promptText) < promptMinChars {
			issues = append(issues, Issue{
				Field:  "prompt",
				Reason: fmt.Sprintf("too short, %d characters (minimum %d)", len(promptText), promptMinChars),
			})
		}

		issues = append(issues, checkAnchorFormat(promptText)...)

		if card.Type == "wearing_a" || card.Type == "wearing_b" {
			for _, keyword := range rules.BannedKeywordsWearing {
				if strings.Contains(promptLower, strings.ToLower(keyword)) {
					issues = append(issues, Issue{
						Field:  "prompt",
						Reason: fmt.Sprintf("wearing prompt contains banned keyword %q", keyword),
					})
					break
				}
			}
		}

		if card.Type == "hero" {
			for _, keyword := range rules.BannedKeywordsHero {
				if strings.Contains(promptLower, strings.ToLower(keyword)) {
					issues = append(issues, Issue{
						Field:  "prompt",
						Reason: fmt.Sprintf("hero prompt contains banned keyword %q", keyword),
					})
					break
				}
			}
			for _, background := range rules.BannedHeroBackground {
				if strings.Contains(promptLower, strings.ToLower(background)) {
					issues = append(issues, Issue{
						Field:  "prompt",
						Reason: fmt.Sprintf("hero prompt uses banned background %q", background),
					})
					break
				}
			}
		}

		for _, material := range materials {
			if !strings.EqualFold(material, "moissanite") {
				continue
			}
			for _, keyword := range rules.BannedKeywordsMoissanite {
				if strings.Contains(promptLower, strings.ToLower(keyword)) {
					issues = append(issues, Issue{
						Field:  "prompt",
						Reason: fmt.Sprintf("moissanite prompt contains banned keyword %q", keyword),
					})
				}
			}
			break
		}

		// Anti-AI realism modifiers. Skipped for macro_detail (modifiers
		// read as dirt at macro zoom) and packaging (clean commercial shot).
		if card.Type != "macro_detail" && card.Type != "packaging" && len(rules.AntiAIRealismKeywords) > 0 {
			hasRealism := false
			for _, keyword := range rules.AntiAIRealismKeywords {
				if strings.Contains(promptLower, strings.ToLower(keyword)) {
					hasRealism = true
					break
				}
			}
			if !hasRealism {
				issues = append(issues, Issue{
					Field:  "prompt",
					Reason: "must contain an anti-AI realism modifier such as film grain or dust particles",
				})
			}
		}

		issues = append(issues, checkSizeMention(rules, promptText)...)

		if len(issues) > 0 {
			return Fail(TierRules, issues...), nil
		}
		return Pass(TierRules), nil
	})
}

// checkAnchorFormat enforces the reference anchor block: present, at most 3
// non-empty lines, and carrying the literal "rigid constraint" marker.
func checkAnchorFormat(promptText string) []Issue {
	const anchorMarker = "REFERENCE ANCHOR:"

	start := strings.Index(promptText, anchorMarker)
	if start < 0 {
		return []Issue{{Field: "prompt", Reason: "must contain a 'REFERENCE ANCHOR:' section"}}
	}

	section := promptText[start:]
	if end := strings.Index(section, "\n\n"); end >= 0 {
		section = section[:end]
	} else if end := strings.Index(section, "1:1"); end >= 0 {
		section = section[:end]
	} else {
		return nil
	}

	var issues []Issue
	lineCount := 0
	for _, line := range strings.Split(strings.TrimSpace(section), "\n") {
		if strings.TrimSpace(line) != "" {
			lineCount++
		}
	}
	if lineCount > 3 {
		issues = append(issues, Issue{
			Field:  "prompt",
			Reason: fmt.Sprintf("reference anchor must be at most 3 lines, got %d", lineCount),
		})
	}
	if !strings.Contains(strings.ToLower(section), "rigid constraint") {
		issues = append(issues, Issue{Field: "prompt", Reason: "reference anchor must contain 'rigid constraint'"})
	}
	return issues
}

// checkSizeMention requires a concrete size mention in the scene context,
// the text after the anchor paragraph.
func checkSizeMention(rules *config.RuleSet, promptText string) []Issue {
	sceneText := promptText
	if end := strings.Index(promptText, "\n\n"); end >= 0 {
		sceneText = promptText[end:]
	}
	if !rules.SizePattern().MatchString(sceneText) {
		return []Issue{{
			Field:  "prompt",
			Reason: "scene context must mention the product size, for example 20mm or 18x18mm",
		}}
	}
	return nil
}

// ListingRules validates the listing copy: title length and word hygiene,
// exact tag cardinality and length, optional variation and keyword counts,
// and a plain-text description.
func ListingRules(rules *config.RuleSet) TierValidator {
	return TierFunc(func(ctx context.Context, output any) (Result, error) {
		listing, ok := output.(*product.Listing)
		if !ok {
			return Result{}, wrongType("*product.Listing", output)
		}

		var issues []Issue

		issues = append(issues, checkTitle(rules, listing.Title)...)

		if len(listing.TitleVariations) > 0 && len(listing.TitleVariations) != 2 {
			issues = append(issues, Issue{
				Field:  "title_variations",
				Reason: fmt.Sprintf("must have exactly 2 items, got %d", len(listing.TitleVariations)),
			})
		}

		tags := listing.TagList()
		if len(tags) != product.TagCount {
			issues = append(issues, Issue{
				Field:  "tags",
				Reason: fmt.Sprintf("must have exactly %d tags, got %d", product.TagCount, len(tags)),
			})
		}
		for i, tag := range tags {
			if len(tag) > product.TagMaxChars {
				issues = append(issues, Issue{
					Field:  fmt.Sprintf("tags[%d]", i),
					Reason: fmt.Sprintf("%q exceeds the %d character limit (%d chars)", tag, product.TagMaxChars, len(tag)),
				})
			}
		}

		if len(listing.LongTailKeywords) > 0 {
			if len(listing.LongTailKeywords) != 8 {
				issues = append(issues, Issue{
					Field:  "long_tail_keywords",
					Reason: fmt.Sprintf("must have exactly 8 items, got %d", len(listing.LongTailKeywords)),
				})
			}
			for i, keyword := range listing.LongTailKeywords {
				words := len(strings.Fields(keyword))
				if words < 2 || words > 6 {
					issues = append(issues, Issue{
						Field:  fmt.Sprintf("long_tail_keywords[%d]", i),
						Reason: fmt.Sprintf("should be 2-6 words, got %d: %q", words, keyword),
					})
				}
			}
		}

		issues = append(issues, checkDescriptionPlainText(listing.Description)...)

		if len(issues) > 0 {
			return Fail(TierRules, issues...), nil
		}
		return Pass(TierRules), nil
	})
}

const titleMaxWords = 14

func checkTitle(rules *config.RuleSet, title string) []Issue {
	var issues []Issue
	titleLower := strings.ToLower(title)

	if words := len(strings.Fields(title)); words > titleMaxWords {
		issues = append(issues, Issue{
			Field:  "title",
			Reason: fmt.Sprintf("exceeds the %d word limit, got %d words", titleMaxWords, words),
		})
	}

	for _, adjective := range rules.BannedTitleAdjectives {
		if strings.Contains(" "+titleLower+" ", " "+strings.ToLower(adjective)+" ") {
			issues = append(issues, Issue{
				Field:  "title",
				Reason: fmt.Sprintf("contains banned subjective adjective %q", adjective),
			})
		}
	}
	for _, phrase := range rules.BannedTitlePhrases {
		if strings.Contains(titleLower, strings.ToLower(phrase)) {
			issues = append(issues, Issue{
				Field:  "title",
				Reason: fmt.Sprintf("contains banned generic phrase %q", phrase),
			})
		}
	}

	// Repeated words, ignoring very short ones.
	counts := make(map[string]int)
	for _, word := range strings.Fields(titleLower) {
		clean := strings.Trim(word, ".,!?;:'\"")
		if len(clean) > 2 {
			counts[clean]++
		}
	}
	for word, count := range counts {
		if count > 1 {
			issues = append(issues, Issue{
				Field:  "title",
				Reason: fmt.Sprintf("repeated word %q appears %d times", word, count),
			})
		}
	}

	return issues
}

func checkDescriptionPlainText(description string) []Issue {
	var issues []Issue

	for _, marker := range []struct{ pattern, kind string }{
		{"**", "bold markdown"},
		{"__", "bold markdown"},
		{"```", "code block"},
		{"](", "link markdown"},
	} {
		if strings.Contains(description, marker.pattern) {
			issues = append(issues, Issue{
				Field:  "description",
				Reason: fmt.Sprintf("contains %s (%q); plain text required", marker.kind, marker.pattern),
			})
		}
	}

	for _, line := range strings.Split(description, "\n") {
		stripped := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(stripped, "# ") || strings.HasPrefix(stripped, "## ") || strings.HasPrefix(stripped, "### ") {
			issues = append(issues, Issue{Field: "description", Reason: "contains header markdown"})
			break
		}
		if strings.HasPrefix(stripped, "* ") || strings.HasPrefix(stripped, "- ") {
			issues = append(issues, Issue{Field: "description", Reason: "contains list markdown"})
			break
		}
	}

	return issues
}
