package validate

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brucegx/etsy-listing-agent/core/config"
	"github.com/Brucegx/etsy-listing-agent/core/product"
)

func testRules(t *testing.T) *config.RuleSet {
	t.Helper()
	rules, err := config.ParseRuleSet([]byte(`
categories: [rings, earrings]
required_slot_types: [hero, size_reference, wearing_a, wearing_b, packaging]
strategic_types: [macro_detail, art_still_life, scene_daily, workshop, art_abstract]
banned_strategic_types: [collage]
earring_design_types: [flat_front, drop_dangle]
banned_title_adjectives: [unique, beautiful]
banned_title_phrases: ["gift for her"]
banned_keywords_wearing: [cafe, beach]
banned_keywords_moissanite: [rainbow]
anti_ai_realism_keywords: ["film grain", "dust particles"]
pose_feasibility:
  rings: [hand_rest]
`))
	require.NoError(t, err)
	return rules
}

func validData() *product.Data {
	return &product.Data{
		ProductID: "R-1001",
		Category:  "rings",
		Materials: []string{"sterling silver"},
		BasicInfo: "A hand-polished sterling silver band with a brushed finish.",
		Size:      product.Size{Dimensions: "2.5 mm band", Source: "measured"},
		Images: []product.Image{
			{Filename: "front.jpg", Angle: "front", Hero: true},
			{Filename: "side.jpg", Angle: "side"},
		},
	}
}

func TestSchemaValidatorReportsFieldPaths(t *testing.T) {
	validator := NewSchemaValidator()
	result, err := validator.Validate(context.Background(), &product.Data{})
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Equal(t, TierSchema, result.Tier)

	fields := make([]string, 0, len(result.Issues))
	for _, issue := range result.Issues {
		fields = append(fields, issue.Field)
	}
	assert.Contains(t, fields, "product_id")
	assert.Contains(t, fields, "basic_info")
}

func TestSchemaValidatorPassesAndIsIdempotent(t *testing.T) {
	validator := NewSchemaValidator()
	data := validData()

	for i := 0; i < 3; i++ {
		result, err := validator.Validate(context.Background(), data)
		require.NoError(t, err)
		assert.True(t, result.Passed, "pass %d", i)
	}
}

func TestStrategySlotCountCheck(t *testing.T) {
	check := StrategySlotCount(3)

	good := &product.Strategy{Slots: []product.Slot{{Index: 1}, {Index: 2}, {Index: 3}}}
	assert.Empty(t, check(good))

	short := &product.Strategy{Slots: []product.Slot{{Index: 1}}}
	assert.NotEmpty(t, check(short))

	duplicate := &product.Strategy{Slots: []product.Slot{{Index: 1}, {Index: 1}, {Index: 2}}}
	assert.NotEmpty(t, check(duplicate))

	outOfRange := &product.Strategy{Slots: []product.Slot{{Index: 1}, {Index: 2}, {Index: 7}}}
	assert.NotEmpty(t, check(outOfRange))
}

func TestDataRulesEarringsNeedDesignType(t *testing.T) {
	rules := testRules(t)
	data := validData()
	data.Category = "earrings"
	data.Size.Source = "measured"

	result, err := DataRules(rules).Validate(context.Background(), data)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, result.Issues[0].Field, "earring_design_type")

	data.EarringDesignType = "drop_dangle"
	result, err = DataRules(rules).Validate(context.Background(), data)
	require.NoError(t, err)
	assert.True(t, result.Passed)
}

func TestDataRulesEstimatedSizeOnlyForRings(t *testing.T) {
	rules := testRules(t)

	data := validData()
	data.Size.Source = "estimated"
	result, err := DataRules(rules).Validate(context.Background(), data)
	require.NoError(t, err)
	assert.True(t, result.Passed)

	data.Category = "earrings"
	data.EarringDesignType = "flat_front"
	result, err = DataRules(rules).Validate(context.Background(), data)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, result.Issues[0].Field, "product_size.source")
}

func TestDataRulesEnumMembership(t *testing.T) {
	rules, err := config.ParseRuleSet([]byte(`
audiences: [female, neutral]
materials: [sterling silver, moissanite]
angles: [front, side]
image_types: [product_only, macro]
size_sources: [spreadsheet, measured, estimated]
material_finish: [brushed, polished]
`))
	require.NoError(t, err)

	data := validData()
	data.TargetAudience = "neutral"
	data.VisualFeatures.MaterialFinish = "brushed"
	data.Images[0].Type = "product_only"
	result, err := DataRules(rules).Validate(context.Background(), data)
	require.NoError(t, err)
	assert.True(t, result.Passed, "issues: %v", result.Issues)

	data.TargetAudience = "pets"
	data.Materials = []string{"sterling silver", "plastic"}
	data.Images[0].Type = "collage"
	data.Images[1].Angle = "diagonal"
	data.Size.Source = "guessed"
	data.VisualFeatures.MaterialFinish = "hammered"
	result, err = DataRules(rules).Validate(context.Background(), data)
	require.NoError(t, err)
	require.False(t, result.Passed)

	text := issuesText(result)
	assert.Contains(t, text, `unknown audience "pets"`)
	assert.Contains(t, text, "materials[1]")
	assert.Contains(t, text, "images[0].type")
	assert.Contains(t, text, "images[1].angle")
	assert.Contains(t, text, `unknown size source "guessed"`)
	assert.Contains(t, text, "visual_features.material_finish")
}

func TestDataRulesHeroImageRequired(t *testing.T) {
	rules := testRules(t)
	data := validData()
	data.Images[0].Hero = false

	result, err := DataRules(rules).Validate(context.Background(), data)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Equal(t, "images", result.Issues[0].Field)
}

func validStrategy() *product.Strategy {
	requiredTypes := []string{"hero", "size_reference", "wearing_a", "wearing_b", "packaging"}
	strategicTypes := []string{"macro_detail", "art_still_life", "scene_daily", "workshop", "art_abstract"}

	slots := make([]product.Slot, 0, 10)
	for i, slotType := range requiredTypes {
		slots = append(slots, product.Slot{
			Index:       i + 1,
			Type:        slotType,
			Category:    product.SlotCategoryRequired,
			Description: "shot " + slotType,
			CreativeDirection: product.CreativeDirection{
				StyleSeries: fmt.Sprintf("series_%d", i%3),
				SceneModule: fmt.Sprintf("module_%d", i),
			},
		})
	}
	for i, slotType := range strategicTypes {
		slots = append(slots, product.Slot{
			Index:       i + 6,
			Type:        slotType,
			Category:    product.SlotCategoryStrategic,
			Description: "shot " + slotType,
			CreativeDirection: product.CreativeDirection{
				StyleSeries: fmt.Sprintf("series_%d", i%3),
				SceneModule: fmt.Sprintf("module_%d", i+5),
			},
		})
	}
	return &product.Strategy{
		Analysis: product.Analysis{TargetCustomer: "minimalist jewelry buyers"},
		Slots:    slots,
	}
}

func TestStrategyRulesAcceptsValidPlan(t *testing.T) {
	rules := testRules(t)
	result, err := StrategyRules(rules, "rings").Validate(context.Background(), validStrategy())
	require.NoError(t, err)
	assert.True(t, result.Passed, "issues: %v", result.Issues)
}

func TestStrategyRulesRequiredSlotOrder(t *testing.T) {
	rules := testRules(t)
	strategy := validStrategy()
	strategy.Slots[0].Type = "macro_detail"
	strategy.Slots[5].Type = "hero" // keep types unique

	result, err := StrategyRules(rules, "rings").Validate(context.Background(), strategy)
	require.NoError(t, err)
	require.False(t, result.Passed)

	joined := issuesText(result)
	assert.Contains(t, joined, `slot 1 must be type "hero"`)
}

func TestStrategyRulesRejectsDuplicateAndBannedTypes(t *testing.T) {
	rules := testRules(t)

	strategy := validStrategy()
	strategy.Slots[6].Type = "macro_detail" // duplicates slot 6's neighbor
	result, err := StrategyRules(rules, "rings").Validate(context.Background(), strategy)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), "duplicate slot type")

	strategy = validStrategy()
	strategy.Slots[9].Type = "collage"
	result, err = StrategyRules(rules, "rings").Validate(context.Background(), strategy)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), "not allowed")
}

func TestStrategyRulesWearingSeriesMustDiffer(t *testing.T) {
	rules := testRules(t)
	strategy := validStrategy()
	for i := range strategy.Slots {
		if strategy.Slots[i].Type == "wearing_a" || strategy.Slots[i].Type == "wearing_b" {
			strategy.Slots[i].CreativeDirection.StyleSeries = "series_same"
			strategy.Slots[i].CreativeDirection.SceneModule = fmt.Sprintf("module_w%d", i)
		}
	}

	result, err := StrategyRules(rules, "rings").Validate(context.Background(), strategy)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), "different style series")
}

func TestStrategyRulesStyleSeriesEnum(t *testing.T) {
	rules, err := config.ParseRuleSet([]byte(`
required_slot_types: [hero, size_reference, wearing_a, wearing_b, packaging]
strategic_types: [macro_detail, art_still_life, scene_daily, workshop, art_abstract]
style_series: [series_0, series_1, series_2]
`))
	require.NoError(t, err)

	result, err := StrategyRules(rules, "rings").Validate(context.Background(), validStrategy())
	require.NoError(t, err)
	assert.True(t, result.Passed, "issues: %v", result.Issues)

	strategy := validStrategy()
	strategy.Slots[1].CreativeDirection.StyleSeries = "neon arcade"
	result, err = StrategyRules(rules, "rings").Validate(context.Background(), strategy)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), `unknown style series "neon arcade"`)
}

func TestStrategyRulesPoseFeasibility(t *testing.T) {
	rules := testRules(t)
	strategy := validStrategy()
	strategy.Slots[2].CreativeDirection.Pose = "underwater"

	result, err := StrategyRules(rules, "rings").Validate(context.Background(), strategy)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), "not feasible")

	// Unknown categories are unconstrained.
	result, err = StrategyRules(rules, "necklaces").Validate(context.Background(), strategy)
	require.NoError(t, err)
	assert.True(t, result.Passed)
}

func validPromptCard(slotType string) *product.PromptCard {
	return &product.PromptCard{
		SlotIndex:       1,
		Type:            slotType,
		ReferenceImages: []string{"front.jpg", "side.jpg", "macro.jpg"},
		Prompt: "REFERENCE ANCHOR: a sterling silver band, brushed finish. Rigid constraint.\n\n" +
			"SCENE CONTEXT: the 2.5 mm band rests on pale linen, soft window light, " +
			"subtle film grain and dust particles for realism.",
	}
}

func TestPromptCardRulesAcceptsValidCard(t *testing.T) {
	rules := testRules(t)
	result, err := PromptCardRules(rules, nil).Validate(context.Background(), validPromptCard("hero"))
	require.NoError(t, err)
	assert.True(t, result.Passed, "issues: %v", result.Issues)
}

func TestPromptCardRulesRequiresAnchor(t *testing.T) {
	rules := testRules(t)
	card := validPromptCard("hero")
	card.Prompt = "SCENE CONTEXT: a ring on linen, 2.5 mm wide, film grain everywhere and more words here."

	result, err := PromptCardRules(rules, nil).Validate(context.Background(), card)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), "REFERENCE ANCHOR")
}

func TestPromptCardRulesAnchorNeedsRigidConstraint(t *testing.T) {
	rules := testRules(t)
	card := validPromptCard("hero")
	card.Prompt = strings.Replace(card.Prompt, "Rigid constraint.", "hold steady.", 1)

	result, err := PromptCardRules(rules, nil).Validate(context.Background(), card)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), "rigid constraint")
}

func TestPromptCardRulesWearingBannedKeywords(t *testing.T) {
	rules := testRules(t)
	card := validPromptCard("wearing_a")
	card.Prompt += " She sips coffee at a cafe table."

	result, err := PromptCardRules(rules, nil).Validate(context.Background(), card)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), "banned keyword")

	// Same text is fine on a non-wearing slot.
	card.Type = "hero"
	result, err = PromptCardRules(rules, nil).Validate(context.Background(), card)
	require.NoError(t, err)
	assert.True(t, result.Passed)
}

func TestPromptCardRulesHeroBannedKeywords(t *testing.T) {
	rules, err := config.ParseRuleSet([]byte(`
banned_keywords_hero: [hand, finger]
banned_hero_background: [cluttered desk]
anti_ai_realism_keywords: ["film grain", "dust particles"]
`))
	require.NoError(t, err)

	result, err := PromptCardRules(rules, nil).Validate(context.Background(), validPromptCard("hero"))
	require.NoError(t, err)
	assert.True(t, result.Passed, "issues: %v", result.Issues)

	card := validPromptCard("hero")
	card.Prompt += " A hand enters the frame."
	result, err = PromptCardRules(rules, nil).Validate(context.Background(), card)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), `hero prompt contains banned keyword "hand"`)

	// The same text is fine on a non-hero slot.
	card.Type = "wearing_a"
	result, err = PromptCardRules(rules, nil).Validate(context.Background(), card)
	require.NoError(t, err)
	assert.True(t, result.Passed, "issues: %v", result.Issues)

	card = validPromptCard("hero")
	card.Prompt += " Set on a cluttered desk."
	result, err = PromptCardRules(rules, nil).Validate(context.Background(), card)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), `hero prompt uses banned background "cluttered desk"`)
}

func TestPromptCardRulesMoissaniteKeywords(t *testing.T) {
	rules := testRules(t)
	card := validPromptCard("hero")
	card.Prompt += " A rainbow flare crosses the stone."

	result, err := PromptCardRules(rules, []string{"moissanite"}).Validate(context.Background(), card)
	require.NoError(t, err)
	require.False(t, result.Passed)

	result, err = PromptCardRules(rules, []string{"sterling silver"}).Validate(context.Background(), card)
	require.NoError(t, err)
	assert.True(t, result.Passed)
}

func TestPromptCardRulesAntiAIRealism(t *testing.T) {
	rules := testRules(t)
	card := validPromptCard("hero")
	card.Prompt = "REFERENCE ANCHOR: a silver band. Rigid constraint.\n\n" +
		"SCENE CONTEXT: the 2.5 mm band on clean white acrylic, studio light."

	result, err := PromptCardRules(rules, nil).Validate(context.Background(), card)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), "anti-AI realism")

	// Packaging and macro shots skip the realism requirement.
	for _, slotType := range []string{"packaging", "macro_detail"} {
		card.Type = slotType
		result, err = PromptCardRules(rules, nil).Validate(context.Background(), card)
		require.NoError(t, err)
		assert.True(t, result.Passed, "type %s: %v", slotType, result.Issues)
	}
}

func TestPromptCardRulesSizeMention(t *testing.T) {
	rules := testRules(t)
	card := validPromptCard("hero")
	card.Prompt = "REFERENCE ANCHOR: a silver band. Rigid constraint.\n\n" +
		"SCENE CONTEXT: the band on pale linen with film grain, no dimensions given."

	result, err := PromptCardRules(rules, nil).Validate(context.Background(), card)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), "size")
}

func validListing() *product.Listing {
	tags := make([]string, product.TagCount)
	for i := range tags {
		tags[i] = fmt.Sprintf("tag %d", i+1)
	}
	return &product.Listing{
		ProductID:   "R-1001",
		Title:       "Sterling Silver Band Ring Brushed Finish Minimalist Stacking",
		Tags:        strings.Join(tags, ", "),
		Description: "A hand-finished sterling silver band with a soft brushed surface, made to order.",
	}
}

func TestListingRulesAcceptsValidListing(t *testing.T) {
	rules := testRules(t)
	result, err := ListingRules(rules).Validate(context.Background(), validListing())
	require.NoError(t, err)
	assert.True(t, result.Passed, "issues: %v", result.Issues)
}

func TestListingRulesTitleChecks(t *testing.T) {
	rules := testRules(t)

	listing := validListing()
	listing.Title = strings.Repeat("word ", 15)
	result, err := ListingRules(rules).Validate(context.Background(), listing)
	require.NoError(t, err)
	require.False(t, result.Passed)
	text := issuesText(result)
	assert.Contains(t, text, "word limit")
	assert.Contains(t, text, "repeated word")

	listing = validListing()
	listing.Title = "A Beautiful Silver Ring"
	result, err = ListingRules(rules).Validate(context.Background(), listing)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), "subjective adjective")

	listing = validListing()
	listing.Title = "Silver Ring Gift for Her Jewelry"
	result, err = ListingRules(rules).Validate(context.Background(), listing)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), "generic phrase")
}

func TestListingRulesTagCardinality(t *testing.T) {
	rules := testRules(t)

	listing := validListing()
	listing.Tags = "only, three, tags"
	result, err := ListingRules(rules).Validate(context.Background(), listing)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), "exactly 13")

	listing = validListing()
	listing.Tags = strings.Replace(listing.Tags, "tag 1", "a tag far longer than twenty characters", 1)
	result, err = ListingRules(rules).Validate(context.Background(), listing)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), "character limit")
}

func TestListingRulesLongTailKeywords(t *testing.T) {
	rules := testRules(t)

	listing := validListing()
	listing.LongTailKeywords = []string{"silver ring"}
	result, err := ListingRules(rules).Validate(context.Background(), listing)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), "exactly 8")

	listing.LongTailKeywords = []string{
		"minimalist silver ring", "brushed band ring", "stacking ring silver",
		"everyday silver band", "sterling ring women", "thin silver ring",
		"silver band handmade", "one two three four five six seven",
	}
	result, err = ListingRules(rules).Validate(context.Background(), listing)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), "2-6 words")
}

func TestListingRulesDescriptionPlainText(t *testing.T) {
	rules := testRules(t)

	listing := validListing()
	listing.Description = "A **bold** claim about this ring that goes on long enough."
	result, err := ListingRules(rules).Validate(context.Background(), listing)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), "bold markdown")

	listing.Description = "Highlights:\n- hand finished\n- made to order, ships fast"
	result, err = ListingRules(rules).Validate(context.Background(), listing)
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.Contains(t, issuesText(result), "list markdown")
}

func issuesText(result Result) string {
	parts := make([]string, 0, len(result.Issues))
	for _, issue := range result.Issues {
		parts = append(parts, issue.String())
	}
	return strings.Join(parts, "\n")
}
