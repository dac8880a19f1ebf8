package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brucegx/etsy-listing-agent/core/client"
	"github.com/Brucegx/etsy-listing-agent/core/config"
	"github.com/Brucegx/etsy-listing-agent/core/product"
	"github.com/Brucegx/etsy-listing-agent/core/run"
	"github.com/Brucegx/etsy-listing-agent/providers/ai"
	"github.com/Brucegx/etsy-listing-agent/providers/storage"
)

// scriptedProvider returns canned responses in order, repeating the last one,
// and records every request. Safe for concurrent branches.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []*ai.ChatResponse
	requests  []ai.ChatRequest
}

func (p *scriptedProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, request)
	if len(p.responses) == 0 {
		return nil, fmt.Errorf("scripted provider has no responses")
	}
	index := len(p.requests) - 1
	if index >= len(p.responses) {
		index = len(p.responses) - 1
	}
	return p.responses[index], nil
}

func (p *scriptedProvider) IsStopMessage(message *ai.ChatResponse) bool {
	return len(message.ToolCalls) == 0
}

func (p *scriptedProvider) WithAPIKey(string) ai.Provider           { return p }
func (p *scriptedProvider) WithBaseURL(string) ai.Provider          { return p }
func (p *scriptedProvider) WithHttpClient(*http.Client) ai.Provider { return p }

func (p *scriptedProvider) requestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *scriptedProvider) request(i int) ai.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[i]
}

func jsonResponse(t *testing.T, value any) *ai.ChatResponse {
	t.Helper()
	data, err := json.Marshal(value)
	require.NoError(t, err)
	return &ai.ChatResponse{Id: "resp", Content: string(data)}
}

const stageTemplatesYAML = `
preprocess: |
  Extract structured data for product {product_id} in category {category}.
  Spreadsheet row:
  {spreadsheet_row}
  Image files: {image_files}
strategy: |
  Plan {slot_count} image slots for a {category} product.
  {product_data_json}
listing: |
  Write the listing copy for {product_id}.
  {product_data_json}
prompt_gen_system: You write image generation prompts.
prompt_gen: |
  Category {category}, materials {materials}, style {style}.
  Direction:
  {direction}
  Scene: {description}
  Anchor:
  {reference_anchor}
  References:
  {refs_list}
packaging: |
  Commercial packaging shot for {product_type}, product size {product_size}, on a clean white surface.
`

func stageTemplates(t *testing.T) *config.Templates {
	t.Helper()
	templates, err := config.ParseTemplates([]byte(stageTemplatesYAML))
	require.NoError(t, err)
	return templates
}

func stageProductData() *product.Data {
	return &product.Data{
		ProductID: "R-1001",
		Category:  "rings",
		Style:     "minimalist",
		Materials: []string{"sterling silver"},
		Size:      product.Size{Dimensions: "2.5 mm", Source: "spreadsheet"},
		BasicInfo: "A thin stacking ring in brushed sterling silver.",
		Images: []product.Image{
			{Filename: "hero.jpg", Angle: "front", Type: "product_only", Hero: true},
			{Filename: "side.jpg", Angle: "side", Type: "product_only"},
			{Filename: "macro.jpg", Angle: "macro", Type: "macro"},
			{Filename: "box.jpg", Angle: "front", Type: "packaging"},
		},
		SellingPoints:   []product.SellingPoint{{Feature: "brushed finish", Benefit: "hides scratches"}},
		ReferenceAnchor: "REFERENCE ANCHOR: match the shown ring exactly.\nThis is a rigid constraint.",
	}
}

func stateWith(t *testing.T, artifacts map[string]any) *run.State {
	t.Helper()
	state := run.New(run.Inputs{ProductID: "R-1001", Category: "rings"})
	for key, value := range artifacts {
		require.NoError(t, state.SetArtifact(key, value))
	}
	return state
}

func forked(t *testing.T, state *run.State, keys ...string) *run.Scope {
	t.Helper()
	scope, err := run.Fork(state, keys...)
	require.NoError(t, err)
	return scope
}

func TestPreprocessBuildsMultimodalRequest(t *testing.T) {
	provider := &scriptedProvider{responses: []*ai.ChatResponse{jsonResponse(t, stageProductData())}}
	structured, err := client.NewStructured[product.Data](provider, client.WithModel("claude-sonnet-4-5"))
	require.NoError(t, err)

	stage := NewPreprocess(structured, stageTemplates(t))

	state := run.New(run.Inputs{
		ProductID: "R-1001",
		Category:  "rings",
		Material:  "sterling silver",
		Size:      "2.5 mm",
		Images: []run.InputImage{
			{Filename: "hero.jpg", MediaType: "image/jpeg", Data: []byte{0xff, 0xd8}},
			{Filename: "side.jpg", MediaType: "image/jpeg", Data: []byte{0xff, 0xd8}},
		},
		Row: map[string]string{"price": "39"},
	})

	output, err := stage.Work()(context.Background(), forked(t, state), "")
	require.NoError(t, err)

	data, ok := output.(*product.Data)
	require.True(t, ok)
	assert.Equal(t, "R-1001", data.ProductID)

	require.Equal(t, 1, provider.requestCount())
	request := provider.request(0)
	require.Len(t, request.Messages, 1)

	parts := request.Messages[0].Parts
	require.Len(t, parts, 3, "one text part plus two image parts")
	assert.Equal(t, ai.ContentText, parts[0].Type)
	assert.Contains(t, parts[0].Text, "product R-1001")
	assert.Contains(t, parts[0].Text, "material: sterling silver")
	assert.Contains(t, parts[0].Text, "price: 39")
	assert.Contains(t, parts[0].Text, "hero.jpg, side.jpg")
	assert.Equal(t, ai.ContentImage, parts[1].Type)
	assert.Equal(t, "image/jpeg", parts[1].Image.MediaType)
}

func TestStrategyUsesPreprocessArtifactAndFeedback(t *testing.T) {
	plan := &product.Strategy{
		Analysis: product.Analysis{TargetCustomer: "minimalist jewelry buyers"},
		Slots: []product.Slot{
			{Index: 1, Type: "hero", Category: product.SlotCategoryRequired, Description: "hero shot"},
		},
	}
	provider := &scriptedProvider{responses: []*ai.ChatResponse{jsonResponse(t, plan)}}
	structured, err := client.NewStructured[product.Strategy](provider, client.WithModel("gpt-4o"))
	require.NoError(t, err)

	stage := NewStrategy(structured, stageTemplates(t), 3)
	state := stateWith(t, map[string]any{"preprocess": stageProductData()})

	output, err := stage.Work()(context.Background(), forked(t, state, "preprocess"), "The previous attempt failed schema validation:\n- analysis.target_customer: missing required field")
	require.NoError(t, err)

	strategy, ok := output.(*product.Strategy)
	require.True(t, ok)
	assert.Equal(t, "minimalist jewelry buyers", strategy.Analysis.TargetCustomer)

	prompt := provider.request(0).Messages[0].Content
	assert.Contains(t, prompt, "Plan 3 image slots")
	assert.Contains(t, prompt, `"product_id": "R-1001"`)
	assert.Contains(t, prompt, "target_customer: missing required field")
	assert.Contains(t, prompt, "Fix the listed issues")
}

func TestPromptGenPackagingSlotSkipsTheModel(t *testing.T) {
	provider := &scriptedProvider{}
	structured, err := client.NewStructured[product.PromptCard](provider, client.WithModel("gpt-4o"))
	require.NoError(t, err)

	stage := NewPromptGen(structured, stageTemplates(t))
	data := stageProductData()
	slot := &product.Slot{Index: 3, Type: "packaging", Category: product.SlotCategoryRequired, Description: "box shot"}
	state := stateWith(t, map[string]any{"preprocess": data, SlotArtifactKey(3): slot})

	output, err := stage.WorkFor(3)(context.Background(), forked(t, state, "preprocess", SlotArtifactKey(3)), "")
	require.NoError(t, err)

	card, ok := output.(*product.PromptCard)
	require.True(t, ok)
	assert.Equal(t, 0, provider.requestCount(), "packaging slots never call the model")
	assert.Equal(t, 3, card.SlotIndex)
	assert.Equal(t, "packaging", card.Type)
	assert.Contains(t, card.Prompt, "Commercial packaging shot for rings, product size 2.5 mm")
	assert.Contains(t, card.Prompt, "REFERENCE ANCHOR:")

	require.Len(t, card.ReferenceImages, 4, "box shot rides along as the fourth reference")
	assert.Equal(t, "hero.jpg", card.ReferenceImages[0])
	assert.Contains(t, card.ReferenceImages, "box.jpg")
}

func TestPromptGenEnforcesBranchIdentity(t *testing.T) {
	draft := product.PromptCard{
		SlotIndex:       99,
		Type:            "wrong",
		ReferenceImages: []string{"a.jpg", "b.jpg", "c.jpg"},
		Prompt:          "REFERENCE ANCHOR: exact match.\nThis is a rigid constraint.\n\nWorn close up at 2.5 mm with film grain.",
	}
	provider := &scriptedProvider{responses: []*ai.ChatResponse{jsonResponse(t, draft)}}
	structured, err := client.NewStructured[product.PromptCard](provider, client.WithModel("gpt-4o"))
	require.NoError(t, err)

	stage := NewPromptGen(structured, stageTemplates(t))
	slot := &product.Slot{
		Index: 2, Type: "wearing_a", Category: product.SlotCategoryRequired,
		Description: "on hand",
		CreativeDirection: product.CreativeDirection{
			StyleSeries: "linen morning", SceneModule: "breakfast table", Mood: "calm",
		},
	}
	state := stateWith(t, map[string]any{"preprocess": stageProductData(), SlotArtifactKey(2): slot})

	output, err := stage.WorkFor(2)(context.Background(), forked(t, state, "preprocess", SlotArtifactKey(2)), "")
	require.NoError(t, err)

	card := output.(*product.PromptCard)
	assert.Equal(t, 2, card.SlotIndex)
	assert.Equal(t, "wearing_a", card.Type)

	prompt := provider.request(0).Messages[0].Content
	assert.Contains(t, prompt, "style series: linen morning")
	assert.Contains(t, prompt, "1. hero.jpg")
	assert.Contains(t, prompt, "REFERENCE ANCHOR:")
}

func TestPromptGenMissingSlotArtifactFails(t *testing.T) {
	provider := &scriptedProvider{}
	structured, err := client.NewStructured[product.PromptCard](provider, client.WithModel("gpt-4o"))
	require.NoError(t, err)

	stage := NewPromptGen(structured, stageTemplates(t))
	state := stateWith(t, map[string]any{"preprocess": stageProductData()})

	_, err = stage.WorkFor(7)(context.Background(), forked(t, state, "preprocess"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `artifact "strategy.slots[7]" not in scope`)
}

func TestListingGenAutoFixesTags(t *testing.T) {
	draft := product.Listing{
		Title:       "Minimalist Sterling Ring",
		Tags:        "silver stacking ring extended edition, ring, gift",
		Description: "A thin stacking ring in brushed sterling silver for everyday wear.",
	}
	provider := &scriptedProvider{responses: []*ai.ChatResponse{jsonResponse(t, draft)}}
	structured, err := client.NewStructured[product.Listing](provider, client.WithModel("gpt-4o"))
	require.NoError(t, err)

	stage := NewListingGen(structured, stageTemplates(t))
	state := stateWith(t, map[string]any{"preprocess": stageProductData()})

	output, err := stage.Work()(context.Background(), forked(t, state, "preprocess"), "")
	require.NoError(t, err)

	listing := output.(*product.Listing)
	assert.Equal(t, "R-1001", listing.ProductID)
	for _, tag := range listing.TagList() {
		assert.LessOrEqual(t, len(tag), product.TagMaxChars)
	}
}

func TestImageRenderStoresEveryCard(t *testing.T) {
	provider := &scriptedProvider{responses: []*ai.ChatResponse{{
		Id:     "img",
		Images: []ai.GeneratedImage{{MediaType: "image/png", Data: []byte{0x89, 0x50}}},
	}}}
	renderClient, err := client.New(provider, client.WithModel("gemini-2.5-flash-image"))
	require.NoError(t, err)

	var stored int
	factory := func(runID string) storage.Store {
		return storage.StoreFunc(func(ctx context.Context, data []byte, contentType string) (string, error) {
			stored++
			return fmt.Sprintf("/images/%s/image_%03d.png", runID, stored), nil
		})
	}

	stage := NewImageRender(renderClient, factory)
	set := product.NewPromptSet([]product.PromptCard{
		{SlotIndex: 1, Type: "hero", ReferenceImages: []string{"a", "b", "c"}, Prompt: "hero prompt"},
		{SlotIndex: 2, Type: "macro_detail", ReferenceImages: []string{"a", "b", "c"}, Prompt: "macro prompt"},
	})
	state := stateWith(t, map[string]any{"prompts": set})

	output, err := stage.Work()(context.Background(), forked(t, state, "prompts"), "")
	require.NoError(t, err)

	rendered := output.(*RenderSet)
	require.Len(t, rendered.Images, 2)
	assert.Equal(t, 1, rendered.Images[0].SlotIndex)
	assert.Contains(t, rendered.Images[0].URL, "/images/"+state.RunID+"/")
	assert.Equal(t, 2, provider.requestCount())
}

func TestImageRenderFailsWhenModelReturnsNoImage(t *testing.T) {
	provider := &scriptedProvider{responses: []*ai.ChatResponse{{Id: "img", Content: "no image"}}}
	renderClient, err := client.New(provider, client.WithModel("gemini-2.5-flash-image"))
	require.NoError(t, err)

	stage := NewImageRender(renderClient, func(runID string) storage.Store {
		return storage.StoreFunc(func(ctx context.Context, data []byte, contentType string) (string, error) {
			t.Fatal("store must not be called")
			return "", nil
		})
	})
	set := product.NewPromptSet([]product.PromptCard{
		{SlotIndex: 1, Type: "hero", ReferenceImages: []string{"a", "b", "c"}, Prompt: "hero prompt"},
	})
	state := stateWith(t, map[string]any{"prompts": set})

	_, err = stage.Work()(context.Background(), forked(t, state, "prompts"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image")
}
