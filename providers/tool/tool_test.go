package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/Brucegx/etsy-listing-agent/core/config"
	"github.com/Brucegx/etsy-listing-agent/core/product"
)

func TestToolCallParsesExecutesAndSerializes(t *testing.T) {
	type in struct {
		Value int `json:"value"`
	}
	type out struct {
		Doubled int `json:"doubled"`
	}

	doubler, err := New("double", func(ctx context.Context, input in) (out, error) {
		return out{Doubled: input.Value * 2}, nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := doubler.Call(context.Background(), `{"value": 21}`)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result != `{"doubled":42}` {
		t.Errorf("unexpected result %q", result)
	}
}

func TestToolCallRepairsMalformedInput(t *testing.T) {
	type in struct {
		Name string `json:"name"`
	}

	echo, err := New("echo", func(ctx context.Context, input in) (in, error) {
		return input, nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Trailing comma, as models sometimes emit.
	result, err := echo.Call(context.Background(), `{"name": "anchor",}`)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result != `{"name":"anchor"}` {
		t.Errorf("unexpected result %q", result)
	}
}

func TestToolCallPropagatesFunctionError(t *testing.T) {
	type in struct{}

	failing, err := New("fail", func(ctx context.Context, input in) (in, error) {
		return in{}, fmt.Errorf("boom")
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := failing.Call(context.Background(), `{}`); err == nil {
		t.Fatal("expected the function error to propagate")
	}
}

func referenceFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"references/scene_guide.md":   "# Scene guide\nUse natural light.",
		"references/anchor_format.md": "# Anchor format",
		"references/.hidden":          "ignored",
	}
	for path, content := range files {
		if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", path, err)
		}
	}
	if err := fs.MkdirAll("references/archive", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return fs
}

func TestReadReferenceListsDocuments(t *testing.T) {
	readReference, err := NewReadReference(referenceFs(t), "references")
	if err != nil {
		t.Fatalf("NewReadReference: %v", err)
	}

	raw, err := readReference.Call(context.Background(), `{"name": ""}`)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	var output ReadReferenceOutput
	if err := json.Unmarshal([]byte(raw), &output); err != nil {
		t.Fatalf("decoding output: %v", err)
	}

	// Sorted, directories and dotfiles excluded.
	want := []string{"anchor_format.md", "scene_guide.md"}
	if len(output.Available) != len(want) {
		t.Fatalf("available = %v, want %v", output.Available, want)
	}
	for i := range want {
		if output.Available[i] != want[i] {
			t.Errorf("available[%d] = %q, want %q", i, output.Available[i], want[i])
		}
	}
}

func TestReadReferenceReadsOneDocument(t *testing.T) {
	readReference, err := NewReadReference(referenceFs(t), "references")
	if err != nil {
		t.Fatalf("NewReadReference: %v", err)
	}

	raw, err := readReference.Call(context.Background(), `{"name": "scene_guide.md"}`)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	var output ReadReferenceOutput
	if err := json.Unmarshal([]byte(raw), &output); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if output.Name != "scene_guide.md" {
		t.Errorf("name = %q", output.Name)
	}
	if output.Content != "# Scene guide\nUse natural light." {
		t.Errorf("content = %q", output.Content)
	}
}

func TestReadReferenceIgnoresPathTraversal(t *testing.T) {
	fs := referenceFs(t)
	if err := afero.WriteFile(fs, "secret.txt", []byte("keys"), 0o644); err != nil {
		t.Fatalf("writing secret: %v", err)
	}

	readReference, err := NewReadReference(fs, "references")
	if err != nil {
		t.Fatalf("NewReadReference: %v", err)
	}

	// The base name is honored, so this resolves inside the directory and
	// fails as missing instead of escaping it.
	if _, err := readReference.Call(context.Background(), `{"name": "../secret.txt"}`); err == nil {
		t.Fatal("expected traversal to fail as a missing reference")
	}
}

func checkPromptRules(t *testing.T) *config.RuleSet {
	t.Helper()
	rules, err := config.ParseRuleSet([]byte(`
anti_ai_realism_keywords: ["film grain"]
banned_keywords_moissanite: ["rainbow fire"]
`))
	if err != nil {
		t.Fatalf("ParseRuleSet: %v", err)
	}
	return rules
}

func TestCheckPromptPassesValidCard(t *testing.T) {
	checkPrompt, err := NewCheckPrompt(checkPromptRules(t), nil)
	if err != nil {
		t.Fatalf("NewCheckPrompt: %v", err)
	}

	card := product.PromptCard{
		SlotIndex:       1,
		Type:            "hero",
		ReferenceImages: []string{"hero.jpg", "side.jpg", "macro.jpg"},
		Prompt: "REFERENCE ANCHOR: match the product exactly.\nThis is a rigid constraint.\n\n" +
			"A 12mm silver ring on oak, soft morning light, subtle film grain.",
	}
	input, err := json.Marshal(card)
	if err != nil {
		t.Fatalf("encoding card: %v", err)
	}

	raw, err := checkPrompt.Call(context.Background(), string(input))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	var output CheckPromptOutput
	if err := json.Unmarshal([]byte(raw), &output); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if !output.Passed {
		t.Errorf("expected pass, got issues %v", output.Issues)
	}
}

func TestCheckPromptReportsIssuesWithoutPassing(t *testing.T) {
	checkPrompt, err := NewCheckPrompt(checkPromptRules(t), []string{"moissanite"})
	if err != nil {
		t.Fatalf("NewCheckPrompt: %v", err)
	}

	card := product.PromptCard{
		SlotIndex:       1,
		Type:            "hero",
		ReferenceImages: []string{"hero.jpg", "side.jpg", "macro.jpg"},
		Prompt: "REFERENCE ANCHOR: match the product exactly.\nThis is a rigid constraint.\n\n" +
			"A 12mm moissanite ring with rainbow fire sparkle, subtle film grain.",
	}
	input, err := json.Marshal(card)
	if err != nil {
		t.Fatalf("encoding card: %v", err)
	}

	raw, err := checkPrompt.Call(context.Background(), string(input))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	var output CheckPromptOutput
	if err := json.Unmarshal([]byte(raw), &output); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if output.Passed {
		t.Fatal("expected the banned keyword to fail the check")
	}
	if len(output.Issues) == 0 {
		t.Fatal("expected at least one issue")
	}
}

func TestFetchPageConvertsHTMLToMarkdown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Silver Rings</h1><p>Handmade bands.</p></body></html>`)
	}))
	defer server.Close()

	fetchPage, err := NewFetchPage(server.Client())
	if err != nil {
		t.Fatalf("NewFetchPage: %v", err)
	}

	raw, err := fetchPage.Call(context.Background(), fmt.Sprintf(`{"url": %q}`, server.URL))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	var output FetchPageOutput
	if err := json.Unmarshal([]byte(raw), &output); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if output.URL != server.URL {
		t.Errorf("url = %q", output.URL)
	}
	if want := "# Silver Rings"; !strings.Contains(output.Markdown, want) {
		t.Errorf("markdown %q missing %q", output.Markdown, want)
	}
}

func TestFetchPageRejectsNonHTTPURLs(t *testing.T) {
	fetchPage, err := NewFetchPage(nil)
	if err != nil {
		t.Fatalf("NewFetchPage: %v", err)
	}

	if _, err := fetchPage.Call(context.Background(), `{"url": "file:///etc/passwd"}`); err == nil {
		t.Fatal("expected non-http URL to be rejected")
	}
}

func TestFetchPageFailsOnErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	fetchPage, err := NewFetchPage(server.Client())
	if err != nil {
		t.Fatalf("NewFetchPage: %v", err)
	}

	if _, err := fetchPage.Call(context.Background(), fmt.Sprintf(`{"url": %q}`, server.URL)); err == nil {
		t.Fatal("expected the 404 to surface as an error")
	}
}
