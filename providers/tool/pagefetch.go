package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// maxPageBytes caps how much of a fetched page is read.
const maxPageBytes = 1 << 20

// FetchPageInput names the page to fetch.
type FetchPageInput struct {
	URL string `json:"url" jsonschema:"description=Absolute http(s) URL of the page to fetch,required"`
}

// FetchPageOutput carries the page converted to markdown.
type FetchPageOutput struct {
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
}

// NewFetchPage builds the fetch_page tool: fetch a competitor listing or
// style guide page and hand it to the model as markdown.
func NewFetchPage(httpClient *http.Client) (GenericTool, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return New("fetch_page", func(ctx context.Context, input FetchPageInput) (FetchPageOutput, error) {
		if !strings.HasPrefix(input.URL, "http://") && !strings.HasPrefix(input.URL, "https://") {
			return FetchPageOutput{}, fmt.Errorf("tool: fetch_page: unsupported URL %q", input.URL)
		}

		request, err := http.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
		if err != nil {
			return FetchPageOutput{}, fmt.Errorf("tool: fetch_page: %w", err)
		}

		response, err := httpClient.Do(request)
		if err != nil {
			return FetchPageOutput{}, fmt.Errorf("tool: fetch_page: %w", err)
		}
		defer func() { _ = response.Body.Close() }()

		if response.StatusCode != http.StatusOK {
			return FetchPageOutput{}, fmt.Errorf("tool: fetch_page: status %d for %s", response.StatusCode, input.URL)
		}

		body, err := io.ReadAll(io.LimitReader(response.Body, maxPageBytes))
		if err != nil {
			return FetchPageOutput{}, fmt.Errorf("tool: fetch_page: reading body: %w", err)
		}

		markdown, err := htmltomarkdown.ConvertString(string(body))
		if err != nil {
			return FetchPageOutput{}, fmt.Errorf("tool: fetch_page: converting html: %w", err)
		}
		return FetchPageOutput{URL: input.URL, Markdown: markdown}, nil
	}, WithDescription("Fetch a web page and return its content converted to markdown."))
}
