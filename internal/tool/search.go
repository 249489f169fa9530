package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxSnippetLength = 300

// searchExecutor queries a Google Custom Search endpoint and condenses the
// results into a digest with source links.
type searchExecutor struct {
	desc     Descriptor
	client   *http.Client
	apiKey   string
	engineID string
	baseURL  string
}

func newSearchExecutor(desc Descriptor, deps Deps) Executor {
	return &searchExecutor{
		desc:     desc,
		client:   deps.Client,
		apiKey:   deps.SearchAPIKey,
		engineID: deps.SearchEngineID,
		baseURL:  deps.SearchBaseURL,
	}
}

type searchItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	DisplayLink string `json:"displayLink"`
}

// Execute 调用搜索端点并返回去重后的结果摘要。
func (e *searchExecutor) Execute(ctx context.Context, params map[string]string) Result {
	started := time.Now()

	query := strings.TrimSpace(params["query"])
	if query == "" {
		return failure(e.desc.Name, started, "no search query provided")
	}
	if e.apiKey == "" || e.engineID == "" {
		return failure(e.desc.Name, started, "search API key or engine id not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, e.desc.timeout())
	defer cancel()

	endpoint := fmt.Sprintf("%s?%s", e.baseURL, url.Values{
		"key": {e.apiKey},
		"cx":  {e.engineID},
		"q":   {query},
		"num": {"10"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return failure(e.desc.Name, started, fmt.Sprintf("failed to build request: %v", err))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return failure(e.desc.Name, started, fmt.Sprintf("search request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failure(e.desc.Name, started, fmt.Sprintf("search API returned status %d", resp.StatusCode))
	}

	var payload struct {
		Items []searchItem `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return failure(e.desc.Name, started, fmt.Sprintf("failed to decode search response: %v", err))
	}

	digest := e.buildDigest(query, payload.Items)
	return Result{
		ToolName: e.desc.Name,
		Success:  true,
		Content:  truncate(digest, e.desc.maxContent()),
		Elapsed:  time.Since(started),
	}
}

// buildDigest deduplicates results by source host and trims snippets.
func (e *searchExecutor) buildDigest(query string, items []searchItem) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Search results for %q:\n", query))

	seen := make(map[string]bool)
	count := 0
	for _, item := range items {
		source := item.DisplayLink
		if source == "" {
			source = item.Link
		}
		if source == "" || seen[source] {
			continue
		}
		seen[source] = true
		count++

		snippet := truncate(strings.TrimSpace(item.Snippet), maxSnippetLength)
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s\n   Source: %s\n", count, item.Title, snippet, item.Link))
	}

	if count == 0 {
		builder.WriteString("(no results)\n")
	}
	return builder.String()
}
