package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// maxFetchBody bounds how much of a page body is read before parsing.
const maxFetchBody = 2 << 20

// fetchExecutor retrieves a URL and strips its markup down to plain text.
type fetchExecutor struct {
	desc   Descriptor
	client *http.Client
}

func newFetchExecutor(desc Descriptor, deps Deps) Executor {
	return &fetchExecutor{desc: desc, client: deps.Client}
}

// Execute 抓取目标网页并返回纯文本摘要。
func (e *fetchExecutor) Execute(ctx context.Context, params map[string]string) Result {
	started := time.Now()

	target := strings.TrimSpace(params["url"])
	if target == "" {
		return failure(e.desc.Name, started, "no url provided")
	}
	parsed, err := url.Parse(target)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return failure(e.desc.Name, started, fmt.Sprintf("invalid url %q", target))
	}

	ctx, cancel := context.WithTimeout(ctx, e.desc.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return failure(e.desc.Name, started, fmt.Sprintf("failed to build request: %v", err))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return failure(e.desc.Name, started, fmt.Sprintf("fetch request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failure(e.desc.Name, started, fmt.Sprintf("fetch returned status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		return failure(e.desc.Name, started, fmt.Sprintf("failed to parse page: %v", err))
	}

	doc.Find("script, style, noscript").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())

	// Prefer the main content area; fall back to the whole body.
	content := extractText(doc, "main")
	if content == "" {
		content = extractText(doc, "article")
	}
	if content == "" {
		content = extractText(doc, "body")
	}

	// resp.Request.URL reflects the post-redirect canonical location.
	canonical := target
	if resp.Request != nil && resp.Request.URL != nil {
		canonical = resp.Request.URL.String()
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Page: %s\n", canonical))
	if title != "" {
		builder.WriteString(fmt.Sprintf("Title: %s\n", title))
	}
	builder.WriteString("\n")
	builder.WriteString(truncate(content, e.desc.maxContent()))

	return Result{
		ToolName: e.desc.Name,
		Success:  true,
		Content:  builder.String(),
		Elapsed:  time.Since(started),
	}
}

func extractText(doc *goquery.Document, selector string) string {
	text := doc.Find(selector).First().Text()
	return strings.Join(strings.Fields(text), " ")
}
