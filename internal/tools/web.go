package tools

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	webUserAgent  = "Mozilla/5.0 (compatible; ferroclaw/1.0)"
	fetchMaxBytes = 100 * 1024
)

var webClient = &http.Client{Timeout: 30 * time.Second}

// WebSearchTool queries the DuckDuckGo HTML endpoint.
type WebSearchTool struct{}

// NewWebSearchTool creates a new WebSearchTool.
func NewWebSearchTool() *WebSearchTool { return &WebSearchTool{} }

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web and return a list of result titles, URLs and snippets."
}

func (t *WebSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query",
			},
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results to return (default 5)",
			},
		},
		"required": []string{"query"},
	}
}

var (
	searchResultRe = regexp.MustCompile(`(?s)<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)
	searchSnipRe   = regexp.MustCompile(`(?s)<a[^>]+class="result__snippet"[^>]*>(.*?)</a>`)
	tagRe          = regexp.MustCompile(`<[^>]+>`)
)

func (t *WebSearchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query := GetString(params, "query", "")
	if query == "" {
		return "Error: query is required", nil
	}
	maxResults := GetInt(params, "max_results", 5)
	if maxResults < 1 {
		maxResults = 1
	}

	endpoint := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Sprintf("Error building search request: %v", err), nil
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := webClient.Do(req)
	if err != nil {
		return fmt.Sprintf("Error: search failed: %v", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Error: search returned status %d", resp.StatusCode), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return fmt.Sprintf("Error reading search response: %v", err), nil
	}

	links := searchResultRe.FindAllStringSubmatch(string(body), maxResults)
	snippets := searchSnipRe.FindAllStringSubmatch(string(body), maxResults)

	if len(links) == 0 {
		return "No results found.", nil
	}

	var out strings.Builder
	for i, link := range links {
		title := stripTags(link[2])
		href := resolveRedirect(link[1])
		out.WriteString(fmt.Sprintf("%d. %s\n   %s\n", i+1, title, href))
		if i < len(snippets) {
			out.WriteString("   " + stripTags(snippets[i][1]) + "\n")
		}
	}
	return out.String(), nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

// WebFetchTool downloads a page and returns its text content.
type WebFetchTool struct{}

// NewWebFetchTool creates a new WebFetchTool.
func NewWebFetchTool() *WebFetchTool { return &WebFetchTool{} }

func (t *WebFetchTool) Name() string { return "web_fetch" }

func (t *WebFetchTool) Description() string {
	return "Fetch a URL and return its text content, truncated to a safe size."
}

func (t *WebFetchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The URL to fetch",
			},
		},
		"required": []string{"url"},
	}
}

func (t *WebFetchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	target := GetString(params, "url", "")
	if target == "" {
		return "Error: url is required", nil
	}
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return "Error: url must start with http:// or https://", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Sprintf("Error building request: %v", err), nil
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := webClient.Do(req)
	if err != nil {
		return fmt.Sprintf("Error: fetch failed: %v", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Error: fetch returned status %d", resp.StatusCode), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchMaxBytes+1))
	if err != nil {
		return fmt.Sprintf("Error reading response: %v", err), nil
	}

	truncated := false
	if len(body) > fetchMaxBytes {
		body = body[:fetchMaxBytes]
		truncated = true
	}

	text := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		text = htmlToText(text)
	}
	if truncated {
		text += "\n\n[content truncated]"
	}
	return text, nil
}

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	blankRe  = regexp.MustCompile(`\n{3,}`)
)

func htmlToText(page string) string {
	page = scriptRe.ReplaceAllString(page, "")
	page = tagRe.ReplaceAllString(page, "\n")
	page = html.UnescapeString(page)

	lines := strings.Split(page, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text := strings.Join(lines, "\n")
	text = blankRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func stripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(s, "")))
}
