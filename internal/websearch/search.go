// Package websearch augments LLM context with current information from
// DuckDuckGo's HTML endpoint, which needs no API key.
package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// searchTriggers are phrases that suggest a query benefits from fresh
// web results.
var searchTriggers = []string{
	"what is", "who is", "when is", "where is", "how to",
	"latest", "recent", "current", "today", "news",
	"what's", "who's", "define", "explain", "tell me about",
	"weather", "price", "score", "search", "find out",
}

// Result is a single web search result.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url,omitempty"`
}

// Config configures the searcher.
type Config struct {
	Endpoint        string        // Search endpoint; defaults to DuckDuckGo HTML
	MaxResults      int           // Results to keep (default: 3)
	SnippetMaxChars int           // Snippet clamp (default: 300)
	Timeout         time.Duration // HTTP timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint:        "https://html.duckduckgo.com/html/",
		MaxResults:      3,
		SnippetMaxChars: 300,
		Timeout:         10 * time.Second,
	}
}

// Searcher retrieves and formats web results for prompt augmentation.
type Searcher struct {
	config Config
	client *http.Client
	logger zerolog.Logger
}

// NewSearcher creates a new web searcher.
func NewSearcher(config Config, logger zerolog.Logger) *Searcher {
	def := DefaultConfig()
	if config.Endpoint == "" {
		config.Endpoint = def.Endpoint
	}
	if config.MaxResults <= 0 {
		config.MaxResults = def.MaxResults
	}
	if config.SnippetMaxChars <= 0 {
		config.SnippetMaxChars = def.SnippetMaxChars
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	return &Searcher{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("component", "websearch").Logger(),
	}
}

// ShouldSearch heuristically decides whether a query needs web search.
func (s *Searcher) ShouldSearch(query string) bool {
	lower := strings.ToLower(query)
	for _, trigger := range searchTriggers {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}

// Search queries the endpoint and parses the result list.
func (s *Searcher) Search(ctx context.Context, query string) ([]Result, error) {
	reqURL := s.config.Endpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; lucyd)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}

	var results []Result
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find(".result__a")
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}
		snippet := strings.TrimSpace(sel.Find(".result__snippet").Text())
		if len(snippet) > s.config.SnippetMaxChars {
			snippet = snippet[:s.config.SnippetMaxChars]
		}
		href, _ := link.Attr("href")
		results = append(results, Result{Title: title, Snippet: snippet, URL: href})
		return len(results) < s.config.MaxResults
	})

	s.logger.Debug().Str("query", query).Int("results", len(results)).Msg("Web search complete")
	return results, nil
}

// FormatContext renders results as a context block for the LLM.
func (s *Searcher) FormatContext(results []Result) string {
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("[Web Search Results]")
	for i, r := range results {
		fmt.Fprintf(&sb, "\n%d. %s: %s", i+1, r.Title, r.Snippet)
	}
	return sb.String()
}

// Augment returns a context block for the query when search is
// warranted and yields results, otherwise ("", false). Search failures
// degrade to no augmentation; the turn proceeds without context.
func (s *Searcher) Augment(ctx context.Context, query string) (string, bool) {
	if !s.ShouldSearch(query) {
		return "", false
	}

	results, err := s.Search(ctx, query)
	if err != nil {
		s.logger.Warn().Err(err).Str("query", query).Msg("Web search failed")
		return "", false
	}
	if len(results) == 0 {
		return "", false
	}
	return s.FormatContext(results), true
}
