package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body>
<div class="result">
  <a class="result__a" href="https://example.com/go">The Go Programming Language</a>
  <div class="result__snippet">Go is an open source programming language.</div>
</div>
<div class="result">
  <a class="result__a" href="https://example.com/news">Go 1.22 Released</a>
  <div class="result__snippet">The latest Go release brings loop variable changes.</div>
</div>
<div class="result">
  <a class="result__a" href="https://example.com/three">Third</a>
  <div class="result__snippet">Three.</div>
</div>
<div class="result">
  <a class="result__a" href="https://example.com/four">Fourth</a>
  <div class="result__snippet">Four.</div>
</div>
</body></html>`

func newTestSearcher(endpoint string) *Searcher {
	cfg := DefaultConfig()
	cfg.Endpoint = endpoint
	return NewSearcher(cfg, zerolog.Nop())
}

func TestSearcher_ShouldSearch(t *testing.T) {
	s := newTestSearcher("")

	assert.True(t, s.ShouldSearch("What is the latest news about AI?"))
	assert.True(t, s.ShouldSearch("tell me about black holes"))
	assert.True(t, s.ShouldSearch("WEATHER in berlin"))
	assert.False(t, s.ShouldSearch("good morning lucy"))
	assert.False(t, s.ShouldSearch("I had a rough day"))
}

func TestSearcher_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("q"))
		w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	s := newTestSearcher(srv.URL)
	results, err := s.Search(context.Background(), "golang")

	require.NoError(t, err)
	require.Len(t, results, 3, "results clamp to MaxResults")
	assert.Equal(t, "The Go Programming Language", results[0].Title)
	assert.Equal(t, "Go is an open source programming language.", results[0].Snippet)
	assert.Equal(t, "https://example.com/go", results[0].URL)
}

func TestSearcher_Search_ClampsSnippets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		long := strings.Repeat("a", 500)
		w.Write([]byte(`<div class="result"><a class="result__a" href="u">T</a><div class="result__snippet">` + long + `</div></div>`))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Endpoint = srv.URL
	cfg.SnippetMaxChars = 50
	s := NewSearcher(cfg, zerolog.Nop())

	results, err := s.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Snippet, 50)
}

func TestSearcher_FormatContext(t *testing.T) {
	s := newTestSearcher("")

	ctx := s.FormatContext([]Result{
		{Title: "A", Snippet: "first"},
		{Title: "B", Snippet: "second"},
	})

	assert.True(t, strings.HasPrefix(ctx, "[Web Search Results]"))
	assert.Contains(t, ctx, "1. A: first")
	assert.Contains(t, ctx, "2. B: second")

	assert.Empty(t, s.FormatContext(nil))
}

func TestSearcher_Augment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	s := newTestSearcher(srv.URL)

	block, ok := s.Augment(context.Background(), "what is go")
	require.True(t, ok)
	assert.Contains(t, block, "[Web Search Results]")

	// No trigger phrase: no search.
	_, ok = s.Augment(context.Background(), "good morning")
	assert.False(t, ok)
}

func TestSearcher_Augment_FailureDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := newTestSearcher(srv.URL)
	_, ok := s.Augment(context.Background(), "what is go")
	assert.False(t, ok)
}
