package rss

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newsdigest/internal/config"
	"github.com/deusflow/newsdigest/internal/news"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>Example</title>
  <link>https://example.com/</link>
  <item>
    <title>First &amp; foremost</title>
    <link>https://example.com/first</link>
    <description><![CDATA[<p>Summary one. More text.</p>]]></description>
    <content:encoded><![CDATA[<p>Lead from content. Rest.</p>]]></content:encoded>
    <pubDate>Mon, 02 Mar 2026 10:00:00 +0100</pubDate>
  </item>
  <item>
    <title></title>
    <link>https://example.com/untitled</link>
  </item>
  <item>
    <title>Linked out</title>
    <link>https://example.com/second</link>
    <description><![CDATA[<a href="https://example.com/comments">c</a> <a href="https://origin.dev/post">origin</a>]]></description>
  </item>
  <item>
    <title>Third</title>
    <link>https://example.com/third</link>
  </item>
</channel>
</rss>`

func testFetcher() *Fetcher {
	return NewFetcher(config.Fetch{RequestTimeout: 5 * time.Second, RetryAttempts: 2, RetryDelay: time.Millisecond, UserAgent: "test"})
}

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed":
			w.Header().Set("Content-Type", "application/rss+xml")
			fmt.Fprint(w, feedXML)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_ConvertsEntries(t *testing.T) {
	srv := feedServer(t)
	src := news.SourceConfig{ID: "ex", URL: srv.URL + "/feed"}

	articles, err := testFetcher().Fetch(context.Background(), src, 10)
	require.NoError(t, err)
	require.Len(t, articles, 3)

	first := articles[0]
	assert.Equal(t, ArticleID("ex", "https://example.com/first", "First & foremost"), first.ID)
	assert.Regexp(t, `^ex-[0-9a-f]{12}$`, first.ID)
	assert.Equal(t, "First & foremost", first.Title)
	assert.Equal(t, "Summary one. More text.", first.Summary)
	assert.Equal(t, "Lead from content", first.LeadParagraph)
	assert.Equal(t, "First & foremost Summary one. More text. Lead from content", first.ContentText)
	require.NotNil(t, first.PublishedAt)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), *first.PublishedAt)

	assert.Equal(t, "Third", articles[2].LeadParagraph)
	assert.Nil(t, articles[2].PublishedAt)
}

func TestFetch_LimitAndExternalLinks(t *testing.T) {
	srv := feedServer(t)

	articles, err := testFetcher().Fetch(context.Background(), news.SourceConfig{ID: "ex", URL: srv.URL + "/feed"}, 1)
	require.NoError(t, err)
	assert.Len(t, articles, 1)

	articles, err = testFetcher().Fetch(context.Background(), news.SourceConfig{ID: "ex", URL: srv.URL + "/feed", OnlyExternalLinks: true}, 10)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Linked out", articles[0].Title)
	assert.Equal(t, "https://origin.dev/post", articles[0].InfoURL)
}

func TestFetchAll_IsolatesFailures(t *testing.T) {
	srv := feedServer(t)
	sources := []news.SourceConfig{
		{ID: "ok", URL: srv.URL + "/feed"},
		{ID: "missing", URL: srv.URL + "/gone"},
		{ID: "idle", URL: srv.URL + "/feed"},
	}

	results := testFetcher().FetchAll(context.Background(), sources, map[string]int{"ok": 2, "missing": 5})

	require.Len(t, results, 3)
	assert.Equal(t, "ok", results[0].SourceID)
	assert.NoError(t, results[0].Err)
	assert.Len(t, results[0].Articles, 2)
	assert.Error(t, results[1].Err)
	assert.Empty(t, results[1].Articles)
	assert.NoError(t, results[2].Err)
	assert.Empty(t, results[2].Articles)
}

func TestFetchAll_MoreSourcesThanWorkers(t *testing.T) {
	srv := feedServer(t)
	var sources []news.SourceConfig
	limits := map[string]int{}
	for i := 0; i < parallelism*3; i++ {
		id := fmt.Sprintf("s%d", i)
		path := "/feed"
		if i%2 == 0 {
			path = "/gone"
		}
		sources = append(sources, news.SourceConfig{ID: id, URL: srv.URL + path})
		limits[id] = 1
	}

	results := testFetcher().FetchAll(context.Background(), sources, limits)

	require.Len(t, results, len(sources))
	for i, r := range results {
		assert.Equal(t, sources[i].ID, r.SourceID)
		if i%2 == 0 {
			assert.Error(t, r.Err, r.SourceID)
			continue
		}
		assert.NoError(t, r.Err, r.SourceID)
		assert.Len(t, r.Articles, 1, r.SourceID)
	}
}

func TestLoadSources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`sources:
  - id: hn
    name: Hacker News
    url: https://news.ycombinator.com/rss
    source_weight: 0.8
    only_external_links: true
  - id: off
    url: https://off.example/rss
    source_weight: 0.2
    enabled: false
  - id: blog
    url: https://blog.example/feed
    source_weight: 0.5
`), 0644))

	sources, err := LoadSources(path)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "hn", sources[0].ID)
	assert.True(t, sources[0].OnlyExternalLinks)
	assert.Equal(t, 0.8, sources[0].SourceWeight)
	assert.Equal(t, "blog", sources[1].Name)

	require.NoError(t, os.WriteFile(path, []byte("sources:\n  - id: a\n    url: u\n  - id: a\n    url: v\n"), 0644))
	_, err = LoadSources(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("sources:\n  - id: a\n    url: u\n    source_weight: 2\n"), 0644))
	_, err = LoadSources(path)
	assert.Error(t, err)

	_, err = LoadSources(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadSources_ShippedConfig(t *testing.T) {
	sources, err := LoadSources(filepath.Join("..", "..", "configs", "sources.yaml"))
	require.NoError(t, err)

	require.NotEmpty(t, sources)
	assert.Equal(t, "hn", sources[0].ID)
	for _, s := range sources {
		assert.NotEqual(t, "arxiv-cs-se", s.ID)
	}
}
