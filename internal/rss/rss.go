// Package rss fetches curated feeds and turns their entries into articles.
package rss

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/deusflow/newsdigest/internal/config"
	"github.com/deusflow/newsdigest/internal/logger"
	"github.com/deusflow/newsdigest/internal/metrics"
	"github.com/deusflow/newsdigest/internal/news"
	"github.com/deusflow/newsdigest/internal/retry"
	"github.com/deusflow/newsdigest/internal/scraper"
)

const (
	maxLeadLen  = 280
	parallelism = 4
)

// Fetcher downloads feeds with a per-source timeout and bounded retries.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	retry     retry.RetryConfig
}

func NewFetcher(cfg config.Fetch) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: cfg.RequestTimeout},
		userAgent: cfg.UserAgent,
		timeout:   cfg.RequestTimeout,
		retry: retry.RetryConfig{
			MaxAttempts: cfg.RetryAttempts,
			Delay:       cfg.RetryDelay,
			Backoff:     true,
			Name:        "feed fetch",
		},
	}
}

// Result is the outcome of one source fetch.
type Result struct {
	SourceID string
	Articles []news.Article
	Err      error
}

// FetchAll fetches every source with a positive limit. A failing source is logged and
// reported in its Result; it never stops the others. Results follow the input order.
func (f *Fetcher) FetchAll(ctx context.Context, sources []news.SourceConfig, limits map[string]int) []Result {
	results := make([]Result, len(sources))
	var g errgroup.Group
	g.SetLimit(parallelism)

	for i, src := range sources {
		results[i].SourceID = src.ID
		limit := limits[src.ID]
		if limit <= 0 {
			continue
		}
		g.Go(func() error {
			articles, err := f.Fetch(ctx, src, limit)
			if err != nil {
				logger.Warn("feed fetch failed", "source_id", src.ID, "url", src.URL, "error", err)
				metrics.FetchErrors.WithLabelValues(src.ID).Inc()
				results[i].Err = err
				return nil
			}
			metrics.ArticlesFetched.WithLabelValues(src.ID).Add(float64(len(articles)))
			results[i].Articles = articles
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Fetch downloads one feed and converts at most limit usable entries.
func (f *Fetcher) Fetch(ctx context.Context, src news.SourceConfig, limit int) ([]news.Article, error) {
	var feed *gofeed.Feed
	err := retry.WithRetry(ctx, f.retry, func() error {
		callCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		fp := gofeed.NewParser()
		fp.Client = f.client
		fp.UserAgent = f.userAgent
		parsed, err := fp.ParseURLWithContext(src.URL, callCtx)
		if err != nil {
			var httpErr gofeed.HTTPError
			if errors.As(err, &httpErr) && httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
				return retry.Permanent(err)
			}
			return err
		}
		feed = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src.ID, err)
	}

	ownHost := scraper.HostOf(feed.Link)
	if ownHost == "" {
		ownHost = scraper.HostOf(src.URL)
	}

	var articles []news.Article
	for _, item := range feed.Items {
		if len(articles) >= limit {
			break
		}
		a, ok := toArticle(src, item, ownHost)
		if ok {
			articles = append(articles, a)
		}
	}
	logger.Debug("feed fetched", "source_id", src.ID, "entries", len(feed.Items), "articles", len(articles))
	return articles, nil
}

func toArticle(src news.SourceConfig, item *gofeed.Item, ownHost string) (news.Article, bool) {
	title := scraper.HTMLToText(item.Title)
	link := strings.TrimSpace(item.Link)
	if title == "" || link == "" {
		return news.Article{}, false
	}

	a := news.Article{
		ID:       ArticleID(src.ID, link, title),
		Title:    title,
		URL:      link,
		SourceID: src.ID,
		Summary:  scraper.HTMLToText(item.Description),
	}

	if src.OnlyExternalLinks {
		links := scraper.ExternalLinks(item.Description+" "+item.Content, ownHost)
		if len(links) == 0 {
			return news.Article{}, false
		}
		a.InfoURL = links[0]
	}

	a.LeadParagraph = leadParagraph(item, a.Summary, title)
	var parts []string
	for _, p := range []string{title, a.Summary, a.LeadParagraph} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	a.ContentText = strings.Join(parts, " ")

	switch {
	case item.PublishedParsed != nil:
		t := item.PublishedParsed.UTC()
		a.PublishedAt = &t
	case item.UpdatedParsed != nil:
		t := item.UpdatedParsed.UTC()
		a.PublishedAt = &t
	}
	return a, true
}

// leadParagraph prefers the first sentence of the content block, then of the summary,
// then the title.
func leadParagraph(item *gofeed.Item, summary, title string) string {
	if item.Content != "" {
		if lead := scraper.FirstSentence(scraper.FirstParagraph(item.Content), maxLeadLen); lead != "" {
			return lead
		}
	}
	if summary != "" {
		if lead := scraper.FirstSentence(summary, maxLeadLen); lead != "" {
			return lead
		}
	}
	return scraper.FirstSentence(title, maxLeadLen)
}

// ArticleID is sourceID + "-" + the first 12 hex chars of sha256(source|url|title).
func ArticleID(sourceID, url, title string) string {
	sum := sha256.Sum256([]byte(sourceID + "|" + url + "|" + title))
	return sourceID + "-" + hex.EncodeToString(sum[:])[:12]
}
