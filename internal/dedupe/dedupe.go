// Package dedupe removes repeated links and near-identical headlines from a candidate pool.
package dedupe

import (
	"math"

	"github.com/deusflow/newsdigest/internal/news"
)

const (
	DefaultTitleSimilarity = 0.93

	ReasonURLDuplicate = "url_duplicate"
	ReasonTitleSimilar = "title_similar"
)

// Dropped describes one rejected article and the kept article it collided with.
type Dropped struct {
	Reason           string  `json:"reason"`
	ArticleID        string  `json:"article_id"`
	Title            string  `json:"title"`
	SourceID         string  `json:"source_id"`
	URL              string  `json:"url"`
	MatchedArticleID string  `json:"matched_article_id"`
	MatchedTitle     string  `json:"matched_title"`
	MatchedURL       string  `json:"matched_url"`
	Similarity       float64 `json:"similarity"`
}

// Stats summarizes a dedupe pass.
type Stats struct {
	TotalInput      int       `json:"total_input"`
	Kept            int       `json:"kept"`
	URLDuplicates   int       `json:"url_duplicates"`
	TitleDuplicates int       `json:"title_duplicates"`
	DroppedItems    []Dropped `json:"dropped_items"`
}

// Deduplicator keeps the first-seen article of every duplicate group.
type Deduplicator struct {
	threshold        float64
	trackingPrefixes []string
}

// New returns a Deduplicator. A non-positive threshold selects DefaultTitleSimilarity and
// a nil prefix list selects DefaultTrackingPrefixes.
func New(threshold float64, trackingPrefixes []string) *Deduplicator {
	if threshold <= 0 {
		threshold = DefaultTitleSimilarity
	}
	if trackingPrefixes == nil {
		trackingPrefixes = DefaultTrackingPrefixes
	}
	return &Deduplicator{threshold: threshold, trackingPrefixes: trackingPrefixes}
}

type keptEntry struct {
	article news.Article
	title   string
}

// Dedupe scans articles in order. Each candidate is compared only against the articles
// already kept, so earlier items always win and rejected items never influence later ones.
func (d *Deduplicator) Dedupe(articles []news.Article) ([]news.Article, Stats) {
	stats := Stats{TotalInput: len(articles), DroppedItems: []Dropped{}}
	kept := make([]keptEntry, 0, len(articles))
	byURL := make(map[string]news.Article, len(articles))

	for _, a := range articles {
		normalizedURL := NormalizeURL(a.URL, d.trackingPrefixes)
		if matched, ok := byURL[normalizedURL]; ok && normalizedURL != "" {
			stats.URLDuplicates++
			stats.DroppedItems = append(stats.DroppedItems, dropped(ReasonURLDuplicate, a, matched, 1))
			continue
		}

		title := NormalizeTitle(a.Title)
		if match, similarity, ok := d.similarTitle(title, kept); ok {
			stats.TitleDuplicates++
			stats.DroppedItems = append(stats.DroppedItems,
				dropped(ReasonTitleSimilar, a, match, math.Round(similarity*10000)/10000))
			continue
		}

		if normalizedURL != "" {
			byURL[normalizedURL] = a
		}
		kept = append(kept, keptEntry{article: a, title: title})
	}

	out := make([]news.Article, len(kept))
	for i, k := range kept {
		out[i] = k.article
	}
	stats.Kept = len(out)
	return out, stats
}

func (d *Deduplicator) similarTitle(title string, kept []keptEntry) (news.Article, float64, bool) {
	for _, k := range kept {
		if s := Similarity(title, k.title); s >= d.threshold {
			return k.article, s, true
		}
	}
	return news.Article{}, 0, false
}

func dropped(reason string, a, matched news.Article, similarity float64) Dropped {
	return Dropped{
		Reason:           reason,
		ArticleID:        a.ID,
		Title:            a.Title,
		SourceID:         a.SourceID,
		URL:              a.URL,
		MatchedArticleID: matched.ID,
		MatchedTitle:     matched.Title,
		MatchedURL:       matched.URL,
		Similarity:       similarity,
	}
}
