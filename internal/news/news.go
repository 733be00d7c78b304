// Package news holds the records that flow through a digest run.
package news

import (
	"strings"
	"time"
)

// Worth is the editorial verdict attached to an assessment.
type Worth string

const (
	WorthMustRead Worth = "must_read"
	WorthReading  Worth = "worth_reading"
	WorthSkip     Worth = "skip"
)

// ParseWorth maps the labels produced by evaluators onto a Worth.
// The second return value is false for unknown labels.
func ParseWorth(label string) (Worth, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "must_read", "must-read", "must read", "mustread", "必读":
		return WorthMustRead, true
	case "worth_reading", "worth-reading", "worth reading", "可读":
		return WorthReading, true
	case "skip", "跳过":
		return WorthSkip, true
	}
	return "", false
}

// Article is one candidate item produced by the feed fetcher.
type Article struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	InfoURL       string     `json:"info_url,omitempty"`
	SourceID      string     `json:"source_id"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	Summary       string     `json:"summary,omitempty"`
	LeadParagraph string     `json:"lead_paragraph,omitempty"`
	ContentText   string     `json:"content_text,omitempty"`
}

// SourceConfig is one curated feed.
type SourceConfig struct {
	ID                string  `yaml:"id" json:"id"`
	Name              string  `yaml:"name" json:"name"`
	URL               string  `yaml:"url" json:"url"`
	SourceWeight      float64 `yaml:"source_weight" json:"source_weight"`
	OnlyExternalLinks bool    `yaml:"only_external_links" json:"only_external_links"`
	Enabled           *bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// IsEnabled reports whether the source takes part in runs. Sources are enabled unless
// explicitly switched off.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Assessment is the evaluator's judgment of a single article. Scores are on a 0-100
// scale and Confidence on 0-1.
type Assessment struct {
	ArticleID        string   `json:"article_id"`
	Worth            Worth    `json:"worth"`
	QualityScore     float64  `json:"quality_score"`
	CompanyImpact    float64  `json:"company_impact"`
	TeamImpact       float64  `json:"team_impact"`
	PersonalImpact   float64  `json:"personal_impact"`
	ExecutionClarity float64  `json:"execution_clarity"`
	Novelty          float64  `json:"novelty"`
	Clarity          float64  `json:"clarity"`
	OneLineSummary   string   `json:"one_line_summary"`
	Reason           string   `json:"reason"`
	ActionHint       string   `json:"action_hint,omitempty"`
	BestForRoles     []string `json:"best_for_roles,omitempty"`
	EvidenceSignals  []string `json:"evidence_signals,omitempty"`
	Confidence       float64  `json:"confidence"`
	PrimaryType      string   `json:"primary_type"`
	SecondaryTypes   []string `json:"secondary_types,omitempty"`
	CacheKey         string   `json:"cache_key,omitempty"`
}

// AvgImpact is the mean of the three impact dimensions.
func (a Assessment) AvgImpact() float64 {
	return (a.CompanyImpact + a.TeamImpact + a.PersonalImpact) / 3
}

// SourceQuality is the smoothed per-source reputation carried between runs.
type SourceQuality struct {
	SourceID      string    `json:"source_id"`
	QualityScore  float64   `json:"quality_score"`
	ArticleCount  int       `json:"article_count"`
	MustReadRate  float64   `json:"must_read_rate"`
	AvgConfidence float64   `json:"avg_confidence"`
	Freshness     float64   `json:"freshness"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ScoredArticle is a selected highlight.
type ScoredArticle struct {
	Article
	Score          float64 `json:"score"`
	QualityScore   float64 `json:"quality_score"`
	Worth          Worth   `json:"worth"`
	Confidence     float64 `json:"confidence"`
	PrimaryType    string  `json:"primary_type"`
	OneLineSummary string  `json:"one_line_summary"`
	Reason         string  `json:"reason"`
	ActionHint     string  `json:"action_hint,omitempty"`
	InfoKey        string  `json:"info_key"`
}

// ClickSeries is a per-key daily click count: key -> ISO date -> clicks. Keys are source
// IDs or article types.
type ClickSeries map[string]map[string]int
