package evaluator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/deusflow/newsdigest/internal/news"
)

// DefaultArticleTypes is used when no vocabulary file is configured.
var DefaultArticleTypes = []string{
	"ai_tooling",
	"engineering_practice",
	"architecture",
	"research",
	"product_strategy",
	"industry_news",
	"case_study",
	"other",
}

// LoadArticleTypes reads `types: [...]` from a YAML file. An empty path gives the
// defaults. The result is deduplicated and always contains "other".
func LoadArticleTypes(path string) ([]string, error) {
	if path == "" {
		return normalizeTypes(DefaultArticleTypes), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read article types: %w", err)
	}
	var cfg struct {
		Types []string `yaml:"types"`
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode article types: %w", err)
	}
	return normalizeTypes(cfg.Types), nil
}

func normalizeTypes(types []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if !seen["other"] {
		out = append(out, "other")
	}
	return out
}

// ContentHash is sha256(title|summary|lead) in hex.
func ContentHash(a news.Article) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		strings.TrimSpace(a.Title),
		strings.TrimSpace(a.Summary),
		strings.TrimSpace(a.LeadParagraph),
	}, "|")))
	return hex.EncodeToString(sum[:])
}

// CacheKey is sha256(model|promptVersion|lower(url)|contentHash) in hex.
func CacheKey(model, promptVersion string, a news.Article) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		strings.TrimSpace(model),
		strings.TrimSpace(promptVersion),
		strings.ToLower(strings.TrimSpace(a.URL)),
		ContentHash(a),
	}, "|")))
	return hex.EncodeToString(sum[:])
}

var errInvalidReply = errors.New("invalid evaluation reply")

// ExtractJSON pulls the JSON object out of a model reply, tolerating code fences and
// surrounding prose.
func ExtractJSON(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON object", errInvalidReply)
	}
	return text[start : end+1], nil
}

// ParseAssessment decodes and coerces a model reply into an assessment.
func ParseAssessment(articleID, raw string, types []string) (news.Assessment, error) {
	payload, err := ExtractJSON(raw)
	if err != nil {
		return news.Assessment{}, err
	}
	var row map[string]any
	if err := json.Unmarshal([]byte(payload), &row); err != nil {
		return news.Assessment{}, fmt.Errorf("%w: %v", errInvalidReply, err)
	}
	return coerce(articleID, row, types)
}

func coerce(articleID string, row map[string]any, types []string) (news.Assessment, error) {
	worth, ok := news.ParseWorth(str(row["worth"]))
	if !ok {
		return news.Assessment{}, fmt.Errorf("%w: worth label %q", errInvalidReply, str(row["worth"]))
	}
	summary := strings.TrimSpace(str(row["one_line_summary"]))
	if summary == "" {
		return news.Assessment{}, fmt.Errorf("%w: empty one_line_summary", errInvalidReply)
	}
	reason := strings.TrimSpace(str(firstOf(row, "reason_short", "reason")))
	if reason == "" {
		return news.Assessment{}, fmt.Errorf("%w: empty reason", errInvalidReply)
	}

	quality := pickScore(row, 0, "reading_roi_score", "quality_score")
	a := news.Assessment{
		ArticleID:        articleID,
		Worth:            worth,
		QualityScore:     quality,
		CompanyImpact:    pickScore(row, quality, "company_impact"),
		TeamImpact:       pickScore(row, quality, "team_impact"),
		PersonalImpact:   pickScore(row, quality, "personal_impact"),
		ExecutionClarity: pickScore(row, quality, "execution_clarity", "actionability_score"),
		Novelty:          pickScore(row, 0, "novelty", "novelty_score"),
		Clarity:          pickScore(row, 0, "clarity_score", "clarity"),
		OneLineSummary:   summary,
		Reason:           reason,
		ActionHint:       strings.TrimSpace(str(row["action_hint"])),
		BestForRoles:     strList(row["best_for_roles"]),
		EvidenceSignals:  strList(row["evidence_signals"]),
		Confidence:       clamp(num(row["confidence"]), 0, 1),
	}
	if len(a.EvidenceSignals) == 0 {
		a.EvidenceSignals = []string{"none"}
	}

	allowed := map[string]bool{}
	for _, t := range types {
		allowed[t] = true
	}
	a.PrimaryType = strings.TrimSpace(str(row["primary_type"]))
	if !allowed[a.PrimaryType] {
		a.PrimaryType = "other"
	}
	for _, t := range strList(row["secondary_types"]) {
		if len(a.SecondaryTypes) == 2 {
			break
		}
		if t != a.PrimaryType && allowed[t] {
			a.SecondaryTypes = append(a.SecondaryTypes, t)
		}
	}
	return a, nil
}

func firstOf(row map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// pickScore returns the first parseable score among keys. Values in [0, 10] are read as
// a 0-10 scale and multiplied by 10; the result is clamped to [0, 100].
func pickScore(row map[string]any, def float64, keys ...string) float64 {
	for _, k := range keys {
		v, ok := row[k]
		if !ok {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			continue
		}
		if f >= 0 && f <= 10 {
			f *= 10
		}
		return clamp(f, 0, 100)
	}
	return def
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil && !math.IsNaN(f)
	case bool:
		return 0, false
	}
	return 0, false
}

func num(v any) float64 {
	f, _ := toFloat(v)
	return f
}

func str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	}
	return fmt.Sprint(v)
}

// strList keeps non-empty trimmed strings in order without duplicates.
func strList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, it := range items {
		s := strings.TrimSpace(str(it))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
