package evaluator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/deusflow/newsdigest/internal/news"
)

func systemPrompt(types []string) string {
	return fmt.Sprintf(`You are the AI editor of an engineering organisation. Judge whether an article gives the company, the team or an individual engineer a concrete advantage in the next 7-30 days: better decisions, faster execution or new capability.
Weigh company_impact, team_impact, personal_impact, execution_clarity and novelty. High-leverage frameworks may be must-read without code; vague opinion and marketing are downgraded. Common-knowledge advice without new data, counter-intuitive lessons or transferable methods is usually worth_reading at most.
Spread the scores: 70+ only for high-leverage content, 55-69 ordinary worth_reading, below 55 usually skip. must_read needs explicit evidence signals (code, benchmark, deployment, case_study) or a high-value method, and must clearly affect at least two of company, team and individual.
Reply with a single JSON object and nothing else, with fields:
article_id, worth, reading_roi_score, company_impact, team_impact, personal_impact, execution_clarity, novelty, clarity_score (all 0-100), one_line_summary, reason_short, action_hint, best_for_roles (string array), evidence_signals (string array from code, benchmark, deployment, cost, architecture, case_study, none), confidence (0-1), primary_type, secondary_types.
worth is one of: must_read, worth_reading, skip.
primary_type must be one of: %s. secondary_types holds at most 2 further values from the same list.`, strings.Join(types, ", "))
}

type promptPayload struct {
	ArticleID     string `json:"article_id"`
	Title         string `json:"title"`
	PublishedAt   string `json:"published_at"`
	Summary       string `json:"summary"`
	LeadParagraph string `json:"lead_paragraph"`
}

func userPrompt(a news.Article) (string, error) {
	p := promptPayload{
		ArticleID:     a.ID,
		Title:         a.Title,
		Summary:       a.Summary,
		LeadParagraph: a.LeadParagraph,
	}
	if a.PublishedAt != nil {
		p.PublishedAt = a.PublishedAt.Format(time.RFC3339)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
