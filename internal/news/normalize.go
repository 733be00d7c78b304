package news

import (
	"strings"
	"unicode/utf8"
)

// Field limits applied by Normalize, in runes.
const (
	MaxTitleLen   = 240
	MaxSummaryLen = 1600
	MaxLeadLen    = 320
	MaxContentLen = 2400
)

// NormalizeText collapses whitespace and truncates to maxLen runes. Truncated text ends
// with "...".
func NormalizeText(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return strings.TrimRight(string(r[:maxLen]), " ") + "..."
}

// Normalize returns a copy of a with text fields cleaned and bounded and the publish
// time in UTC.
func Normalize(a Article) Article {
	a.Title = NormalizeText(a.Title, MaxTitleLen)
	a.URL = strings.TrimSpace(a.URL)
	a.InfoURL = strings.TrimSpace(a.InfoURL)
	a.Summary = NormalizeText(a.Summary, MaxSummaryLen)
	a.LeadParagraph = NormalizeText(a.LeadParagraph, MaxLeadLen)
	a.ContentText = NormalizeText(a.ContentText, MaxContentLen)
	if a.PublishedAt != nil {
		t := a.PublishedAt.UTC()
		a.PublishedAt = &t
	}
	return a
}

// NormalizeAll applies Normalize to every article.
func NormalizeAll(articles []Article) []Article {
	out := make([]Article, len(articles))
	for i, a := range articles {
		out[i] = Normalize(a)
	}
	return out
}
