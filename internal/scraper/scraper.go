// Package scraper turns feed HTML fragments into plain text.
package scraper

import (
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLToText strips markup, decodes entities and collapses whitespace.
func HTMLToText(fragment string) string {
	if !strings.ContainsAny(fragment, "<>") {
		return cleanContent(html.UnescapeString(fragment))
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return cleanContent(html.UnescapeString(fragment))
	}
	doc.Find("script, style, noscript, iframe, figure figcaption").Remove()

	var parts []string
	doc.Find("body").Contents().Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return cleanContent(strings.Join(parts, " "))
}

// FirstParagraph returns the text of the first non-empty <p>, or the whole fragment's
// text when it has no paragraphs.
func FirstParagraph(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return HTMLToText(fragment)
	}
	var first string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		first = cleanContent(s.Text())
		return first == ""
	})
	if first != "" {
		return first
	}
	return HTMLToText(fragment)
}

// FirstSentence returns text up to the first sentence terminator, capped at maxLen runes.
func FirstSentence(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, "。.!?！？\n"); i > 0 {
		text = text[:i]
	}
	if r := []rune(text); maxLen > 0 && len(r) > maxLen {
		text = string(r[:maxLen])
	}
	return strings.TrimSpace(text)
}

// ExternalLinks lists absolute http(s) hrefs in the fragment whose host differs from
// ownHost, in document order and without duplicates.
func ExternalLinks(fragment, ownHost string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil
	}
	own := bareHost(ownHost)
	seen := map[string]bool{}
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return
		}
		if bareHost(u.Host) == own || seen[u.String()] {
			return
		}
		seen[u.String()] = true
		links = append(links, u.String())
	})
	return links
}

// HostOf returns the host of raw, or "" when it does not parse.
func HostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return u.Host
}

func bareHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

func cleanContent(content string) string {
	return strings.Join(strings.Fields(content), " ")
}
