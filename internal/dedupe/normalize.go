package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"unicode"

	"github.com/deusflow/newsdigest/internal/news"
)

// DefaultTrackingPrefixes are query parameter prefixes dropped during URL normalization.
var DefaultTrackingPrefixes = []string{"utm_", "spm", "fbclid", "gclid", "ref"}

// NormalizeURL canonicalizes a link for duplicate detection. Scheme and host are
// lower-cased, the trailing slash is removed from the path, tracking and blank query
// parameters are dropped (the order of the rest is kept) and the fragment is removed.
// Unparseable input falls back to the trimmed raw string.
func NormalizeURL(raw string, trackingPrefixes []string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	if u.Path == "" && u.Host != "" {
		u.Path = "/"
	}
	u.RawQuery = filterQuery(u.RawQuery, trackingPrefixes)
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

func filterQuery(rawQuery string, trackingPrefixes []string) string {
	if rawQuery == "" {
		return ""
	}
	kept := make([]string, 0, 4)
	for _, pair := range strings.Split(rawQuery, "&") {
		key, value, _ := strings.Cut(pair, "=")
		if value == "" {
			continue
		}
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if key == "" || hasTrackingPrefix(strings.ToLower(key), trackingPrefixes) {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

func hasTrackingPrefix(key string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// NormalizeTitle lower-cases a title and collapses every run of characters that are
// neither letters nor digits into a single space.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	pendingSpace := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// Similarity returns 1 - editDistance/max(len(a), len(b)) measured in runes.
// Equal strings (including two empty ones) score 1 and a single empty side scores 0.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	longest := max(len(ra), len(rb))
	return 1 - float64(editDistance(ra, rb))/float64(longest)
}

// editDistance is the Levenshtein distance using two rolling rows.
func editDistance(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// InfoKey identifies the real-world story behind an article: the normalized info URL,
// else the normalized article URL, else a hash of the normalized title.
func InfoKey(a news.Article, trackingPrefixes []string) string {
	for _, candidate := range []string{a.InfoURL, a.URL} {
		u, err := url.Parse(strings.TrimSpace(candidate))
		if err != nil || u.Scheme == "" || u.Host == "" {
			continue
		}
		return "url:" + NormalizeURL(candidate, trackingPrefixes)
	}
	return TitleKey(a.Title)
}

// TitleKey is the title-hash form of an information key.
func TitleKey(title string) string {
	normalized := NormalizeTitle(title)
	if normalized == "" {
		return "title:empty"
	}
	sum := sha256.Sum256([]byte(normalized))
	return "title:" + hex.EncodeToString(sum[:])[:16]
}
