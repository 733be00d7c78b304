package clickstats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/deusflow/newsdigest/internal/news"
)

// HTTPReader queries the tracker's stats API.
type HTTPReader struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPReader(baseURL, token string, timeout time.Duration) *HTTPReader {
	return &HTTPReader{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client:  &http.Client{Timeout: timeout},
	}
}

type statsRow struct {
	Date        string          `json:"date"`
	SourceID    string          `json:"source_id"`
	PrimaryType string          `json:"primary_type"`
	Clicks      json.RawMessage `json:"clicks"`
}

type statsResponse struct {
	Days int        `json:"days"`
	Rows []statsRow `json:"rows"`
}

func (h *HTTPReader) SourceClicks(ctx context.Context, days int) (news.ClickSeries, error) {
	rows, err := h.get(ctx, "/api/stats/sources", days)
	if err != nil {
		return nil, err
	}
	series := news.ClickSeries{}
	for _, r := range rows {
		add(series, r.SourceID, r.Date, clicks(r.Clicks))
	}
	return series, nil
}

func (h *HTTPReader) TypeClicks(ctx context.Context, days int) (news.ClickSeries, error) {
	rows, err := h.get(ctx, "/api/stats/types", days)
	if err != nil {
		return nil, err
	}
	series := news.ClickSeries{}
	for _, r := range rows {
		add(series, r.PrimaryType, r.Date, clicks(r.Clicks))
	}
	return series, nil
}

func (h *HTTPReader) get(ctx context.Context, path string, days int) ([]statsRow, error) {
	q := url.Values{"days": {strconv.Itoa(clampDays(days))}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build stats request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch %s: HTTP %d", path, resp.StatusCode)
	}

	var body statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return body.Rows, nil
}

// clicks accepts a JSON number or numeric string; anything else counts as zero.
func clicks(raw json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(v)
}
