package clickstats

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newsdigest/internal/config"
	"github.com/deusflow/newsdigest/internal/news"
)

var today = time.Date(2026, 4, 20, 15, 0, 0, 0, time.UTC)

func redisReader(t *testing.T) (*RedisReader, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedisReader("redis://" + mr.Addr())
	require.NoError(t, err)
	r.now = func() time.Time { return today }
	t.Cleanup(func() { r.Close() })
	return r, mr
}

func TestRedisReader_SourceAndTypeClicks(t *testing.T) {
	r, mr := redisReader(t)
	ctx := context.Background()

	mr.HSet("clicks:source:20260420", "hn", "3", "blog", "1")
	mr.HSet("clicks:source:20260418", "hn", "2", "junk", "x", "zero", "0")
	mr.HSet("clicks:source:20260101", "hn", "50")
	require.NoError(t, r.Record(ctx, "blog", "research", today))
	require.NoError(t, r.Record(ctx, "blog", "", today.Add(-24*time.Hour)))

	sources, err := r.SourceClicks(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, news.ClickSeries{
		"hn":   {"2026-04-20": 3, "2026-04-18": 2},
		"blog": {"2026-04-20": 2, "2026-04-19": 1},
	}, sources)

	types, err := r.TypeClicks(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, news.ClickSeries{"research": {"2026-04-20": 1}}, types)
}

func TestRedisReader_Unavailable(t *testing.T) {
	r, mr := redisReader(t)
	mr.Close()
	_, err := r.SourceClicks(context.Background(), 7)
	assert.Error(t, err)
}

func trackerServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"Unauthorized"}`)
			return
		}
		assert.Equal(t, "120", r.URL.Query().Get("days"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/stats/sources":
			fmt.Fprint(w, `{"days":120,"rows":[
				{"date":"2026-04-19","source_id":"hn","clicks":2},
				{"date":"2026-04-19","source_id":"hn","clicks":"3"},
				{"date":"2026-04-20","source_id":"","clicks":5},
				{"date":"2026-04-20","source_id":"blog","clicks":-1}
			]}`)
		case "/api/stats/types":
			fmt.Fprint(w, `{"days":120,"rows":[{"date":"2026-04-20","primary_type":"research","clicks":4}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPReader(t *testing.T) {
	srv := trackerServer(t, "secret")
	h := NewHTTPReader(srv.URL+"/", "secret", 5*time.Second)

	sources, err := h.SourceClicks(context.Background(), 500)
	require.NoError(t, err)
	assert.Equal(t, news.ClickSeries{"hn": {"2026-04-19": 5}}, sources)

	types, err := h.TypeClicks(context.Background(), 500)
	require.NoError(t, err)
	assert.Equal(t, news.ClickSeries{"research": {"2026-04-20": 4}}, types)
}

func TestHTTPReader_Unauthorized(t *testing.T) {
	srv := trackerServer(t, "secret")
	h := NewHTTPReader(srv.URL, "wrong", 5*time.Second)

	_, err := h.SourceClicks(context.Background(), 120)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestNew(t *testing.T) {
	r, err := New(config.ClickStats{Backend: "none"})
	require.NoError(t, err)
	series, err := r.SourceClicks(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, series)

	_, err = New(config.ClickStats{Backend: "kafka"})
	assert.Error(t, err)
}

func TestClampDays(t *testing.T) {
	assert.Equal(t, 1, clampDays(0))
	assert.Equal(t, 90, clampDays(90))
	assert.Equal(t, MaxDays, clampDays(1000))
}
