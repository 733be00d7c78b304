package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/deusflow/newsdigest/internal/logger"
	"github.com/deusflow/newsdigest/internal/news"
)

// SQLStore keeps history in SQLite or PostgreSQL. Timestamps are stored as unix seconds
// so both drivers share one schema.
type SQLStore struct {
	db     *sql.DB
	driver string
	window time.Duration
	now    func() time.Time
}

// OpenSQL connects, pings and creates the schema. driver is "sqlite" or "postgres".
func OpenSQL(ctx context.Context, driver, dsn string, window time.Duration) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLStore{db: db, driver: driver, window: window, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logger.Info("history store connected", "driver", driver)
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS source_quality (
			source_id TEXT PRIMARY KEY,
			quality_score DOUBLE PRECISION NOT NULL,
			article_count INTEGER NOT NULL,
			must_read_rate DOUBLE PRECISION NOT NULL,
			avg_confidence DOUBLE PRECISION NOT NULL,
			freshness DOUBLE PRECISION NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS repeat_counters (
			info_key TEXT PRIMARY KEY,
			occurrences INTEGER NOT NULL,
			last_seen BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_repeat_counters_last_seen ON repeat_counters(last_seen)`,
		`CREATE TABLE IF NOT EXISTS article_assessments (
			cache_key TEXT PRIMARY KEY,
			article_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_article_assessments_created_at ON article_assessments(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind turns ? placeholders into $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	snap := emptySnapshot()

	rows, err := s.db.QueryContext(ctx, `SELECT source_id, quality_score, article_count, must_read_rate, avg_confidence, freshness, updated_at FROM source_quality`)
	if err != nil {
		return snap, fmt.Errorf("query source quality: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var q news.SourceQuality
		var updated int64
		if err := rows.Scan(&q.SourceID, &q.QualityScore, &q.ArticleCount, &q.MustReadRate, &q.AvgConfidence, &q.Freshness, &updated); err != nil {
			return snap, fmt.Errorf("scan source quality: %w", err)
		}
		q.UpdatedAt = time.Unix(updated, 0).UTC()
		snap.SourceQuality[q.SourceID] = q
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}

	cutoff := int64(0)
	if s.window > 0 {
		cutoff = s.now().Add(-s.window).Unix()
	}
	crows, err := s.db.QueryContext(ctx, s.rebind(`SELECT info_key, occurrences FROM repeat_counters WHERE last_seen >= ?`), cutoff)
	if err != nil {
		return snap, fmt.Errorf("query repeat counters: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var key string
		var n int
		if err := crows.Scan(&key, &n); err != nil {
			return snap, fmt.Errorf("scan repeat counter: %w", err)
		}
		snap.RepeatCounts[key] = n
	}
	return snap, crows.Err()
}

func (s *SQLStore) SaveWriteBack(ctx context.Context, wb WriteBack) error {
	at := wb.At
	if at.IsZero() {
		at = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write-back: %w", err)
	}
	defer tx.Rollback()

	upsertQuality := s.rebind(`INSERT INTO source_quality (source_id, quality_score, article_count, must_read_rate, avg_confidence, freshness, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_id) DO UPDATE SET
			quality_score = excluded.quality_score,
			article_count = excluded.article_count,
			must_read_rate = excluded.must_read_rate,
			avg_confidence = excluded.avg_confidence,
			freshness = excluded.freshness,
			updated_at = excluded.updated_at`)
	for _, q := range wb.SourceQuality {
		updated := q.UpdatedAt
		if updated.IsZero() {
			updated = at
		}
		if _, err := tx.ExecContext(ctx, upsertQuality, q.SourceID, q.QualityScore, q.ArticleCount, q.MustReadRate, q.AvgConfidence, q.Freshness, updated.Unix()); err != nil {
			return fmt.Errorf("save source quality %s: %w", q.SourceID, err)
		}
	}

	if s.window > 0 {
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM repeat_counters WHERE last_seen < ?`), at.Add(-s.window).Unix()); err != nil {
			return fmt.Errorf("expire repeat counters: %w", err)
		}
	}
	upsertCounter := s.rebind(`INSERT INTO repeat_counters (info_key, occurrences, last_seen)
		VALUES (?, ?, ?)
		ON CONFLICT (info_key) DO UPDATE SET
			occurrences = repeat_counters.occurrences + excluded.occurrences,
			last_seen = excluded.last_seen`)
	for key, n := range wb.Reservations {
		if n <= 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, upsertCounter, key, n, at.Unix()); err != nil {
			return fmt.Errorf("save repeat counter %s: %w", key, err)
		}
	}

	return tx.Commit()
}

func (s *SQLStore) GetAssessment(ctx context.Context, cacheKey string) (news.Assessment, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT payload FROM article_assessments WHERE cache_key = ?`), cacheKey).Scan(&payload)
	if err == sql.ErrNoRows {
		return news.Assessment{}, false, nil
	}
	if err != nil {
		return news.Assessment{}, false, fmt.Errorf("get assessment: %w", err)
	}
	var a news.Assessment
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return news.Assessment{}, false, fmt.Errorf("decode assessment: %w", err)
	}
	return a, true, nil
}

func (s *SQLStore) PutAssessment(ctx context.Context, a news.Assessment) error {
	if a.CacheKey == "" {
		return fmt.Errorf("assessment for %s has no cache key", a.ArticleID)
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode assessment: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO article_assessments (cache_key, article_id, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			article_id = excluded.article_id,
			payload = excluded.payload,
			created_at = excluded.created_at`), a.CacheKey, a.ArticleID, string(payload), s.now().Unix())
	if err != nil {
		return fmt.Errorf("put assessment: %w", err)
	}
	return nil
}

func (s *SQLStore) PruneAssessments(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM article_assessments WHERE cache_key NOT IN (
		SELECT cache_key FROM article_assessments ORDER BY created_at DESC, cache_key ASC LIMIT ?
	)`), keep)
	if err != nil {
		return 0, fmt.Errorf("prune assessments: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
