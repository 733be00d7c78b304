package clickstats

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deusflow/newsdigest/internal/news"
)

const (
	sourceKeyPrefix = "clicks:source:"
	typeKeyPrefix   = "clicks:type:"
)

// RedisReader reads the tracker's daily hashes directly: clicks:source:YYYYMMDD and
// clicks:type:YYYYMMDD, each mapping a key to its click count for that UTC day.
type RedisReader struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisReader(redisURL string) (*RedisReader, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisReader{client: redis.NewClient(opts), now: time.Now}, nil
}

func (r *RedisReader) SourceClicks(ctx context.Context, days int) (news.ClickSeries, error) {
	return r.read(ctx, sourceKeyPrefix, days)
}

func (r *RedisReader) TypeClicks(ctx context.Context, days int) (news.ClickSeries, error) {
	return r.read(ctx, typeKeyPrefix, days)
}

// Record adds one click for a source and, when known, an article type on the given day.
func (r *RedisReader) Record(ctx context.Context, sourceID, primaryType string, at time.Time) error {
	day := at.UTC().Format("20060102")
	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, sourceKeyPrefix+day, sourceID, 1)
	if primaryType != "" {
		pipe.HIncrBy(ctx, typeKeyPrefix+day, primaryType, 1)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisReader) read(ctx context.Context, prefix string, days int) (news.ClickSeries, error) {
	today := r.now().UTC()
	n := clampDays(days)

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, n)
	dates := make([]time.Time, n)
	for i := 0; i < n; i++ {
		dates[i] = today.AddDate(0, 0, -i)
		cmds[i] = pipe.HGetAll(ctx, prefix+dates[i].Format("20060102"))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("read %s hashes: %w", prefix, err)
	}

	series := news.ClickSeries{}
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			continue
		}
		date := dates[i].Format("2006-01-02")
		for key, raw := range fields {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			add(series, key, date, int(v))
		}
	}
	return series, nil
}

func (r *RedisReader) Close() error {
	return r.client.Close()
}
