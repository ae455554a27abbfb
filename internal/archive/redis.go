package archive

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRecordTTL = 7 * 24 * time.Hour

// RedisWriter keeps finished games as JSON blobs with a bounded TTL, plus a
// recency index for listing.
type RedisWriter struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisWriter(rdb *redis.Client, ttl time.Duration) *RedisWriter {
	if ttl <= 0 {
		ttl = defaultRecordTTL
	}
	return &RedisWriter{rdb: rdb, ttl: ttl}
}

func (w *RedisWriter) keyRecord(id string) string { return "arena:game:" + id }
func (w *RedisWriter) keyRecent() string          { return "arena:recent" }

func (w *RedisWriter) Save(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := w.rdb.Set(ctx, w.keyRecord(rec.SessionID), raw, w.ttl).Err(); err != nil {
		return err
	}
	score := float64(rec.EndedAt.UnixMilli())
	if err := w.rdb.ZAdd(ctx, w.keyRecent(), redis.Z{Score: score, Member: rec.SessionID}).Err(); err != nil {
		return err
	}
	return w.rdb.Expire(ctx, w.keyRecent(), w.ttl).Err()
}

// Load fetches one archived record. Returns nil when absent or expired.
func (w *RedisWriter) Load(ctx context.Context, sessionID string) (*Record, error) {
	raw, err := w.rdb.Get(ctx, w.keyRecord(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Recent lists the newest archived records, most recent first.
func (w *RedisWriter) Recent(ctx context.Context, limit int64) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := w.rdb.ZRevRange(ctx, w.keyRecent(), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		rec, err := w.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (w *RedisWriter) Close() error {
	if w == nil || w.rdb == nil {
		return nil
	}
	return w.rdb.Close()
}
