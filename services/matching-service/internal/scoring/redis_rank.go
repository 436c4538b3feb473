package scoring

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRankStore keeps each user's ranking in a sorted set keyed by user id,
// scored by shared weekly minutes.
type RedisRankStore struct {
	rdb    *redis.Client
	prefix string
}

var _ RankStore = (*RedisRankStore)(nil)

func NewRedisRankStore(rdb *redis.Client, prefix string) *RedisRankStore {
	if prefix == "" {
		prefix = "matches"
	}
	return &RedisRankStore{rdb: rdb, prefix: prefix}
}

func (s *RedisRankStore) key(ownerID string) string {
	return s.prefix + ":" + ownerID
}

func (s *RedisRankStore) SetScore(ctx context.Context, ownerID, otherID string, minutes int) error {
	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, s.key(ownerID), redis.Z{Score: float64(minutes), Member: otherID})
	pipe.ZAdd(ctx, s.key(otherID), redis.Z{Score: float64(minutes), Member: ownerID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("zadd pair: %w", err)
	}
	return nil
}

func (s *RedisRankStore) DropPair(ctx context.Context, ownerID, otherID string) error {
	pipe := s.rdb.Pipeline()
	pipe.ZRem(ctx, s.key(ownerID), otherID)
	pipe.ZRem(ctx, s.key(otherID), ownerID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("zrem pair: %w", err)
	}
	return nil
}

func (s *RedisRankStore) Top(ctx context.Context, ownerID string, limit int) ([]RankedMatch, error) {
	if limit <= 0 {
		limit = 20
	}
	entries, err := s.rdb.ZRevRangeWithScores(ctx, s.key(ownerID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange: %w", err)
	}

	out := make([]RankedMatch, 0, len(entries))
	for _, e := range entries {
		member, ok := e.Member.(string)
		if !ok {
			continue
		}
		out = append(out, RankedMatch{UserID: member, SharedMinutes: int(e.Score)})
	}
	return out, nil
}
