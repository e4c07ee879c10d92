// Package presence tracks which users hold a live socket connection.
// It is advisory state: absence of a presence key never implies absence
// of the underlying durable conversation state.
package presence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "presence:"
	// Refreshed by the gateway while the connection lives; a crashed
	// server leaks at most one TTL of stale "online".
	onlineTTL = 90 * time.Second
)

type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) MarkOnline(ctx context.Context, userID string) error {
	return s.rdb.Set(ctx, keyPrefix+userID, time.Now().UTC().Format(time.RFC3339), onlineTTL).Err()
}

func (s *Store) MarkOffline(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, keyPrefix+userID).Err()
}

func (s *Store) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, keyPrefix+userID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// OnlineMap resolves presence for a batch of users in one round trip.
func (s *Store) OnlineMap(ctx context.Context, userIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = keyPrefix + id
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		result[userIDs[i]] = v != nil
	}
	return result, nil
}
