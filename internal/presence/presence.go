// Package presence persists agent status. SQLite is the system of record;
// an optional Redis cache lets other dashboard instances read live status
// without touching the database.
package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Jobcall26/jobdial-server/internal/store"
)

const (
	statusKeyPrefix = "agent_status:"
	// cacheTTL keeps a crashed instance's entries from going stale forever.
	cacheTTL = 5 * time.Minute
)

// Service implements the relay's StatusSink over the store, with an
// optional Redis cache in front.
type Service struct {
	store store.StatusStore
	cache *redis.Client
	log   *zerolog.Logger
}

// New builds a presence service. cache may be nil.
func New(st store.StatusStore, cache *redis.Client, logger *zerolog.Logger) *Service {
	return &Service{store: st, cache: cache, log: logger}
}

// NewCache connects a Redis client for the given address.
func NewCache(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// UpdateAgentStatus writes the status row and refreshes the cache. A cache
// failure is logged and does not fail the update.
func (s *Service) UpdateAgentStatus(ctx context.Context, userID int64, status string) error {
	if err := s.store.SetAgentStatus(ctx, userID, status); err != nil {
		return fmt.Errorf("persist agent status: %w", err)
	}

	if s.cache != nil {
		key := statusKeyPrefix + strconv.FormatInt(userID, 10)
		if err := s.cache.Set(ctx, key, status, cacheTTL).Err(); err != nil {
			s.log.Warn().Err(err).Int64("user_id", userID).Msg("presence cache write failed")
		}
	}
	return nil
}

// GetAgentStatus reads the cache first, then the store. Agents without a
// row are offline.
func (s *Service) GetAgentStatus(ctx context.Context, userID int64) (string, error) {
	if s.cache != nil {
		key := statusKeyPrefix + strconv.FormatInt(userID, 10)
		status, err := s.cache.Get(ctx, key).Result()
		if err == nil {
			return status, nil
		}
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Int64("user_id", userID).Msg("presence cache read failed")
		}
	}

	row, err := s.store.GetAgentStatus(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return store.StatusOffline, nil
	}
	if err != nil {
		return "", err
	}
	return row.Status, nil
}

// ListStatuses returns the status of every agent with a presence row.
func (s *Service) ListStatuses(ctx context.Context) (map[int64]string, error) {
	rows, err := s.store.ListAgentStatuses(ctx)
	if err != nil {
		return nil, err
	}
	statuses := make(map[int64]string, len(rows))
	for _, row := range rows {
		statuses[row.UserID] = row.Status
	}
	return statuses, nil
}
