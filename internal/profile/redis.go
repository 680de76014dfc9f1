package profile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sentinelpay/sentinel/pkg/metrics"
	"github.com/sentinelpay/sentinel/pkg/models"
)

// DefaultCacheTTL is the profile cache lifetime when none is configured.
const DefaultCacheTTL = 5 * time.Minute

// CachedStore fronts a durable Store with a Redis read-through cache.
// The cache is strictly an optimization: every miss or Redis failure falls
// back to the inner store, which remains the record of truth.
type CachedStore struct {
	inner  Store
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedStore wraps inner with a Redis cache. A ttl <= 0 means
// DefaultCacheTTL.
func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{inner: inner, client: client, ttl: ttl, logger: logger}
}

type cachedState struct {
	Profile *models.UserProfile         `json:"profile"`
	Window  []models.TransactionSummary `json:"window"`
}

func profileKey(userID string) string { return "profile:" + userID }

func (s *CachedStore) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	if state, ok := s.cached(ctx, userID); ok {
		metrics.ProfileCacheHits.Inc()
		return state.Profile, nil
	}
	metrics.ProfileCacheMisses.Inc()

	p, err := s.inner.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	// Populate the cache alongside the window so a later Window call hits.
	window, werr := s.inner.Window(ctx, userID)
	if werr == nil {
		s.fill(ctx, userID, cachedState{Profile: p, Window: window})
	}
	return p, nil
}

func (s *CachedStore) Window(ctx context.Context, userID string) ([]models.TransactionSummary, error) {
	if state, ok := s.cached(ctx, userID); ok {
		metrics.ProfileCacheHits.Inc()
		return state.Window, nil
	}
	metrics.ProfileCacheMisses.Inc()
	return s.inner.Window(ctx, userID)
}

func (s *CachedStore) Apply(ctx context.Context, txn *models.Transaction) error {
	if err := s.inner.Apply(ctx, txn); err != nil {
		return err
	}

	// Write through the fresh state; on any failure just drop the entry so
	// the next read goes to the inner store.
	p, err := s.inner.Get(ctx, txn.UserID)
	if err == nil {
		var window []models.TransactionSummary
		if window, err = s.inner.Window(ctx, txn.UserID); err == nil {
			s.fill(ctx, txn.UserID, cachedState{Profile: p, Window: window})
			return nil
		}
	}
	if derr := s.client.Del(ctx, profileKey(txn.UserID)).Err(); derr != nil {
		s.logger.Debug("profile cache invalidation failed",
			zap.String("user_id", txn.UserID), zap.Error(derr))
	}
	return nil
}

func (s *CachedStore) cached(ctx context.Context, userID string) (cachedState, bool) {
	raw, err := s.client.Get(ctx, profileKey(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Debug("profile cache read failed",
				zap.String("user_id", userID), zap.Error(err))
		}
		return cachedState{}, false
	}
	var state cachedState
	if err := json.Unmarshal([]byte(raw), &state); err != nil || state.Profile == nil {
		return cachedState{}, false
	}
	return state, true
}

func (s *CachedStore) fill(ctx context.Context, userID string, state cachedState) {
	raw, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, profileKey(userID), raw, s.ttl).Err(); err != nil {
		s.logger.Debug("profile cache write failed",
			zap.String("user_id", userID), zap.Error(err))
	}
}
