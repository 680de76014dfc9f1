package features

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Default risk weights for countries and merchant categories when no
// table entry exists.
const (
	DefaultCountryRisk  = 0.5
	DefaultMerchantRisk = 0.3
)

// countryRiskScores maps ISO country codes to baseline fraud risk.
var countryRiskScores = map[string]float64{
	"US": 0.1, "CA": 0.1, "GB": 0.1, "DE": 0.1, "FR": 0.1,
	"AU": 0.1, "JP": 0.1, "NZ": 0.1, "CH": 0.1, "SE": 0.1,
	"NG": 0.8, "RU": 0.7, "CN": 0.5, "BR": 0.5, "IN": 0.4,
	"MX": 0.4, "PH": 0.5, "ID": 0.5, "VN": 0.5, "PK": 0.6,
}

// merchantCategoryRisk maps merchant categories to baseline fraud risk.
var merchantCategoryRisk = map[string]float64{
	"grocery": 0.1, "restaurant": 0.1, "retail": 0.2,
	"electronics": 0.4, "jewelry": 0.5, "cryptocurrency": 0.8,
	"gambling": 0.7, "wire_transfer": 0.6, "atm": 0.3,
	"travel": 0.3, "entertainment": 0.2, "utilities": 0.1,
	"healthcare": 0.1, "education": 0.1, "gas_station": 0.2,
}

// RiskLookup resolves country and merchant-category risk weights.
type RiskLookup interface {
	CountryRisk(ctx context.Context, country string) float64
	MerchantRisk(ctx context.Context, category string) float64
}

// StaticLookup serves risk weights from the in-process tables.
type StaticLookup struct{}

// NewStaticLookup creates a table-backed risk lookup.
func NewStaticLookup() *StaticLookup {
	return &StaticLookup{}
}

func (s *StaticLookup) CountryRisk(_ context.Context, country string) float64 {
	if risk, ok := countryRiskScores[country]; ok {
		return risk
	}
	return DefaultCountryRisk
}

func (s *StaticLookup) MerchantRisk(_ context.Context, category string) float64 {
	if risk, ok := merchantCategoryRisk[category]; ok {
		return risk
	}
	return DefaultMerchantRisk
}

// CachedLookup fronts another lookup with Redis. The inner lookup remains
// the source of truth; cache failures fall through silently so the scoring
// path never blocks on the cache being down.
type CachedLookup struct {
	inner  RiskLookup
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedLookup wraps a lookup with a Redis read-through cache.
func NewCachedLookup(inner RiskLookup, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedLookup {
	return &CachedLookup{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (c *CachedLookup) CountryRisk(ctx context.Context, country string) float64 {
	return c.lookup(ctx, "risk:country:"+country, func() float64 {
		return c.inner.CountryRisk(ctx, country)
	})
}

func (c *CachedLookup) MerchantRisk(ctx context.Context, category string) float64 {
	return c.lookup(ctx, "risk:merchant:"+category, func() float64 {
		return c.inner.MerchantRisk(ctx, category)
	})
}

func (c *CachedLookup) lookup(ctx context.Context, key string, resolve func() float64) float64 {
	val, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if risk, perr := strconv.ParseFloat(val, 64); perr == nil {
			return risk
		}
	} else if err != redis.Nil {
		c.logger.Debug("risk lookup cache read failed", zap.String("key", key), zap.Error(err))
	}

	risk := resolve()
	if err := c.client.Set(ctx, key, strconv.FormatFloat(risk, 'f', -1, 64), c.ttl).Err(); err != nil {
		c.logger.Debug("risk lookup cache write failed", zap.String("key", key), zap.Error(err))
	}
	return risk
}
