// Package patterns runs batch fraud-pattern detection across scored
// transactions: fraud rings, velocity bursts, impossible travel and
// suspicious merchant clusters.
package patterns

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentinelpay/sentinel/internal/features"
	"github.com/sentinelpay/sentinel/pkg/metrics"
	"github.com/sentinelpay/sentinel/pkg/models"
)

// Pattern type identifiers.
const (
	TypeFraudRingDevice    = "fraud_ring_device"
	TypeFraudRingMerchant  = "fraud_ring_merchant"
	TypeVelocityBurst      = "velocity_burst"
	TypeImpossibleTravel   = "impossible_travel"
	TypeMerchantCluster    = "suspicious_merchant_cluster"
)

const (
	// highRiskScore is the score floor for a transaction to count toward
	// ring and cluster detection.
	highRiskScore = 60

	// historyCap bounds retained patterns; oldest are evicted.
	historyCap = 500

	// DefaultMaxBatch bounds one detection run's input.
	DefaultMaxBatch = 1000

	deviceRingMinUsers      = 3
	deviceRingMinTxns       = 3
	merchantRingMinUsers    = 5
	merchantRingMinTxns     = 5
	burstWindowSize         = 5
	burstWindowHours        = 1.0
	burstMinHighRisk        = 3
	travelMinDistanceKM     = 1000.0
	travelMaxHours          = 2.0
	clusterMinTxns          = 10
	clusterMinUsers         = 3
	burstConfidence         = 0.75
	travelConfidence        = 0.9
	clusterConfidence       = 0.7
)

// Config tunes a Detector.
type Config struct {
	// MaxBatch caps the number of transactions examined per run; zero
	// means DefaultMaxBatch.
	MaxBatch int
}

// Detector finds cross-transaction fraud patterns over scored batches.
// Detection itself is stateless; the detector only accumulates a bounded
// history of results for later retrieval.
type Detector struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.RWMutex
	byID    map[string]models.FraudPattern
	history []models.FraudPattern
}

// NewDetector creates a pattern detector.
func NewDetector(cfg Config, logger *zap.Logger) *Detector {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultMaxBatch
	}
	return &Detector{
		cfg:    cfg,
		logger: logger,
		byID:   make(map[string]models.FraudPattern),
	}
}

// Detect runs all detectors over the batch and returns their concatenated
// findings. An empty or tiny batch yields an empty list, never an error.
func (d *Detector) Detect(txns []*models.Transaction, assessments map[string]models.AssessmentSummary) []models.FraudPattern {
	if len(txns) > d.cfg.MaxBatch {
		d.logger.Warn("pattern batch truncated",
			zap.Int("batch_size", len(txns)),
			zap.Int("max_batch", d.cfg.MaxBatch))
		txns = txns[:d.cfg.MaxBatch]
	}

	patterns := make([]models.FraudPattern, 0)
	patterns = append(patterns, d.detectFraudRings(txns, assessments)...)
	patterns = append(patterns, d.detectVelocityBursts(txns, assessments)...)
	patterns = append(patterns, d.detectImpossibleTravel(txns)...)
	patterns = append(patterns, d.detectMerchantClusters(txns, assessments)...)

	if len(patterns) > 0 {
		d.record(patterns)
	}
	for _, p := range patterns {
		metrics.PatternsDetected.WithLabelValues(p.PatternType).Inc()
	}
	d.logger.Info("pattern detection complete",
		zap.Int("batch_size", len(txns)),
		zap.Int("patterns_found", len(patterns)))
	return patterns
}

// Pattern returns a retained pattern by id.
func (d *Detector) Pattern(id string) (models.FraudPattern, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.byID[id]
	return p, ok
}

// Patterns lists retained patterns, newest first, optionally filtered by
// type. A limit <= 0 means 100.
func (d *Detector) Patterns(patternType string, limit int) []models.FraudPattern {
	if limit <= 0 {
		limit = 100
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]models.FraudPattern, 0, len(d.history))
	for i := len(d.history) - 1; i >= 0; i-- {
		if patternType != "" && d.history[i].PatternType != patternType {
			continue
		}
		out = append(out, d.history[i])
		if len(out) >= limit {
			break
		}
	}
	return out
}

func (d *Detector) record(patterns []models.FraudPattern) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, p := range patterns {
		d.byID[p.ID] = p
		d.history = append(d.history, p)
	}
	if excess := len(d.history) - historyCap; excess > 0 {
		for _, evicted := range d.history[:excess] {
			delete(d.byID, evicted.ID)
		}
		d.history = append(d.history[:0], d.history[excess:]...)
	}
}

func (d *Detector) detectFraudRings(txns []*models.Transaction, assessments map[string]models.AssessmentSummary) []models.FraudPattern {
	deviceUsers := make(map[string]map[string]bool)
	deviceTxns := make(map[string][]string)
	merchantUsers := make(map[string]map[string]bool)
	merchantTxns := make(map[string][]string)

	for _, txn := range txns {
		if assessments[txn.ID].RiskScore < highRiskScore {
			continue
		}
		if fp := txn.Device.Fingerprint; fp != "" {
			if deviceUsers[fp] == nil {
				deviceUsers[fp] = make(map[string]bool)
			}
			deviceUsers[fp][txn.UserID] = true
			deviceTxns[fp] = append(deviceTxns[fp], txn.ID)
		}
		if m := txn.MerchantID; m != "" {
			if merchantUsers[m] == nil {
				merchantUsers[m] = make(map[string]bool)
			}
			merchantUsers[m][txn.UserID] = true
			merchantTxns[m] = append(merchantTxns[m], txn.ID)
		}
	}

	var patterns []models.FraudPattern

	for _, fp := range sortedKeys(deviceUsers) {
		users := deviceUsers[fp]
		ids := deviceTxns[fp]
		if len(users) < deviceRingMinUsers || len(ids) < deviceRingMinTxns {
			continue
		}
		confidence := 0.5 + 0.1*float64(len(users)-deviceRingMinUsers)
		if confidence > 0.9 {
			confidence = 0.9
		}
		patterns = append(patterns, models.FraudPattern{
			ID:          patternID("ring_device"),
			PatternType: TypeFraudRingDevice,
			Description: fmt.Sprintf("Fraud ring detected: %d users sharing device %s...", len(users), truncateFingerprint(fp)),
			Confidence:  confidence,
			AffectedTransactions: ids,
			AffectedUsers:        setToSlice(users),
			Metadata: map[string]interface{}{
				"device_fingerprint": fp,
				"user_count":         len(users),
				"transaction_count":  len(ids),
			},
			DetectedAt: time.Now().UTC(),
		})
	}

	for _, m := range sortedKeys(merchantUsers) {
		users := merchantUsers[m]
		ids := merchantTxns[m]
		if len(users) < merchantRingMinUsers || len(ids) < merchantRingMinTxns {
			continue
		}
		confidence := 0.4 + 0.05*float64(len(users)-merchantRingMinUsers)
		if confidence > 0.85 {
			confidence = 0.85
		}
		patterns = append(patterns, models.FraudPattern{
			ID:          patternID("ring_merchant"),
			PatternType: TypeFraudRingMerchant,
			Description: fmt.Sprintf("Fraud ring detected: %d users at merchant %s", len(users), m),
			Confidence:  confidence,
			AffectedTransactions: ids,
			AffectedUsers:        setToSlice(users),
			Metadata: map[string]interface{}{
				"merchant_id":       m,
				"user_count":        len(users),
				"transaction_count": len(ids),
			},
			DetectedAt: time.Now().UTC(),
		})
	}

	return patterns
}

func (d *Detector) detectVelocityBursts(txns []*models.Transaction, assessments map[string]models.AssessmentSummary) []models.FraudPattern {
	byUser := groupByUser(txns)

	var patterns []models.FraudPattern
	for _, userID := range sortedKeys(byUser) {
		userTxns := byUser[userID]
		if len(userTxns) < burstWindowSize {
			continue
		}
		sort.SliceStable(userTxns, func(i, j int) bool {
			return userTxns[i].Timestamp.Before(userTxns[j].Timestamp)
		})

		for i := 0; i+burstWindowSize <= len(userTxns); i++ {
			window := userTxns[i : i+burstWindowSize]
			span := window[len(window)-1].Timestamp.Sub(window[0].Timestamp).Hours()
			if span > burstWindowHours {
				continue
			}

			highRisk := 0
			ids := make([]string, 0, len(window))
			for _, txn := range window {
				ids = append(ids, txn.ID)
				if assessments[txn.ID].RiskScore >= highRiskScore {
					highRisk++
				}
			}
			if highRisk < burstMinHighRisk {
				continue
			}

			patterns = append(patterns, models.FraudPattern{
				ID:          patternID("velocity"),
				PatternType: TypeVelocityBurst,
				Description: fmt.Sprintf("Velocity burst: %d transactions in %.1f hours", len(window), span),
				Confidence:  burstConfidence,
				AffectedTransactions: ids,
				AffectedUsers:        []string{userID},
				Metadata: map[string]interface{}{
					"time_span_hours":   span,
					"transaction_count": len(window),
					"high_risk_count":   highRisk,
				},
				DetectedAt: time.Now().UTC(),
			})
			// one burst per user
			break
		}
	}
	return patterns
}

func (d *Detector) detectImpossibleTravel(txns []*models.Transaction) []models.FraudPattern {
	byUser := make(map[string][]*models.Transaction)
	for _, txn := range txns {
		if txn.UserID == "" || !txn.Location.Geotagged() {
			continue
		}
		byUser[txn.UserID] = append(byUser[txn.UserID], txn)
	}

	var patterns []models.FraudPattern
	for _, userID := range sortedKeys(byUser) {
		userTxns := byUser[userID]
		if len(userTxns) < 2 {
			continue
		}
		sort.SliceStable(userTxns, func(i, j int) bool {
			return userTxns[i].Timestamp.Before(userTxns[j].Timestamp)
		})

		for i := 0; i < len(userTxns)-1; i++ {
			a, b := userTxns[i], userTxns[i+1]
			hours := b.Timestamp.Sub(a.Timestamp).Hours()
			if hours >= travelMaxHours {
				continue
			}
			distance := features.Haversine(
				*a.Location.Latitude, *a.Location.Longitude,
				*b.Location.Latitude, *b.Location.Longitude)
			if distance <= travelMinDistanceKM {
				continue
			}

			patterns = append(patterns, models.FraudPattern{
				ID:          patternID("location"),
				PatternType: TypeImpossibleTravel,
				Description: fmt.Sprintf("Impossible travel: %.0fkm in %.1fh", distance, hours),
				Confidence:  travelConfidence,
				AffectedTransactions: []string{a.ID, b.ID},
				AffectedUsers:        []string{userID},
				Metadata: map[string]interface{}{
					"distance_km":  distance,
					"time_hours":   hours,
					"from_country": a.Location.Country,
					"to_country":   b.Location.Country,
				},
				DetectedAt: time.Now().UTC(),
			})
		}
	}
	return patterns
}

func (d *Detector) detectMerchantClusters(txns []*models.Transaction, assessments map[string]models.AssessmentSummary) []models.FraudPattern {
	byCategory := make(map[string][]*models.Transaction)
	for _, txn := range txns {
		if txn.MerchantCategory == "" {
			continue
		}
		if assessments[txn.ID].RiskScore < highRiskScore {
			continue
		}
		byCategory[txn.MerchantCategory] = append(byCategory[txn.MerchantCategory], txn)
	}

	var patterns []models.FraudPattern
	for _, category := range sortedKeys(byCategory) {
		catTxns := byCategory[category]
		if len(catTxns) < clusterMinTxns {
			continue
		}
		users := make(map[string]bool)
		ids := make([]string, 0, len(catTxns))
		for _, txn := range catTxns {
			users[txn.UserID] = true
			ids = append(ids, txn.ID)
		}
		if len(users) < clusterMinUsers {
			continue
		}

		patterns = append(patterns, models.FraudPattern{
			ID:          patternID("merchant"),
			PatternType: TypeMerchantCluster,
			Description: fmt.Sprintf("Suspicious cluster: %d high-risk transactions at %s", len(catTxns), category),
			Confidence:  clusterConfidence,
			AffectedTransactions: ids,
			AffectedUsers:        setToSlice(users),
			Metadata: map[string]interface{}{
				"merchant_category": category,
				"transaction_count": len(catTxns),
				"user_count":        len(users),
			},
			DetectedAt: time.Now().UTC(),
		})
	}
	return patterns
}

func patternID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s_%s", prefix, hex[:12])
}

func truncateFingerprint(fp string) string {
	if len(fp) > 8 {
		return fp[:8]
	}
	return fp
}

func groupByUser(txns []*models.Transaction) map[string][]*models.Transaction {
	byUser := make(map[string][]*models.Transaction)
	for _, txn := range txns {
		if txn.UserID == "" {
			continue
		}
		byUser[txn.UserID] = append(byUser[txn.UserID], txn)
	}
	return byUser
}

func setToSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
