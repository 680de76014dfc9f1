// Package attribution decomposes a risk score into signed per-feature
// contributions, either natively via the model or through a documented
// simulation.
package attribution

import (
	"hash/fnv"
	"math"
	"math/rand"

	"go.uber.org/zap"

	"github.com/sentinelpay/sentinel/internal/scoring"
)

// Engine produces signed per-feature contributions, in score points, for
// one prediction.
type Engine interface {
	// Attribute maps the vector to feature-name -> signed contribution.
	Attribute(vector []float64, riskScore int) map[string]float64
	// Baseline is the expected score absent strong signals, in points.
	Baseline() float64
	// Approximate reports whether contributions are simulated rather than
	// a faithful decomposition.
	Approximate() bool
}

// NewEngine selects the attribution strategy once, at load time: native if
// the model exposes its own mechanism, otherwise simulated. Strategies are
// never mixed mid-flight.
func NewEngine(model scoring.Model, logger *zap.Logger) Engine {
	if attributor, ok := model.(scoring.Attributor); ok {
		logger.Info("using native model attribution", zap.String("model_version", model.Version()))
		return &NativeEngine{model: model, attributor: attributor}
	}
	logger.Warn("model has no native attribution, contributions will be simulated",
		zap.String("model_version", model.Version()))
	return NewSimulatedEngine(model)
}

// NativeEngine delegates to the model's own attribution mechanism.
type NativeEngine struct {
	model      scoring.Model
	attributor scoring.Attributor
}

func (e *NativeEngine) Attribute(vector []float64, _ int) map[string]float64 {
	return e.attributor.Contributions(vector)
}

func (e *NativeEngine) Baseline() float64 { return e.model.ExpectedValue() * 100 }
func (e *NativeEngine) Approximate() bool { return false }

// baseImpactWeights are the fixed per-feature impact weights used by the
// simulation, in canonical schema order. Unmapped features beyond this
// table get defaultImpactWeight.
var baseImpactWeights = []float64{
	0.05, // amount
	0.03, // amount_log
	0.12, // amount_zscore
	0.04, // is_round_amount
	0.03, // amount_percentile
	0.03, // hour_of_day
	0.02, // day_of_week
	0.02, // is_weekend
	0.05, // is_night
	0.04, // minutes_since_last_txn
	0.04, // is_unusual_hour
	0.06, // txn_count_1h
	0.04, // txn_count_24h
	0.04, // amount_sum_1h
	0.03, // amount_sum_24h
	0.06, // velocity_score
	0.10, // country_risk
	0.08, // distance_from_last_km
	0.06, // is_new_country
	0.05, // location_velocity
	0.12, // is_impossible_travel
	0.08, // is_new_device
	0.03, // device_age_days
	0.04, // device_risk_score
	0.06, // merchant_category_risk
	0.05, // is_high_risk_merchant
	0.03, // user_tenure_days
	0.08, // user_fraud_history
	0.07, // amount_vs_avg_ratio
	0.06, // behavior_anomaly_score
}

const defaultImpactWeight = 0.02

// SimulatedEngine fabricates contributions when the model has no native
// attribution: fixed impact weights scaled by feature values, bounded
// multiplicative jitter, then rescaled so the absolute contributions sum
// to the numeric risk score. This is an illustrative approximation, not a
// faithful additive decomposition, and is flagged as such.
type SimulatedEngine struct {
	model   scoring.Model
	weights []float64
}

// NewSimulatedEngine builds the simulation for the model's feature schema.
func NewSimulatedEngine(model scoring.Model) *SimulatedEngine {
	names := model.FeatureNames()
	weights := make([]float64, len(names))
	for i := range names {
		if i < len(baseImpactWeights) {
			weights[i] = baseImpactWeights[i]
		} else {
			weights[i] = defaultImpactWeight
		}
	}
	return &SimulatedEngine{model: model, weights: weights}
}

func (e *SimulatedEngine) Attribute(vector []float64, riskScore int) map[string]float64 {
	names := e.model.FeatureNames()

	// The jitter source is seeded from the vector itself so the same
	// snapshot always attributes identically.
	rng := rand.New(rand.NewSource(vectorSeed(vector)))

	raw := make([]float64, len(names))
	var totalAbs float64
	for i := range names {
		var v float64
		if i < len(vector) {
			v = vector[i]
		}
		jitter := 0.5 + rng.Float64()
		raw[i] = v * e.weights[i] * jitter
		totalAbs += math.Abs(raw[i])
	}

	contributions := make(map[string]float64, len(names))
	if totalAbs == 0 {
		for _, name := range names {
			contributions[name] = 0
		}
		return contributions
	}

	scale := float64(riskScore) / totalAbs
	for i, name := range names {
		contributions[name] = raw[i] * scale
	}
	return contributions
}

func (e *SimulatedEngine) Baseline() float64 { return e.model.ExpectedValue() * 100 }
func (e *SimulatedEngine) Approximate() bool { return true }

func vectorSeed(vector []float64) int64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, v := range vector {
		bits := math.Float64bits(v)
		for i := 0; i < 8; i++ {
			buf[i] = byte(bits >> (8 * i))
		}
		h.Write(buf[:])
	}
	return int64(h.Sum64())
}
