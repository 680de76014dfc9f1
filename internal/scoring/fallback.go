package scoring

import (
	"github.com/sentinelpay/sentinel/internal/features"
)

// Fallback rule weights. The result is always clipped to [0.01, 0.99].
const (
	fallbackBaseRate = 0.15

	zscoreHighBump        = 0.15 // amount_zscore > 2
	zscoreExtremeBump     = 0.15 // amount_zscore > 3, on top of the high bump
	countryRiskWeight     = 0.20
	newDeviceBump         = 0.10
	impossibleTravelBump  = 0.25
	velocityWeight        = 0.15
	nightBump             = 0.05
	highRiskMerchantBump  = 0.10
	behaviorAnomalyWeight = 0.15
)

// FallbackModel is the deterministic rule-based scorer used when no trained
// artifact is available. No randomness is involved; the same vector always
// produces the same probability.
type FallbackModel struct {
	featureNames []string
	index        map[string]int
}

// NewFallbackModel creates a fallback model over the canonical schema.
func NewFallbackModel() *FallbackModel {
	index := make(map[string]int, len(features.Names))
	for i, name := range features.Names {
		index[name] = i
	}
	return &FallbackModel{featureNames: features.Names, index: index}
}

// Predict scores the vector with additive rules from a 0.15 base rate.
func (m *FallbackModel) Predict(vector []float64) float64 {
	risk := fallbackBaseRate

	zscore := m.at(vector, "amount_zscore")
	if zscore > 2 {
		risk += zscoreHighBump
	}
	if zscore > 3 {
		risk += zscoreExtremeBump
	}

	risk += m.at(vector, "country_risk") * countryRiskWeight

	if m.at(vector, "is_new_device") > 0.5 {
		risk += newDeviceBump
	}
	if m.at(vector, "is_impossible_travel") > 0.5 {
		risk += impossibleTravelBump
	}

	risk += m.at(vector, "velocity_score") * velocityWeight

	if m.at(vector, "is_night") > 0.5 {
		risk += nightBump
	}
	if m.at(vector, "is_high_risk_merchant") > 0.5 {
		risk += highRiskMerchantBump
	}

	risk += m.at(vector, "behavior_anomaly_score") * behaviorAnomalyWeight

	if risk < 0.01 {
		risk = 0.01
	}
	if risk > 0.99 {
		risk = 0.99
	}
	return risk
}

func (m *FallbackModel) at(vector []float64, name string) float64 {
	i, ok := m.index[name]
	if !ok || i >= len(vector) {
		return 0
	}
	return vector[i]
}

func (m *FallbackModel) Version() string        { return "1.0.0-fallback" }
func (m *FallbackModel) ExpectedValue() float64 { return fallbackBaseRate }
func (m *FallbackModel) FeatureNames() []string { return m.featureNames }
