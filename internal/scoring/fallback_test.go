package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelpay/sentinel/internal/features"
)

func vectorFrom(m features.Map) []float64 {
	return m.Vector()
}

func TestFallbackBaseRate(t *testing.T) {
	model := NewFallbackModel()

	p := model.Predict(vectorFrom(features.Map{}))
	assert.InDelta(t, 0.15, p, 1e-9)
	assert.InDelta(t, 0.15, model.ExpectedValue(), 1e-9)
	assert.Equal(t, "1.0.0-fallback", model.Version())
}

func TestFallbackAdditiveRules(t *testing.T) {
	model := NewFallbackModel()

	m := features.Map{
		"amount_zscore":          4,   // +0.15 +0.15
		"country_risk":           0.8, // +0.16
		"is_new_device":          1,   // +0.10
		"is_impossible_travel":   1,   // +0.25
		"velocity_score":         1,   // +0.15
		"is_night":               1,   // +0.05
		"is_high_risk_merchant":  1,   // +0.10
		"behavior_anomaly_score": 1,   // +0.15
	}

	// 0.15 + 1.26 = 1.41, clipped to 0.99
	p := model.Predict(vectorFrom(m))
	assert.InDelta(t, 0.99, p, 1e-9)
}

func TestFallbackSingleRule(t *testing.T) {
	model := NewFallbackModel()

	tests := []struct {
		name string
		m    features.Map
		want float64
	}{
		{"zscore just above 2", features.Map{"amount_zscore": 2.5}, 0.30},
		{"zscore above 3 stacks", features.Map{"amount_zscore": 3.5}, 0.45},
		{"country risk scaled", features.Map{"country_risk": 0.5}, 0.25},
		{"new device", features.Map{"is_new_device": 1}, 0.25},
		{"impossible travel", features.Map{"is_impossible_travel": 1}, 0.40},
		{"velocity scaled", features.Map{"velocity_score": 0.6}, 0.24},
		{"night", features.Map{"is_night": 1}, 0.20},
		{"high risk merchant", features.Map{"is_high_risk_merchant": 1}, 0.25},
		{"behavior anomaly scaled", features.Map{"behavior_anomaly_score": 0.5}, 0.225},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, model.Predict(vectorFrom(tt.m)), 1e-9)
		})
	}
}

func TestFallbackProbabilityBounds(t *testing.T) {
	model := NewFallbackModel()

	extremes := []features.Map{
		{},
		{"amount_zscore": 1e9, "country_risk": 1e6, "velocity_score": 1e6, "behavior_anomaly_score": 1e6},
		{"amount_zscore": -1e9, "country_risk": -5},
	}

	for _, m := range extremes {
		p := model.Predict(vectorFrom(m))
		assert.GreaterOrEqual(t, p, 0.01)
		assert.LessOrEqual(t, p, 0.99)
	}
}

func TestFallbackDeterministic(t *testing.T) {
	model := NewFallbackModel()

	m := features.Map{"amount_zscore": 2.5, "country_risk": 0.7, "is_night": 1}
	vec := vectorFrom(m)

	first := model.Predict(vec)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, model.Predict(vec))
	}
}

func TestFallbackShortVector(t *testing.T) {
	model := NewFallbackModel()

	// Missing trailing features default to 0 rather than panicking.
	p := model.Predict([]float64{100, 4.6})
	assert.InDelta(t, 0.15, p, 1e-9)
}
