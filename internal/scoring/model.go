// Package scoring turns a feature vector into a fraud probability and a
// banded risk classification.
package scoring

import (
	"os"

	"go.uber.org/zap"
)

// Model produces a fraud probability from an ordered feature vector.
type Model interface {
	// Predict returns a fraud probability in [0, 1].
	Predict(vector []float64) float64
	// Version identifies the deployed model.
	Version() string
	// ExpectedValue is the baseline probability absent any strong signal.
	ExpectedValue() float64
	// FeatureNames is the ordered schema the model was trained against.
	FeatureNames() []string
}

// Attributor is implemented by models that can decompose a prediction into
// per-feature contributions natively.
type Attributor interface {
	// Contributions returns signed per-feature contributions in score
	// points. They sum approximately to score minus baseline.
	Contributions(vector []float64) map[string]float64
}

// Load resolves the active scoring model. A readable artifact at path
// yields the trained model; anything else selects the rule-based fallback.
// Model unavailability is not an error.
func Load(path string, logger *zap.Logger) Model {
	if path == "" {
		logger.Warn("no model artifact configured, using rule-based fallback")
		return NewFallbackModel()
	}

	if _, err := os.Stat(path); err != nil {
		logger.Warn("model artifact not found, using rule-based fallback",
			zap.String("path", path), zap.Error(err))
		return NewFallbackModel()
	}

	model, err := LoadArtifact(path)
	if err != nil {
		logger.Warn("model artifact unreadable, using rule-based fallback",
			zap.String("path", path), zap.Error(err))
		return NewFallbackModel()
	}

	logger.Info("loaded model artifact",
		zap.String("path", path),
		zap.String("version", model.Version()),
		zap.Int("features", len(model.FeatureNames())))
	return model
}
