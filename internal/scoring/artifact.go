package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// ArtifactModel is a pre-trained logistic classifier loaded from a JSON
// artifact exported by the training pipeline. It supports native
// attribution: the probability lift over the expected value is distributed
// across features in proportion to their logit terms.
type ArtifactModel struct {
	version       string
	featureNames  []string
	weights       []float64
	intercept     float64
	expectedValue float64
	means         []float64
	scales        []float64
}

type artifactFile struct {
	Version       string    `json:"version"`
	FeatureNames  []string  `json:"feature_names"`
	Weights       []float64 `json:"weights"`
	Intercept     float64   `json:"intercept"`
	ExpectedValue float64   `json:"expected_value"`
	FeatureMeans  []float64 `json:"feature_means,omitempty"`
	FeatureScales []float64 `json:"feature_scales,omitempty"`
}

// LoadArtifact reads and validates a model artifact from disk.
func LoadArtifact(path string) (*ArtifactModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}

	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}

	if len(file.FeatureNames) == 0 {
		return nil, fmt.Errorf("model artifact has no feature names")
	}
	if len(file.Weights) != len(file.FeatureNames) {
		return nil, fmt.Errorf("model artifact weight count %d does not match feature count %d",
			len(file.Weights), len(file.FeatureNames))
	}
	if file.FeatureMeans != nil && len(file.FeatureMeans) != len(file.FeatureNames) {
		return nil, fmt.Errorf("model artifact mean count %d does not match feature count %d",
			len(file.FeatureMeans), len(file.FeatureNames))
	}
	if file.FeatureScales != nil && len(file.FeatureScales) != len(file.FeatureNames) {
		return nil, fmt.Errorf("model artifact scale count %d does not match feature count %d",
			len(file.FeatureScales), len(file.FeatureNames))
	}

	version := file.Version
	if version == "" {
		version = "unversioned"
	}
	expected := file.ExpectedValue
	if expected <= 0 || expected >= 1 {
		expected = 0.15
	}

	return &ArtifactModel{
		version:       version,
		featureNames:  file.FeatureNames,
		weights:       file.Weights,
		intercept:     file.Intercept,
		expectedValue: expected,
		means:         file.FeatureMeans,
		scales:        file.FeatureScales,
	}, nil
}

// Predict applies the logistic model to the vector. Missing trailing
// features default to 0; extra features are ignored.
func (m *ArtifactModel) Predict(vector []float64) float64 {
	logit := m.intercept
	for i := range m.weights {
		logit += m.weights[i] * m.standardized(vector, i)
	}
	return sigmoid(logit)
}

// Contributions distributes the probability lift over the expected value
// across features in proportion to their absolute logit terms, expressed
// in score points.
func (m *ArtifactModel) Contributions(vector []float64) map[string]float64 {
	terms := make([]float64, len(m.weights))
	var totalAbs float64
	for i := range m.weights {
		terms[i] = m.weights[i] * m.standardized(vector, i)
		totalAbs += math.Abs(terms[i])
	}

	lift := (m.Predict(vector) - m.expectedValue) * 100

	contributions := make(map[string]float64, len(m.featureNames))
	if totalAbs == 0 {
		for _, name := range m.featureNames {
			contributions[name] = 0
		}
		return contributions
	}

	// Each feature receives a share of the lift signed by its own term, so
	// the signed contributions sum to score minus baseline.
	var signedSum float64
	for _, term := range terms {
		signedSum += term
	}
	for i, name := range m.featureNames {
		if signedSum != 0 {
			contributions[name] = lift * terms[i] / signedSum
		} else {
			contributions[name] = 0
		}
	}
	return contributions
}

func (m *ArtifactModel) standardized(vector []float64, i int) float64 {
	var v float64
	if i < len(vector) {
		v = vector[i]
	}
	if m.means != nil {
		v -= m.means[i]
	}
	if m.scales != nil && m.scales[i] != 0 {
		v /= m.scales[i]
	}
	return v
}

func (m *ArtifactModel) Version() string        { return m.version }
func (m *ArtifactModel) ExpectedValue() float64 { return m.expectedValue }
func (m *ArtifactModel) FeatureNames() []string { return m.featureNames }

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
