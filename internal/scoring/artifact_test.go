package scoring

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeArtifact(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "risk_model.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

const validArtifact = `{
	"version": "2.3.1",
	"feature_names": ["amount_zscore", "country_risk", "is_new_device"],
	"weights": [0.9, 1.4, 0.6],
	"intercept": -2.0,
	"expected_value": 0.12
}`

func TestLoadArtifact(t *testing.T) {
	path := writeArtifact(t, validArtifact)

	model, err := LoadArtifact(path)
	require.NoError(t, err)

	assert.Equal(t, "2.3.1", model.Version())
	assert.InDelta(t, 0.12, model.ExpectedValue(), 1e-9)
	assert.Equal(t, []string{"amount_zscore", "country_risk", "is_new_device"}, model.FeatureNames())
}

func TestArtifactPredict(t *testing.T) {
	path := writeArtifact(t, validArtifact)
	model, err := LoadArtifact(path)
	require.NoError(t, err)

	// logit = -2 + 0.9*2 + 1.4*0.5 + 0.6*1 = 1.1
	p := model.Predict([]float64{2, 0.5, 1})
	assert.InDelta(t, 1/(1+math.Exp(-1.1)), p, 1e-9)

	// probability always in [0, 1]
	assert.GreaterOrEqual(t, model.Predict([]float64{-100, -100, -100}), 0.0)
	assert.LessOrEqual(t, model.Predict([]float64{100, 100, 100}), 1.0)
}

func TestArtifactContributionsSumToLift(t *testing.T) {
	path := writeArtifact(t, validArtifact)
	model, err := LoadArtifact(path)
	require.NoError(t, err)

	vec := []float64{2, 0.5, 1}
	contributions := model.Contributions(vec)
	require.Len(t, contributions, 3)

	var sum float64
	for _, c := range contributions {
		sum += c
	}
	lift := (model.Predict(vec) - model.ExpectedValue()) * 100
	assert.InDelta(t, lift, sum, 1e-6)
}

func TestArtifactContributionsZeroVector(t *testing.T) {
	path := writeArtifact(t, validArtifact)
	model, err := LoadArtifact(path)
	require.NoError(t, err)

	contributions := model.Contributions([]float64{0, 0, 0})
	for name, c := range contributions {
		assert.Zero(t, c, "feature %s", name)
	}
}

func TestLoadArtifactRejectsMismatchedWeights(t *testing.T) {
	path := writeArtifact(t, `{
		"version": "bad",
		"feature_names": ["a", "b"],
		"weights": [0.1]
	}`)

	_, err := LoadArtifact(path)
	assert.Error(t, err)
}

func TestLoadFallsBackWhenArtifactMissing(t *testing.T) {
	logger := zap.NewNop()

	model := Load("", logger)
	assert.Equal(t, "1.0.0-fallback", model.Version())

	model = Load(filepath.Join(t.TempDir(), "does_not_exist.json"), logger)
	assert.Equal(t, "1.0.0-fallback", model.Version())

	path := writeArtifact(t, `{not json`)
	model = Load(path, logger)
	assert.Equal(t, "1.0.0-fallback", model.Version())
}

func TestLoadUsesArtifactWhenPresent(t *testing.T) {
	path := writeArtifact(t, validArtifact)

	model := Load(path, zap.NewNop())
	assert.Equal(t, "2.3.1", model.Version())

	_, ok := model.(Attributor)
	assert.True(t, ok, "artifact model supports native attribution")
}
