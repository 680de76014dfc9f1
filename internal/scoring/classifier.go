package scoring

import (
	"fmt"
	"math"

	"github.com/sentinelpay/sentinel/pkg/models"
)

// Thresholds are the lower bounds of the critical, high and medium bands.
// Scores below the medium threshold are low. Bounds must stay strictly
// decreasing so the bands partition [0, 100] with no gaps or overlap.
type Thresholds struct {
	Critical int `yaml:"critical" json:"critical"`
	High     int `yaml:"high" json:"high"`
	Medium   int `yaml:"medium" json:"medium"`
}

// DefaultThresholds are the deployed band boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Critical: 80, High: 60, Medium: 40}
}

// Classification is the deterministic banding of one probability.
type Classification struct {
	RiskScore         int
	RiskLevel         models.RiskLevel
	Confidence        float64
	RecommendedAction models.RecommendedAction
}

// Classifier converts a fraud probability into a score, level, confidence
// and recommended action. Pure and deterministic; no I/O.
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier validates the thresholds and builds a classifier.
func NewClassifier(t Thresholds) (*Classifier, error) {
	if !(t.Critical > t.High && t.High > t.Medium && t.Medium > 0 && t.Critical <= 100) {
		return nil, fmt.Errorf("risk thresholds must satisfy 0 < medium < high < critical <= 100, got %+v", t)
	}
	return &Classifier{thresholds: t}, nil
}

// Classify bands a probability. A resulting score outside [0, 100] is a
// contract violation and is reported as an error, never silently clamped.
func (c *Classifier) Classify(probability float64) (Classification, error) {
	score := int(math.Round(probability * 100))
	if score < 0 || score > 100 {
		return Classification{}, fmt.Errorf("risk score %d outside [0,100] for probability %v", score, probability)
	}

	level := c.level(score)

	confidence := math.Abs(probability-0.5)*2 + 0.5
	if confidence > 1 {
		confidence = 1
	}

	return Classification{
		RiskScore:         score,
		RiskLevel:         level,
		Confidence:        confidence,
		RecommendedAction: c.action(score, level),
	}, nil
}

func (c *Classifier) level(score int) models.RiskLevel {
	switch {
	case score >= c.thresholds.Critical:
		return models.RiskLevelCritical
	case score >= c.thresholds.High:
		return models.RiskLevelHigh
	case score >= c.thresholds.Medium:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelLow
	}
}

func (c *Classifier) action(score int, level models.RiskLevel) models.RecommendedAction {
	switch {
	case level == models.RiskLevelCritical:
		return models.ActionBlock
	case level == models.RiskLevelHigh:
		return models.ActionReview
	case level == models.RiskLevelMedium && score >= 50:
		return models.ActionReview
	default:
		return models.ActionApprove
	}
}
