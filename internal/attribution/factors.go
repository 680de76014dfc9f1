package attribution

import (
	"math"
	"sort"

	"github.com/sentinelpay/sentinel/internal/features"
	"github.com/sentinelpay/sentinel/pkg/models"
)

// Contributions below this absolute impact are treated as noise.
const minImpact = 0.01

// DefaultTopFactors is the default ranked-factor count on assessments.
const DefaultTopFactors = 5

// TopFactors ranks contributions by descending absolute impact and returns
// at most n of them, with display metadata and each factor's share of the
// total absolute impact.
func TopFactors(contributions map[string]float64, values features.Map, n int) []models.FeatureContribution {
	if n <= 0 {
		n = DefaultTopFactors
	}

	var totalAbs float64
	for _, impact := range contributions {
		totalAbs += math.Abs(impact)
	}

	ranked := make([]models.FeatureContribution, 0, len(contributions))
	for name, impact := range contributions {
		if math.Abs(impact) < minImpact {
			continue
		}

		pct := 0.0
		if totalAbs > 0 {
			pct = math.Abs(impact) / totalAbs * 100
		}

		direction := models.DirectionDecreasesRisk
		if impact > 0 {
			direction = models.DirectionIncreasesRisk
		}

		ranked = append(ranked, models.FeatureContribution{
			FeatureName:      name,
			DisplayName:      features.DisplayName(name),
			Value:            round4(values[name]),
			Impact:           round4(impact),
			ImpactPercentage: round1(pct),
			Direction:        direction,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].Impact) > math.Abs(ranked[j].Impact)
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }
