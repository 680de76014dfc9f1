// Package explain composes three-tier narratives (technical, business,
// user-facing) from a risk assessment and its feature attributions.
package explain

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sentinelpay/sentinel/internal/features"
	"github.com/sentinelpay/sentinel/pkg/models"
)

// Business factors with less impact than this are omitted from the
// analyst tier.
const minBusinessImpact = 0.5

// Input carries everything the composer needs for one explanation.
// Missing values degrade to "unknown"/0; composition never fails.
type Input struct {
	Assessment    *models.RiskAssessment
	Transaction   *models.Transaction
	Features      features.Map
	Contributions map[string]float64
	ModelVersion  string
	BaseRisk      float64 // baseline probability
	Approximate   bool
}

// Composer renders the narrative tiers.
type Composer struct {
	logger *zap.Logger
}

// NewComposer creates an explanation composer.
func NewComposer(logger *zap.Logger) *Composer {
	return &Composer{logger: logger}
}

// Compose builds the full three-tier explanation.
func (c *Composer) Compose(in Input) *models.FullExplanation {
	top := rankedContributions(in.Contributions)

	return &models.FullExplanation{
		Technical: c.technical(in),
		Business:  c.business(in, top),
		User:      c.user(in, top),
	}
}

type contribution struct {
	name   string
	impact float64
}

func rankedContributions(contributions map[string]float64) []contribution {
	ranked := make([]contribution, 0, len(contributions))
	for name, impact := range contributions {
		ranked = append(ranked, contribution{name: name, impact: impact})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].impact) > math.Abs(ranked[j].impact)
	})
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	return ranked
}

func (c *Composer) technical(in Input) models.TechnicalExplanation {
	score := 0
	if in.Assessment != nil {
		score = in.Assessment.RiskScore
	}

	lo := score - 5
	if lo < 0 {
		lo = 0
	}
	hi := score + 5
	if hi > 100 {
		hi = 100
	}

	contributions := make(map[string]float64, len(in.Contributions))
	for name, impact := range in.Contributions {
		contributions[name] = round4(impact)
	}
	values := make(map[string]float64, len(in.Features))
	for name, v := range in.Features {
		values[name] = round4(v)
	}

	version := in.ModelVersion
	if version == "" {
		version = "unknown"
	}

	return models.TechnicalExplanation{
		ModelVersion:       version,
		BaseRisk:           round2(in.BaseRisk * 100),
		Contributions:      contributions,
		FeatureValues:      values,
		ConfidenceInterval: [2]int{lo, hi},
		Approximate:        in.Approximate,
	}
}

func (c *Composer) business(in Input, top []contribution) models.BusinessExplanation {
	score, level := scoreAndLevel(in.Assessment)

	var summary string
	switch level {
	case models.RiskLevelCritical:
		summary = fmt.Sprintf("Critical risk detected (Score: %d/100). Multiple high-risk indicators present. Immediate review required.", score)
	case models.RiskLevelHigh:
		summary = fmt.Sprintf("High risk transaction (Score: %d/100). Several anomalies detected that warrant investigation.", score)
	case models.RiskLevelMedium:
		summary = fmt.Sprintf("Moderate risk (Score: %d/100). Some unusual patterns detected but within acceptable thresholds.", score)
	default:
		summary = fmt.Sprintf("Low risk transaction (Score: %d/100). Activity consistent with user's normal behavior.", score)
	}

	var factors []models.RiskFactor
	for _, entry := range top {
		if math.Abs(entry.impact) < minBusinessImpact {
			continue
		}
		icon := factorIcon(entry.name)
		factors = append(factors, models.RiskFactor{
			Title:       fmt.Sprintf("%s %s", icon, features.DisplayName(entry.name)),
			Description: c.factorDescription(entry.name, entry.impact, in),
			Impact:      round2(entry.impact),
			Icon:        icon,
		})
	}

	amount := transactionAmount(in.Transaction)
	avg := baselineAmount(in.Features)
	comparison := fmt.Sprintf("Typical transaction for this user: $%.2f. This transaction: $%.2f.", avg, amount)

	return models.BusinessExplanation{
		Summary:              summary,
		TopFactors:           factors,
		ComparisonToBaseline: comparison,
	}
}

func (c *Composer) user(in Input, top []contribution) models.UserExplanation {
	_, level := scoreAndLevel(in.Assessment)

	var headline string
	switch level {
	case models.RiskLevelCritical, models.RiskLevelHigh:
		headline = "We flagged this transaction for your protection"
	case models.RiskLevelMedium:
		headline = "We noticed some unusual activity"
	default:
		headline = "Transaction approved"
	}

	var reasons []string
	for _, entry := range top {
		if len(reasons) >= 3 {
			break
		}
		// Only risk-increasing factors make sense as reasons.
		if entry.impact <= 1 {
			continue
		}
		if reason := simpleReason(entry.name, in); reason != "" {
			reasons = append(reasons, reason)
		}
	}
	if len(reasons) == 0 {
		reasons = []string{"This transaction matched typical patterns for your account"}
	}

	var meaning, next string
	switch level {
	case models.RiskLevelCritical:
		meaning = "This could mean someone is trying to use your account without permission, or you might be making an unusual but legitimate purchase."
		next = "We've temporarily held this transaction. Please confirm if this was you by responding to our verification request."
	case models.RiskLevelHigh:
		meaning = "This could mean someone is trying to use your account without permission, or you might be making an unusual but legitimate purchase."
		next = "Please review this transaction. If you don't recognize it, please contact us immediately."
	case models.RiskLevelMedium:
		meaning = "The transaction has some unusual characteristics, but it may still be legitimate."
		next = "No action needed, but please review your recent transactions to ensure they're all legitimate."
	default:
		meaning = "Everything looks normal with this transaction."
		next = "No action needed. Your transaction has been processed successfully."
	}

	return models.UserExplanation{
		Headline:      headline,
		Reasons:       reasons,
		WhatThisMeans: meaning,
		NextSteps:     next,
	}
}

func scoreAndLevel(assessment *models.RiskAssessment) (int, models.RiskLevel) {
	if assessment == nil {
		return 0, models.RiskLevelLow
	}
	return assessment.RiskScore, assessment.RiskLevel
}

func transactionAmount(txn *models.Transaction) float64 {
	if txn == nil {
		return 0
	}
	return txn.AmountFloat()
}

// baselineAmount back-derives the user's typical amount from the
// amount-vs-average ratio feature.
func baselineAmount(m features.Map) float64 {
	ratio := m["amount_vs_avg_ratio"]
	if ratio < 0.01 {
		ratio = 0.01
	}
	return m["amount"] / ratio
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
