// Package models defines the shared domain types for the Sentinel
// fraud-risk scoring service.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RiskLevel represents the banded severity of a risk score.
type RiskLevel int

const (
	RiskLevelLow RiskLevel = iota
	RiskLevelMedium
	RiskLevelHigh
	RiskLevelCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLevelLow:
		return "low"
	case RiskLevelMedium:
		return "medium"
	case RiskLevelHigh:
		return "high"
	case RiskLevelCritical:
		return "critical"
	}
	return "unknown"
}

// MarshalJSON encodes the level as its string form.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a string risk level.
func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	level, err := ParseRiskLevel(s)
	if err != nil {
		return err
	}
	*r = level
	return nil
}

// ParseRiskLevel converts a string into a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch s {
	case "low":
		return RiskLevelLow, nil
	case "medium":
		return RiskLevelMedium, nil
	case "high":
		return RiskLevelHigh, nil
	case "critical":
		return RiskLevelCritical, nil
	}
	return RiskLevelLow, fmt.Errorf("unknown risk level %q", s)
}

// RecommendedAction is the disposition suggested for a scored transaction.
type RecommendedAction string

const (
	ActionApprove RecommendedAction = "approve"
	ActionReview  RecommendedAction = "review"
	ActionBlock   RecommendedAction = "block"
)

// Contribution directions.
const (
	DirectionIncreasesRisk = "increases_risk"
	DirectionDecreasesRisk = "decreases_risk"
)

// Location is the geolocation attached to a transaction. Latitude and
// longitude are optional; country is required at the boundary.
type Location struct {
	Country   string   `json:"country" validate:"required,len=2"`
	City      string   `json:"city,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
}

// Geotagged reports whether the location carries coordinates.
func (l Location) Geotagged() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// Device identifies the device a transaction originated from.
type Device struct {
	Fingerprint string `json:"fingerprint" validate:"required"`
	Type        string `json:"type,omitempty" validate:"omitempty,oneof=mobile desktop tablet"`
}

// Transaction is the strongly-typed payment record scored by the service.
// It is validated once at the system boundary and immutable once scored.
type Transaction struct {
	ID               string          `json:"transaction_id"`
	UserID           string          `json:"user_id" validate:"required"`
	Amount           decimal.Decimal `json:"amount" validate:"required"`
	Currency         string          `json:"currency" validate:"required,len=3"`
	MerchantID       string          `json:"merchant_id" validate:"required"`
	MerchantCategory string          `json:"merchant_category,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
	Location         Location        `json:"location"`
	Device           Device          `json:"device"`
}

// AmountFloat returns the transaction amount as a float64 for the feature
// pipeline. The decimal value remains the record of truth.
func (t *Transaction) AmountFloat() float64 {
	return t.Amount.InexactFloat64()
}

// TransactionSummary is the lightweight window entry kept per user for
// trailing-window velocity computation.
type TransactionSummary struct {
	Amount            float64   `json:"amount"`
	Timestamp         time.Time `json:"timestamp"`
	Country           string    `json:"country,omitempty"`
	Latitude          *float64  `json:"latitude,omitempty"`
	Longitude         *float64  `json:"longitude,omitempty"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
}

// UserProfile is a user's rolling behavioral baseline. Statistics are
// recomputed from the bounded recent-transaction window, never accumulated
// unboundedly.
type UserProfile struct {
	UserID            string     `json:"user_id"`
	AvgAmount         float64    `json:"avg_amount"`
	StdAmount         float64    `json:"std_amount"`
	TotalTransactions int        `json:"total_transactions"`
	KnownCountries    []string   `json:"known_countries"`
	KnownDevices      []string   `json:"known_devices"`
	LastLatitude      *float64   `json:"last_latitude,omitempty"`
	LastLongitude     *float64   `json:"last_longitude,omitempty"`
	LastTransactionAt *time.Time `json:"last_transaction_at,omitempty"`
	TypicalHours      []int      `json:"typical_hours"`
	FraudCount        int        `json:"fraud_count"`
}

// NewUserProfile creates the default profile used on first sighting of a
// user: typical daytime hours and a modest spending baseline.
func NewUserProfile(userID string) *UserProfile {
	hours := make([]int, 0, 14)
	for h := 8; h < 22; h++ {
		hours = append(hours, h)
	}
	return &UserProfile{
		UserID:         userID,
		AvgAmount:      100.0,
		StdAmount:      50.0,
		KnownCountries: []string{"US"},
		KnownDevices:   []string{},
		TypicalHours:   hours,
	}
}

// KnowsCountry reports whether the country is in the user's known set.
func (p *UserProfile) KnowsCountry(country string) bool {
	for _, c := range p.KnownCountries {
		if c == country {
			return true
		}
	}
	return false
}

// KnowsDevice reports whether the fingerprint is in the user's known set.
func (p *UserProfile) KnowsDevice(fingerprint string) bool {
	for _, d := range p.KnownDevices {
		if d == fingerprint {
			return true
		}
	}
	return false
}

// TypicalHour reports whether the hour falls in the user's usual activity.
func (p *UserProfile) TypicalHour(hour int) bool {
	for _, h := range p.TypicalHours {
		if h == hour {
			return true
		}
	}
	return false
}

// FeatureContribution is one feature's signed contribution to a risk score,
// in score points.
type FeatureContribution struct {
	FeatureName      string  `json:"feature_name"`
	DisplayName      string  `json:"display_name"`
	Value            float64 `json:"value"`
	Impact           float64 `json:"impact"`
	ImpactPercentage float64 `json:"impact_percentage"`
	Direction        string  `json:"direction"`
}

// RiskAssessment is the immutable result of scoring one transaction.
type RiskAssessment struct {
	TransactionID     string                `json:"transaction_id"`
	RiskScore         int                   `json:"risk_score"`
	RiskLevel         RiskLevel             `json:"risk_level"`
	Confidence        float64               `json:"confidence"`
	RecommendedAction RecommendedAction     `json:"recommended_action"`
	ProcessingTimeMS  float64               `json:"processing_time_ms"`
	TopFactors        []FeatureContribution `json:"top_factors"`
}

// AssessmentSummary is the minimal per-transaction score handed to batch
// pattern detection.
type AssessmentSummary struct {
	RiskScore int       `json:"risk_score"`
	RiskLevel RiskLevel `json:"risk_level"`
}

// FraudPattern is a cross-transaction pattern produced by batch detection.
type FraudPattern struct {
	ID                   string                 `json:"id"`
	PatternType          string                 `json:"pattern_type"`
	Description          string                 `json:"description"`
	Confidence           float64                `json:"confidence"`
	AffectedTransactions []string               `json:"affected_transactions"`
	AffectedUsers        []string               `json:"affected_users"`
	Metadata             map[string]interface{} `json:"metadata"`
	DetectedAt           time.Time              `json:"detected_at"`
}

// TechnicalExplanation is the compliance-grade tier: full contribution and
// feature maps plus model identity.
type TechnicalExplanation struct {
	ModelVersion       string             `json:"model_version"`
	BaseRisk           float64            `json:"base_risk"`
	Contributions      map[string]float64 `json:"contributions"`
	FeatureValues      map[string]float64 `json:"feature_values"`
	ConfidenceInterval [2]int             `json:"confidence_interval"`
	Approximate        bool               `json:"approximate"`
}

// RiskFactor is one ranked entry in the business explanation.
type RiskFactor struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Impact      float64 `json:"impact"`
	Icon        string  `json:"icon"`
}

// BusinessExplanation is the analyst-facing tier.
type BusinessExplanation struct {
	Summary              string       `json:"summary"`
	TopFactors           []RiskFactor `json:"top_factors"`
	ComparisonToBaseline string       `json:"comparison_to_baseline"`
}

// UserExplanation is the cardholder-facing tier.
type UserExplanation struct {
	Headline      string   `json:"headline"`
	Reasons       []string `json:"reasons"`
	WhatThisMeans string   `json:"what_this_means"`
	NextSteps     string   `json:"next_steps"`
}

// FullExplanation bundles the three narrative tiers.
type FullExplanation struct {
	Technical TechnicalExplanation `json:"technical"`
	Business  BusinessExplanation  `json:"business"`
	User      UserExplanation      `json:"user"`
}
