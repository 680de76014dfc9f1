// Package features derives the fixed-schema numeric feature vector used by
// the scoring model from a transaction and the user's behavioral profile.
package features

import "strings"

// Names is the canonical ordered feature schema. The order must be
// identical between training and inference; it never changes within a
// deployed model.
var Names = []string{
	// Monetary
	"amount",
	"amount_log",
	"amount_zscore",
	"is_round_amount",
	"amount_percentile",

	// Temporal
	"hour_of_day",
	"day_of_week",
	"is_weekend",
	"is_night",
	"minutes_since_last_txn",
	"is_unusual_hour",

	// Velocity
	"txn_count_1h",
	"txn_count_24h",
	"amount_sum_1h",
	"amount_sum_24h",
	"velocity_score",

	// Location
	"country_risk",
	"distance_from_last_km",
	"is_new_country",
	"location_velocity",
	"is_impossible_travel",

	// Device
	"is_new_device",
	"device_age_days",
	"device_risk_score",

	// Merchant
	"merchant_category_risk",
	"is_high_risk_merchant",

	// User behavior
	"user_tenure_days",
	"user_fraud_history",
	"amount_vs_avg_ratio",
	"behavior_anomaly_score",
}

var displayNames = map[string]string{
	"amount":                 "Transaction Amount",
	"amount_log":             "Amount (Log Scale)",
	"amount_zscore":          "Amount Deviation",
	"is_round_amount":        "Round Number",
	"amount_percentile":      "Amount Percentile",
	"hour_of_day":            "Hour of Day",
	"day_of_week":            "Day of Week",
	"is_weekend":             "Weekend Transaction",
	"is_night":               "Night Transaction",
	"minutes_since_last_txn": "Time Since Last Transaction",
	"is_unusual_hour":        "Unusual Hour",
	"txn_count_1h":           "Transactions in Last Hour",
	"txn_count_24h":          "Transactions in Last 24h",
	"amount_sum_1h":          "Amount in Last Hour",
	"amount_sum_24h":         "Amount in Last 24h",
	"velocity_score":         "Velocity Score",
	"country_risk":           "Country Risk",
	"distance_from_last_km":  "Distance from Last Location",
	"is_new_country":         "New Country",
	"location_velocity":      "Location Velocity",
	"is_impossible_travel":   "Impossible Travel",
	"is_new_device":          "New Device",
	"device_age_days":        "Device Age",
	"device_risk_score":      "Device Risk",
	"merchant_category_risk": "Merchant Category Risk",
	"is_high_risk_merchant":  "High Risk Merchant",
	"user_tenure_days":       "Account Age",
	"user_fraud_history":     "Fraud History",
	"amount_vs_avg_ratio":    "Amount vs Average",
	"behavior_anomaly_score": "Behavior Anomaly",
}

// DisplayName returns the human-readable name for a feature, falling back
// to a title-cased form of the raw name.
func DisplayName(name string) string {
	if display, ok := displayNames[name]; ok {
		return display
	}
	words := strings.Split(name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Map holds named feature values.
type Map map[string]float64

// Vector orders the map into the canonical schema. Missing features
// default to 0.
func (m Map) Vector() []float64 {
	vec := make([]float64, len(Names))
	for i, name := range Names {
		vec[i] = m[name]
	}
	return vec
}
