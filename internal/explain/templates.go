package explain

import (
	"fmt"

	"github.com/sentinelpay/sentinel/pkg/models"
)

var factorIcons = map[string]string{
	"amount":                 "💰",
	"amount_zscore":          "📊",
	"country_risk":           "🌍",
	"is_new_device":          "📱",
	"is_impossible_travel":   "✈️",
	"velocity_score":         "⚡",
	"is_night":               "🌙",
	"is_high_risk_merchant":  "🏪",
	"distance_from_last_km":  "📍",
	"is_new_country":         "🗺️",
	"txn_count_1h":           "⏱️",
	"behavior_anomaly_score": "🔍",
}

func factorIcon(name string) string {
	if icon, ok := factorIcons[name]; ok {
		return icon
	}
	return "📋"
}

// factorDescription renders the analyst-tier sentence for one factor. Every
// branch substitutes safely; a feature with no template gets the generic
// points sentence.
func (c *Composer) factorDescription(name string, impact float64, in Input) string {
	increasing := impact > 0

	switch name {
	case "amount_zscore":
		if !increasing {
			return "This transaction amount is within your normal spending range"
		}
		amount := transactionAmount(in.Transaction)
		ratio := in.Features["amount_vs_avg_ratio"]
		return fmt.Sprintf("This transaction of $%.2f is %.1fx higher than your typical spending of $%.2f",
			amount, ratio, baselineAmount(in.Features))
	case "country_risk":
		if !increasing {
			return "Transaction is from a low-risk country"
		}
		return fmt.Sprintf("Transaction originated from %s, which has elevated fraud risk", country(in.Transaction))
	case "is_new_device":
		if !increasing {
			return "Transaction is from a recognized device"
		}
		return "This is the first time we've seen this device used with your account"
	case "is_impossible_travel":
		if !increasing {
			return "Location is consistent with your travel patterns"
		}
		return fmt.Sprintf("The location is %.0fkm from your last transaction, which occurred only %.1f hours ago - this appears physically impossible",
			in.Features["distance_from_last_km"], in.Features["minutes_since_last_txn"]/60)
	case "velocity_score":
		if !increasing {
			return "Transaction frequency is normal"
		}
		return fmt.Sprintf("You've made %d transactions in the last hour, which is unusual", int(in.Features["txn_count_1h"]))
	case "is_night":
		if !increasing {
			return "Transaction timing is within your normal hours"
		}
		return fmt.Sprintf("This transaction occurred at an unusual time (%d:00)", int(in.Features["hour_of_day"]))
	case "is_high_risk_merchant":
		if !increasing {
			return "Merchant category has low fraud rates"
		}
		return fmt.Sprintf("This merchant category (%s) has elevated fraud rates", merchantCategory(in.Transaction))
	case "distance_from_last_km":
		if !increasing {
			return "Transaction is near your usual locations"
		}
		return fmt.Sprintf("Transaction is %.0fkm from your last known location", in.Features["distance_from_last_km"])
	case "is_new_country":
		if !increasing {
			return "Country is in your usual transaction locations"
		}
		return fmt.Sprintf("This is the first transaction we've seen from %s", country(in.Transaction))
	}

	direction := "decreased"
	if increasing {
		direction = "increased"
	}
	impactAbs := impact
	if impactAbs < 0 {
		impactAbs = -impactAbs
	}
	return fmt.Sprintf("This factor %s the risk score by %.1f points", direction, impactAbs)
}

// simpleReason is the cardholder-tier phrasing; empty means the factor has
// no user-friendly wording and is skipped.
func simpleReason(name string, in Input) string {
	switch name {
	case "amount_zscore":
		return fmt.Sprintf("This purchase of $%.2f is much larger than your typical spending", transactionAmount(in.Transaction))
	case "country_risk":
		return fmt.Sprintf("The transaction location (%s) is unusual", country(in.Transaction))
	case "is_new_device":
		return "We don't recognize the device used for this transaction"
	case "is_impossible_travel":
		return "The location is very far from where you were recently"
	case "velocity_score":
		return "You've made several transactions very quickly"
	case "is_night":
		return "This transaction was made at an unusual time"
	case "is_high_risk_merchant":
		return "The merchant type has higher fraud rates"
	case "is_new_country":
		return fmt.Sprintf("This is your first transaction from %s", country(in.Transaction))
	case "distance_from_last_km":
		return "This location is far from where you normally shop"
	}
	return ""
}

func country(txn *models.Transaction) string {
	if txn == nil || txn.Location.Country == "" {
		return "unknown"
	}
	return txn.Location.Country
}

func merchantCategory(txn *models.Transaction) string {
	if txn == nil || txn.MerchantCategory == "" {
		return "unknown"
	}
	return txn.MerchantCategory
}
