package features

import (
	"context"
	"math"
	"time"

	"github.com/sentinelpay/sentinel/pkg/models"
)

// Caps applied to unbounded raw values.
const (
	maxMinutesSinceLast = 10080 // 1 week
	maxDistanceKM       = 20000 // half Earth circumference
	maxLocationVelocity = 2000  // km/h
	impossibleSpeedKMH  = 1000
	knownDeviceAgeDays  = 30
)

// Extractor computes the feature map for one transaction. It is a pure
// function of the transaction, profile and recent window aside from risk
// table lookups; it never mutates the profile.
type Extractor struct {
	lookup RiskLookup
}

// NewExtractor creates a feature extractor backed by the given risk lookup.
func NewExtractor(lookup RiskLookup) *Extractor {
	return &Extractor{lookup: lookup}
}

// Extract derives the full feature map from a transaction, the user's
// profile and the user's recent-transaction window.
func (e *Extractor) Extract(
	ctx context.Context,
	txn *models.Transaction,
	profile *models.UserProfile,
	window []models.TransactionSummary,
) Map {
	m := make(Map, len(Names))

	e.monetary(m, txn, profile)
	e.temporal(m, txn, profile)
	e.velocity(m, txn, window)
	e.location(ctx, m, txn, profile)
	e.device(m, txn, profile)
	e.merchant(ctx, m, txn)
	e.behavior(m, txn, profile)

	return m
}

func (e *Extractor) monetary(m Map, txn *models.Transaction, profile *models.UserProfile) {
	amount := txn.AmountFloat()

	std := profile.StdAmount
	if std <= 0 {
		std = 1
	}
	zscore := (amount - profile.AvgAmount) / std

	var isRound float64
	if math.Mod(amount, 100) == 0 || math.Mod(amount, 50) == 0 {
		isRound = 1
	}

	percentile := 0.5
	if profile.AvgAmount > 0 {
		percentile = clip(amount/(profile.AvgAmount*10), 0, 1)
	}

	m["amount"] = amount
	m["amount_log"] = math.Log1p(amount)
	m["amount_zscore"] = clip(zscore, -10, 10)
	m["is_round_amount"] = isRound
	m["amount_percentile"] = percentile
}

func (e *Extractor) temporal(m Map, txn *models.Transaction, profile *models.UserProfile) {
	ts := txn.Timestamp
	hour := ts.Hour()
	// Monday=0..Sunday=6, so the weekend test is weekday>=5.
	weekday := (int(ts.Weekday()) + 6) % 7

	var isWeekend, isNight, isUnusual float64
	if weekday >= 5 {
		isWeekend = 1
	}
	if hour < 6 || hour >= 22 {
		isNight = 1
	}
	if !profile.TypicalHour(hour) {
		isUnusual = 1
	}

	minutesSinceLast := 0.0
	if profile.LastTransactionAt != nil {
		minutesSinceLast = ts.Sub(*profile.LastTransactionAt).Minutes()
		if minutesSinceLast < 0 {
			minutesSinceLast = 0
		}
	}

	m["hour_of_day"] = float64(hour)
	m["day_of_week"] = float64(weekday)
	m["is_weekend"] = isWeekend
	m["is_night"] = isNight
	m["minutes_since_last_txn"] = math.Min(minutesSinceLast, maxMinutesSinceLast)
	m["is_unusual_hour"] = isUnusual
}

func (e *Extractor) velocity(m Map, txn *models.Transaction, window []models.TransactionSummary) {
	oneHourAgo := txn.Timestamp.Add(-time.Hour)
	oneDayAgo := txn.Timestamp.Add(-24 * time.Hour)

	var count1h, count24h int
	var sum1h, sum24h float64

	for _, entry := range window {
		if !entry.Timestamp.Before(oneHourAgo) {
			count1h++
			sum1h += entry.Amount
		}
		if !entry.Timestamp.Before(oneDayAgo) {
			count24h++
			sum24h += entry.Amount
		}
	}

	velocity := clip(float64(count1h)/5.0*0.5+sum1h/1000.0*0.5, 0, 1)

	m["txn_count_1h"] = float64(count1h)
	m["txn_count_24h"] = float64(count24h)
	m["amount_sum_1h"] = sum1h
	m["amount_sum_24h"] = sum24h
	m["velocity_score"] = velocity
}

func (e *Extractor) location(ctx context.Context, m Map, txn *models.Transaction, profile *models.UserProfile) {
	loc := txn.Location

	var distanceKM, locationVelocity, isImpossible float64
	if loc.Geotagged() && profile.LastLatitude != nil && profile.LastLongitude != nil {
		distanceKM = Haversine(*loc.Latitude, *loc.Longitude, *profile.LastLatitude, *profile.LastLongitude)

		if profile.LastTransactionAt != nil {
			hoursSince := txn.Timestamp.Sub(*profile.LastTransactionAt).Hours()
			if hoursSince > 0 {
				locationVelocity = distanceKM / hoursSince
				if locationVelocity > impossibleSpeedKMH {
					isImpossible = 1
				}
			}
		}
	}

	var isNewCountry float64
	if !profile.KnowsCountry(loc.Country) {
		isNewCountry = 1
	}

	m["country_risk"] = e.lookup.CountryRisk(ctx, loc.Country)
	m["distance_from_last_km"] = math.Min(distanceKM, maxDistanceKM)
	m["is_new_country"] = isNewCountry
	m["location_velocity"] = math.Min(locationVelocity, maxLocationVelocity)
	m["is_impossible_travel"] = isImpossible
}

func (e *Extractor) device(m Map, txn *models.Transaction, profile *models.UserProfile) {
	var isNewDevice float64 = 1
	if profile.KnowsDevice(txn.Device.Fingerprint) {
		isNewDevice = 0
	}

	deviceAgeDays := 0.0
	if isNewDevice == 0 {
		deviceAgeDays = knownDeviceAgeDays
	}

	deviceRisk := 0.2
	if txn.Device.Type == "mobile" {
		deviceRisk = 0.3
	}
	if isNewDevice == 1 {
		deviceRisk += 0.3
	}

	m["is_new_device"] = isNewDevice
	m["device_age_days"] = deviceAgeDays
	m["device_risk_score"] = deviceRisk
}

func (e *Extractor) merchant(ctx context.Context, m Map, txn *models.Transaction) {
	risk := e.lookup.MerchantRisk(ctx, txn.MerchantCategory)

	var isHighRisk float64
	if risk >= 0.5 {
		isHighRisk = 1
	}

	m["merchant_category_risk"] = risk
	m["is_high_risk_merchant"] = isHighRisk
}

func (e *Extractor) behavior(m Map, txn *models.Transaction, profile *models.UserProfile) {
	amount := txn.AmountFloat()

	tenure := math.Max(1, float64(profile.TotalTransactions))
	fraudHistory := clip(float64(profile.FraudCount)*0.2, 0, 1)

	avg := profile.AvgAmount
	if avg <= 0 {
		avg = 100
	}
	ratio := amount / avg

	anomaly := 0.0
	if ratio > 3 {
		anomaly += 0.3
	}
	if profile.TotalTransactions < 5 {
		anomaly += 0.2
	}
	anomaly += fraudHistory

	m["user_tenure_days"] = math.Min(tenure, 365)
	m["user_fraud_history"] = fraudHistory
	m["amount_vs_avg_ratio"] = clip(ratio, 0, 100)
	m["behavior_anomaly_score"] = math.Min(anomaly, 1)
}

// Haversine returns the great-circle distance in kilometers between two
// points, assuming a spherical Earth of radius 6371 km.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKM = 6371

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKM * c
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
