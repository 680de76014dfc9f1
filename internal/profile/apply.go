package profile

import (
	"math"

	"github.com/sentinelpay/sentinel/pkg/models"
)

// ApplyTransaction folds one transaction into a profile and its window.
// It is pure: callers pass the current state and receive the updated state,
// with persistence and locking left to the Store.
func ApplyTransaction(p *models.UserProfile, window []models.TransactionSummary, txn *models.Transaction) (*models.UserProfile, []models.TransactionSummary) {
	summary := models.TransactionSummary{
		Amount:            txn.AmountFloat(),
		Timestamp:         txn.Timestamp,
		Country:           txn.Location.Country,
		Latitude:          txn.Location.Latitude,
		Longitude:         txn.Location.Longitude,
		DeviceFingerprint: txn.Device.Fingerprint,
	}

	window = append(window, summary)
	if len(window) > WindowCap {
		window = window[len(window)-WindowCap:]
	}

	updated := *p
	updated.KnownCountries = append([]string(nil), p.KnownCountries...)
	updated.KnownDevices = append([]string(nil), p.KnownDevices...)
	updated.TypicalHours = append([]int(nil), p.TypicalHours...)

	updated.AvgAmount, updated.StdAmount = windowStats(window)
	updated.TotalTransactions = len(window)

	if txn.Location.Geotagged() {
		lat, lon := *txn.Location.Latitude, *txn.Location.Longitude
		updated.LastLatitude = &lat
		updated.LastLongitude = &lon
	}
	if fp := txn.Device.Fingerprint; fp != "" && !updated.KnowsDevice(fp) {
		updated.KnownDevices = append(updated.KnownDevices, fp)
	}
	if c := txn.Location.Country; c != "" && !updated.KnowsCountry(c) {
		updated.KnownCountries = append(updated.KnownCountries, c)
	}
	ts := txn.Timestamp
	updated.LastTransactionAt = &ts

	return &updated, window
}

// windowStats computes mean and population standard deviation over the
// window amounts. A single-entry window gets std = avg/2 so z-scores stay
// meaningful before enough history accumulates.
func windowStats(window []models.TransactionSummary) (avg, std float64) {
	if len(window) == 0 {
		return 0, 0
	}

	var sum float64
	for _, t := range window {
		sum += t.Amount
	}
	avg = sum / float64(len(window))

	if len(window) == 1 {
		return avg, avg * 0.5
	}

	var variance float64
	for _, t := range window {
		d := t.Amount - avg
		variance += d * d
	}
	std = math.Sqrt(variance / float64(len(window)))
	return avg, std
}
