package patterns

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sentinelpay/sentinel/pkg/models"
)

var batchStart = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func batchTxn(id, userID string, opts ...func(*models.Transaction)) *models.Transaction {
	txn := &models.Transaction{
		ID:         id,
		UserID:     userID,
		Amount:     decimal.NewFromFloat(250),
		Currency:   "USD",
		MerchantID: "merchant-1",
		Timestamp:  batchStart,
		Location:   models.Location{Country: "US"},
		Device:     models.Device{Fingerprint: "device-" + userID},
	}
	for _, opt := range opts {
		opt(txn)
	}
	return txn
}

func withDevice(fp string) func(*models.Transaction) {
	return func(t *models.Transaction) { t.Device.Fingerprint = fp }
}

func withMerchant(id string) func(*models.Transaction) {
	return func(t *models.Transaction) { t.MerchantID = id }
}

func withCategory(c string) func(*models.Transaction) {
	return func(t *models.Transaction) { t.MerchantCategory = c }
}

func withTime(ts time.Time) func(*models.Transaction) {
	return func(t *models.Transaction) { t.Timestamp = ts }
}

func withCoords(lat, lon float64) func(*models.Transaction) {
	return func(t *models.Transaction) {
		t.Location.Latitude = &lat
		t.Location.Longitude = &lon
	}
}

func highRisk(ids ...string) map[string]models.AssessmentSummary {
	out := make(map[string]models.AssessmentSummary, len(ids))
	for _, id := range ids {
		out[id] = models.AssessmentSummary{RiskScore: 75, RiskLevel: models.RiskLevelHigh}
	}
	return out
}

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	return NewDetector(Config{}, zap.NewNop())
}

func TestDetectEmptyBatch(t *testing.T) {
	d := newTestDetector(t)

	assert.Empty(t, d.Detect(nil, nil))
	assert.Empty(t, d.Detect([]*models.Transaction{batchTxn("t1", "u1")}, nil))
}

func TestDetectDeviceFraudRing(t *testing.T) {
	d := newTestDetector(t)

	txns := []*models.Transaction{
		batchTxn("t1", "u1", withDevice("shared-device")),
		batchTxn("t2", "u2", withDevice("shared-device")),
		batchTxn("t3", "u3", withDevice("shared-device")),
	}
	patterns := d.Detect(txns, highRisk("t1", "t2", "t3"))

	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, TypeFraudRingDevice, p.PatternType)
	assert.InDelta(t, 0.5, p.Confidence, 1e-9)
	assert.LessOrEqual(t, p.Confidence, 0.9)
	assert.ElementsMatch(t, []string{"t1", "t2", "t3"}, p.AffectedTransactions)
	assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, p.AffectedUsers)
	assert.Equal(t, 3, p.Metadata["user_count"])
}

func TestDeviceRingConfidenceCapped(t *testing.T) {
	d := newTestDetector(t)

	var txns []*models.Transaction
	var ids []string
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("t%d", i)
		txns = append(txns, batchTxn(id, fmt.Sprintf("u%d", i), withDevice("shared")))
		ids = append(ids, id)
	}
	patterns := d.Detect(txns, highRisk(ids...))

	require.Len(t, patterns, 1)
	assert.InDelta(t, 0.9, patterns[0].Confidence, 1e-9)
}

func TestDeviceRingIgnoresLowRiskTransactions(t *testing.T) {
	d := newTestDetector(t)

	txns := []*models.Transaction{
		batchTxn("t1", "u1", withDevice("shared-device")),
		batchTxn("t2", "u2", withDevice("shared-device")),
		batchTxn("t3", "u3", withDevice("shared-device")),
	}
	// only two of the three are high-risk
	assessments := highRisk("t1", "t2")
	assessments["t3"] = models.AssessmentSummary{RiskScore: 20, RiskLevel: models.RiskLevelLow}

	assert.Empty(t, d.Detect(txns, assessments))
}

func TestDetectMerchantFraudRing(t *testing.T) {
	d := newTestDetector(t)

	var txns []*models.Transaction
	var ids []string
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("t%d", i)
		txns = append(txns, batchTxn(id, fmt.Sprintf("u%d", i), withMerchant("merchant-x")))
		ids = append(ids, id)
	}
	patterns := d.Detect(txns, highRisk(ids...))

	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, TypeFraudRingMerchant, p.PatternType)
	assert.InDelta(t, 0.45, p.Confidence, 1e-9)
	assert.Equal(t, "merchant-x", p.Metadata["merchant_id"])
}

func TestDetectVelocityBurst(t *testing.T) {
	d := newTestDetector(t)

	var txns []*models.Transaction
	var ids []string
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("t%d", i)
		txns = append(txns, batchTxn(id, "u1",
			withTime(batchStart.Add(time.Duration(i*10)*time.Minute)),
			withDevice(fmt.Sprintf("d%d", i))))
		ids = append(ids, id)
	}
	patterns := d.Detect(txns, highRisk(ids[0], ids[1], ids[2]))

	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, TypeVelocityBurst, p.PatternType)
	assert.InDelta(t, 0.75, p.Confidence, 1e-9)
	assert.Len(t, p.AffectedTransactions, 5)
	assert.Equal(t, []string{"u1"}, p.AffectedUsers)
}

func TestVelocityBurstOnePatternPerUser(t *testing.T) {
	d := newTestDetector(t)

	// ten rapid high-risk transactions admit multiple qualifying windows
	var txns []*models.Transaction
	var ids []string
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("t%d", i)
		txns = append(txns, batchTxn(id, "u1",
			withTime(batchStart.Add(time.Duration(i)*time.Minute)),
			withDevice(fmt.Sprintf("d%d", i))))
		ids = append(ids, id)
	}
	patterns := d.Detect(txns, highRisk(ids...))

	bursts := 0
	for _, p := range patterns {
		if p.PatternType == TypeVelocityBurst {
			bursts++
		}
	}
	assert.Equal(t, 1, bursts)
}

func TestVelocityBurstRequiresTightWindow(t *testing.T) {
	d := newTestDetector(t)

	var txns []*models.Transaction
	var ids []string
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("t%d", i)
		txns = append(txns, batchTxn(id, "u1",
			withTime(batchStart.Add(time.Duration(i)*time.Hour)),
			withDevice(fmt.Sprintf("d%d", i))))
		ids = append(ids, id)
	}
	assert.Empty(t, d.Detect(txns, highRisk(ids...)))
}

func TestDetectImpossibleTravel(t *testing.T) {
	d := newTestDetector(t)

	// New York to Tokyo in 30 minutes
	txns := []*models.Transaction{
		batchTxn("t1", "u1", withCoords(40.7128, -74.0060), withTime(batchStart)),
		batchTxn("t2", "u1", withCoords(35.6762, 139.6503), withTime(batchStart.Add(30*time.Minute)),
			withDevice("other")),
	}
	patterns := d.Detect(txns, nil)

	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, TypeImpossibleTravel, p.PatternType)
	assert.InDelta(t, 0.9, p.Confidence, 1e-9)
	assert.Equal(t, []string{"t1", "t2"}, p.AffectedTransactions)
	assert.Greater(t, p.Metadata["distance_km"].(float64), 1000.0)
}

func TestImpossibleTravelRequiresGeotags(t *testing.T) {
	d := newTestDetector(t)

	txns := []*models.Transaction{
		batchTxn("t1", "u1", withTime(batchStart)),
		batchTxn("t2", "u1", withTime(batchStart.Add(30*time.Minute))),
	}
	assert.Empty(t, d.Detect(txns, nil))
}

func TestImpossibleTravelIgnoresSlowTravel(t *testing.T) {
	d := newTestDetector(t)

	txns := []*models.Transaction{
		batchTxn("t1", "u1", withCoords(40.7128, -74.0060), withTime(batchStart)),
		batchTxn("t2", "u1", withCoords(35.6762, 139.6503), withTime(batchStart.Add(20*time.Hour))),
	}
	assert.Empty(t, d.Detect(txns, nil))
}

func TestDetectMerchantCluster(t *testing.T) {
	d := newTestDetector(t)

	var txns []*models.Transaction
	var ids []string
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("t%d", i)
		txns = append(txns, batchTxn(id, fmt.Sprintf("u%d", i%3),
			withCategory("gambling"),
			withDevice(fmt.Sprintf("d%d", i)),
			withMerchant(fmt.Sprintf("m%d", i)),
			withTime(batchStart.Add(time.Duration(i)*time.Hour))))
		ids = append(ids, id)
	}
	patterns := d.Detect(txns, highRisk(ids...))

	var cluster *models.FraudPattern
	for i := range patterns {
		if patterns[i].PatternType == TypeMerchantCluster {
			cluster = &patterns[i]
		}
	}
	require.NotNil(t, cluster)
	assert.InDelta(t, 0.7, cluster.Confidence, 1e-9)
	assert.Equal(t, "gambling", cluster.Metadata["merchant_category"])
	assert.Len(t, cluster.AffectedTransactions, 10)
	assert.Len(t, cluster.AffectedUsers, 3)
}

func TestPatternIDsUnique(t *testing.T) {
	d := newTestDetector(t)

	txns := []*models.Transaction{
		batchTxn("t1", "u1", withDevice("shared")),
		batchTxn("t2", "u2", withDevice("shared")),
		batchTxn("t3", "u3", withDevice("shared")),
		batchTxn("t4", "u1", withCoords(40.7128, -74.0060), withTime(batchStart)),
		batchTxn("t5", "u1", withCoords(35.6762, 139.6503), withTime(batchStart.Add(30*time.Minute))),
	}
	patterns := d.Detect(txns, highRisk("t1", "t2", "t3"))
	require.GreaterOrEqual(t, len(patterns), 2)

	seen := make(map[string]bool)
	for _, p := range patterns {
		assert.False(t, seen[p.ID], "duplicate pattern id %s", p.ID)
		seen[p.ID] = true
	}
}

func TestPatternHistoryAndLookup(t *testing.T) {
	d := newTestDetector(t)

	txns := []*models.Transaction{
		batchTxn("t1", "u1", withDevice("shared")),
		batchTxn("t2", "u2", withDevice("shared")),
		batchTxn("t3", "u3", withDevice("shared")),
	}
	patterns := d.Detect(txns, highRisk("t1", "t2", "t3"))
	require.Len(t, patterns, 1)

	got, ok := d.Pattern(patterns[0].ID)
	require.True(t, ok)
	assert.Equal(t, patterns[0].ID, got.ID)

	listed := d.Patterns("", 10)
	require.Len(t, listed, 1)

	assert.Empty(t, d.Patterns(TypeVelocityBurst, 10))
	assert.Len(t, d.Patterns(TypeFraudRingDevice, 10), 1)
}

func TestPatternHistoryEviction(t *testing.T) {
	d := newTestDetector(t)

	txns := []*models.Transaction{
		batchTxn("t1", "u1", withDevice("shared")),
		batchTxn("t2", "u2", withDevice("shared")),
		batchTxn("t3", "u3", withDevice("shared")),
	}
	assessments := highRisk("t1", "t2", "t3")

	var firstID string
	for i := 0; i < historyCap+20; i++ {
		patterns := d.Detect(txns, assessments)
		require.Len(t, patterns, 1)
		if i == 0 {
			firstID = patterns[0].ID
		}
	}

	assert.Len(t, d.Patterns("", historyCap+100), historyCap)
	_, ok := d.Pattern(firstID)
	assert.False(t, ok, "evicted pattern no longer retrievable")
}

func TestDetectBoundsBatchSize(t *testing.T) {
	d := NewDetector(Config{MaxBatch: 3}, zap.NewNop())

	txns := []*models.Transaction{
		batchTxn("t1", "u1", withDevice("shared")),
		batchTxn("t2", "u2", withDevice("shared")),
		batchTxn("t3", "u3", withDevice("shared")),
		// beyond the cap, would otherwise strengthen the ring
		batchTxn("t4", "u4", withDevice("shared")),
	}
	patterns := d.Detect(txns, highRisk("t1", "t2", "t3", "t4"))

	require.Len(t, patterns, 1)
	assert.Len(t, patterns[0].AffectedTransactions, 3)
}
