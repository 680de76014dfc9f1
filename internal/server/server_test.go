package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sentinelpay/sentinel/internal/attribution"
	"github.com/sentinelpay/sentinel/internal/config"
	"github.com/sentinelpay/sentinel/internal/explain"
	"github.com/sentinelpay/sentinel/internal/features"
	"github.com/sentinelpay/sentinel/internal/patterns"
	"github.com/sentinelpay/sentinel/internal/profile"
	"github.com/sentinelpay/sentinel/internal/risk"
	"github.com/sentinelpay/sentinel/internal/scoring"
	"github.com/sentinelpay/sentinel/pkg/models"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	model := scoring.NewFallbackModel()
	classifier, err := scoring.NewClassifier(scoring.DefaultThresholds())
	require.NoError(t, err)

	svc := risk.NewService(
		profile.NewMemoryStore(),
		features.NewExtractor(features.NewStaticLookup()),
		model,
		classifier,
		attribution.NewEngine(model, logger),
		explain.NewComposer(logger),
		patterns.NewDetector(patterns.Config{}, logger),
		nil,
		logger,
	)

	srv := NewServer(logger, svc, NewHub(logger), config.ServerConfig{CORSOrigins: []string{"*"}})
	return srv.Router()
}

func scorePayload(id, userID string) map[string]interface{} {
	return map[string]interface{}{
		"transaction_id": id,
		"user_id":        userID,
		"amount":         "125.50",
		"currency":       "USD",
		"merchant_id":    "merchant-1",
		"timestamp":      time.Date(2025, 5, 2, 14, 0, 0, 0, time.UTC).Format(time.RFC3339),
		"location":       map[string]interface{}{"country": "US"},
		"device":         map[string]interface{}{"fingerprint": "dev-1"},
	}
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.0.0-fallback", body["model_version"])
}

func TestScoreEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := postJSON(t, router, "/api/v1/transactions/score", scorePayload("txn-1", "user-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var assessment models.RiskAssessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assessment))
	assert.Equal(t, "txn-1", assessment.TransactionID)
	assert.GreaterOrEqual(t, assessment.RiskScore, 0)
	assert.LessOrEqual(t, assessment.RiskScore, 100)
	assert.NotEmpty(t, assessment.TopFactors)
}

func TestScoreEndpointRejectsMalformedJSON(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/score",
		bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScoreEndpointRejectsInvalidTransaction(t *testing.T) {
	router := newTestRouter(t)

	payload := scorePayload("txn-1", "")
	delete(payload, "user_id")
	rec := postJSON(t, router, "/api/v1/transactions/score", payload)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestExplainEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := postJSON(t, router, "/api/v1/transactions/score", scorePayload("txn-1", "user-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var assessment models.RiskAssessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assessment))

	rec = postJSON(t, router, "/api/v1/transactions/txn-1/explain", map[string]interface{}{
		"transaction": scorePayload("txn-1", "user-1"),
		"assessment":  assessment,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var explanation models.FullExplanation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &explanation))
	assert.Equal(t, "1.0.0-fallback", explanation.Technical.ModelVersion)
	assert.NotEmpty(t, explanation.Business.Summary)
	assert.NotEmpty(t, explanation.User.Headline)
}

func TestExplainEndpointIDMismatch(t *testing.T) {
	router := newTestRouter(t)

	rec := postJSON(t, router, "/api/v1/transactions/other-id/explain", map[string]interface{}{
		"transaction": scorePayload("txn-1", "user-1"),
		"assessment":  map[string]interface{}{"risk_score": 10, "risk_level": "low"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetectAndListPatterns(t *testing.T) {
	router := newTestRouter(t)

	var txns []map[string]interface{}
	assessments := map[string]interface{}{}
	for i := 1; i <= 3; i++ {
		payload := scorePayload(fmt.Sprintf("t%d", i), fmt.Sprintf("u%d", i))
		payload["device"] = map[string]interface{}{"fingerprint": "shared-device"}
		txns = append(txns, payload)
		assessments[fmt.Sprintf("t%d", i)] = map[string]interface{}{"risk_score": 85, "risk_level": "critical"}
	}

	rec := postJSON(t, router, "/api/v1/patterns/detect", map[string]interface{}{
		"transactions": txns,
		"assessments":  assessments,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var detectResp struct {
		Patterns []models.FraudPattern `json:"patterns"`
		Count    int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detectResp))
	require.Equal(t, 1, detectResp.Count)
	assert.Equal(t, "fraud_ring_device", detectResp.Patterns[0].PatternType)

	// listing returns the retained pattern
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patterns?type=fraud_ring_device", nil)
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, req)
	require.Equal(t, http.StatusOK, listRec.Code)

	var listResp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listResp))
	assert.Equal(t, 1, listResp.Count)

	// single pattern lookup
	req = httptest.NewRequest(http.MethodGet, "/api/v1/patterns/"+detectResp.Patterns[0].ID, nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, req)
	assert.Equal(t, http.StatusOK, getRec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/patterns/missing", nil)
	missRec := httptest.NewRecorder()
	router.ServeHTTP(missRec, req)
	assert.Equal(t, http.StatusNotFound, missRec.Code)
}

func TestListPatternsRejectsBadLimit(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patterns?limit=abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
