package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sentinelpay/sentinel/pkg/models"
)

// handleScore scores one transaction and returns the assessment.
func (s *Server) handleScore(c *gin.Context) {
	var txn models.Transaction
	if err := c.ShouldBindJSON(&txn); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction payload: " + err.Error()})
		return
	}

	assessment, err := s.svc.Score(c.Request.Context(), &txn)
	if err != nil {
		s.logger.Warn("score request rejected", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, assessment)
}

type explainRequest struct {
	Transaction models.Transaction    `json:"transaction"`
	Assessment  models.RiskAssessment `json:"assessment"`
}

// handleExplain recomputes features for a previously scored transaction
// and returns the three explanation tiers.
func (s *Server) handleExplain(c *gin.Context) {
	var req explainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid explain payload: " + err.Error()})
		return
	}
	if id := c.Param("id"); id != "" {
		if req.Transaction.ID != "" && req.Transaction.ID != id {
			c.JSON(http.StatusBadRequest, gin.H{"error": "transaction id mismatch between path and body"})
			return
		}
		req.Transaction.ID = id
		req.Assessment.TransactionID = id
	}

	explanation, err := s.svc.Explain(c.Request.Context(), &req.Transaction, &req.Assessment)
	if err != nil {
		s.logger.Warn("explain request rejected", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, explanation)
}

type detectRequest struct {
	Transactions []*models.Transaction                `json:"transactions"`
	Assessments  map[string]models.AssessmentSummary  `json:"assessments"`
}

// handleDetectPatterns runs batch pattern detection over the posted batch.
func (s *Server) handleDetectPatterns(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid detect payload: " + err.Error()})
		return
	}

	found := s.svc.DetectPatterns(c.Request.Context(), req.Transactions, req.Assessments)
	c.JSON(http.StatusOK, gin.H{
		"patterns": found,
		"count":    len(found),
	})
}

// handleListPatterns lists retained patterns, optionally filtered by type.
func (s *Server) handleListPatterns(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	found := s.svc.Patterns(c.Query("type"), limit)
	c.JSON(http.StatusOK, gin.H{
		"patterns": found,
		"count":    len(found),
	})
}

// handleGetPattern returns one retained pattern by id.
func (s *Server) handleGetPattern(c *gin.Context) {
	pattern, ok := s.svc.Pattern(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "pattern not found"})
		return
	}
	c.JSON(http.StatusOK, pattern)
}
