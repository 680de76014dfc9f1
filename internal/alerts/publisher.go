// Package alerts publishes high-severity scoring results and detected
// fraud patterns to Kafka for downstream case management.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sentinelpay/sentinel/pkg/models"
)

// Default topics.
const (
	TopicAssessments = "sentinel.alerts.assessments"
	TopicPatterns    = "sentinel.alerts.patterns"
)

// Publisher wraps a Kafka writer for the alert topics.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewPublisher creates a publisher against the given brokers.
func NewPublisher(brokers []string, logger *zap.Logger) *Publisher {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	})
	return &Publisher{writer: w, logger: logger}
}

type assessmentAlert struct {
	TransactionID     string    `json:"transaction_id"`
	UserID            string    `json:"user_id"`
	Amount            string    `json:"amount"`
	Currency          string    `json:"currency"`
	MerchantID        string    `json:"merchant_id"`
	Country           string    `json:"country"`
	RiskScore         int       `json:"risk_score"`
	RiskLevel         string    `json:"risk_level"`
	RecommendedAction string    `json:"recommended_action"`
	PublishedAt       time.Time `json:"published_at"`
}

// PublishAssessment emits a high-severity scoring result, keyed by user so
// one user's alerts stay ordered within a partition.
func (p *Publisher) PublishAssessment(ctx context.Context, txn *models.Transaction, assessment *models.RiskAssessment) error {
	payload, err := json.Marshal(assessmentAlert{
		TransactionID:     assessment.TransactionID,
		UserID:            txn.UserID,
		Amount:            txn.Amount.String(),
		Currency:          txn.Currency,
		MerchantID:        txn.MerchantID,
		Country:           txn.Location.Country,
		RiskScore:         assessment.RiskScore,
		RiskLevel:         assessment.RiskLevel.String(),
		RecommendedAction: string(assessment.RecommendedAction),
		PublishedAt:       time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode assessment alert: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: TopicAssessments,
		Key:   []byte(txn.UserID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("publish assessment alert for %s: %w", assessment.TransactionID, err)
	}
	p.logger.Debug("assessment alert published",
		zap.String("transaction_id", assessment.TransactionID),
		zap.String("risk_level", assessment.RiskLevel.String()))
	return nil
}

// PublishPattern emits a detected fraud pattern, keyed by pattern type.
func (p *Publisher) PublishPattern(ctx context.Context, pattern *models.FraudPattern) error {
	payload, err := json.Marshal(pattern)
	if err != nil {
		return fmt.Errorf("encode pattern alert: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: TopicPatterns,
		Key:   []byte(pattern.PatternType),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("publish pattern alert %s: %w", pattern.ID, err)
	}
	p.logger.Debug("pattern alert published",
		zap.String("pattern_id", pattern.ID),
		zap.String("pattern_type", pattern.PatternType))
	return nil
}

// Close shuts down the Kafka writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
