// Package risk orchestrates the per-transaction scoring pipeline and the
// batch pattern-detection entry point.
package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentinelpay/sentinel/internal/attribution"
	"github.com/sentinelpay/sentinel/internal/explain"
	"github.com/sentinelpay/sentinel/internal/features"
	"github.com/sentinelpay/sentinel/internal/patterns"
	"github.com/sentinelpay/sentinel/internal/profile"
	"github.com/sentinelpay/sentinel/internal/scoring"
	"github.com/sentinelpay/sentinel/pkg/metrics"
	"github.com/sentinelpay/sentinel/pkg/models"
)

// AlertSink receives high-severity scoring results and detected patterns.
// Publishing is best-effort on the scoring path.
type AlertSink interface {
	PublishAssessment(ctx context.Context, txn *models.Transaction, assessment *models.RiskAssessment) error
	PublishPattern(ctx context.Context, pattern *models.FraudPattern) error
}

// Service wires the scoring pipeline: profile lookup, feature extraction,
// model prediction, classification, attribution and explanation.
type Service struct {
	profiles   profile.Store
	extractor  *features.Extractor
	model      scoring.Model
	classifier *scoring.Classifier
	attributor attribution.Engine
	composer   *explain.Composer
	detector   *patterns.Detector
	alerts     AlertSink
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewService assembles the scoring service. alerts may be nil when no sink
// is configured.
func NewService(
	profiles profile.Store,
	extractor *features.Extractor,
	model scoring.Model,
	classifier *scoring.Classifier,
	attributor attribution.Engine,
	composer *explain.Composer,
	detector *patterns.Detector,
	alerts AlertSink,
	logger *zap.Logger,
) *Service {
	return &Service{
		profiles:   profiles,
		extractor:  extractor,
		model:      model,
		classifier: classifier,
		attributor: attributor,
		composer:   composer,
		detector:   detector,
		alerts:     alerts,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Assess scores a transaction against the current profile snapshot without
// updating it. Two calls on the same snapshot yield the same assessment.
func (s *Service) Assess(ctx context.Context, txn *models.Transaction) (*models.RiskAssessment, error) {
	start := time.Now()

	if err := s.prepare(txn); err != nil {
		return nil, err
	}

	userProfile, err := s.profiles.Get(ctx, txn.UserID)
	if err != nil {
		return nil, fmt.Errorf("load profile for %s: %w", txn.UserID, err)
	}
	window, err := s.profiles.Window(ctx, txn.UserID)
	if err != nil {
		return nil, fmt.Errorf("load window for %s: %w", txn.UserID, err)
	}

	featureMap := s.extractor.Extract(ctx, txn, userProfile, window)
	vector := featureMap.Vector()

	probability := s.model.Predict(vector)
	classification, err := s.classifier.Classify(probability)
	if err != nil {
		// Contract violation; surfaced, never clamped away.
		return nil, fmt.Errorf("classify transaction %s: %w", txn.ID, err)
	}

	contributions := s.attributor.Attribute(vector, classification.RiskScore)
	topFactors := attribution.TopFactors(contributions, featureMap, attribution.DefaultTopFactors)

	elapsed := time.Since(start)
	metrics.ScoringLatency.Observe(elapsed.Seconds())

	return &models.RiskAssessment{
		TransactionID:     txn.ID,
		RiskScore:         classification.RiskScore,
		RiskLevel:         classification.RiskLevel,
		Confidence:        classification.Confidence,
		RecommendedAction: classification.RecommendedAction,
		ProcessingTimeMS:  float64(elapsed.Microseconds()) / 1000,
		TopFactors:        topFactors,
	}, nil
}

// Score assesses the transaction, then folds it into the user's profile
// and publishes alerts. The update and publish steps are best-effort: their
// failure is logged and never invalidates the returned assessment.
func (s *Service) Score(ctx context.Context, txn *models.Transaction) (*models.RiskAssessment, error) {
	assessment, err := s.Assess(ctx, txn)
	if err != nil {
		return nil, err
	}
	metrics.TransactionsScored.WithLabelValues(assessment.RiskLevel.String()).Inc()

	if err := s.profiles.Apply(ctx, txn); err != nil {
		metrics.ProfileUpdateFailures.Inc()
		s.logger.Error("profile update failed after scoring",
			zap.String("transaction_id", txn.ID),
			zap.String("user_id", txn.UserID),
			zap.Error(err))
	}

	if s.alerts != nil && assessment.RiskLevel >= models.RiskLevelHigh {
		if err := s.alerts.PublishAssessment(ctx, txn, assessment); err != nil {
			s.logger.Error("alert publish failed",
				zap.String("transaction_id", txn.ID),
				zap.Error(err))
		}
	}

	s.logger.Info("transaction scored",
		zap.String("transaction_id", txn.ID),
		zap.String("user_id", txn.UserID),
		zap.Int("risk_score", assessment.RiskScore),
		zap.String("risk_level", assessment.RiskLevel.String()),
		zap.String("action", string(assessment.RecommendedAction)))
	return assessment, nil
}

// Explain recomputes features and attribution for the transaction and
// composes the three narrative tiers around an existing assessment.
func (s *Service) Explain(ctx context.Context, txn *models.Transaction, assessment *models.RiskAssessment) (*models.FullExplanation, error) {
	if err := s.prepare(txn); err != nil {
		return nil, err
	}

	userProfile, err := s.profiles.Get(ctx, txn.UserID)
	if err != nil {
		return nil, fmt.Errorf("load profile for %s: %w", txn.UserID, err)
	}
	window, err := s.profiles.Window(ctx, txn.UserID)
	if err != nil {
		return nil, fmt.Errorf("load window for %s: %w", txn.UserID, err)
	}

	featureMap := s.extractor.Extract(ctx, txn, userProfile, window)
	contributions := s.attributor.Attribute(featureMap.Vector(), assessment.RiskScore)

	return s.composer.Compose(explain.Input{
		Assessment:    assessment,
		Transaction:   txn,
		Features:      featureMap,
		Contributions: contributions,
		ModelVersion:  s.model.Version(),
		BaseRisk:      s.model.ExpectedValue(),
		Approximate:   s.attributor.Approximate(),
	}), nil
}

// DetectPatterns runs batch pattern detection and publishes each finding.
func (s *Service) DetectPatterns(ctx context.Context, txns []*models.Transaction, assessments map[string]models.AssessmentSummary) []models.FraudPattern {
	found := s.detector.Detect(txns, assessments)

	if s.alerts != nil {
		for i := range found {
			if err := s.alerts.PublishPattern(ctx, &found[i]); err != nil {
				s.logger.Error("pattern publish failed",
					zap.String("pattern_id", found[i].ID),
					zap.Error(err))
			}
		}
	}
	return found
}

// Patterns lists retained patterns, optionally filtered by type.
func (s *Service) Patterns(patternType string, limit int) []models.FraudPattern {
	return s.detector.Patterns(patternType, limit)
}

// Pattern returns one retained pattern by id.
func (s *Service) Pattern(id string) (models.FraudPattern, bool) {
	return s.detector.Pattern(id)
}

// ModelVersion reports the active model's version string.
func (s *Service) ModelVersion() string { return s.model.Version() }

// prepare validates the transaction at the boundary and fills defaulted
// fields. The transaction is treated as immutable afterwards.
func (s *Service) prepare(txn *models.Transaction) error {
	if txn == nil {
		return fmt.Errorf("transaction is nil")
	}
	if txn.ID == "" {
		txn.ID = "txn_" + uuid.NewString()
	}
	if txn.Timestamp.IsZero() {
		txn.Timestamp = time.Now().UTC()
	}
	if err := s.validate.Struct(txn); err != nil {
		return fmt.Errorf("invalid transaction %s: %w", txn.ID, err)
	}
	return nil
}
