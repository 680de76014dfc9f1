package risk

import (
	"context"

	"github.com/sentinelpay/sentinel/pkg/models"
)

// MultiSink fans alerts out to several sinks. Errors are joined so one
// failing sink never starves the others.
type MultiSink []AlertSink

// CombineSinks builds an AlertSink over the non-nil sinks. It returns nil
// when none remain so callers can skip publishing entirely.
func CombineSinks(sinks ...AlertSink) AlertSink {
	out := make(MultiSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			out = append(out, sink)
		}
	}
	if len(out) == 0 {
		return nil
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (m MultiSink) PublishAssessment(ctx context.Context, txn *models.Transaction, assessment *models.RiskAssessment) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.PublishAssessment(ctx, txn, assessment); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m MultiSink) PublishPattern(ctx context.Context, pattern *models.FraudPattern) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.PublishPattern(ctx, pattern); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
