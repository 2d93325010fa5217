package analytics

import (
	"context"
	"time"

	"github.com/admetrica/creativescope/internal/docstore"
	"github.com/admetrica/creativescope/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sink is the best-effort error log: failures from any analytics path are
// captured into the error_logs collection for later review. Log never
// returns an error; when the store itself is down the entry goes to the
// process logger only. No retry, no buffering.
type Sink struct {
	store   docstore.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewSink creates an error sink. metrics may be nil.
func NewSink(store docstore.Store, logger *zap.Logger, m *metrics.Metrics) *Sink {
	return &Sink{store: store, logger: logger, metrics: m}
}

// Log records one failure with the path it came from and optional extra
// fields (anonymous_id, date, ...).
func (s *Sink) Log(ctx context.Context, err error, path string, extra docstore.Document) {
	if err == nil {
		return
	}

	s.logger.Warn("analytics failure",
		zap.String("path", path),
		zap.Error(err),
	)
	if s.metrics != nil {
		s.metrics.AnalyticsFailures.WithLabelValues(path).Inc()
	}

	doc := docstore.Document{
		"context":    path,
		"error":      err.Error(),
		"created_at": time.Now().UTC(),
	}
	for k, v := range extra {
		doc[k] = v
	}
	if s.store != nil {
		if logErr := s.store.Create(ctx, CollErrorLogs, uuid.NewString(), doc); logErr != nil {
			s.logger.Warn("error log write failed", zap.Error(logErr))
		}
	}
}
