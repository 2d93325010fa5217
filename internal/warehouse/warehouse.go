// Package warehouse appends raw analysis events to ClickHouse for offline
// analysis. Writes are fire-and-forget: the rollups in the document store are
// the operational truth, the warehouse is for ad-hoc querying.
package warehouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/admetrica/creativescope/internal/models"
	"go.uber.org/zap"
)

// AnalysisEvent is one scored analysis, denormalized for the warehouse.
type AnalysisEvent struct {
	Timestamp        time.Time
	SessionID        string
	AnonymousID      string
	Fingerprint      string
	Objective        models.Objective
	Scores           models.ScoreSet
	ProcessingTimeMs int64
	Country          string
}

// Archiver writes analysis events to ClickHouse.
type Archiver struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewArchiver creates an archiver on an open ClickHouse connection.
func NewArchiver(conn driver.Conn, logger *zap.Logger) *Archiver {
	return &Archiver{conn: conn, logger: logger}
}

// EnsureSchema creates the events table when missing.
func (a *Archiver) EnsureSchema(ctx context.Context) error {
	return a.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_events (
			timestamp          DateTime64(3),
			session_id         String,
			anonymous_id       String,
			fingerprint        String,
			objective          LowCardinality(String),
			score_overall      Float64,
			score_clarity      Float64,
			score_design       Float64,
			score_affinity     Float64,
			processing_time_ms Int64,
			country            LowCardinality(String)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (timestamp, anonymous_id)
	`)
}

// Archive appends one event. Failures are logged and dropped; the caller's
// flow is never affected.
func (a *Archiver) Archive(ctx context.Context, ev *AnalysisEvent) {
	err := a.conn.AsyncInsert(ctx, `
		INSERT INTO analysis_events (
			timestamp, session_id, anonymous_id, fingerprint, objective,
			score_overall, score_clarity, score_design, score_affinity,
			processing_time_ms, country
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, false,
		ev.Timestamp, ev.SessionID, ev.AnonymousID, ev.Fingerprint, string(ev.Objective),
		ev.Scores.Overall, ev.Scores.Clarity, ev.Scores.Design, ev.Scores.AudienceAffinity,
		ev.ProcessingTimeMs, ev.Country,
	)
	if err != nil {
		a.logger.Warn("warehouse insert failed",
			zap.String("session_id", ev.SessionID),
			zap.Error(err),
		)
	}
}
