// Package health reports whether the process and its dependencies are usable.
package health

import (
	"context"
	"database/sql"
	"time"
)

const pingTimeout = 2 * time.Second

// BreakerReporter is implemented by clients guarded by a circuit breaker.
type BreakerReporter interface {
	BreakerState() string
}

// Service encapsulates health-related checks.
type Service struct {
	DB       *sql.DB
	Breakers map[string]BreakerReporter
}

// NewService constructs a health service. db may be nil for in-memory setups.
func NewService(db *sql.DB, breakers map[string]BreakerReporter) *Service {
	return &Service{DB: db, Breakers: breakers}
}

// Report is the health payload. OK is false only when the database is unreachable;
// an open breaker degrades ingestion but not the API.
type Report struct {
	OK       bool              `json:"ok"`
	Database string            `json:"database"`
	Breakers map[string]string `json:"breakers,omitempty"`
}

// Status runs the checks.
func (s *Service) Status(ctx context.Context) Report {
	report := Report{OK: true, Database: "memory"}
	if s.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := s.DB.PingContext(pingCtx); err != nil {
			report.OK = false
			report.Database = "unreachable"
		} else {
			report.Database = "ok"
		}
	}
	if len(s.Breakers) > 0 {
		report.Breakers = make(map[string]string, len(s.Breakers))
		for name, b := range s.Breakers {
			report.Breakers[name] = b.BreakerState()
		}
	}
	return report
}
