// Package health aggregates component checks for the health and readiness endpoints.
package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "healthy"
	// Degraded indicates at least one component is failing.
	Degraded Status = "degraded"
)

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// ModelChecker reports whether a classifier is loaded.
type ModelChecker interface {
	Ready() bool
}

// Report is the outcome of one Check.
type Report struct {
	Status            Status `json:"status"`
	ModelTrained      bool   `json:"model_trained"`
	DatabaseConnected bool   `json:"database_connected"`
	// DatabaseError is for the server log only.
	DatabaseError string `json:"-"`
}

// Service coordinates health checks.
type Service struct {
	db    DBPinger
	model ModelChecker
}

// New creates a Service. Either dependency may be nil, which counts as failing.
func New(db DBPinger, model ModelChecker) *Service {
	return &Service{db: db, model: model}
}

// Check runs every component check.
func (s *Service) Check(ctx context.Context) Report {
	var r Report

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			r.DatabaseError = err.Error()
		} else {
			r.DatabaseConnected = true
		}
	}
	r.ModelTrained = s.model != nil && s.model.Ready()

	r.Status = Healthy
	if !r.DatabaseConnected || !r.ModelTrained {
		r.Status = Degraded
	}
	return r
}
