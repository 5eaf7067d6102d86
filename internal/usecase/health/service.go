package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	index IndexChecker
	store StorePinger
}

// New creates a Service. store can be nil.
func New(index IndexChecker, store StorePinger) *Service {
	return &Service{index: index, store: store}
}

// Check runs health checks against all components.
// The index check only requires a reachable service; its status field is not inspected.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if _, err := s.index.InitInfo(ctx); err != nil {
		checks["index"] = CheckError
	} else {
		checks["index"] = CheckOK
	}

	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			checks["session_store"] = CheckError
		} else {
			checks["session_store"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}
