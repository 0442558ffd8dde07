package services

import (
	"context"
	"testing"

	"github.com/creativia/api/internal/repositories"
)

type stubHealthRepository struct {
	report repositories.HealthReport
	err    error
}

func (r *stubHealthRepository) Collect(ctx context.Context) (repositories.HealthReport, error) {
	return r.report, r.err
}

func TestHealthReportDerivesOverallStatus(t *testing.T) {
	repo := &stubHealthRepository{report: repositories.HealthReport{
		Checks: map[string]repositories.HealthCheck{
			"firestore": {Status: repositories.HealthOK},
			"stripe":    {Status: repositories.HealthDegraded},
		},
	}}
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: repo, Clock: fixedClock(1700000000)})
	if err != nil {
		t.Fatalf("new system service: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("health report: %v", err)
	}
	if report.Status != repositories.HealthDegraded {
		t.Fatalf("expected degraded status, got %q", report.Status)
	}
	if report.GeneratedAt.IsZero() {
		t.Fatalf("expected generated timestamp to be filled")
	}
}

func TestHealthReportUnavailableDominates(t *testing.T) {
	repo := &stubHealthRepository{report: repositories.HealthReport{
		Checks: map[string]repositories.HealthCheck{
			"firestore": {Status: repositories.HealthUnavailable},
			"stripe":    {Status: repositories.HealthOK},
		},
	}}
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: repo})
	if err != nil {
		t.Fatalf("new system service: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("health report: %v", err)
	}
	if report.Status != repositories.HealthUnavailable {
		t.Fatalf("expected unavailable status, got %q", report.Status)
	}
}
