package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/creativia/api/internal/repositories"
	"github.com/creativia/api/internal/services"
)

type stubSystemService struct {
	reportFunc func(ctx context.Context) (services.HealthReport, error)
}

func (s *stubSystemService) HealthReport(ctx context.Context) (services.HealthReport, error) {
	if s.reportFunc == nil {
		return services.HealthReport{}, errors.New("unexpected HealthReport call")
	}
	return s.reportFunc(ctx)
}

func TestHealthzReportsUptime(t *testing.T) {
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	current := base
	handler := NewHealthHandlers(WithHealthClock(func() time.Time { return current }))
	current = base.Add(90 * time.Second)

	rr := httptest.NewRecorder()
	handler.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("expected ok status, got %#v", resp)
	}
	if resp["uptime"] != "1m30s" {
		t.Fatalf("expected uptime 1m30s, got %q", resp["uptime"])
	}
}

func TestReadyzHealthy(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	system := &stubSystemService{
		reportFunc: func(ctx context.Context) (services.HealthReport, error) {
			return services.HealthReport{
				Status: repositories.HealthOK,
				Checks: map[string]repositories.HealthCheck{
					"firestore": {Status: repositories.HealthOK, Latency: 12 * time.Millisecond},
				},
				GeneratedAt: now,
			}, nil
		},
	}

	handler := NewHealthHandlers(WithHealthSystemService(system))
	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp struct {
		Status string                    `json:"status"`
		Checks map[string]map[string]any `json:"checks"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("expected ok status, got %q", resp.Status)
	}
	if check, ok := resp.Checks["firestore"]; !ok || check["status"] != "ok" {
		t.Fatalf("expected firestore check, got %#v", resp.Checks)
	}
}

func TestReadyzUnavailableDependency(t *testing.T) {
	system := &stubSystemService{
		reportFunc: func(ctx context.Context) (services.HealthReport, error) {
			return services.HealthReport{
				Status: repositories.HealthUnavailable,
				Checks: map[string]repositories.HealthCheck{
					"firestore": {Status: repositories.HealthUnavailable, Message: "deadline exceeded"},
				},
			}, nil
		},
	}

	handler := NewHealthHandlers(WithHealthSystemService(system))
	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestReadyzReportError(t *testing.T) {
	system := &stubSystemService{
		reportFunc: func(ctx context.Context) (services.HealthReport, error) {
			return services.HealthReport{}, errors.New("probe failed")
		},
	}

	handler := NewHealthHandlers(WithHealthSystemService(system))
	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestReadyzWithoutSystemService(t *testing.T) {
	handler := NewHealthHandlers()
	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}
