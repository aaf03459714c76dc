package handler_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/jmerrifield20/minipool/internal/handler"
	"github.com/jmerrifield20/minipool/internal/health"
	"go.uber.org/zap"
)

func TestHealth(t *testing.T) {
	failing := false
	checker := health.New(health.Config{}, zap.NewNop())
	checker.Add("reconcile", func(context.Context) error {
		if failing {
			return errors.New("custody short")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &testServer{router: handler.NewRouter(ctx, handler.RouterConfig{}, zap.NewNop(), handler.NewHealthHandler(checker))}

	checker.CheckAll(ctx)
	w := s.do(http.MethodGet, "/api/v1/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthy: expected 200, got %d: %s", w.Code, w.Body)
	}

	failing = true
	checker.CheckAll(ctx)
	w = s.do(http.MethodGet, "/api/v1/health", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded: expected 503, got %d", w.Code)
	}
	body := decode(t, w)
	if body["status"] != health.StatusDegraded {
		t.Errorf("status: %v", body["status"])
	}
	checks, _ := body["checks"].([]any)
	if len(checks) != 1 || checks[0].(map[string]any)["last_error"] != "custody short" {
		t.Errorf("checks: %v", body["checks"])
	}
}

func TestHealth_transitionsPublishGauge(t *testing.T) {
	failing := true
	checker := health.New(health.Config{}, zap.NewNop())
	checker.Add("journal-gauge", func(context.Context) error {
		if failing {
			return errors.New("chain broken")
		}
		return nil
	})
	checker.SetTransition(func(name, status string, _ error) {
		handler.SetCheckDegraded(name, status == health.StatusDegraded)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &testServer{router: handler.NewRouter(ctx, handler.RouterConfig{}, zap.NewNop())}

	checker.CheckAll(ctx)
	w := s.do(http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(w.Body.String(), `minipool_health_check_degraded{check="journal-gauge"} 1`) {
		t.Errorf("expected degraded gauge at 1:\n%s", w.Body)
	}

	failing = false
	checker.CheckAll(ctx)
	w = s.do(http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(w.Body.String(), `minipool_health_check_degraded{check="journal-gauge"} 0`) {
		t.Errorf("expected degraded gauge back at 0:\n%s", w.Body)
	}
}
