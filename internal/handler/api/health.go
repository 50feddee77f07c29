package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	xhttp "MacroGate/pkg/http"

	"github.com/labstack/echo/v4"
)

// HealthCheck probes one backend.
type HealthCheck func(ctx context.Context) error

// ReadinessHandler reports whether every enabled backend answers.
type ReadinessHandler struct {
	checks  map[string]HealthCheck
	timeout time.Duration
}

func NewReadinessHandler(checks map[string]HealthCheck) *ReadinessHandler {
	return &ReadinessHandler{checks: checks, timeout: 2 * time.Second}
}

func (h *ReadinessHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/readyz", h.Ready)
}

type readiness struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *ReadinessHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	out := make([]readiness, 0, len(names))
	for _, name := range names {
		r := readiness{Name: name, Status: "ok"}
		if err := h.checks[name](ctx); err != nil {
			r.Status, r.Error = "down", err.Error()
			status = http.StatusServiceUnavailable
		}
		out = append(out, r)
	}
	return xhttp.DataResponse(c, status, out)
}
