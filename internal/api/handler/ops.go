// Package handler provides HTTP handlers for the Trajet API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/trajet/trajet/internal/api/models"
	"github.com/trajet/trajet/internal/api/response"
	"github.com/trajet/trajet/internal/provider/resilience"
	"github.com/trajet/trajet/internal/routing"
)

// readinessTimeout bounds dependency checks on the readiness probe.
const readinessTimeout = 2 * time.Second

// Pinger is implemented by dependencies that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheReporter exposes route cache usage.
type CacheReporter interface {
	CacheStats() routing.CacheStats
}

// OpsConfig holds the OpsHandler dependencies. All fields except the
// version strings are optional.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Store is the session store backend. A nil Store is reported as always up.
	Store Pinger

	Registry *resilience.Registry
	Cache    CacheReporter

	// Now returns the current time (optional, defaults to time.Now).
	Now func() time.Time
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	store     Pinger
	registry  *resilience.Registry
	cache     CacheReporter
	now       func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		store:     cfg.Store,
		registry:  cfg.Registry,
		cache:     cfg.Cache,
		now:       now,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
// The service is ready once the session store answers.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	store := h.storeStatus(r.Context())
	health := models.Health{
		Status: store.Status,
		Time:   models.Timestamp(h.now()),
	}
	if store.Detail != nil {
		health.Details = map[string]interface{}{"sessionStore": *store.Detail}
	}

	status := http.StatusOK
	if store.Status == models.HealthStatusFail {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.now()),
		Subsystems: []models.SubsystemStatus{h.storeStatus(r.Context())},
		Providers:  h.providerStatuses(),
	}

	if h.cache != nil {
		stats := h.cache.CacheStats()
		status.RouteCache = &models.CacheStatus{Entries: stats.TotalEntries, Fresh: stats.FreshEntries}
	}

	for _, s := range status.Subsystems {
		status.Status = worst(status.Status, s.Status)
	}
	for _, p := range status.Providers {
		status.Status = worst(status.Status, p.Status)
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) storeStatus(ctx context.Context) models.SubsystemStatus {
	s := models.SubsystemStatus{Name: "session-store", Status: models.HealthStatusOK}

	if h.store == nil {
		return s
	}

	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		msg := err.Error()
		s.Status = models.HealthStatusFail
		s.Detail = &msg
	}
	return s
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}

	all := h.registry.GetAllHealth()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, ph := range all {
		ps := models.ProviderStatus{
			Provider:     ph.Name,
			Status:       models.HealthStatus(ph.Level()),
			CircuitState: ph.CircuitState.String(),
			Requests:     ph.Counts.Requests,
			Failures:     ph.Counts.TotalFailures,
		}
		if ph.LastSuccessAt != nil {
			ts := models.Timestamp(*ph.LastSuccessAt)
			ps.LastSuccessAt = &ts
		}
		if ph.LastFailureAt != nil {
			ts := models.Timestamp(*ph.LastFailureAt)
			ps.LastFailureAt = &ts
		}
		if ph.LastError != "" {
			msg := ph.LastError
			ps.Message = &msg
		}
		out = append(out, ps)
	}
	return out
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	rank := map[models.HealthStatus]int{
		models.HealthStatusOK:       0,
		models.HealthStatusDegraded: 1,
		models.HealthStatusFail:     2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
