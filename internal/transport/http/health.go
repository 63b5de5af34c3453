package http

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/fedutinova/pagegen/internal/storage"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string           `json:"status"`
	Service   string           `json:"service"`
	Timestamp string           `json:"timestamp"`
	Version   string           `json:"version,omitempty"`
	Checks    map[string]Check `json:"checks,omitempty"`
	System    *SystemInfo      `json:"system,omitempty"`
}

// Check represents a single health check result
type Check struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// SystemInfo contains system information
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_mb"`
}

const (
	StatusOK        = "ok"
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// Health is the liveness probe. It never touches dependencies.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{
		Status:    StatusOK,
		Service:   ServiceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.Version,
	})
}

// Ready performs full readiness check including dependencies
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	overallStatus := StatusHealthy

	modelCheck := h.checkModel(ctx)
	checks["model"] = modelCheck
	if modelCheck.Status != StatusHealthy {
		overallStatus = StatusUnhealthy
	}

	checks["registry"] = h.checkRegistry()

	storageCheck := h.checkStorage()
	checks["storage"] = storageCheck
	if storageCheck.Status != StatusHealthy && overallStatus == StatusHealthy {
		overallStatus = StatusDegraded
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	sysInfo := &SystemInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc / 1024 / 1024,
	}

	status := HealthStatus{
		Status:    overallStatus,
		Service:   ServiceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.Version,
		Checks:    checks,
		System:    sysInfo,
	}

	code := http.StatusOK
	if overallStatus == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// checkModel pings the model backend when the client supports it.
func (h *Handlers) checkModel(ctx context.Context) Check {
	if h.Model == nil {
		return Check{Status: StatusHealthy, Message: "no ping available for " + h.Config.LLMProvider}
	}

	start := time.Now()
	err := h.Model.Ping(ctx)
	duration := time.Since(start)

	if err != nil {
		return Check{
			Status:   StatusUnhealthy,
			Message:  err.Error(),
			Duration: duration.String(),
		}
	}

	return Check{
		Status:   StatusHealthy,
		Message:  h.Config.LLMProvider + " reachable",
		Duration: duration.String(),
	}
}

func (h *Handlers) checkRegistry() Check {
	return Check{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("registry operational (live jobs: %d)", h.Store.Len()),
	}
}

// checkStorage reports whether the configured artifact sink is wired.
func (h *Handlers) checkStorage() Check {
	kind := storage.GetStorageType(h.Config)
	if kind == "disabled" {
		return Check{Status: StatusHealthy, Message: "artifact storage disabled"}
	}
	if h.Storage == nil {
		return Check{Status: StatusDegraded, Message: kind + " storage configured but not initialized"}
	}
	return Check{Status: StatusHealthy, Message: kind + " storage configured"}
}
