package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/vigil/internal/database"
	"github.com/aristath/vigil/internal/reliability"
	"github.com/aristath/vigil/internal/scheduler"
)

// HoldingCounter reports how many holdings the portfolio has.
// Implemented by the portfolio module's repository.
type HoldingCounter interface {
	Count() (int, error)
}

// TrackedSymbolSource reports which symbols have stored price history.
// Implemented by the market data history repository.
type TrackedSymbolSource interface {
	Symbols() ([]string, error)
}

// SystemHandlers serves status, resource and maintenance endpoints
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	databases map[string]*database.DB
	holdings  HoldingCounter
	tracked   TrackedSymbolSource
	backups   *reliability.R2BackupService // nil when backups are not configured
	startTime time.Time

	mu   sync.RWMutex
	jobs map[string]scheduler.Job
}

// NewSystemHandlers creates new system handlers
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	databases map[string]*database.DB,
	holdings HoldingCounter,
	tracked TrackedSymbolSource,
	backups *reliability.R2BackupService,
) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		dataDir:   dataDir,
		databases: databases,
		holdings:  holdings,
		tracked:   tracked,
		backups:   backups,
		startTime: time.Now(),
		jobs:      make(map[string]scheduler.Job),
	}
}

// SetJobs registers jobs for manual triggering via the API
func (h *SystemHandlers) SetJobs(jobs ...scheduler.Job) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, job := range jobs {
		h.jobs[job.Name()] = job
	}
}

// RegisterRoutes registers the system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleStatus)
		r.Get("/resources", h.HandleResources)
		r.Get("/database/stats", h.HandleDatabaseStats)
		r.Get("/database/health", h.HandleDatabaseHealth)
		r.Get("/disk", h.HandleDiskUsage)
		r.Get("/jobs", h.HandleJobsStatus)
		r.Post("/jobs/{name}/run", h.HandleTriggerJob)
		r.Get("/backups", h.HandleListBackups)
	})
}

// HandleStatus handles GET /api/system/status
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	holdingsCount := 0
	if h.holdings != nil {
		if n, err := h.holdings.Count(); err == nil {
			holdingsCount = n
		} else {
			h.log.Warn().Err(err).Msg("Failed to count holdings for status")
		}
	}

	trackedCount := 0
	if h.tracked != nil {
		if symbols, err := h.tracked.Symbols(); err == nil {
			trackedCount = len(symbols)
		} else {
			h.log.Warn().Err(err).Msg("Failed to list tracked symbols for status")
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":         "vigil",
		"uptime_seconds":  int64(time.Since(h.startTime).Seconds()),
		"holdings":        holdingsCount,
		"tracked_symbols": trackedCount,
		"backups_enabled": h.backups != nil,
		"go_version":      runtime.Version(),
		"goroutines":      runtime.NumGoroutine(),
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}

// HandleResources handles GET /api/system/resources
func (h *SystemHandlers) HandleResources(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		response["cpu_percent"] = cpuPercent[0]
	} else if err != nil {
		h.log.Warn().Err(err).Msg("Failed to read CPU usage")
	}

	if memStat, err := mem.VirtualMemory(); err == nil {
		response["memory"] = map[string]interface{}{
			"total_bytes": memStat.Total,
			"used_bytes":  memStat.Used,
			"percent":     memStat.UsedPercent,
		}
	} else {
		h.log.Warn().Err(err).Msg("Failed to read memory usage")
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{}, len(h.databases))
	for name, db := range h.databases {
		dbStats, err := db.GetStats()
		if err != nil {
			stats[name] = map[string]interface{}{"error": err.Error()}
			continue
		}
		stats[name] = map[string]interface{}{
			"size_bytes":     dbStats.SizeBytes,
			"wal_size_bytes": dbStats.WALSizeBytes,
			"page_count":     dbStats.PageCount,
			"page_size":      dbStats.PageSize,
			"freelist_count": dbStats.FreelistCount,
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"databases": stats,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// HandleDatabaseHealth handles GET /api/system/database/health
// Runs a full integrity check per database, so it is not cheap.
func (h *SystemHandlers) HandleDatabaseHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	healthy := true
	results := make(map[string]string, len(h.databases))
	for name, db := range h.databases {
		if err := db.HealthCheck(ctx); err != nil {
			results[name] = err.Error()
			healthy = false
		} else {
			results[name] = "ok"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, map[string]interface{}{
		"healthy":   healthy,
		"databases": results,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// HandleDiskUsage handles GET /api/system/disk
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	var totalBytes int64
	files := make(map[string]int64)

	err := filepath.Walk(h.dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(h.dataDir, path)
		if relErr != nil {
			rel = path
		}
		files[rel] = info.Size()
		totalBytes += info.Size()
		return nil
	})
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to read data directory: "+err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data_dir":    h.dataDir,
		"total_bytes": totalBytes,
		"files":       files,
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}

// HandleJobsStatus handles GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":      names,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// HandleTriggerJob handles POST /api/system/jobs/{name}/run
// The job runs asynchronously; the response only acknowledges the trigger.
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	h.mu.RLock()
	job, ok := h.jobs[name]
	h.mu.RUnlock()
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown job: "+name)
		return
	}

	go func() {
		h.log.Info().Str("job", name).Msg("Manually triggered job started")
		if err := job.Run(); err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Manually triggered job failed")
		} else {
			h.log.Info().Str("job", name).Msg("Manually triggered job completed")
		}
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job":       name,
		"triggered": true,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// HandleListBackups handles GET /api/system/backups
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		h.writeError(w, http.StatusServiceUnavailable, "backups are not configured")
		return
	}

	backups, err := h.backups.ListBackups(r.Context())
	if err != nil {
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"backups":   backups,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *SystemHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
