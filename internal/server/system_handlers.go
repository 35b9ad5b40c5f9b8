package server

import (
	"context"
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

	"github.com/aristath/portfolio-qubo/internal/config"
	"github.com/aristath/portfolio-qubo/internal/di"
	"github.com/aristath/portfolio-qubo/internal/scheduler"
)

// SystemHandlers serves status and job endpoints
type SystemHandlers struct {
	log       zerolog.Logger
	cfg       *config.Config
	container *di.Container
	started   time.Time

	mu   sync.RWMutex
	jobs map[string]scheduler.Job
}

// NewSystemHandlers creates new system handlers
func NewSystemHandlers(log zerolog.Logger, cfg *config.Config, container *di.Container) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		cfg:       cfg,
		container: container,
		started:   time.Now(),
		jobs:      make(map[string]scheduler.Job),
	}
}

// SetJobs registers the jobs that may be triggered manually
func (h *SystemHandlers) SetJobs(jobs *di.JobInstances) {
	if jobs == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, job := range jobs.All() {
		h.jobs[job.Name()] = job
	}
}

// SystemStatusResponse represents system status
type SystemStatusResponse struct {
	Status           string     `json:"status"`
	CPUPercent       float64    `json:"cpu_percent"`
	RAMPercent       float64    `json:"ram_percent"`
	Goroutines       int        `json:"goroutines"`
	Workers          int        `json:"workers"`
	MaxAssets        int        `json:"max_assets"`
	UptimeSeconds    int64      `json:"uptime_seconds"`
	EventSubscribers int        `json:"event_subscribers"`
	EventsDropped    uint64     `json:"events_dropped"`
	ScheduledJobs    int        `json:"scheduled_jobs"`
	ArchiveEnabled   bool       `json:"archive_enabled"`
	Databases        []DBHealth `json:"databases"`
	LastChecked      string     `json:"last_checked"`
}

// DBHealth represents the health of a single database
type DBHealth struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// DatabaseStatsResponse represents database statistics
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	DataDirMB   float64  `json:"data_dir_mb"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// DBInfo represents information about a single database
type DBInfo struct {
	Name    string  `json:"name"`
	Path    string  `json:"path"`
	Profile string  `json:"profile"`
	SizeMB  float64 `json:"size_mb"`
}

// HandleSystemStatus returns process, evaluator and database health
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cpuPercent, ramPercent := h.getSystemStats()

	response := SystemStatusResponse{
		Status:           "healthy",
		CPUPercent:       cpuPercent,
		RAMPercent:       ramPercent,
		Goroutines:       runtime.NumGoroutine(),
		Workers:          h.container.Evaluator.Workers(),
		MaxAssets:        h.container.Evaluator.MaxAssets(),
		UptimeSeconds:    int64(time.Since(h.started).Seconds()),
		EventSubscribers: h.container.EventBus.Subscribers(),
		EventsDropped:    h.container.EventBus.Dropped(),
		ArchiveEnabled:   h.cfg.Archive.Enabled(),
		LastChecked:      time.Now().Format(time.RFC3339),
	}
	if h.container.Scheduler != nil {
		response.ScheduledJobs = h.container.Scheduler.Jobs()
	}

	for _, db := range h.container.Databases() {
		health := DBHealth{Name: db.Name(), Healthy: true}
		if err := db.HealthCheck(ctx); err != nil {
			health.Healthy = false
			health.Error = err.Error()
			response.Status = "degraded"
		}
		response.Databases = append(response.Databases, health)
	}

	writeJSON(w, http.StatusOK, response, h.log)
}

// HandleDatabaseStats returns on-disk sizes of the databases
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	response := DatabaseStatsResponse{
		Databases:   []DBInfo{},
		DataDirMB:   h.getDirSize(h.cfg.DataDir),
		LastChecked: time.Now().Format(time.RFC3339),
	}

	for _, db := range h.container.Databases() {
		info := DBInfo{Name: db.Name(), Path: db.Path(), Profile: string(db.Profile())}
		if stat, err := os.Stat(db.Path()); err == nil {
			info.SizeMB = float64(stat.Size()) / 1024 / 1024
		}
		response.TotalSizeMB += info.SizeMB
		response.Databases = append(response.Databases, info)
	}

	writeJSON(w, http.StatusOK, response, h.log)
}

// HandleJobsStatus lists the jobs that may be triggered manually
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)

	schedules := []scheduler.EntryInfo{}
	if h.container.Scheduler != nil {
		schedules = h.container.Scheduler.Entries()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": names, "schedules": schedules}, h.log)
}

// HandleTriggerJob runs a registered job in the background
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	h.mu.RLock()
	job, ok := h.jobs[name]
	h.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "error", "message": "Job not registered: " + name}, h.log)
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job trigger")
	go func() {
		var err error
		if h.container.Scheduler != nil {
			err = h.container.Scheduler.RunNow(job)
		} else {
			err = job.Run()
		}
		if err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Manually triggered job failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "success", "message": "Job triggered: " + name}, h.log)
}

// HandleListBackups lists database backups in the object store
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.container.BackupService == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "message": "Backups are disabled"}, h.log)
		return
	}

	backups, err := h.container.BackupService.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		writeJSON(w, http.StatusBadGateway, map[string]string{"status": "error", "message": err.Error()}, h.log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"backups": backups, "count": len(backups)}, h.log)
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats calculates CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
