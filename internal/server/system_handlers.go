package server

import (
	"net/http"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/aristath/tierledger/internal/database"
	"github.com/aristath/tierledger/internal/domain"
	"github.com/aristath/tierledger/internal/scheduler"
	"github.com/aristath/tierledger/internal/server/respond"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves operational endpoints: database stats and manual job triggers
type SystemHandlers struct {
	log       zerolog.Logger
	databases map[string]*database.DB

	mu      sync.RWMutex
	jobs    map[string]scheduler.Job
	lastRun map[string]JobRun
}

// DBInfo describes one database file
type DBInfo struct {
	Name          string  `json:"name"`
	Path          string  `json:"path"`
	SizeMB        float64 `json:"size_mb"`
	WALSizeMB     float64 `json:"wal_size_mb"`
	PageCount     int64   `json:"page_count"`
	FreelistCount int64   `json:"freelist_count"`
}

// DatabaseStatsResponse is returned by GET /api/system/databases
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// ResourcesResponse is returned by GET /api/system/resources
type ResourcesResponse struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	DataDir       string  `json:"data_dir,omitempty"`
	DiskPercent   float64 `json:"disk_percent"`
	DiskFreeMB    float64 `json:"disk_free_mb"`
	Goroutines    int     `json:"goroutines"`
}

// JobRun records the outcome of the latest manual run of a job
type JobRun struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Running    bool      `json:"running"`
	Error      string    `json:"error,omitempty"`
}

// JobStatus is one entry of GET /api/system/jobs
type JobStatus struct {
	Name    string  `json:"name"`
	LastRun *JobRun `json:"last_run,omitempty"`
}

// NewSystemHandlers creates system handlers over the named databases
func NewSystemHandlers(log zerolog.Logger, databases map[string]*database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		databases: databases,
		jobs:      make(map[string]scheduler.Job),
		lastRun:   make(map[string]JobRun),
	}
}

// SetJobs registers jobs that may be triggered manually
func (h *SystemHandlers) SetJobs(jobs ...scheduler.Job) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, job := range jobs {
		if job != nil {
			h.jobs[job.Name()] = job
		}
	}
}

// HandleDatabaseStats returns size and page statistics for each database
// GET /api/system/databases
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.databases))
	for name, db := range h.databases {
		if db != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	response := DatabaseStatsResponse{
		Databases:   make([]DBInfo, 0, len(names)),
		LastChecked: time.Now().Format(time.RFC3339),
	}

	for _, name := range names {
		db := h.databases[name]
		stats, err := db.GetStats()
		if err != nil {
			respond.Error(w, err, h.log)
			return
		}

		info := DBInfo{
			Name:          name,
			Path:          db.Path(),
			SizeMB:        toMB(stats.SizeBytes),
			WALSizeMB:     toMB(stats.WALSizeBytes),
			PageCount:     stats.PageCount,
			FreelistCount: stats.FreelistCount,
		}
		response.TotalSizeMB += info.SizeMB + info.WALSizeMB
		response.Databases = append(response.Databases, info)
	}

	respond.Data(w, http.StatusOK, response, h.log)
}

// HandleResources reports host CPU, memory and data-directory disk usage
// GET /api/system/resources
func (h *SystemHandlers) HandleResources(w http.ResponseWriter, r *http.Request) {
	response := ResourcesResponse{Goroutines: runtime.NumGoroutine()}

	// 100ms sample keeps the request fast
	if cpuPercent, err := cpu.PercentWithContext(r.Context(), 100*time.Millisecond, false); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(cpuPercent) > 0 {
		response.CPUPercent = cpuPercent[0]
	}

	if memStat, err := mem.VirtualMemoryWithContext(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		response.MemoryPercent = memStat.UsedPercent
		response.MemoryUsedMB = toMB(int64(memStat.Used))
	}

	if ledgerDB := h.databases["ledger"]; ledgerDB != nil {
		response.DataDir = filepath.Dir(ledgerDB.Path())
		if usage, err := disk.UsageWithContext(r.Context(), response.DataDir); err != nil {
			h.log.Warn().Err(err).Str("dir", response.DataDir).Msg("Failed to get disk usage")
		} else {
			response.DiskPercent = usage.UsedPercent
			response.DiskFreeMB = toMB(int64(usage.Free))
		}
	}

	respond.Data(w, http.StatusOK, response, h.log)
}

// HandleJobs lists registered jobs with their latest manual run
// GET /api/system/jobs
func (h *SystemHandlers) HandleJobs(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	statuses := make([]JobStatus, 0, len(h.jobs))
	for name := range h.jobs {
		status := JobStatus{Name: name}
		if run, ok := h.lastRun[name]; ok {
			status.LastRun = &run
		}
		statuses = append(statuses, status)
	}
	h.mu.RUnlock()

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	respond.Data(w, http.StatusOK, statuses, h.log)
}

// HandleTriggerJob starts a registered job in the background
// POST /api/system/jobs/{name}/run
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	h.mu.Lock()
	job, ok := h.jobs[name]
	if !ok {
		h.mu.Unlock()
		respond.Error(w, domain.ErrNotFound, h.log)
		return
	}
	if h.lastRun[name].Running {
		h.mu.Unlock()
		respond.JSON(w, http.StatusConflict, respond.ErrorBody{Error: "job already running"}, h.log)
		return
	}
	run := JobRun{StartedAt: time.Now(), Running: true}
	h.lastRun[name] = run
	h.mu.Unlock()

	h.log.Info().Str("job", name).Msg("Manual job triggered")

	go h.runJob(name, job, run)

	respond.Data(w, http.StatusAccepted, map[string]string{
		"status":  "started",
		"message": name + " triggered successfully",
	}, h.log)
}

func (h *SystemHandlers) runJob(name string, job scheduler.Job, run JobRun) {
	err := job.Run()

	run.Running = false
	run.FinishedAt = time.Now()
	if err != nil {
		run.Error = err.Error()
		h.log.Error().Err(err).Str("job", name).Msg("Manual job failed")
	}

	h.mu.Lock()
	h.lastRun[name] = run
	h.mu.Unlock()
}

func toMB(bytes int64) float64 {
	return float64(bytes) / 1024 / 1024
}
