package server

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// systemStatus is the diagnostics snapshot served at /api/system/status.
type systemStatus struct {
	Status            string  `json:"status"`
	UptimeSeconds     int64   `json:"uptime_seconds"`
	CPUPercent        float64 `json:"cpu_percent"`
	MemoryPercent     float64 `json:"memory_percent"`
	StoreSizeBytes    int64   `json:"store_size_bytes"`
	CacheEntries      int64   `json:"cache_entries"`
	CacheExpired      int64   `json:"cache_expired"`
	RemainingRequests int     `json:"remaining_requests"`
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := systemStatus{
		Status:            "ok",
		UptimeSeconds:     int64(time.Since(s.startedAt).Seconds()),
		RemainingRequests: s.market.RemainingRequests(),
	}

	cpuPercent, memPercent := s.getSystemStats()
	status.CPUPercent = cpuPercent
	status.MemoryPercent = memPercent

	if err := s.db.HealthCheck(r.Context()); err != nil {
		s.log.Warn().Err(err).Msg("Store health check failed")
		status.Status = "degraded"
	}

	if dbStats, err := s.db.GetStats(); err == nil {
		status.StoreSizeBytes = dbStats.SizeBytes
	}

	if cacheStats, err := s.cache.GetStats(); err == nil {
		status.CacheEntries = cacheStats.Total
		status.CacheExpired = cacheStats.Expired
	}

	s.writeJSON(w, http.StatusOK, status)
}

// getSystemStats returns CPU and RAM usage percentages. The CPU sample uses
// a 100ms window so the status endpoint stays fast.
func (s *Server) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
