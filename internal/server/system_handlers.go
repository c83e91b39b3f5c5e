package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// handleSystemStatus reports host and process health for operational
// monitoring of the ingestion box.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"goroutines": runtime.NumGoroutine(),
		"database":   "ok",
	}

	if err := s.db.QuickCheck(r.Context()); err != nil {
		status["database"] = "unreachable"
	}

	if percents, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(percents) > 0 {
		status["cpu_percent"] = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		status["memory_percent"] = vm.UsedPercent
		status["memory_total_mb"] = vm.Total / 1024 / 1024
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	status["heap_alloc_mb"] = ms.HeapAlloc / 1024 / 1024

	s.writeJSON(w, http.StatusOK, status)
}
