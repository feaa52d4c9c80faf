package supervisor

import (
	"sync"
	"time"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
)

// healthTracker records each component's lifecycle status and start time
// so get_system_health() can compute uptime and aggregate
// is_healthy without each component exposing its own HTTP endpoint.
type healthTracker struct {
	mu         sync.RWMutex
	statuses   map[string]model.ComponentStatus
	startedAt  map[string]time.Time
}

func newHealthTracker() *healthTracker {
	return &healthTracker{
		statuses:  make(map[string]model.ComponentStatus),
		startedAt: make(map[string]time.Time),
	}
}

func (h *healthTracker) setStatus(component string, status model.ComponentStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses[component] = status
	if status == model.StatusRunning {
		if _, ok := h.startedAt[component]; !ok {
			h.startedAt[component] = time.Now()
		}
	}
}

func (h *healthTracker) snapshot() model.SystemHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	components := make(map[string]model.ComponentHealth, len(h.statuses))
	healthy := len(h.statuses) > 0
	now := time.Now()

	for name, status := range h.statuses {
		var uptime float64
		if start, ok := h.startedAt[name]; ok {
			uptime = now.Sub(start).Seconds()
		}
		components[name] = model.ComponentHealth{Status: status, UptimeSec: uptime, LastCheck: now}
		if status != model.StatusRunning {
			healthy = false
		}
	}

	return model.SystemHealth{Components: components, IsHealthy: healthy}
}
