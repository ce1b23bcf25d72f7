package matchers

import (
	"sync"
)

const (
	healthWindowSize = 20
	// healthMinSamples outcomes are required before a matcher can be judged
	// unhealthy; a cold matcher is assumed healthy.
	healthMinSamples     = 5
	healthFailureRateMax = 0.5
)

// HealthTracker keeps a sliding window of recent outcomes per matcher name
// and feeds the selector's "health is ok" checks.
type HealthTracker struct {
	mu      sync.Mutex
	windows map[string]*outcomeWindow
}

type outcomeWindow struct {
	outcomes [healthWindowSize]bool
	next     int
	filled   int
}

func NewHealthTracker() *HealthTracker {
	return &HealthTracker{windows: make(map[string]*outcomeWindow)}
}

// Record appends one outcome for name.
func (h *HealthTracker) Record(name string, success bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	w, ok := h.windows[name]
	if !ok {
		w = &outcomeWindow{}
		h.windows[name] = w
	}
	w.outcomes[w.next] = success
	w.next = (w.next + 1) % healthWindowSize
	if w.filled < healthWindowSize {
		w.filled++
	}
}

// Healthy reports whether name's recent failure rate stays under the
// threshold. Unknown or barely used matchers are healthy.
func (h *HealthTracker) Healthy(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	w, ok := h.windows[name]
	if !ok || w.filled < healthMinSamples {
		return true
	}

	failures := 0
	for i := 0; i < w.filled; i++ {
		if !w.outcomes[i] {
			failures++
		}
	}
	return float64(failures)/float64(w.filled) < healthFailureRateMax
}
