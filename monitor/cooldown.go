package monitor

import (
	"strings"
	"sync"
	"time"

	"github.com/AnhTuIT04/SmartHomeServer/types"
)

// DefaultCooldownWindow is the suppression window applied when none is
// configured.
const DefaultCooldownWindow = 60 * time.Second

// CooldownGate rate-limits alert emission per (sensor, metric) pair.
// The admission check and the lastFiredAt update happen atomically
// under one lock, so two concurrent callers for the same key inside
// the window can never both be admitted. A window of zero disables
// suppression entirely.
//
// WARN and FORCE of the same metric share one key: the evaluator emits
// at most one of them per reading, so they never compete.
type CooldownGate struct {
	window time.Duration

	mu          sync.Mutex
	lastFiredAt map[string]time.Time
}

// NewCooldownGate creates a gate with the given suppression window.
// Negative windows are treated as zero (disabled).
func NewCooldownGate(window time.Duration) *CooldownGate {
	if window < 0 {
		window = 0
	}
	return &CooldownGate{
		window:      window,
		lastFiredAt: make(map[string]time.Time),
	}
}

// Admit reports whether a condition for (sensorID, metric) may emit at
// now. Admission records now as the key's last fire time; denial
// leaves the recorded time untouched.
func (g *CooldownGate) Admit(sensorID string, m types.Metric, now time.Time) bool {
	if g.window == 0 {
		return true
	}

	key := cooldownKey(sensorID, m)

	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.lastFiredAt[key]; ok && now.Sub(last) < g.window {
		return false
	}

	g.lastFiredAt[key] = now
	return true
}

// ReleaseSensor drops every cooldown entry for the sensor. Called on
// watch teardown so a rewatched sensor starts with a clean slate.
func (g *CooldownGate) ReleaseSensor(sensorID string) {
	prefix := sensorID + "/"

	g.mu.Lock()
	defer g.mu.Unlock()

	for key := range g.lastFiredAt {
		if strings.HasPrefix(key, prefix) {
			delete(g.lastFiredAt, key)
		}
	}
}

// Window returns the configured suppression window.
func (g *CooldownGate) Window() time.Duration {
	return g.window
}

func cooldownKey(sensorID string, m types.Metric) string {
	return sensorID + "/" + m.String()
}
