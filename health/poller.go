package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/AnhTuIT04/SmartHomeServer/component"
)

const defaultPollInterval = 10 * time.Second

// Poller samples every registered component on an interval and caches
// the aggregate, so the HTTP handler never blocks on a slow component.
type Poller struct {
	system   string
	interval time.Duration

	mu        sync.RWMutex
	reporters map[string]component.HealthReporter
	checks    map[string]func() Status
	snapshot  Status

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller for the named system. interval <= 0 uses
// the default.
func NewPoller(system string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		system:    system,
		interval:  interval,
		reporters: make(map[string]component.HealthReporter),
		checks:    make(map[string]func() Status),
		snapshot:  Healthy(system, "starting"),
	}
}

// Register adds a lifecycle component to the poll set.
func (p *Poller) Register(name string, r component.HealthReporter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reporters[name] = r
}

// RegisterCheck adds a custom check to the poll set.
func (p *Poller) RegisterCheck(name string, fn func() Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks[name] = fn
}

// Start launches the poll loop. It samples once immediately so the
// endpoint never serves the placeholder snapshot for a full interval.
func (p *Poller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	p.poll()

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.poll()
			}
		}
	}()
}

// Stop halts the poll loop.
func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

// Snapshot returns the last aggregate.
func (p *Poller) Snapshot() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// Handler serves the aggregate as JSON. Unhealthy maps to 503 so load
// balancers can act on the plain status code.
func (p *Poller) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		snap := p.Snapshot()

		w.Header().Set("Content-Type", "application/json")
		if snap.Status == LevelUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(snap)
	})
}

func (p *Poller) poll() {
	p.mu.RLock()
	names := make([]string, 0, len(p.reporters)+len(p.checks))
	for name := range p.reporters {
		names = append(names, name)
	}
	for name := range p.checks {
		names = append(names, name)
	}
	reporters := make(map[string]component.HealthReporter, len(p.reporters))
	for name, r := range p.reporters {
		reporters[name] = r
	}
	checks := make(map[string]func() Status, len(p.checks))
	for name, fn := range p.checks {
		checks[name] = fn
	}
	p.mu.RUnlock()

	sort.Strings(names)

	subs := make([]Status, 0, len(names))
	for _, name := range names {
		if r, ok := reporters[name]; ok {
			subs = append(subs, FromComponent(name, r.Health()))
			continue
		}
		status := checks[name]()
		status.Component = name
		subs = append(subs, status)
	}

	agg := Aggregate(p.system, subs)

	p.mu.Lock()
	p.snapshot = agg
	p.mu.Unlock()
}
