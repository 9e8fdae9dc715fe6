package health

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnhTuIT04/SmartHomeServer/component"
)

type staticReporter struct {
	status component.HealthStatus
}

func (r *staticReporter) Health() component.HealthStatus { return r.status }

func TestAggregate_WorstStatusWins(t *testing.T) {
	agg := Aggregate("system", []Status{
		Healthy("a", ""),
		Degraded("b", "cache cold"),
		Healthy("c", ""),
	})
	assert.Equal(t, LevelDegraded, agg.Status)
	assert.False(t, agg.Healthy)

	agg = Aggregate("system", []Status{
		Degraded("a", ""),
		Unhealthy("b", "watch lost"),
	})
	assert.Equal(t, LevelUnhealthy, agg.Status)
	assert.Len(t, agg.SubStatuses, 2)
}

func TestAggregate_EmptyIsHealthy(t *testing.T) {
	agg := Aggregate("system", nil)
	assert.True(t, agg.Healthy)
	assert.Equal(t, LevelHealthy, agg.Status)
}

func TestFromComponent(t *testing.T) {
	s := FromComponent("gateway", component.HealthStatus{
		Healthy: true,
		State:   "running",
		Details: map[string]string{"clients": "3"},
		Checked: time.Now(),
	})
	assert.True(t, s.Healthy)
	assert.Equal(t, LevelHealthy, s.Status)
	assert.Equal(t, "state: running", s.Message)
	assert.Equal(t, "3", s.Details["clients"])

	s = FromComponent("gateway", component.HealthStatus{State: "failed"})
	assert.Equal(t, LevelUnhealthy, s.Status)
	assert.False(t, s.Timestamp.IsZero())
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "connect [URL] failed", sanitize("connect nats://10.0.0.5:4222 failed"))
	assert.Equal(t, "host [IP] unreachable", sanitize("host 192.168.1.100 unreachable"))
	assert.Equal(t, "auth token=[REDACTED]", sanitize("auth token: abc123"))
	assert.Equal(t, "", sanitize(""))
}

func TestPoller_SnapshotAndHandler(t *testing.T) {
	p := NewPoller("smarthome", time.Hour)
	p.Register("supervisor", &staticReporter{status: component.HealthStatus{
		Healthy: true,
		State:   "running",
	}})
	p.RegisterCheck("nats", func() Status {
		return Healthy("nats", "connected")
	})

	p.Start(context.Background())
	defer p.Stop()

	snap := p.Snapshot()
	assert.True(t, snap.Healthy)
	require.Len(t, snap.SubStatuses, 2)
	assert.Equal(t, "nats", snap.SubStatuses[0].Component)
	assert.Equal(t, "supervisor", snap.SubStatuses[1].Component)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, 200, rec.Code)

	var body Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "smarthome", body.Component)
}

func TestPoller_UnhealthyReturns503(t *testing.T) {
	p := NewPoller("smarthome", time.Hour)
	p.RegisterCheck("nats", func() Status {
		return Unhealthy("nats", "connection lost")
	})

	p.Start(context.Background())
	defer p.Stop()

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, 503, rec.Code)
}
