package monitor

import (
	"context"
	"time"

	"github.com/AnhTuIT04/SmartHomeServer/component"
	"github.com/AnhTuIT04/SmartHomeServer/metric"
	"github.com/AnhTuIT04/SmartHomeServer/telemetry"
	"github.com/AnhTuIT04/SmartHomeServer/types"
)

// pipeline is the evaluation chain for one watched sensor: both change
// streams funnel into one goroutine, which serializes snapshot mutation,
// priming, threshold evaluation, and cooldown admission. Actuator writes
// leave the goroutine through the controller's worker pool, so a slow
// control-store round trip never delays the next reading.
type pipeline struct {
	sensorID  string
	store     telemetry.Store
	bounds    telemetry.BoundsStore
	gate      *CooldownGate
	actuator  *Controller
	publisher *Publisher
	clock     func() time.Time
	logger    *component.Logger
	metrics   *metric.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// newPipeline derives the pipeline's cancellable context up front, so
// stop is safe the moment the pipeline becomes visible to other
// goroutines, even if start has not run yet.
func newPipeline(ctx context.Context, sensorID string, deps pipelineDeps) *pipeline {
	p := &pipeline{
		sensorID:  sensorID,
		store:     deps.store,
		bounds:    deps.bounds,
		gate:      deps.gate,
		actuator:  deps.actuator,
		publisher: deps.publisher,
		clock:     deps.clock,
		logger:    deps.logger,
		metrics:   deps.metrics,
		done:      make(chan struct{}),
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	return p
}

type pipelineDeps struct {
	store     telemetry.Store
	bounds    telemetry.BoundsStore
	gate      *CooldownGate
	actuator  *Controller
	publisher *Publisher
	clock     func() time.Time
	logger    *component.Logger
	metrics   *metric.Metrics
}

// start launches the watch goroutine. The pipeline stops when its
// context is cancelled or either watch channel closes. Every path out
// of start eventually closes done, so a stop racing startup always
// unblocks.
func (p *pipeline) start() error {
	dataCh, err := p.store.WatchData(p.ctx, p.sensorID)
	if err != nil {
		p.cancel()
		close(p.done)
		return err
	}

	controlCh, err := p.store.WatchControl(p.ctx, p.sensorID)
	if err != nil {
		p.cancel()
		close(p.done)
		return err
	}

	go p.run(dataCh, controlCh)
	return nil
}

// stop cancels the watches and waits for the goroutine to drain.
// Idempotent: a second call returns once the first teardown finished.
func (p *pipeline) stop() {
	p.cancel()
	<-p.done
}

func (p *pipeline) run(dataCh, controlCh <-chan telemetry.Event) {
	defer close(p.done)

	ctx := p.ctx
	agg := NewAggregator(func(r types.Reading) {
		p.evaluate(ctx, r)
	})

	p.logger.InfoContext(ctx, "sensor watch started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("sensor watch stopped")
			return

		case ev, ok := <-dataCh:
			if !ok {
				p.logger.Warn("telemetry watch closed")
				return
			}
			if ev.Deleted {
				continue
			}
			agg.OnChange(ev.Raw)

		case ev, ok := <-controlCh:
			if !ok {
				p.logger.Warn("control watch closed")
				return
			}
			if ev.Deleted {
				continue
			}
			agg.OnChange(ev.Raw)
		}
	}
}

// evaluate runs one merged reading through thresholds, cooldown, the
// actuator, and the alert publisher. A failed bounds read skips the
// cycle; the store re-delivers on the next change, so no retry loop is
// needed here.
func (p *pipeline) evaluate(ctx context.Context, r types.Reading) {
	if p.metrics != nil {
		p.metrics.RecordReading(p.sensorID)
	}

	bounds, err := p.bounds.BoundsFor(ctx, p.sensorID)
	if err != nil {
		p.logger.Error("bounds read failed, skipping cycle", err)
		return
	}

	conditions := Evaluate(p.sensorID, &r, bounds)
	if len(conditions) == 0 {
		return
	}

	now := p.clock()
	admitted := make([]types.Condition, 0, len(conditions))
	for _, c := range conditions {
		if !p.gate.Admit(c.SensorID, c.Metric, now) {
			if p.metrics != nil {
				p.metrics.RecordSuppressed(c.Metric.String())
			}
			continue
		}
		if p.metrics != nil {
			p.metrics.RecordCondition(c.Metric.String(), c.Severity.String())
		}
		admitted = append(admitted, c)
	}

	if len(admitted) == 0 {
		return
	}

	for _, c := range admitted {
		if c.Severity != types.SeverityForce {
			continue
		}
		if err := p.actuator.Apply(c); err != nil {
			p.logger.Error("correction submit failed", err)
		}
	}

	if _, err := p.publisher.Publish(ctx, p.sensorID, admitted); err != nil {
		p.logger.Error("alert publish failed", err)
	}
}
