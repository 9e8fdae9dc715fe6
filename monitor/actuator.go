package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/AnhTuIT04/SmartHomeServer/errors"
	"github.com/AnhTuIT04/SmartHomeServer/metric"
	"github.com/AnhTuIT04/SmartHomeServer/pkg/worker"
	"github.com/AnhTuIT04/SmartHomeServer/telemetry"
	"github.com/AnhTuIT04/SmartHomeServer/types"
)

const correctionTimeout = 5 * time.Second

// Controller turns FORCE conditions into clamped corrections written to
// the control document. Corrections run on a worker pool so a slow
// control-store round trip never stalls the pipeline that produced the
// condition; each write goes through compare-and-swap, so overlapping
// corrections for the same sensor compose instead of clobbering each
// other.
type Controller struct {
	store   telemetry.Store
	pool    *worker.Pool[types.Condition]
	logger  *slog.Logger
	metrics *metric.Metrics
}

// ControllerOptions configures the correction worker pool.
type ControllerOptions struct {
	Workers   int
	QueueSize int
	Registry  *metric.MetricsRegistry
}

// NewController creates an actuator controller backed by a worker pool.
func NewController(store telemetry.Store, opts ControllerOptions, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		store:  store,
		logger: logger.With("component", "actuator"),
	}

	var poolOpts []worker.Option[types.Condition]
	if opts.Registry != nil {
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[types.Condition](opts.Registry, "actuator"))
		c.metrics = opts.Registry.CoreMetrics()
	}
	c.pool = worker.NewPool(opts.Workers, opts.QueueSize, c.correct, poolOpts...)

	return c
}

// Start launches the correction workers.
func (c *Controller) Start(ctx context.Context) error {
	return c.pool.Start(ctx)
}

// Stop drains in-flight corrections, waiting up to timeout.
func (c *Controller) Stop(timeout time.Duration) error {
	return c.pool.Stop(timeout)
}

// Apply queues a correction for the condition. Returns
// worker.ErrQueueFull when the pool cannot accept more work; the
// caller logs and moves on, the next breach will retry naturally.
func (c *Controller) Apply(cond types.Condition) error {
	if cond.Severity != types.SeverityForce {
		return errors.WrapInvalid(errors.ErrInvalidData, "Controller", "Apply", "non-force condition")
	}
	return c.pool.Submit(cond)
}

func (c *Controller) correct(ctx context.Context, cond types.Condition) error {
	ctx, cancel := context.WithTimeout(ctx, correctionTimeout)
	defer cancel()

	err := c.store.ApplyCorrection(ctx, cond.SensorID, func(state *types.ControlState) bool {
		return Correct(state, cond)
	})

	field := correctionField(cond.Metric)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordActuatorWrite(field, "error")
		}
		c.logger.Error("correction write failed",
			"sensor_id", cond.SensorID,
			"metric", cond.Metric.String(),
			"error", err)
		return err
	}

	if c.metrics != nil {
		c.metrics.RecordActuatorWrite(field, "success")
	}
	c.logger.Info("correction applied",
		"sensor_id", cond.SensorID,
		"metric", cond.Metric.String(),
		"value", cond.Value)
	return nil
}

// Correct mutates the control state for one FORCE condition and reports
// whether anything changed. A false return means the state already sits
// at the saturation boundary (or the target value) and no write is
// needed.
//
//   - TEMPERATURE: fan level moves by one step toward more (upper
//     breach) or less (lower breach) cooling, clamped to its range.
//   - HUMIDITY: fan level is set directly, 2 on upper breach, 0 on
//     lower. A set, not an increment.
//   - LIGHT: brightness moves by 10 and led level by 1, down on upper
//     breach (dim) and up on lower (brighten), each clamped
//     independently.
func Correct(state *types.ControlState, cond types.Condition) bool {
	switch cond.Metric {
	case types.MetricTemperature:
		delta := int64(1)
		if cond.Breach == types.BreachLower {
			delta = -1
		}
		next := types.ClampFanMode(state.FanMode + delta)
		if next == state.FanMode {
			return false
		}
		state.FanMode = next
		return true

	case types.MetricHumidity:
		target := int64(2)
		if cond.Breach == types.BreachLower {
			target = 0
		}
		if state.FanMode == target {
			return false
		}
		state.FanMode = target
		return true

	case types.MetricLight:
		brightnessDelta, ledDelta := int64(-10), int64(-1)
		if cond.Breach == types.BreachLower {
			brightnessDelta, ledDelta = 10, 1
		}
		nextBrightness := types.ClampBrightness(state.Brightness + brightnessDelta)
		nextLed := types.ClampLedMode(state.LedMode + ledDelta)
		changed := nextBrightness != state.Brightness || nextLed != state.LedMode
		state.Brightness = nextBrightness
		state.LedMode = nextLed
		return changed
	}

	return false
}

func correctionField(m types.Metric) string {
	switch m {
	case types.MetricLight:
		return types.FieldBrightness
	default:
		return types.FieldFanMode
	}
}
