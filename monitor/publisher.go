package monitor

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/AnhTuIT04/SmartHomeServer/errors"
	"github.com/AnhTuIT04/SmartHomeServer/metric"
	"github.com/AnhTuIT04/SmartHomeServer/storage/notificationstore"
	"github.com/AnhTuIT04/SmartHomeServer/types"
)

// AlertSink receives the persisted alert payload for fan-out to live
// sessions. Implementations must not block the caller beyond a send to
// a bounded per-session queue.
type AlertSink interface {
	Deliver(sensorID string, message []byte)
}

// Publisher turns admitted conditions into one persisted notification
// and fans it out. One reading with N breached metrics produces one
// notification carrying N details, never N notifications.
type Publisher struct {
	store   notificationstore.Store
	sink    AlertSink
	logger  *slog.Logger
	metrics *metric.Metrics
}

// NewPublisher creates a publisher. sink may be nil when no realtime
// delivery is wired (alerts are still persisted).
func NewPublisher(store notificationstore.Store, sink AlertSink, logger *slog.Logger, metrics *metric.Metrics) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		store:   store,
		sink:    sink,
		logger:  logger.With("component", "publisher"),
		metrics: metrics,
	}
}

// Publish persists one notification for the admitted conditions and
// fans it out to live sessions. Fan-out is attempted even when
// persistence fails: a live alert reaching a watching client outranks
// durability. The persistence failure is still reported to the caller.
func (p *Publisher) Publish(ctx context.Context, sensorID string, conditions []types.Condition) (*types.Notification, error) {
	if len(conditions) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Publisher", "Publish", "no conditions")
	}

	n := types.NewNotification(sensorID, conditions)

	saveErr := p.store.Save(ctx, n)
	if saveErr != nil {
		if p.metrics != nil {
			p.metrics.RecordNotification("persist_error")
		}
		p.logger.Error("notification persist failed",
			"sensor_id", sensorID, "error", saveErr)
	} else if p.metrics != nil {
		p.metrics.RecordNotification("persisted")
	}

	if p.sink != nil {
		payload, err := json.Marshal(n)
		if err != nil {
			p.logger.Error("notification encode failed",
				"sensor_id", sensorID, "error", err)
		} else {
			p.sink.Deliver(sensorID, payload)
		}
	}

	if saveErr != nil {
		return n, errors.WrapTransient(saveErr, "Publisher", "Publish", "persist notification")
	}
	return n, nil
}
