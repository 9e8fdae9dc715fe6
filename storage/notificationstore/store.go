// Package notificationstore persists alert notifications in a JetStream
// KV bucket. Keys are "{sensorID}.{notificationID}" so one sensor's
// history is a single prefix scan.
package notificationstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/AnhTuIT04/SmartHomeServer/errors"
	"github.com/AnhTuIT04/SmartHomeServer/natsclient"
	"github.com/AnhTuIT04/SmartHomeServer/types"
)

// Store archives notifications and serves per-sensor history.
type Store interface {
	// Save persists the notification, assigning its ID.
	Save(ctx context.Context, n *types.Notification) error

	// List returns the sensor's notifications, newest first.
	List(ctx context.Context, sensorID string) ([]types.Notification, error)
}

// KVNotificationStore implements Store over the notifications bucket.
type KVNotificationStore struct {
	kv     *natsclient.KVStore
	logger *slog.Logger
}

// New builds a notification store over the given bucket.
func New(client *natsclient.Client, bucket jetstream.KeyValue, logger *slog.Logger) *KVNotificationStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &KVNotificationStore{
		kv:     client.NewKVStore(bucket),
		logger: logger.With("component", "notificationstore"),
	}
}

// Save persists the notification, assigning its ID. Notifications are
// immutable once stored; Create rejects the astronomically unlikely
// ID collision instead of overwriting.
func (s *KVNotificationStore) Save(ctx context.Context, n *types.Notification) error {
	if n.SensorID == "" {
		return errors.WrapInvalid(
			fmt.Errorf("notification has no sensor id"),
			"KVNotificationStore", "Save", "validate notification")
	}

	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	data, err := json.Marshal(n)
	if err != nil {
		return errors.WrapInvalid(err, "KVNotificationStore", "Save", "encode notification")
	}

	key := notificationKey(n.SensorID, n.ID)
	if _, err := s.kv.Create(ctx, key, data); err != nil {
		return errors.WrapTransient(err, "KVNotificationStore", "Save", "persist notification")
	}

	s.logger.Debug("notification persisted", "sensor_id", n.SensorID, "notification_id", n.ID)
	return nil
}

// List returns the sensor's notifications, newest first. Entries that
// fail to decode are skipped with a warning rather than failing the
// whole listing.
func (s *KVNotificationStore) List(ctx context.Context, sensorID string) ([]types.Notification, error) {
	prefix := sensorID + "."
	keys, err := s.kv.ListKeys(ctx, prefix)
	if err != nil {
		return nil, errors.WrapTransient(err, "KVNotificationStore", "List", "list notification keys")
	}

	notifications := make([]types.Notification, 0, len(keys))
	for _, key := range keys {
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			if natsclient.IsKVNotFoundError(err) {
				// Expired between list and get
				continue
			}
			return nil, errors.WrapTransient(err, "KVNotificationStore", "List", "read notification")
		}

		var n types.Notification
		if err := json.Unmarshal(entry.Value, &n); err != nil {
			s.logger.Warn("skipping undecodable notification", "key", key, "error", err)
			continue
		}
		notifications = append(notifications, n)
	}

	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt > notifications[j].CreatedAt
	})

	return notifications, nil
}

// notificationKey builds the bucket key for one notification.
func notificationKey(sensorID, id string) string {
	// KV keys cannot contain whitespace; sensor IDs are validated at
	// registration but an ID from an older deployment might not be
	return strings.ReplaceAll(sensorID, " ", "_") + "." + id
}
