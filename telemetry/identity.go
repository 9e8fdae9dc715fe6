package telemetry

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/AnhTuIT04/SmartHomeServer/errors"
	"github.com/AnhTuIT04/SmartHomeServer/natsclient"
)

// KVIdentityStore implements IdentityStore over the tokens and users
// buckets. Token keys map to the owning user; user documents carry the
// sensor binding.
type KVIdentityStore struct {
	tokens *natsclient.KVStore
	users  *natsclient.KVStore
}

// NewKVIdentityStore builds an identity store over the two buckets.
func NewKVIdentityStore(client *natsclient.Client, tokens, users jetstream.KeyValue) *KVIdentityStore {
	return &KVIdentityStore{
		tokens: client.NewKVStore(tokens),
		users:  client.NewKVStore(users),
	}
}

type tokenDoc struct {
	UserID string `json:"userId"`
}

type userDoc struct {
	SensorID string `json:"sensorId"`
}

// ResolveToken maps an access token to a user ID.
func (s *KVIdentityStore) ResolveToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", errors.ErrUnauthorized
	}

	entry, err := s.tokens.Get(ctx, token)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return "", errors.ErrUnauthorized
		}
		return "", errors.WrapTransient(err, "KVIdentityStore", "ResolveToken", "read token")
	}

	var doc tokenDoc
	if err := json.Unmarshal(entry.Value, &doc); err != nil || doc.UserID == "" {
		return "", errors.ErrUnauthorized
	}

	return doc.UserID, nil
}

// SensorForUser returns the sensor bound to the user.
func (s *KVIdentityStore) SensorForUser(ctx context.Context, userID string) (string, error) {
	entry, err := s.users.Get(ctx, userID)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return "", errors.ErrUserNotFound
		}
		return "", errors.WrapTransient(err, "KVIdentityStore", "SensorForUser", "read user")
	}

	var doc userDoc
	if err := json.Unmarshal(entry.Value, &doc); err != nil {
		return "", errors.WrapInvalid(err, "KVIdentityStore", "SensorForUser", "decode user document")
	}
	if doc.SensorID == "" {
		return "", errors.ErrSensorNotFound
	}

	return doc.SensorID, nil
}
