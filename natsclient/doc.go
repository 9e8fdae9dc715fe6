// Package natsclient manages the NATS connection that backs every store
// in the platform. It wraps nats.go with a circuit breaker, health
// monitoring, and a KVStore helper that layers compare-and-swap retry
// semantics over JetStream key-value buckets.
//
// The telemetry, identity, bounds, and notification stores all obtain
// their buckets through a single shared Client. Actuator corrections use
// KVStore.UpdateJSON so that concurrent writers to a sensor's control
// document never clobber each other: the update closure re-reads the
// latest document on every revision conflict.
package natsclient
