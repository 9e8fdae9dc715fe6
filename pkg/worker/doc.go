// Package worker provides a generic bounded worker pool.
//
// The actuator controller uses a pool to take corrective control writes
// off the monitoring hot path: pipelines submit corrections without
// blocking, and a full queue drops the correction rather than stalling
// reading evaluation. Pools optionally expose queue depth, throughput,
// and processing-time metrics through the platform metrics registry.
package worker
