// Package metrics provides the Prometheus collectors of each component.
package metrics

import "time"

// Status label values shared by the collectors
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusRejected = "rejected"
	StatusLimited  = "rate_limited"
)

// Edge cycle outcomes
const (
	OutcomeIdle          = "idle"
	OutcomeKeepAlive     = "keepalive"
	OutcomeDetection     = "detection"
	OutcomeFalsePositive = "false_positive"
	OutcomeSensorError   = "sensor_error"
)

// Histogram bucket configuration
const (
	BucketStart1ms  = 0.001
	BucketStart10ms = 0.01
	BucketFactor2   = 2
	BucketCount12   = 12
	BucketCount15   = 15
)

// ShutdownTimeout bounds graceful shutdown of the metrics server
const ShutdownTimeout = 5 * time.Second
