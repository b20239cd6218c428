// Package monitor holds the sensor health watchers that run independently
// of alarm sessions: low-battery alerting with per-sensor rate limiting,
// and RF jamming detection from simultaneous offline patterns.
package monitor
