// Package window computes adaptive correlation window durations from the
// time of day, the opening sensor type and the zone's priority multiplier.
package window
