// Package correlation implements the two correlation levels of the engine:
// the per-zone correlator evaluating a confirmation profile over a timed
// window, and the global cross-zone accumulator that applies the 1.5x
// multiplier to events outside the session's first zone and never expires
// within a session.
package correlation
