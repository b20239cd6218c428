// Package escalation runs the response sequence after an alarm is
// confirmed: immediate notifications and siren, delayed voice calls with
// an abort window, then the camera clip follow-up once the recording is
// finalized. A disarm aborts pending steps without recalling what already
// went out.
package escalation
