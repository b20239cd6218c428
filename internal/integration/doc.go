// Package integration provides the default, log-backed implementations of
// the guardian's external collaborators: panel, notifier, caller, siren
// and clip source. Real integrations replace them one interface at a time.
package integration
