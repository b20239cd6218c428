// Package config defines the guardian's YAML configuration: zones with
// their sensors and confirmation profiles, delays and thresholds, and the
// escalation and monitoring settings. It provides helpers to load,
// validate and save the configuration.
package config
