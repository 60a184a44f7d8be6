// Package healthcheck implements the background prober that periodically
// re-checks every registered endpoint and records the outcome in the registry.
// Probe failures are absorbed here: they reclassify the endpoint and are
// logged, but are never returned to callers.
package healthcheck
