// Package metrics exposes Prometheus collectors for the catalog, routed player,
// key toggle, sequencer and HTTP API.
package metrics
