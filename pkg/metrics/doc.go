/*
Package metrics exposes prometheus instrumentation for every tradefleet
process plus the shared /health, /ready and /metrics HTTP server.

Collectors are package-level vars registered in init, named under the
tradefleet_ prefix: reconciliation cycles, worker start/stop outcomes,
session and WebSocket gauges, market-data fan-out counters, and workflow
execution histograms.
*/
package metrics
