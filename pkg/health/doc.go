// Package health provides readiness probes the lifecycle controller runs
// against exchange workers: an HTTP probe for the worker's /ready endpoint
// and a TCP probe for its gRPC port. Status folds consecutive results so a
// single flaky probe does not flip a worker unhealthy.
package health
