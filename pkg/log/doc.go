/*
Package log provides structured logging for all tradefleet processes.

It wraps zerolog with a single global logger initialized once at process
startup, plus helpers that attach the identifiers most queries filter on
(component, exchange_id, session_id, device_id, execution_id).

Usage:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("lifecycle")
	logger.Info().Str("exchange_id", ex.ID).Msg("starting worker")

Console output (human-readable) is the default; production deployments set
JSONOutput so log lines are machine-parseable.
*/
package log
