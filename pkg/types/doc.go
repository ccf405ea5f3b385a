/*
Package types defines the shared data model for the tradefleet control plane:
exchanges and their market-hours metadata, user sessions and their connection
health, per-minute market-data bars, convictions, and workflow execution
records.

All timestamps are UTC. Conversion to an exchange's local timezone happens
only inside pkg/markethours when computing market-hours windows.
*/
package types
