/*
Package storage persists control-plane state behind a single narrow Store
interface so the backing implementation is swappable.

Three backends are provided:

  - MemoryStore: process-local maps, used by tests and as the default in
    development when no data directory is configured.
  - BoltStore: single-file BoltDB database for single-node development
    deployments. Values are JSON-encoded into one bucket per entity.
  - PostgresStore: production backend over sqlx/lib/pq with a capped
    connection pool and ON CONFLICT upserts for market-data bars.

All backends treat bar writes as idempotent on (timestamp, symbol).
*/
package storage
