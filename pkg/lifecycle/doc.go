/*
Package lifecycle runs the exchange-worker reconciliation loop.

Every tick the controller loads all exchange records, computes which of them
are inside their market-hours window (pkg/markethours), observes the cluster
(pkg/cluster) and starts or stops the symmetric difference. Start and stop
are idempotent, so the loop needs no memory of its previous decisions;
failures on one worker never abort the tick, and a Store read failure simply
retries from scratch on the next tick.

Unhealthy-but-desired workers are logged and left alone for the current
tick. Restarting them inline would fight the readiness probe and flap.
*/
package lifecycle
