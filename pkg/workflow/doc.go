/*
Package workflow executes named DAGs of operational tasks, such as the SOD
and EOD runs that bracket each trading day.

Tasks become eligible when every dependency finished SUCCESS or SKIPPED.
Eligible tasks wait in a priority queue (CRITICAL first, FIFO within a
priority) and run concurrently up to a configurable limit, each under its
own deadline. Failures retry with exponential backoff; a task marked
skip-on-failure turns its whole downstream subtree SKIPPED instead of
failing the run, while a CRITICAL task that fails for good aborts the run
and cancels everything still pending.

Every execution and every task transition is written through the Store, so
an operator can reconstruct a run after the fact.
*/
package workflow
