/*
Package cluster abstracts the container orchestration layer behind the
narrow Ops interface the lifecycle controller consumes: Start, Stop, List
and Healthy, all idempotent.

The production implementation runs exchange workers as containerd tasks in
the "tradefleet" namespace, one container per exchange, named
exchange-service-<lowercase-id> and labeled with the exchange id so List can
recover the observed set without any controller-side state. FakeOps backs
tests and containerd-less development.
*/
package cluster
