/*
Package exchange implements the exchange worker: the gRPC service that hosts
per-user simulators, accepts conviction batches, and fans the upstream bar
feed out to every subscribed session.

The multiplexer is the heart of it. One upstream batch becomes exactly one
MarketDataUpdate envelope per subscriber, filtered to the symbols that
subscriber asked for. Subscriber channels are buffered; a subscriber that
cannot keep up has updates dropped, and after enough consecutive drops it is
evicted so one dead session can never stall the rest.
*/
package exchange
