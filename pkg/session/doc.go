/*
Package session implements the session-singleton service: one instance, one
user, many devices.

The instance advertises readiness through a ready file while unbound. The
first authenticated WebSocket connect binds the session and withdraws the
advertisement; the router then stops sending new users here. While ACTIVE a
supervisor keeps a gRPC stream open to the user's exchange worker and fans
every update out to all connected devices. When the last device goes away,
the session expires, or a stop is requested, the instance drains and returns
to READY.

All state transitions are serialized by the service mutex. Each WebSocket is
owned by a single writer goroutine, so outbound frames to one device are
strictly ordered.
*/
package session
