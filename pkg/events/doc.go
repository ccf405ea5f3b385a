// Package events provides an in-process broker for control-plane events
// (worker lifecycle, session binding, workflow completion). Subscribers get
// buffered channels; a full subscriber buffer drops the event rather than
// blocking the broker.
package events
