// Package publish fans normalized ticks out to downstream consumers.
//
// Publishers must never block the decode path: the UDP publisher queues
// ticks through a growable buffer and drops on overflow, the store
// publisher is a map write, and Multi simply chains them.
package publish
