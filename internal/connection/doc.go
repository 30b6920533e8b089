// Package connection owns the WebSocket lifecycle for one exchange feed.
//
// Client is a thin wrapper around a single gorilla/websocket connection:
// it serializes writes, answers transport pings, watches for staleness,
// and fans inbound frames out through a buffered channel.
//
// Supervisor drives a Client through the connect, subscribe, stream cycle
// for one symbol batch of one exchange adapter, decoding frames into
// ticks and reconnecting forever with exponential backoff. A supervisor
// never gives up; a feed that cannot be reached keeps retrying at the
// backoff ceiling until shutdown.
package connection
