// Package snapframe is a server side WebSocket (RFC 6455) frame engine.
//
// A Conn runs over any duplex byte stream. The caller reads application
// messages with Next while any number of goroutines enqueue outbound
// messages with Send. A single send task per connection writes the 101
// handshake response first, then every queued message in order, and stops
// after a Close frame went out.
//
// The engine takes care of the protocol: masked client frames are unmasked,
// fragmented messages are reassembled, pings are answered, closes are
// echoed, and protocol violations end the connection with the matching
// close code.
//
// Upgrader adapts the engine to net/http, Manager keeps track of upgraded
// connections and broadcasts to them.
package snapframe
