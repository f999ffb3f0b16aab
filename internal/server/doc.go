// Package server provides HTTP routing, middleware, a server-sent events broker and a mock jukebox backend.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so path parameters are read with
// [http.Request.PathValue].
//
// # Broker
//
// [Broker] fans JSON messages out to every connected event-stream client. Each client has a bounded queue;
// a client whose queue is full is disconnected rather than allowed to stall the publisher. Idle streams
// receive a heartbeat message.
//
// # Mock Backend
//
// [Mock] serves the jukebox REST and push endpoints from memory: player transport, Discord voice status,
// library CRUD, playlists, settings and a download pipeline that advances through its stages on a timer.
// `jbx mock` runs it for local development, and the integration tests drive the real client against it.
package server
