// Package stream subscribes to the jukebox server's text/event-stream channels.
//
// A [Client] owns one logical subscription. Each message's data field is parsed as JSON;
// heartbeat and test messages are dropped, malformed payloads are logged and skipped, and
// everything else reaches the registered [Handler] in the order the transport delivered it.
//
// When the connection fails the client waits BaseDelay << attempts before reconnecting
// (1s, 2s, 4s, 8s, 16s by default) and stops after MaxReconnectAttempts until a lifecycle
// call such as [Client.EnsureConnected] asks for a fresh try. A successful open resets the count.
package stream
