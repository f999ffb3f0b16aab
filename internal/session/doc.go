// Package session ties the push channels to the state they drive.
//
// A [Session] owns one stream client per channel, the player state machine, the download
// tracker and the library. Front ends create a session, call [Session.Start], forward
// visibility changes, and call [Session.Close] on exit.
package session
