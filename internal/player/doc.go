// Package player mirrors the server's transport state and keeps a local progress clock.
//
// The [Machine] applies authoritative snapshots from the status endpoint, command responses
// and player_state_change pushes. Between snapshots it advances the elapsed time once per
// second while playing; the next snapshot always overwrites that local value.
//
// Commands never mutate state before the server answers. A failed command is logged, surfaced
// through a [shared.Notifier], and leaves the last known state in place.
package player
