// Package repositories implements the SQLite cache behind offline listings.
//
// The cache mirrors the last successful library and playlist fetch so `jbx library list --offline`
// and `jbx playlists list --offline` work while the server is unreachable.
//
// Key Implementations:
//   - [SongRepository] : Library songs keyed by the server's song id
//   - [PlaylistRepository] : Playlists keyed by serialized name, with their ordered entries
//
// Both repositories replace their contents wholesale inside a transaction; the server is the
// source of truth and the cache never merges.
package repositories
