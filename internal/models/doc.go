// Package models defines the wire entities exchanged with the jukebox server.
//
// The package contains three groups of types:
//
// 1. Library entities
//   - [Track] : A playable item, either a library file or a playlist entry
//   - [Playlist] : A named ordered collection of tracks with tags and cover image
//
// 2. Live state
//   - [PlayerSnapshot] : Authoritative transport state pushed by the server
//   - [DiscordStatus] : Voice bot connectivity
//   - [DownloadEntry] : One background download and its pipeline stage
//
// 3. Preferences
//   - [Settings] : Server-side Discord and general settings
//
// Every type mirrors the server's JSON shape; zero values stand for fields the server omitted.
package models
