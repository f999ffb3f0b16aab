// Package services talks to the jukebox server over its REST API.
//
// # Raw access
//
// [APIService] sends requests relative to the server's base URL and returns an [APIResponse] holding
// the status, headers and body, with JSON detected opportunistically. The `jbx api` passthrough
// commands use it directly.
//
// # Typed client
//
// [Jukebox] wraps every endpoint the client consumes: player transport, downloads, library,
// playlists (multipart create/update), settings and the Discord voice bot.
//
// # Error Handling
//
// Mutating endpoints answer with a `success` flag and an `error` or `message` string. Responses are
// mapped onto the shared sentinels:
//   - [shared.ErrAPIRequest] : the request never produced a response, or the body was not decodable
//   - [shared.ErrCommandFailed] : the server answered with success false or a 4xx/5xx carrying a reason
//   - [shared.ErrServiceUnavailable] : a 5xx with no explanation, typically a proxy in front of the server
//   - [shared.ErrPlaylistNotFound], [shared.ErrSongNotFound] : "not found" failures on named resources
//
// Transport commands that start a song (next, previous, play) return a [models.PlayerSnapshot]
// normalised so the player is running from zero; toggle returns only the flags.
package services
