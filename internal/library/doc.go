// Package library keeps the client's view of the server song library.
//
// Mutations are optimistic: renames and deletes change the local listing before the request
// is sent and are rolled back if the server rejects them. Every successful refresh is written
// through to an optional offline cache.
package library
