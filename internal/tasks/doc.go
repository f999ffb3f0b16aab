// Package tasks runs long jukebox operations with real-time progress reporting.
//
// # Core Operations
//
//  1. [Importer.Run] : Bulk download submission
//     - Validates every URL before any request is sent
//     - Submits accepted URLs to the server through a rate-limited worker pool
//     - Returns the download id for each accepted URL and the reason for each failure
//
//  2. [Exporter.Run] : Bulk playlist export
//     - Fetches each playlist and writes it with [formatter.Write]
//     - Writes a manifest summarising the export
//
// # Progress Reporting
//
// Both operations send [ProgressUpdate] values on an optional channel. Sends use select with
// default, so a slow or absent reader never stalls the work.
package tasks
