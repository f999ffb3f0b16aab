// Package downloads tracks background downloads reported by the server.
//
// Each download id maps to one [Entry] whose stages are drawn against the fixed [Pipeline]:
// earlier stages completed, the current one active, later ones pending. Entries that reach
// completed or failed are pruned after a delay unless dismissed, and a newly completed download
// triggers a delayed library refresh so the server can finish placing the file.
package downloads
