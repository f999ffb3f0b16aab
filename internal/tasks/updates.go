package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ValidateURLs Phase = iota
	SubmitDownloads
	FetchPlaylist
	ExportPlaylist
	Complete
)

func (p Phase) String() string {
	switch p {
	case ValidateURLs:
		return "validate_urls"
	case SubmitDownloads:
		return "submit_downloads"
	case FetchPlaylist:
		return "fetch_playlist"
	case ExportPlaylist:
		return "export_playlist"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func validateUpdate(valid, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ValidateURLs,
		Step:    valid,
		Total:   total,
		Message: fmt.Sprintf("%d of %d URLs are valid", valid, total),
	}
}

func submittedUpdate(step, total int, res ImportItem) ProgressUpdate {
	if res.Error != nil {
		return ProgressUpdate{
			Phase:   SubmitDownloads,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.URL, res.Error),
			Data:    res,
		}
	}
	return ProgressUpdate{
		Phase:   SubmitDownloads,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%s)", step, total, res.URL, res.DownloadID),
		Data:    res,
	}
}

func fetchingPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}

func completeUpdate(ok, failed int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    ok,
		Total:   ok + failed,
		Message: fmt.Sprintf("Done: %d succeeded, %d failed", ok, failed),
	}
}
