package downloads

import (
	"github.com/samber/lo"

	"github.com/desertthunder/jbx/internal/models"
)

// Pipeline is the fixed order every download moves through.
var Pipeline = []models.DownloadStatus{
	models.DownloadPending,
	models.DownloadDownloading,
	models.DownloadProcessing,
	models.DownloadNormalizing,
	models.DownloadMoving,
	models.DownloadCompleted,
}

var labels = map[models.DownloadStatus]string{
	models.DownloadPending:     "Queued",
	models.DownloadDownloading: "Downloading",
	models.DownloadProcessing:  "Processing",
	models.DownloadNormalizing: "Normalizing",
	models.DownloadMoving:      "Finalizing",
	models.DownloadCompleted:   "Completed",
	models.DownloadFailed:      "Failed",
}

// Label is the human name for a status.
func Label(s models.DownloadStatus) string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}

// Marker is how one pipeline stage is drawn.
type Marker int

const (
	MarkerPending Marker = iota
	MarkerActive
	MarkerCompleted
)

func (m Marker) String() string {
	switch m {
	case MarkerPending:
		return "pending"
	case MarkerActive:
		return "active"
	case MarkerCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Stage is one rendered step of the pipeline.
type Stage struct {
	Status models.DownloadStatus
	Label  string
	Marker Marker
	Failed bool
}

// index returns the position of s in [Pipeline], or -1.
func index(s models.DownloadStatus) int {
	return lo.IndexOf(Pipeline, s)
}

// Markers renders the pipeline for status.
//
// Stages before the current one are completed, the current one is active and later ones pending.
// A failed download has no pipeline position of its own, so reached names the stage it failed in;
// that stage is drawn active and failed.
func Markers(status, reached models.DownloadStatus) []Stage {
	current := status
	failed := status == models.DownloadFailed
	if failed {
		current = reached
	}

	pos := index(current)
	if pos < 0 {
		pos = 0
	}

	return lo.Map(Pipeline, func(s models.DownloadStatus, i int) Stage {
		st := Stage{Status: s, Label: Label(s)}
		switch {
		case i < pos:
			st.Marker = MarkerCompleted
		case i == pos:
			st.Marker = MarkerActive
			st.Failed = failed
		default:
			st.Marker = MarkerPending
		}
		return st
	})
}
