package downloads

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/jbx/internal/models"
)

func markers(stages []Stage) []Marker {
	out := make([]Marker, len(stages))
	for i, s := range stages {
		out[i] = s.Marker
	}
	return out
}

func TestMarkers(t *testing.T) {
	const (
		P = MarkerPending
		A = MarkerActive
		C = MarkerCompleted
	)

	tc := []struct {
		status models.DownloadStatus
		want   []Marker
	}{
		{models.DownloadPending, []Marker{A, P, P, P, P, P}},
		{models.DownloadDownloading, []Marker{C, A, P, P, P, P}},
		{models.DownloadProcessing, []Marker{C, C, A, P, P, P}},
		{models.DownloadNormalizing, []Marker{C, C, C, A, P, P}},
		{models.DownloadMoving, []Marker{C, C, C, C, A, P}},
		{models.DownloadCompleted, []Marker{C, C, C, C, C, A}},
	}

	for _, tt := range tc {
		t.Run(string(tt.status), func(t *testing.T) {
			stages := Markers(tt.status, tt.status)
			require.Len(t, stages, len(Pipeline))
			assert.Equal(t, tt.want, markers(stages))
			for _, s := range stages {
				assert.False(t, s.Failed)
			}
		})
	}

	t.Run("failed marks the reached stage active and failed", func(t *testing.T) {
		stages := Markers(models.DownloadFailed, models.DownloadProcessing)
		assert.Equal(t, []Marker{C, C, A, P, P, P}, markers(stages))
		assert.True(t, stages[2].Failed)
		assert.False(t, stages[1].Failed)
	})

	t.Run("failed before any stage falls on the first", func(t *testing.T) {
		stages := Markers(models.DownloadFailed, "")
		assert.Equal(t, A, stages[0].Marker)
		assert.True(t, stages[0].Failed)
	})
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Queued", Label(models.DownloadPending))
	assert.Equal(t, "Finalizing", Label(models.DownloadMoving))
	assert.Equal(t, "Failed", Label(models.DownloadFailed))
	assert.Equal(t, "mystery", Label("mystery"))
	assert.Equal(t, "active", MarkerActive.String())
}
