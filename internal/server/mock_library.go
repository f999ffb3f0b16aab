package server

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/jbx/internal/library"
	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/shared"
)

var unsafeTitle = regexp.MustCompile(`[^\w\s\-().,']`)

// stage is one step of the simulated download pipeline.
type stage struct {
	status   models.DownloadStatus
	progress int
	message  string
}

var pipeline = []stage{
	{models.DownloadDownloading, 10, "Downloading from YouTube..."},
	{models.DownloadProcessing, 60, "Converting to MP3..."},
	{models.DownloadNormalizing, 80, "Normalizing audio..."},
	{models.DownloadMoving, 95, "Moving to library..."},
}

func (m *Mock) handleDownloadsStatus(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	now := m.opts.Clock.Now()
	list := []models.DownloadEntry{}
	for _, d := range m.downloads {
		if d.Status.Terminal() && now.Sub(d.Created()) >= recentDownloadWindow {
			continue
		}
		list = append(list, *d)
	}
	m.mu.Unlock()

	slices.SortFunc(list, func(a, b models.DownloadEntry) int {
		switch {
		case a.CreatedAt < b.CreatedAt:
			return -1
		case a.CreatedAt > b.CreatedAt:
			return 1
		default:
			return strings.Compare(a.ID, b.ID)
		}
	})
	writeJSON(w, http.StatusOK, map[string]any{"downloads": list})
}

func (m *Mock) handleLibrary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"songs": m.Songs()})
}

func (m *Mock) handleAddToLibrary(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL            string `json:"url"`
		AutoAdd        bool   `json:"auto_add_playlist"`
		TargetPlaylist string `json:"target_playlist"`
	}
	if err := readJSON(r, &body); err != nil || body.URL == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}

	rawURL := strings.TrimSpace(body.URL)
	if err := library.ValidateURL(rawURL); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid YouTube URL")
		return
	}

	target := ""
	if body.AutoAdd {
		target = body.TargetPlaylist
	}
	entry := m.startDownload(rawURL, target)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"download_id": entry.ID,
		"message":     "Download started successfully",
	})
}

// startDownload registers a pending download, pushes it, and advances it in the background.
func (m *Mock) startDownload(rawURL, target string) models.DownloadEntry {
	now := m.opts.Clock.Now()
	entry := &models.DownloadEntry{
		ID:             shared.GenerateID(),
		URL:            rawURL,
		TargetPlaylist: target,
		Status:         models.DownloadPending,
		Message:        "Queued for download",
		CreatedAt:      float64(now.UnixNano()) / float64(time.Second),
	}

	m.mu.Lock()
	m.downloads[entry.ID] = entry
	snapshot := *entry
	m.mu.Unlock()

	_ = m.DownloadsStream.Publish(snapshot)

	m.wg.Add(1)
	go m.runDownload(entry.ID)
	return snapshot
}

func (m *Mock) runDownload(id string) {
	defer m.wg.Done()

	for i, st := range pipeline {
		if !m.sleep(m.opts.StageDelay) {
			return
		}

		m.updateDownload(id, func(d *models.DownloadEntry) {
			d.Status = st.status
			d.Progress = float64(st.progress)
			d.Message = st.message
			if i == 0 {
				d.Title = "Mock video " + videoID(d.URL)
				d.Uploader = "jbx mock"
			}
		})

		if st.status == models.DownloadDownloading && strings.Contains(m.download(id).URL, "fail") {
			if !m.sleep(m.opts.StageDelay) {
				return
			}
			m.updateDownload(id, func(d *models.DownloadEntry) {
				d.Status = models.DownloadFailed
				d.Message = "Download failed"
				d.Error = "Video unavailable"
			})
			return
		}
	}

	if !m.sleep(m.opts.StageDelay) {
		return
	}
	m.finishDownload(id)
}

func (m *Mock) finishDownload(id string) {
	m.mu.Lock()
	d := m.downloads[id]
	now := m.opts.Clock.Now()
	song := models.Track{
		ID:        shared.GenerateID(),
		Title:     d.Title,
		Filename:  d.Title + ".mp3",
		Duration:  180,
		Size:      180 * 16000,
		AddedDate: now.Format(time.RFC3339),
	}
	m.songs = append([]models.Track{song}, m.songs...)

	if d.TargetPlaylist != "" {
		if pl := m.findPlaylistLocked(d.TargetPlaylist); pl != nil {
			pl.Songs = append(pl.Songs, playlistEntry(song, now))
		}
	}

	d.Status = models.DownloadCompleted
	d.Progress = 100
	d.Message = "Download completed successfully"
	snapshot := *d
	m.mu.Unlock()

	_ = m.DownloadsStream.Publish(snapshot)
}

func (m *Mock) download(id string) models.DownloadEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.downloads[id]
}

func (m *Mock) updateDownload(id string, fn func(*models.DownloadEntry)) {
	m.mu.Lock()
	d, ok := m.downloads[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	fn(d)
	snapshot := *d
	m.mu.Unlock()

	_ = m.DownloadsStream.Publish(snapshot)
}

// sleep waits d on the mock's clock, returning false if the mock closes first.
func (m *Mock) sleep(d time.Duration) bool {
	done := make(chan struct{})
	t := m.opts.Clock.AfterFunc(d, func() { close(done) })
	select {
	case <-done:
		return true
	case <-m.ctx.Done():
		t.Stop()
		return false
	}
}

func videoID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	return path.Base(u.Path)
}

func (m *Mock) handleRename(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title *string `json:"title"`
	}
	if err := readJSON(r, &body); err != nil || body.Title == nil {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}
	title := strings.TrimSpace(*body.Title)
	if title == "" {
		writeError(w, http.StatusBadRequest, "Title cannot be empty")
		return
	}

	id := r.PathValue("id")

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.songIndexLocked(id)
	if i < 0 {
		writeError(w, http.StatusNotFound, "Song not found")
		return
	}

	filename := m.uniqueFilenameLocked(strings.TrimSpace(unsafeTitle.ReplaceAllString(title, "")), id)
	m.songs[i].Title = title
	m.songs[i].Filename = filename
	for _, pl := range m.playlists {
		for j := range pl.Songs {
			if pl.Songs[j].LibrarySongID == id {
				pl.Songs[j].Title = title
				pl.Songs[j].Filename = filename
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Song renamed successfully",
		"new_filename": filename,
	})
}

// uniqueFilenameLocked returns base.mp3, or "base (n).mp3" if another song already uses it.
func (m *Mock) uniqueFilenameLocked(base, id string) string {
	if base == "" {
		base = "untitled"
	}
	taken := func(name string) bool {
		return slices.ContainsFunc(m.songs, func(s models.Track) bool { return s.ID != id && s.Filename == name })
	}

	name := base + ".mp3"
	for n := 1; taken(name); n++ {
		name = fmt.Sprintf("%s (%d).mp3", base, n)
	}
	return name
}

func (m *Mock) handleDeleteSong(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.songIndexLocked(id)
	if i < 0 {
		writeError(w, http.StatusNotFound, "Song not found")
		return
	}
	m.songs = slices.Delete(m.songs, i, i+1)

	removed := []string{}
	for _, pl := range m.playlists {
		before := len(pl.Songs)
		pl.Songs = slices.DeleteFunc(pl.Songs, func(s models.Track) bool { return s.LibrarySongID == id })
		if len(pl.Songs) != before {
			removed = append(removed, pl.Name)
		}
	}
	slices.Sort(removed)

	msg := "Song deleted successfully"
	if len(removed) > 0 {
		msg += fmt.Sprintf(" and removed from %d playlist(s): %s", len(removed), strings.Join(removed, ", "))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":                true,
		"message":                msg,
		"removed_from_playlists": removed,
	})
}
