package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/shared"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = songItem{}
)

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist models.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	count := i.playlist.SongCount
	if count == 0 {
		count = len(i.playlist.Songs)
	}
	desc := fmt.Sprintf("%d songs", count)
	if len(i.playlist.Tags) > 0 {
		desc = fmt.Sprintf("%s • %s", desc, strings.Join(i.playlist.Tags, ", "))
	}
	return desc
}

// songItem wraps a library [models.Track] to implement [list.Item].
type songItem struct {
	song models.Track
}

func (i songItem) FilterValue() string { return i.song.Title }
func (i songItem) Title() string       { return i.song.Title }
func (i songItem) Description() string {
	desc := shared.FormatDuration(i.song.Duration)
	if i.song.Size > 0 {
		desc = fmt.Sprintf("%s • %s", desc, shared.FormatFileSize(i.song.Size))
	}
	return desc
}

func playlistItems(playlists []models.Playlist) []list.Item {
	items := make([]list.Item, len(playlists))
	for i, pl := range playlists {
		items[i] = playlistItem{playlist: pl}
	}
	return items
}

func songItems(songs []models.Track) []list.Item {
	items := make([]list.Item, len(songs))
	for i, s := range songs {
		items[i] = songItem{song: s}
	}
	return items
}
