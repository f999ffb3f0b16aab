package player

import (
	"github.com/samber/lo"

	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/shared"
)

// Placeholder texts shown when there is nothing to render.
const (
	NoSongPlaying = "No song playing"
	NoSongsQueued = "No songs in queue"
	LastSong      = "Last song in queue"
)

// Icon names for the transport button.
const (
	IconPlay  = "play"
	IconPause = "pause"
)

// State is the player's view of the server transport plus the local progress clock.
//
// IsPlaying and IsPaused are independent: both false means no session, both true means a paused session.
type State struct {
	IsPlaying       bool
	IsPaused        bool
	CurrentSong     *models.Track
	CurrentPlaylist *models.PlaylistRef
	QueuePosition   int
	QueueLength     int
	ShuffledQueue   []models.Track
	ElapsedTime     int
	SongDuration    int
	Discord         models.DiscordStatus
}

// Active reports whether the local clock should be ticking.
func (s State) Active() bool {
	return s.IsPlaying && !s.IsPaused
}

// Title returns the current song's title or the placeholder.
func (s State) Title() string {
	if s.CurrentSong == nil || s.CurrentSong.Title == "" {
		return NoSongPlaying
	}
	return s.CurrentSong.Title
}

// PlaylistName returns the name of the playing playlist, or "".
func (s State) PlaylistName() string {
	if s.CurrentPlaylist == nil {
		return ""
	}
	return s.CurrentPlaylist.Name
}

// Icon is the transport button to show: pause while audio is running, play otherwise.
func (s State) Icon() string {
	if s.Active() {
		return IconPause
	}
	return IconPlay
}

// Percent is elapsed over duration as 0-100, capped at 100.
func (s State) Percent() float64 {
	if s.SongDuration <= 0 {
		return 0
	}
	return min(float64(s.ElapsedTime)/float64(s.SongDuration)*100, 100)
}

// Fraction is [State.Percent] scaled to 0-1 for progress widgets.
func (s State) Fraction() float64 {
	return s.Percent() / 100
}

// Elapsed formats the local clock as M:SS.
func (s State) Elapsed() string { return shared.FormatDuration(s.ElapsedTime) }

// Duration formats the song length as M:SS.
func (s State) Duration() string { return shared.FormatDuration(s.SongDuration) }

// Upcoming is every queued track strictly after the current position.
func (s State) Upcoming() []models.Track {
	if s.QueuePosition+1 >= len(s.ShuffledQueue) {
		return nil
	}
	return lo.Drop(s.ShuffledQueue, max(s.QueuePosition+1, 0))
}

// QueueMessage is the empty-state text for the upcoming list, or "" when tracks are upcoming.
func (s State) QueueMessage() string {
	switch {
	case len(s.ShuffledQueue) == 0:
		return NoSongsQueued
	case len(s.Upcoming()) == 0:
		return LastSong
	default:
		return ""
	}
}

// clone copies the slices so renderers never share memory with the machine.
func (s State) clone() State {
	out := s
	if s.ShuffledQueue != nil {
		out.ShuffledQueue = append([]models.Track(nil), s.ShuffledQueue...)
	}
	if s.CurrentSong != nil {
		song := *s.CurrentSong
		out.CurrentSong = &song
	}
	if s.CurrentPlaylist != nil {
		pl := *s.CurrentPlaylist
		out.CurrentPlaylist = &pl
	}
	return out
}
