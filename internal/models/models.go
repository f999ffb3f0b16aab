// package models defines the data model shared by the jukebox client
package models

import (
	"fmt"
	"strings"
	"time"
)

// Track is a playable media item.
//
// Library listings fill Size and AddedDate; playlist entries and queue items fill LibrarySongID and AddedAt.
type Track struct {
	ID            string `json:"id"`
	LibrarySongID string `json:"library_song_id,omitempty"`
	Title         string `json:"title"`
	Filename      string `json:"filename,omitempty"`
	Duration      int    `json:"duration"`
	Size          int64  `json:"size,omitempty"`
	AddedDate     string `json:"added_date,omitempty"`
	AddedAt       string `json:"added_at,omitempty"`
}

// Validate reports whether the track can be stored.
func (t Track) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("track id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("track title is required")
	}
	if t.Duration < 0 {
		return fmt.Errorf("track duration must be >= 0")
	}
	return nil
}

// PlaylistRef is the lightweight playlist reference carried by player state.
type PlaylistRef struct {
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Playlist is a named ordered collection of tracks plus metadata.
type Playlist struct {
	Name           string   `json:"name"`
	SerializedName string   `json:"serialized_name,omitempty"`
	Tags           []string `json:"tags"`
	Image          string   `json:"image,omitempty"`
	Songs          []Track  `json:"songs"`
	CreatedAt      string   `json:"created_at,omitempty"`
	SongCount      int      `json:"song_count,omitempty"`
}

// Key returns the identifier used in playlist URLs.
func (p Playlist) Key() string {
	if p.SerializedName != "" {
		return p.SerializedName
	}
	return p.Name
}

// TotalDuration sums the duration of every song in seconds.
func (p Playlist) TotalDuration() int {
	total := 0
	for _, s := range p.Songs {
		total += s.Duration
	}
	return total
}

// DiscordStatus describes the voice bot's connectivity.
type DiscordStatus struct {
	BotReady         bool   `json:"bot_ready"`
	VoiceConnected   bool   `json:"voice_connected"`
	CurrentChannelID string `json:"current_channel_id,omitempty"`
	TargetChannelID  string `json:"target_channel_id,omitempty"`
}

// PlayerSnapshot is a complete authoritative player state payload.
//
// The same shape is returned by the status endpoint and pushed as player_state_change.
// Command responses name the playlist "playlist" instead of "current_playlist".
type PlayerSnapshot struct {
	IsPlaying       bool           `json:"is_playing"`
	IsPaused        bool           `json:"is_paused"`
	CurrentSong     *Track         `json:"current_song"`
	CurrentPlaylist *PlaylistRef   `json:"current_playlist"`
	Playlist        *PlaylistRef   `json:"playlist,omitempty"`
	QueuePosition   int            `json:"queue_position"`
	QueueLength     int            `json:"queue_length"`
	ShuffledQueue   []Track        `json:"shuffled_queue"`
	ElapsedTime     float64        `json:"elapsed_time"`
	SongDuration    float64        `json:"song_duration"`
	VoiceConnected  bool           `json:"voice_connected,omitempty"`
	BotReady        bool           `json:"bot_ready,omitempty"`
	DiscordStatus   *DiscordStatus `json:"discord_status,omitempty"`
}

// ActivePlaylist returns whichever playlist field the server populated.
func (s PlayerSnapshot) ActivePlaylist() *PlaylistRef {
	if s.CurrentPlaylist != nil {
		return s.CurrentPlaylist
	}
	return s.Playlist
}

// DownloadStatus is one stage of the server's download pipeline.
type DownloadStatus string

const (
	DownloadPending     DownloadStatus = "pending"
	DownloadDownloading DownloadStatus = "downloading"
	DownloadProcessing  DownloadStatus = "processing"
	DownloadNormalizing DownloadStatus = "normalizing"
	DownloadMoving      DownloadStatus = "moving"
	DownloadCompleted   DownloadStatus = "completed"
	DownloadFailed      DownloadStatus = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s DownloadStatus) Terminal() bool {
	return s == DownloadCompleted || s == DownloadFailed
}

// Valid reports whether s is a status the server emits.
func (s DownloadStatus) Valid() bool {
	switch s {
	case DownloadPending, DownloadDownloading, DownloadProcessing, DownloadNormalizing,
		DownloadMoving, DownloadCompleted, DownloadFailed:
		return true
	}
	return false
}

// DownloadEntry is one background download as reported by the server.
type DownloadEntry struct {
	ID             string         `json:"id"`
	URL            string         `json:"url,omitempty"`
	TargetPlaylist string         `json:"target_playlist,omitempty"`
	Status         DownloadStatus `json:"status"`
	Progress       float64        `json:"progress,omitempty"`
	Message        string         `json:"message"`
	Title          string         `json:"title"`
	Uploader       string         `json:"uploader"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      float64        `json:"created_at,omitempty"`
}

// Created converts the server's epoch seconds to a [time.Time].
func (d DownloadEntry) Created() time.Time {
	if d.CreatedAt == 0 {
		return time.Time{}
	}
	sec := int64(d.CreatedAt)
	nsec := int64((d.CreatedAt - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// DisplayTitle falls back to the URL until the server has resolved a title.
func (d DownloadEntry) DisplayTitle() string {
	switch {
	case d.Title != "":
		return d.Title
	case d.URL != "":
		return d.URL
	default:
		return d.ID
	}
}

// DiscordSettings holds the bot credentials.
type DiscordSettings struct {
	BotToken  string `json:"botToken"`
	ChannelID string `json:"channelId"`
	Connected bool   `json:"connected"`
}

// GeneralSettings holds playback preferences.
type GeneralSettings struct {
	AutoPlay          bool `json:"autoPlay"`
	ShowNotifications bool `json:"showNotifications"`
	DefaultVolume     int  `json:"defaultVolume"`
}

// Settings is the server-side settings document.
type Settings struct {
	Discord DiscordSettings `json:"discord"`
	General GeneralSettings `json:"general"`
}

// DefaultSettings mirrors what the server returns before anything is saved.
func DefaultSettings() Settings {
	return Settings{
		General: GeneralSettings{AutoPlay: true, ShowNotifications: true, DefaultVolume: 50},
	}
}

// MaskedToken hides all but the last four characters of the bot token.
func (d DiscordSettings) MaskedToken() string {
	if len(d.BotToken) <= 4 {
		return strings.Repeat("*", len(d.BotToken))
	}
	return strings.Repeat("*", len(d.BotToken)-4) + d.BotToken[len(d.BotToken)-4:]
}
