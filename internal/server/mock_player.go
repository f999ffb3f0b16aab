package server

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/desertthunder/jbx/internal/models"
)

var channelIDPattern = regexp.MustCompile(`^\d{17,19}$`)

type playerPayload struct {
	Type    string `json:"type,omitempty"`
	Success bool   `json:"success,omitempty"`
	models.PlayerSnapshot
}

// transportPayload is the response to play, next and previous.
type transportPayload struct {
	Success       bool                `json:"success"`
	Message       string              `json:"message"`
	CurrentSong   *models.Track       `json:"current_song"`
	Playlist      *models.PlaylistRef `json:"playlist"`
	QueuePosition int                 `json:"queue_position"`
	QueueLength   int                 `json:"queue_length"`
	ShuffledQueue []models.Track      `json:"shuffled_queue"`
}

type discordPayload struct {
	Type          string               `json:"type"`
	DiscordStatus models.DiscordStatus `json:"discord_status"`
}

func (m *Mock) currentSongLocked() *models.Track {
	if m.current == nil || m.index >= len(m.queue) {
		return nil
	}
	s := m.queue[m.index]
	return &s
}

func (m *Mock) playlistRefLocked() *models.PlaylistRef {
	if m.current == nil {
		return nil
	}
	return &models.PlaylistRef{Name: m.current.Name, Image: m.current.Image}
}

func (m *Mock) elapsedLocked() float64 {
	switch {
	case m.startedAt.IsZero():
		return 0
	case m.paused && !m.pausedAt.IsZero():
		return m.pausedAt.Sub(m.startedAt).Seconds()
	case m.playing:
		return m.opts.Clock.Now().Sub(m.startedAt).Seconds()
	default:
		return 0
	}
}

func (m *Mock) snapshotLocked() models.PlayerSnapshot {
	s := models.PlayerSnapshot{
		IsPlaying:       m.playing,
		IsPaused:        m.paused,
		CurrentSong:     m.currentSongLocked(),
		CurrentPlaylist: m.playlistRefLocked(),
		ShuffledQueue:   []models.Track{},
		ElapsedTime:     m.elapsedLocked(),
		SongDuration:    m.duration,
	}
	if len(m.queue) > 0 {
		s.QueuePosition = m.index
		s.QueueLength = len(m.queue)
		s.ShuffledQueue = append(s.ShuffledQueue, m.queue...)
	}
	return s
}

func (m *Mock) playerEvent() playerPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playerEventLocked()
}

func (m *Mock) playerEventLocked() playerPayload {
	s := m.snapshotLocked()
	d := m.discord
	s.DiscordStatus = &d
	return playerPayload{Type: "player_state_change", PlayerSnapshot: s}
}

func (m *Mock) discordEventLocked() discordPayload {
	return discordPayload{Type: "discord_status_change", DiscordStatus: m.discord}
}

func (m *Mock) transportLocked(msg string) transportPayload {
	return transportPayload{
		Success:       true,
		Message:       msg,
		CurrentSong:   m.currentSongLocked(),
		Playlist:      m.playlistRefLocked(),
		QueuePosition: m.index,
		QueueLength:   len(m.queue),
		ShuffledQueue: append([]models.Track{}, m.queue...),
	}
}

// startSongLocked starts the queue entry at m.index from zero and arms auto-advance.
func (m *Mock) startSongLocked() {
	song := m.queue[m.index]
	m.playing = true
	m.paused = false
	m.startedAt = m.opts.Clock.Now()
	m.pausedAt = time.Time{}
	m.duration = float64(song.Duration)
	m.scheduleAdvanceLocked(time.Duration(song.Duration) * time.Second)
}

func (m *Mock) scheduleAdvanceLocked(d time.Duration) {
	m.stopAdvanceLocked()
	if d <= 0 {
		return
	}
	gen := m.advanceGen
	m.advance = m.opts.Clock.AfterFunc(d, func() { m.autoAdvance(gen) })
}

func (m *Mock) stopAdvanceLocked() {
	m.advanceGen++
	if m.advance != nil {
		m.advance.Stop()
		m.advance = nil
	}
}

// autoAdvance moves to the next song when the current one ends and tells every client.
func (m *Mock) autoAdvance(gen int) {
	m.mu.Lock()
	if gen != m.advanceGen || len(m.queue) == 0 {
		m.mu.Unlock()
		return
	}
	m.advance = nil
	m.index = (m.index + 1) % len(m.queue)
	m.startSongLocked()
	ev := m.playerEventLocked()
	m.mu.Unlock()

	m.logger.Debug("auto advanced", "position", ev.QueuePosition)
	_ = m.PlayerStream.Publish(ev)
}

func (m *Mock) handlePlayerStatus(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	s := m.snapshotLocked()
	s.VoiceConnected = m.discord.VoiceConnected
	s.BotReady = m.discord.BotReady
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, playerPayload{Success: true, PlayerSnapshot: s})
}

func (m *Mock) handleToggle(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.discord.VoiceConnected {
		writeError(w, http.StatusBadRequest, "Not connected to voice channel")
		return
	}
	if m.currentSongLocked() == nil {
		writeError(w, http.StatusInternalServerError, "Nothing is playing")
		return
	}

	now := m.opts.Clock.Now()
	msg := "Resumed"
	if m.playing {
		m.playing, m.paused = false, true
		m.pausedAt = now
		m.stopAdvanceLocked()
		msg = "Paused"
	} else {
		if !m.pausedAt.IsZero() {
			m.startedAt = m.startedAt.Add(now.Sub(m.pausedAt))
		}
		m.playing, m.paused = true, false
		m.pausedAt = time.Time{}
		remaining := time.Duration((m.duration - m.elapsedLocked()) * float64(time.Second))
		m.scheduleAdvanceLocked(remaining)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    msg,
		"is_playing": m.playing,
		"is_paused":  m.paused,
	})
}

func (m *Mock) handleNext(w http.ResponseWriter, _ *http.Request) { m.skip(w, 1) }

func (m *Mock) handlePrevious(w http.ResponseWriter, _ *http.Request) { m.skip(w, -1) }

// skip moves through the queue, wrapping at either end. Manual skips are not pushed.
func (m *Mock) skip(w http.ResponseWriter, step int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		writeError(w, http.StatusInternalServerError, "No playlist is currently playing")
		return
	}
	if !m.discord.VoiceConnected {
		writeError(w, http.StatusInternalServerError, "Not connected to voice channel")
		return
	}

	n := len(m.queue)
	m.index = ((m.index+step)%n + n) % n
	m.startSongLocked()

	msg := "Skipped to next song"
	if step < 0 {
		msg = "Skipped to previous song"
	}
	writeJSON(w, http.StatusOK, m.transportLocked(msg))
}

func (m *Mock) handlePlay(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PlaylistName string `json:"playlist_name"`
	}
	if err := readJSON(r, &body); err != nil || strings.TrimSpace(body.PlaylistName) == "" {
		writeError(w, http.StatusBadRequest, "Playlist name is required")
		return
	}

	m.mu.Lock()
	pl := m.findPlaylistLocked(body.PlaylistName)
	if pl == nil {
		m.mu.Unlock()
		writeError(w, http.StatusNotFound, "Playlist not found")
		return
	}
	if len(pl.Songs) == 0 {
		m.mu.Unlock()
		writeError(w, http.StatusBadRequest, "Playlist is empty")
		return
	}

	var joined *discordPayload
	if !m.discord.VoiceConnected {
		channel := strings.TrimSpace(m.settings.Discord.ChannelID)
		if channel == "" {
			m.mu.Unlock()
			writeError(w, http.StatusBadRequest, "Discord channel not configured")
			return
		}
		m.discord.VoiceConnected = true
		m.discord.CurrentChannelID = channel
		ev := m.discordEventLocked()
		joined = &ev
	}

	m.current = pl
	m.queue = m.opts.Shuffle(pl.Songs)
	m.index = 0
	m.startSongLocked()
	resp := m.transportLocked("Playlist started playing")
	m.mu.Unlock()

	if joined != nil {
		_ = m.PlayerStream.Publish(joined)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (m *Mock) handleDiscordStatus(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"bot_ready":          m.discord.BotReady,
		"voice_connected":    m.discord.VoiceConnected,
		"current_channel_id": m.discord.CurrentChannelID,
		"target_channel_id":  m.settings.Discord.ChannelID,
	})
}

func (m *Mock) handleJoinVoice(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	channel := strings.TrimSpace(m.settings.Discord.ChannelID)
	switch {
	case channel == "":
		m.mu.Unlock()
		writeError(w, http.StatusBadRequest, "Channel ID must be configured in settings")
		return
	case !channelIDPattern.MatchString(channel):
		m.mu.Unlock()
		writeError(w, http.StatusBadRequest, "Invalid channel ID format")
		return
	}

	m.discord.VoiceConnected = true
	m.discord.CurrentChannelID = channel
	ev := m.discordEventLocked()
	m.mu.Unlock()

	_ = m.PlayerStream.Publish(ev)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Joined voice channel " + channel})
}

// handleLeaveVoice disconnects the bot and resets the player, pushing both changes.
func (m *Mock) handleLeaveVoice(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	if !m.discord.VoiceConnected {
		m.mu.Unlock()
		writeError(w, http.StatusInternalServerError, "Not connected to a voice channel")
		return
	}

	m.discord.VoiceConnected = false
	m.discord.CurrentChannelID = ""
	m.stopAdvanceLocked()
	m.playing, m.paused = false, true
	m.current = nil
	m.queue = nil
	m.index = 0
	m.startedAt, m.pausedAt = time.Time{}, time.Time{}
	m.duration = 0

	discord := m.discordEventLocked()
	player := m.playerEventLocked()
	m.mu.Unlock()

	_ = m.PlayerStream.Publish(discord)
	_ = m.PlayerStream.Publish(player)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Left voice channel"})
}
