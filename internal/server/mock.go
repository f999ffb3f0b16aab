package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/shared"
)

const (
	DefaultStageDelay = 750 * time.Millisecond
	// recentDownloadWindow is how long finished downloads stay in the status listing.
	recentDownloadWindow = 30 * time.Second
)

// MockOptions tunes the mock backend. Zero values get defaults.
type MockOptions struct {
	// StageDelay is how long a simulated download spends in each stage.
	StageDelay time.Duration
	Heartbeat  time.Duration
	// Shuffle orders a playlist's songs into the play queue.
	Shuffle func([]models.Track) []models.Track
	Clock   shared.Clock
	Logger  *log.Logger
}

// Mock is an in-memory jukebox server.
type Mock struct {
	opts   MockOptions
	logger *log.Logger

	// PlayerStream carries player_state_change and discord_status_change messages.
	PlayerStream *Broker
	// DownloadsStream carries download entries.
	DownloadsStream *Broker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	playing    bool
	paused     bool
	current    *models.Playlist
	queue      []models.Track
	index      int
	startedAt  time.Time
	pausedAt   time.Time
	duration   float64
	advance    shared.Timer
	advanceGen int
	discord    models.DiscordStatus
	settings   models.Settings
	songs      []models.Track
	playlists  map[string]*models.Playlist
	downloads  map[string]*models.DownloadEntry
	images     map[string][]byte
}

// NewMock creates an empty mock with the bot online but not in a voice channel.
func NewMock(opts MockOptions) *Mock {
	if opts.StageDelay <= 0 {
		opts.StageDelay = DefaultStageDelay
	}
	if opts.Shuffle == nil {
		opts.Shuffle = func(songs []models.Track) []models.Track {
			return lo.Shuffle(slices.Clone(songs))
		}
	}
	if opts.Clock == nil {
		opts.Clock = shared.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Mock{
		opts:      opts,
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
		discord:   models.DiscordStatus{BotReady: true},
		settings:  models.DefaultSettings(),
		playlists: map[string]*models.Playlist{},
		downloads: map[string]*models.DownloadEntry{},
		images:    map[string][]byte{},
	}
	m.PlayerStream = NewBroker("player", BrokerOptions{
		Heartbeat: opts.Heartbeat,
		Initial:   func() any { return m.playerEvent() },
		Logger:    opts.Logger,
	})
	m.DownloadsStream = NewBroker("downloads", BrokerOptions{Heartbeat: opts.Heartbeat, Logger: opts.Logger})
	return m
}

// Seed fills the library with demo songs, one playlist and Discord credentials.
func (m *Mock) Seed() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.Clock.Now()
	demo := []struct {
		title    string
		duration int
	}{
		{"Blue Monday", 449},
		{"Ceremony", 262},
		{"Age of Consent", 315},
		{"Temptation", 420},
		{"Regret", 250},
	}
	for i, d := range demo {
		m.songs = append(m.songs, models.Track{
			ID:        shared.GenerateID(),
			Title:     d.title,
			Filename:  d.title + ".mp3",
			Duration:  d.duration,
			Size:      int64(d.duration) * 16000,
			AddedDate: now.Add(-time.Duration(i) * time.Hour).Format(time.RFC3339),
		})
	}

	pl := &models.Playlist{
		Name:           "Road Trip",
		SerializedName: serializeName("Road Trip"),
		Tags:           []string{"driving"},
		CreatedAt:      now.Format(time.RFC3339),
	}
	for _, s := range m.songs[:3] {
		pl.Songs = append(pl.Songs, playlistEntry(s, now))
	}
	m.playlists[pl.SerializedName] = pl

	m.settings.Discord = models.DiscordSettings{
		BotToken:  "mock-token-" + shared.GenerateID(),
		ChannelID: "123456789012345678",
	}
}

// Handler returns the router serving every mock endpoint.
func (m *Mock) Handler() http.Handler {
	r := NewBasicRouter()
	r.Use(Recover(m.logger), Logging(m.logger))

	r.HandleFunc(http.MethodGet, "/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	r.Handle(http.MethodGet, "/api/player/stream", m.PlayerStream)
	r.Handle(http.MethodGet, "/api/downloads/stream", m.DownloadsStream)

	r.HandleFunc(http.MethodGet, "/api/player/status", m.handlePlayerStatus)
	r.HandleFunc(http.MethodPost, "/player/playpause", m.handleToggle)
	r.HandleFunc(http.MethodPost, "/player/next", m.handleNext)
	r.HandleFunc(http.MethodPost, "/player/previous", m.handlePrevious)
	r.HandleFunc(http.MethodPost, "/player/play", m.handlePlay)

	r.HandleFunc(http.MethodGet, "/api/discord/status", m.handleDiscordStatus)
	r.HandleFunc(http.MethodPost, "/api/discord/join-voice", m.handleJoinVoice)
	r.HandleFunc(http.MethodPost, "/api/discord/leave-voice", m.handleLeaveVoice)

	r.HandleFunc(http.MethodGet, "/api/downloads/status", m.handleDownloadsStatus)
	r.HandleFunc(http.MethodGet, "/api/library", m.handleLibrary)
	r.HandleFunc(http.MethodPost, "/api/library", m.handleAddToLibrary)
	r.HandleFunc(http.MethodPost, "/api/library/{id}/rename", m.handleRename)
	r.HandleFunc(http.MethodDelete, "/api/library/{id}/delete", m.handleDeleteSong)

	r.HandleFunc(http.MethodGet, "/api/playlists", m.handlePlaylists)
	r.HandleFunc(http.MethodGet, "/api/playlists/{name}", m.handlePlaylist)
	r.HandleFunc(http.MethodPost, "/playlists/{name}", m.handleCreatePlaylist)
	r.HandleFunc(http.MethodPut, "/playlists/{name}", m.handleUpdatePlaylist)
	r.HandleFunc(http.MethodDelete, "/playlists/{name}", m.handleDeletePlaylist)
	r.HandleFunc(http.MethodPost, "/api/playlists/{name}/songs", m.handleAddPlaylistSong)
	r.HandleFunc(http.MethodDelete, "/api/playlists/{name}/songs/{song_id}", m.handleRemovePlaylistSong)

	r.HandleFunc(http.MethodGet, "/static/img/{file}", m.handleImage)

	r.HandleFunc(http.MethodGet, "/api/settings", m.handleSettings)
	r.HandleFunc(http.MethodPost, "/api/settings", m.handleSaveSettings)
	r.HandleFunc(http.MethodPost, "/api/settings/test-discord", m.handleTestDiscord)

	return r
}

// Close stops the download pipeline and disconnects every stream client.
func (m *Mock) Close() {
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	m.stopAdvanceLocked()
	m.mu.Unlock()

	m.PlayerStream.Close()
	m.DownloadsStream.Close()
}

// Songs returns a copy of the library.
func (m *Mock) Songs() []models.Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.songs)
}

// serializeName derives the playlist key from its display name.
func serializeName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])[:16]
}

func playlistEntry(s models.Track, now time.Time) models.Track {
	return models.Track{
		ID:            shared.GenerateID(),
		LibrarySongID: s.ID,
		Title:         s.Title,
		Filename:      s.Filename,
		Duration:      s.Duration,
		AddedAt:       now.Format(time.RFC3339),
	}
}

func (m *Mock) songIndexLocked(id string) int {
	return slices.IndexFunc(m.songs, func(s models.Track) bool { return s.ID == id })
}
