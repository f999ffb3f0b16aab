package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/jbx/internal/downloads"
	"github.com/desertthunder/jbx/internal/library"
	"github.com/desertthunder/jbx/internal/player"
	"github.com/desertthunder/jbx/internal/services"
	"github.com/desertthunder/jbx/internal/shared"
	"github.com/desertthunder/jbx/internal/stream"
)

// Options wires a session to its collaborators. Config and Jukebox are required.
type Options struct {
	Config  *shared.Config
	Jukebox *services.Jukebox

	// Cache receives every successful library refresh.
	Cache library.Cache
	// StreamClient is used for push channels and must not set a response timeout.
	StreamClient *http.Client

	PlayerRenderer    player.Renderer
	DownloadsRenderer downloads.Renderer
	LibraryRenderer   library.Renderer
	Notifier          shared.Notifier

	Clock  shared.Clock
	Logger *log.Logger
}

// Session is the explicit home for state that would otherwise be global.
type Session struct {
	Player    *player.Machine
	Downloads *downloads.Tracker
	Library   *library.Library

	playerStream    *stream.Client
	downloadsStream *stream.Client
	logger          *log.Logger
}

// New builds a session without opening any connections.
func New(opts Options) (*Session, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: session requires a config", shared.ErrMissingConfig)
	}
	if opts.Jukebox == nil {
		return nil, fmt.Errorf("%w: session requires a jukebox client", shared.ErrServiceUnavailable)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Clock == nil {
		opts.Clock = shared.SystemClock{}
	}

	cfg := opts.Config
	lib := library.New(opts.Jukebox, library.Options{
		Cache:    opts.Cache,
		Renderer: opts.LibraryRenderer,
		Notifier: opts.Notifier,
		Logger:   shared.WithLogger(opts.Logger, "component", "library"),
	})

	machine := player.New(opts.Jukebox, player.Options{
		Renderer: opts.PlayerRenderer,
		Notifier: opts.Notifier,
		Clock:    opts.Clock,
		Logger:   shared.WithLogger(opts.Logger, "component", "player"),
	})

	trackerOpts := downloads.OptionsFromConfig(cfg.Downloads)
	trackerOpts.Refresher = lib
	trackerOpts.Renderer = opts.DownloadsRenderer
	trackerOpts.Clock = opts.Clock
	trackerOpts.Logger = shared.WithLogger(opts.Logger, "component", "downloads")
	tracker := downloads.New(opts.Jukebox, trackerOpts)

	streamOpts := stream.OptionsFromConfig(cfg.Stream)
	streamOpts.HTTPClient = opts.StreamClient
	streamOpts.Clock = opts.Clock
	streamOpts.Logger = opts.Logger

	base := strings.TrimRight(cfg.Server.BaseURL, "/")
	return &Session{
		Player:          machine,
		Downloads:       tracker,
		Library:         lib,
		playerStream:    stream.NewClient(base+cfg.Server.PlayerStreamPath, machine.HandleEvent, streamOpts),
		downloadsStream: stream.NewClient(base+cfg.Server.DownloadsStreamPath, tracker.HandleEvent, streamOpts),
		logger:          opts.Logger,
	}, nil
}

// Start opens both channels, then loads player status, downloads and the library.
//
// Bootstrap failures are returned joined; the channels stay up regardless, and the next
// push or command repairs whatever could not be loaded.
func (s *Session) Start(ctx context.Context) error {
	s.playerStream.Connect()
	s.downloadsStream.Connect()

	return errors.Join(
		s.Player.Bootstrap(ctx),
		s.Downloads.Bootstrap(ctx),
		s.Library.Refresh(ctx),
	)
}

// Visible reopens any channel that is down, including one that exhausted its retries.
func (s *Session) Visible() {
	s.logger.Debug("session visible")
	s.playerStream.EnsureConnected()
	s.downloadsStream.EnsureConnected()
}

// Hidden closes both channels. Local state and timers are kept.
func (s *Session) Hidden() {
	s.logger.Debug("session hidden")
	s.playerStream.Close()
	s.downloadsStream.Close()
}

// Close shuts the channels and stops every timer the session owns.
func (s *Session) Close() {
	s.Hidden()
	s.Player.Stop()
	s.Downloads.Close()
}

// ChannelStates reports the connection state of the player and downloads channels.
func (s *Session) ChannelStates() (playerState, downloadsState stream.ConnState) {
	return s.playerStream.State(), s.downloadsStream.State()
}
