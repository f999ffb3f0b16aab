package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jbx/internal/player"
	"github.com/desertthunder/jbx/internal/shared"
	"github.com/desertthunder/jbx/internal/stream"
)

// watchPoll is how often watch commands check whether their channel gave up.
const watchPoll = 500 * time.Millisecond

// notifier prints info and success notices; errors are returned to the caller instead.
func (r *Runner) notifier() shared.Notifier {
	return shared.NotifierFunc(func(l shared.Level, msg string) {
		switch l {
		case shared.LevelSuccess:
			r.writePlain("✓ %s\n", msg)
		case shared.LevelInfo:
			r.writePlain("%s\n", msg)
		default:
			r.logger.Debug("notice", "level", l, "msg", msg)
		}
	})
}

func (r *Runner) playerMachine(renderer player.Renderer) *player.Machine {
	return player.New(r.jukebox, player.Options{
		Renderer: renderer,
		Notifier: r.notifier(),
		Logger:   shared.WithLogger(r.logger, "component", "player"),
	})
}

// PlayerStatus loads and prints the current player state.
func (r *Runner) PlayerStatus(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("json") {
		snapshot, err := r.jukebox.PlayerStatus(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		return r.writeJSON(snapshot, cmd.Bool("pretty"))
	}

	m := r.playerMachine(nil)
	defer m.Stop()
	if err := m.Bootstrap(ctx); err != nil {
		return err
	}
	r.writePlayerState(m.State())
	return nil
}

// PlayerToggle pauses or resumes playback.
func (r *Runner) PlayerToggle(ctx context.Context, cmd *cli.Command) error {
	m := r.playerMachine(nil)
	defer m.Stop()
	if err := m.TogglePlayback(ctx); err != nil {
		return err
	}
	if m.State().Active() {
		r.writePlain("▶ Resumed\n")
	} else {
		r.writePlain("⏸ Paused\n")
	}
	return nil
}

// PlayerNext skips to the next song.
func (r *Runner) PlayerNext(ctx context.Context, cmd *cli.Command) error {
	m := r.playerMachine(nil)
	defer m.Stop()
	if err := m.SkipToNext(ctx); err != nil {
		return err
	}
	r.writePlain("⏭ %s\n", m.State().Title())
	return nil
}

// PlayerPrevious goes back one song.
func (r *Runner) PlayerPrevious(ctx context.Context, cmd *cli.Command) error {
	m := r.playerMachine(nil)
	defer m.Stop()
	if err := m.SkipToPrevious(ctx); err != nil {
		return err
	}
	r.writePlain("⏮ %s\n", m.State().Title())
	return nil
}

// PlayerPlay starts a shuffled run of a playlist.
func (r *Runner) PlayerPlay(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("playlist")
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	m := r.playerMachine(nil)
	defer m.Stop()
	if err := m.PlayPlaylist(ctx, name); err != nil {
		return err
	}
	st := m.State()
	r.writePlain("▶ %s\n", st.Title())
	r.writePlain("  from %s (%d songs queued)\n", st.PlaylistName(), st.QueueLength)
	return nil
}

// PlayerWatch follows the player channel and prints each song or transport change.
func (r *Runner) PlayerWatch(ctx context.Context, cmd *cli.Command) error {
	var (
		mu   sync.Mutex
		last string
	)
	renderer := player.RendererFunc(func(st player.State) {
		mu.Lock()
		defer mu.Unlock()
		line := playerLine(st)
		if line == last {
			return
		}
		last = line
		r.writePlain("%s %s\n", time.Now().Format(time.TimeOnly), line)
	})

	m := r.playerMachine(renderer)
	defer m.Stop()

	client := r.streamClient(r.config.Server.PlayerStreamPath, m.HandleEvent)
	client.Connect()
	defer client.Close()

	if err := m.Bootstrap(ctx); err != nil {
		r.logger.Warn("initial status unavailable, waiting for pushes", "err", err)
	}
	return r.watch(ctx, client)
}

// streamClient builds a push channel client for path on the configured server.
func (r *Runner) streamClient(path string, handler stream.Handler) *stream.Client {
	opts := stream.OptionsFromConfig(r.config.Stream)
	opts.Logger = r.logger
	url := strings.TrimRight(r.config.Server.BaseURL, "/") + path
	return stream.NewClient(url, handler, opts)
}

// watch blocks until ctx is done or client exhausts its reconnect attempts.
func (r *Runner) watch(ctx context.Context, client *stream.Client) error {
	ticker := time.NewTicker(watchPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if client.State() == stream.Closed && client.Attempts() >= r.config.Stream.MaxReconnectAttempts {
				return fmt.Errorf("%w: %s", shared.ErrMaxReconnects, client.URL())
			}
		}
	}
}

// playerLine is the one-line summary printed by watch; it omits the clock so ticks are quiet.
func playerLine(st player.State) string {
	icon := "■"
	switch {
	case st.Active():
		icon = "▶"
	case st.IsPaused:
		icon = "⏸"
	}
	line := fmt.Sprintf("%s %s", icon, st.Title())
	if name := st.PlaylistName(); name != "" {
		line += fmt.Sprintf(" [%s %d/%d]", name, st.QueuePosition+1, st.QueueLength)
	}
	if !st.Discord.VoiceConnected {
		line += " (voice disconnected)"
	}
	return line
}

func (r *Runner) writePlayerState(st player.State) {
	r.writePlainHeader("Now Playing")
	r.writePlain("%s\n", playerLine(st))
	if st.CurrentSong != nil {
		r.writePlain("%s / %s (%.0f%%)\n", st.Elapsed(), st.Duration(), st.Percent())
	}

	r.writePlainln("Up next:")
	if msg := st.QueueMessage(); msg != "" {
		r.writePlain("  %s\n", msg)
	}
	for i, t := range st.Upcoming() {
		if i == 5 {
			r.writePlain("  … and %d more\n", len(st.Upcoming())-i)
			break
		}
		r.writePlain("  %d. %s (%s)\n", i+1, t.Title, shared.FormatDuration(t.Duration))
	}

	r.writePlainln("Discord:")
	r.writePlain("  bot ready: %v, voice connected: %v\n", st.Discord.BotReady, st.Discord.VoiceConnected)
}
