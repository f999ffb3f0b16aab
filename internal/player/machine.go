package player

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/services"
	"github.com/desertthunder/jbx/internal/shared"
	"github.com/desertthunder/jbx/internal/stream"
)

// Push event types on the player channel.
const (
	EventStateChange   = "player_state_change"
	EventDiscordChange = "discord_status_change"
)

// TickInterval is how often the local clock advances while playing.
const TickInterval = time.Second

// Commands is the slice of the REST client the player drives.
type Commands interface {
	PlayerStatus(ctx context.Context) (*models.PlayerSnapshot, error)
	TogglePlayback(ctx context.Context) (*services.ToggleResult, error)
	Next(ctx context.Context) (*models.PlayerSnapshot, error)
	Previous(ctx context.Context) (*models.PlayerSnapshot, error)
	PlayPlaylist(ctx context.Context, name string) (*models.PlayerSnapshot, error)
	DiscordStatus(ctx context.Context) (*models.DiscordStatus, error)
	JoinVoice(ctx context.Context) (*services.CommandResult, error)
	LeaveVoice(ctx context.Context) (*services.CommandResult, error)
}

// Renderer receives a copy of the state after every change.
type Renderer interface {
	RenderPlayer(State)
}

// RendererFunc adapts a function to [Renderer].
type RendererFunc func(State)

func (f RendererFunc) RenderPlayer(s State) { f(s) }

// Options holds the machine's collaborators; nil fields get no-op defaults.
type Options struct {
	Renderer Renderer
	Notifier shared.Notifier
	Clock    shared.Clock
	Logger   *log.Logger
}

// Machine reconciles authoritative snapshots with a locally ticking clock.
//
// Every inbound snapshot, whether a push or a command response, overwrites local state.
// There is no sequence check, so the last one applied wins.
type Machine struct {
	cmds     Commands
	renderer Renderer
	notifier shared.Notifier
	clock    shared.Clock
	logger   *log.Logger

	mu      sync.Mutex
	state   State
	tick    shared.Timer
	tickGen int

	// renderMu serializes renders; each one copies the state it draws under it.
	renderMu sync.Mutex
}

// New creates a machine with empty state.
func New(cmds Commands, opts Options) *Machine {
	m := &Machine{
		cmds:     cmds,
		renderer: opts.Renderer,
		notifier: opts.Notifier,
		clock:    opts.Clock,
		logger:   opts.Logger,
	}
	if m.renderer == nil {
		m.renderer = RendererFunc(func(State) {})
	}
	if m.notifier == nil {
		m.notifier = shared.Discard
	}
	if m.clock == nil {
		m.clock = shared.SystemClock{}
	}
	if m.logger == nil {
		m.logger = shared.NewLogger(nil)
	}
	return m
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// ApplySnapshot replaces every transport field and resynchronises the clock.
func (m *Machine) ApplySnapshot(s models.PlayerSnapshot) {
	m.mu.Lock()
	m.state.IsPlaying = s.IsPlaying
	m.state.IsPaused = s.IsPaused
	m.state.CurrentSong = s.CurrentSong
	m.state.CurrentPlaylist = s.ActivePlaylist()
	m.state.QueuePosition = max(s.QueuePosition, 0)
	m.state.QueueLength = max(s.QueueLength, 0)
	m.state.ShuffledQueue = s.ShuffledQueue
	if s.DiscordStatus != nil {
		m.state.Discord = *s.DiscordStatus
	}
	m.syncLocked(s.ElapsedTime, s.SongDuration)
	m.mu.Unlock()

	m.logger.Debug("applied snapshot", "playing", s.IsPlaying, "paused", s.IsPaused)
	m.render()
}

// render draws the newest state. A render that starts after a change always sees it,
// so the last one drawn matches the last change applied.
func (m *Machine) render() {
	m.renderMu.Lock()
	defer m.renderMu.Unlock()
	m.renderer.RenderPlayer(m.State())
}

// SyncClock sets the clock from the server and restarts the tick if audio is running.
func (m *Machine) SyncClock(elapsed, duration float64) {
	m.mu.Lock()
	m.syncLocked(elapsed, duration)
	m.mu.Unlock()

	m.render()
}

func (m *Machine) syncLocked(elapsed, duration float64) {
	m.state.ElapsedTime = max(int(math.Floor(elapsed)), 0)
	m.state.SongDuration = max(int(math.Floor(duration)), 0)
	m.restartTickLocked()
}

// restartTickLocked stops any running tick and starts a fresh one when active.
func (m *Machine) restartTickLocked() {
	if m.tick != nil {
		m.tick.Stop()
		m.tick = nil
	}
	m.tickGen++
	if m.state.Active() {
		m.scheduleTickLocked(m.tickGen)
	}
}

func (m *Machine) scheduleTickLocked(gen int) {
	m.tick = m.clock.AfterFunc(TickInterval, func() { m.onTick(gen) })
}

func (m *Machine) onTick(gen int) {
	m.mu.Lock()
	if gen != m.tickGen || !m.state.Active() {
		m.mu.Unlock()
		return
	}
	m.state.ElapsedTime++
	m.scheduleTickLocked(gen)
	m.mu.Unlock()

	m.render()
}

// Ticking reports whether the local clock is running.
func (m *Machine) Ticking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tick != nil
}

// Stop halts the local clock without touching state.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tick != nil {
		m.tick.Stop()
		m.tick = nil
	}
	m.tickGen++
}

// SetDiscord records the voice bot's connectivity.
func (m *Machine) SetDiscord(d models.DiscordStatus) {
	m.mu.Lock()
	m.state.Discord = d
	m.mu.Unlock()

	m.render()
}

// HandleEvent applies a push message from the player channel.
func (m *Machine) HandleEvent(e stream.Event) {
	switch e.Type {
	case EventStateChange:
		var s models.PlayerSnapshot
		if err := e.Decode(&s); err != nil {
			m.logger.Error("bad player state event", "err", err)
			return
		}
		m.ApplySnapshot(s)
	case EventDiscordChange:
		var body struct {
			DiscordStatus models.DiscordStatus `json:"discord_status"`
		}
		if err := e.Decode(&body); err != nil {
			m.logger.Error("bad discord status event", "err", err)
			return
		}
		m.SetDiscord(body.DiscordStatus)
	default:
		m.logger.Debug("ignoring player event", "type", e.Type)
	}
}

// Bootstrap loads the initial player and Discord status.
//
// A push that lands first is simply overwritten; both carry full state.
func (m *Machine) Bootstrap(ctx context.Context) error {
	s, err := m.cmds.PlayerStatus(ctx)
	if err != nil {
		m.logger.Error("failed to load player status", "err", err)
		return fmt.Errorf("player status: %w", err)
	}
	m.ApplySnapshot(*s)

	d, err := m.cmds.DiscordStatus(ctx)
	if err != nil {
		m.logger.Warn("failed to load discord status", "err", err)
		return nil
	}
	m.SetDiscord(*d)
	return nil
}

// TogglePlayback flips pause. The response only carries the flags, so the clock keeps its value.
func (m *Machine) TogglePlayback(ctx context.Context) error {
	r, err := m.cmds.TogglePlayback(ctx)
	if err != nil {
		return m.failed("toggle playback", err)
	}

	m.mu.Lock()
	m.state.IsPlaying = r.IsPlaying
	m.state.IsPaused = r.IsPaused
	m.restartTickLocked()
	m.mu.Unlock()

	m.render()
	return nil
}

// SkipToNext advances the server queue.
func (m *Machine) SkipToNext(ctx context.Context) error {
	return m.transport(ctx, "skip to next", m.cmds.Next)
}

// SkipToPrevious steps the server queue back.
func (m *Machine) SkipToPrevious(ctx context.Context) error {
	return m.transport(ctx, "skip to previous", m.cmds.Previous)
}

// PlayPlaylist starts a shuffled run of the named playlist.
func (m *Machine) PlayPlaylist(ctx context.Context, name string) error {
	return m.transport(ctx, "play playlist", func(ctx context.Context) (*models.PlayerSnapshot, error) {
		return m.cmds.PlayPlaylist(ctx, name)
	})
}

func (m *Machine) transport(ctx context.Context, op string, call func(context.Context) (*models.PlayerSnapshot, error)) error {
	s, err := call(ctx)
	if err != nil {
		return m.failed(op, err)
	}
	m.ApplySnapshot(*s)
	return nil
}

// JoinVoice asks the bot into the configured channel; the status arrives by push.
func (m *Machine) JoinVoice(ctx context.Context) error {
	r, err := m.cmds.JoinVoice(ctx)
	if err != nil {
		return m.failed("join voice", err)
	}
	m.notifier.Notify(shared.LevelInfo, r.Message)
	return nil
}

// LeaveVoice disconnects the bot; the server resets the player and pushes both changes.
func (m *Machine) LeaveVoice(ctx context.Context) error {
	r, err := m.cmds.LeaveVoice(ctx)
	if err != nil {
		return m.failed("leave voice", err)
	}
	m.notifier.Notify(shared.LevelInfo, r.Message)
	return nil
}

// failed logs and surfaces a command error, leaving state untouched.
func (m *Machine) failed(op string, err error) error {
	m.logger.Error("player command failed", "op", op, "err", err)
	m.notifier.Notify(shared.LevelError, fmt.Sprintf("Failed to %s: %v", op, err))
	return fmt.Errorf("%s: %w", op, err)
}
