package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/jbx/internal/downloads"
	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/player"
	"github.com/desertthunder/jbx/internal/services"
	"github.com/desertthunder/jbx/internal/shared"
)

// maxUpcoming is how many queued songs the now-playing pane lists.
const maxUpcoming = 5

// Pane is the browse list that has focus.
type Pane int

const (
	PlaylistPane Pane = iota
	LibraryPane
)

// Player is the subset of [player.Machine] the dashboard drives.
type Player interface {
	TogglePlayback(ctx context.Context) error
	SkipToNext(ctx context.Context) error
	SkipToPrevious(ctx context.Context) error
	PlayPlaylist(ctx context.Context, name string) error
	JoinVoice(ctx context.Context) error
	LeaveVoice(ctx context.Context) error
}

// Downloads is the subset of [downloads.Tracker] the dashboard drives.
type Downloads interface {
	Dismiss(id string) bool
}

// Library is the subset of [library.Library] the dashboard drives.
type Library interface {
	Add(ctx context.Context, rawURL string, autoAdd bool, target string) (*services.AddResult, error)
	Refresh(ctx context.Context) error
}

// Playlists lists the server's playlists.
type Playlists interface {
	Playlists(ctx context.Context) (*services.PlaylistList, error)
}

// Deps are the collaborators behind the dashboard.
type Deps struct {
	Player    Player
	Downloads Downloads
	Library   Library
	Playlists Playlists
	// Start opens the session; its error is shown but does not stop the dashboard.
	Start func(ctx context.Context) error
	// Visible reopens closed push channels; Hidden closes them.
	Visible func()
	Hidden  func()
}

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	deps   Deps
	bridge *Bridge

	width  int
	height int

	player    player.State
	downloads []downloads.Entry
	songs     []models.Track

	pane         Pane
	playlistList list.Model
	libraryList  list.Model
	bar          progress.Model
	input        textinput.Model
	adding       bool

	notice notice
	err    error
	help   help.Model
	keys   keyMap
}

// NewModel creates a new TUI model. The bridge must be the one wired into the session's renderers.
func NewModel(ctx context.Context, deps Deps, bridge *Bridge) *Model {
	input := textinput.New()
	input.Placeholder = "https://www.youtube.com/watch?v=..."
	input.CharLimit = 512
	input.Prompt = "URL: "

	playlists := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	playlists.Title = "Playlists"
	playlists.SetShowHelp(false)

	songs := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	songs.Title = "Library"
	songs.SetShowHelp(false)

	return &Model{
		ctx:          ctx,
		deps:         deps,
		bridge:       bridge,
		playlistList: playlists,
		libraryList:  songs,
		bar:          progress.New(progress.WithGradient("#7D56F4", "#04B575"), progress.WithoutPercentage()),
		input:        input,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init starts the session, loads playlists and begins draining the bridge.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.bridge.wait(), m.fetchPlaylists()}
	if m.deps.Start != nil {
		cmds = append(cmds, m.start())
	}
	return tea.Batch(cmds...)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if m.adding {
			return m.handleInputKeys(msg)
		}
		return m.handleKeys(msg)

	case tea.FocusMsg:
		return m, m.lifecycle(m.deps.Visible)

	case tea.BlurMsg:
		return m, m.lifecycle(m.deps.Hidden)

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlayerChanged:
		m.player = msg.data.(player.State)
		return m, m.bridge.wait()

	case MsgDownloadsChanged:
		m.downloads = msg.data.([]downloads.Entry)
		return m, m.bridge.wait()

	case MsgLibraryChanged:
		m.songs = msg.data.([]models.Track)
		cmd := m.libraryList.SetItems(songItems(m.songs))
		return m, tea.Batch(cmd, m.bridge.wait())

	case MsgNotice:
		m.notice = msg.data.(notice)
		return m, m.bridge.wait()

	case MsgPlaylistsFetched:
		data := msg.data.(struct {
			playlists []models.Playlist
			err       error
		})
		if data.err != nil {
			m.notice = notice{shared.LevelError, fmt.Sprintf("Failed to load playlists: %v", data.err)}
			return m, nil
		}
		return m, m.playlistList.SetItems(playlistItems(data.playlists))

	case MsgStarted:
		if err, _ := msg.data.(error); err != nil {
			m.err = err
		}
		return m, nil

	case MsgBridgeClosed:
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.bridge.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggle):
		return m, m.run(m.deps.Player.TogglePlayback)
	case key.Matches(msg, m.keys.next):
		return m, m.run(m.deps.Player.SkipToNext)
	case key.Matches(msg, m.keys.prev):
		return m, m.run(m.deps.Player.SkipToPrevious)
	case key.Matches(msg, m.keys.join):
		return m, m.run(m.deps.Player.JoinVoice)
	case key.Matches(msg, m.keys.leave):
		return m, m.run(m.deps.Player.LeaveVoice)
	case key.Matches(msg, m.keys.pane):
		if m.pane == PlaylistPane {
			m.pane = LibraryPane
		} else {
			m.pane = PlaylistPane
		}
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		return m, tea.Batch(m.fetchPlaylists(), m.run(m.deps.Library.Refresh))
	case key.Matches(msg, m.keys.add):
		m.adding = true
		m.input.Reset()
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.dismiss):
		m.dismissFinished()
		return m, nil
	case key.Matches(msg, m.keys.reconnect):
		m.notice = notice{shared.LevelInfo, "Reconnecting live updates"}
		return m, m.lifecycle(m.deps.Visible)
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.play) && m.pane == PlaylistPane:
		if item, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			name := item.playlist.Name
			return m, m.run(func(ctx context.Context) error { return m.deps.Player.PlayPlaylist(ctx, name) })
		}
		return m, nil
	}

	return m.updateLists(msg)
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.cancel):
		m.adding = false
		m.input.Blur()
		return m, nil
	case key.Matches(msg, m.keys.submit):
		url := strings.TrimSpace(m.input.Value())
		m.adding = false
		m.input.Blur()
		if url == "" {
			return m, nil
		}
		return m, m.run(func(ctx context.Context) error {
			_, err := m.deps.Library.Add(ctx, url, false, "")
			return err
		})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// dismissFinished removes every completed or failed download from view.
// lifecycle runs fn as a command. Closing a channel waits for in-flight pushes,
// and those can be blocked on the bridge this loop drains.
func (m *Model) lifecycle(fn func()) tea.Cmd {
	if fn == nil {
		return nil
	}
	return func() tea.Msg {
		fn()
		return nil
	}
}

func (m *Model) dismissFinished() {
	for _, e := range m.downloads {
		if e.Status.Terminal() {
			m.deps.Downloads.Dismiss(e.ID)
		}
	}
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.pane {
	case PlaylistPane:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case LibraryPane:
		m.libraryList, cmd = m.libraryList.Update(msg)
	}
	return m, cmd
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.bar.Width = max(width/2-24, 10)

	listHeight := max(height/2-4, 5)
	m.playlistList.SetSize(width/2-4, listHeight)
	m.libraryList.SetSize(width/2-4, listHeight)
}

// run executes a command off the update loop. Failures are surfaced by the components' notifiers.
func (m *Model) run(fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		_ = fn(m.ctx)
		return nil
	}
}

func (m *Model) start() tea.Cmd {
	return func() tea.Msg {
		return startedMsg(m.deps.Start(m.ctx))
	}
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		r, err := m.deps.Playlists.Playlists(m.ctx)
		if err != nil {
			return playlistsFetchedMsg(nil, err)
		}
		return playlistsFetchedMsg(r.Playlists, nil)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	header := styles.title.Render("jbx")
	if m.err != nil {
		header += "  " + styles.warn.Render(fmt.Sprintf("degraded: %v", m.err))
	}

	left := lipgloss.JoinVertical(lipgloss.Left, m.renderNowPlaying(), m.renderDownloads())
	right := m.renderBrowse()
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	var footer []string
	if m.adding {
		footer = append(footer, m.input.View(), m.help.ShortHelpView([]key.Binding{m.keys.submit, m.keys.cancel}))
	} else {
		if n := m.renderNotice(); n != "" {
			footer = append(footer, n)
		}
		footer = append(footer, m.help.View(m.keys))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, strings.Join(footer, "\n"))
}

func (m *Model) renderNowPlaying() string {
	s := m.player
	var b strings.Builder

	b.WriteString(styles.heading.Render("Now Playing"))
	b.WriteString("\n")

	icon := "▶"
	if s.Icon() == player.IconPause {
		icon = "⏸"
	}
	fmt.Fprintf(&b, "%s %s\n", icon, s.Title())
	if name := s.PlaylistName(); name != "" {
		b.WriteString(styles.dim.Render("from " + name))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s %s / %s\n", m.bar.ViewAs(s.Fraction()), s.Elapsed(), s.Duration())
	b.WriteString(renderVoice(s.Discord))
	b.WriteString("\n\n")

	b.WriteString(styles.heading.Render("Up Next"))
	b.WriteString("\n")
	if msg := s.QueueMessage(); msg != "" {
		b.WriteString(styles.dim.Render(msg))
	} else {
		upcoming := s.Upcoming()
		for i, t := range upcoming[:min(len(upcoming), maxUpcoming)] {
			fmt.Fprintf(&b, "%d. %s %s\n", i+1, t.Title, styles.dim.Render(shared.FormatDuration(t.Duration)))
		}
		if extra := len(upcoming) - maxUpcoming; extra > 0 {
			b.WriteString(styles.dim.Render(fmt.Sprintf("+%d more", extra)))
		}
	}

	return styles.pane.Width(max(m.width/2-2, 30)).Render(strings.TrimRight(b.String(), "\n"))
}

func renderVoice(d models.DiscordStatus) string {
	switch {
	case !d.BotReady:
		return styles.err.Render("● bot offline")
	case d.VoiceConnected:
		return styles.ok.Render("● in voice " + d.CurrentChannelID)
	default:
		return styles.warn.Render("● not in voice")
	}
}

func (m *Model) renderDownloads() string {
	var b strings.Builder
	b.WriteString(styles.heading.Render("Downloads"))
	b.WriteString("\n")

	if len(m.downloads) == 0 {
		b.WriteString(styles.dim.Render("No active downloads"))
	}
	for _, e := range m.downloads {
		fmt.Fprintf(&b, "%s  %s\n", e.DisplayTitle(), renderLabel(e))
		b.WriteString(renderStages(e.Stages))
		b.WriteString("\n")
		if e.Error != "" {
			b.WriteString(styles.err.Render(e.Error))
			b.WriteString("\n")
		}
	}

	return styles.pane.Width(max(m.width/2-2, 30)).Render(strings.TrimRight(b.String(), "\n"))
}

func renderLabel(e downloads.Entry) string {
	switch e.Status {
	case models.DownloadCompleted:
		return styles.ok.Render(e.Label())
	case models.DownloadFailed:
		return styles.err.Render(e.Label())
	default:
		return styles.warn.Render(e.Label())
	}
}

// renderStages draws the pipeline as a row of markers.
func renderStages(stages []downloads.Stage) string {
	parts := make([]string, len(stages))
	for i, st := range stages {
		switch {
		case st.Failed:
			parts[i] = styles.err.Render("✗ " + st.Label)
		case st.Marker == downloads.MarkerCompleted:
			parts[i] = styles.ok.Render("✓ " + st.Label)
		case st.Marker == downloads.MarkerActive:
			parts[i] = styles.As("● "+st.Label, styles.accent)
		default:
			parts[i] = styles.dim.Render("○ " + st.Label)
		}
	}
	return strings.Join(parts, " ")
}

func (m *Model) renderBrowse() string {
	view := m.playlistList.View()
	if m.pane == LibraryPane {
		view = m.libraryList.View()
	}
	return styles.focused.Render(view)
}

func (m *Model) renderNotice() string {
	if m.notice.text == "" {
		return ""
	}
	switch m.notice.level {
	case shared.LevelError:
		return styles.err.Render(m.notice.text)
	case shared.LevelSuccess:
		return styles.ok.Render(m.notice.text)
	default:
		return styles.help.Render(m.notice.text)
	}
}

// Run starts the dashboard program and blocks until the user quits.
func Run(ctx context.Context, deps Deps, bridge *Bridge) error {
	defer bridge.Close()
	p := tea.NewProgram(NewModel(ctx, deps, bridge), tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
