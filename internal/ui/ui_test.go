package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/jbx/internal/downloads"
	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/player"
	"github.com/desertthunder/jbx/internal/services"
	"github.com/desertthunder/jbx/internal/shared"
)

type fakeDeps struct {
	mu        sync.Mutex
	calls     []string
	dismissed []string
	added     []string
	played    []string
	playlists []models.Playlist
}

func (f *fakeDeps) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return nil
}

func (f *fakeDeps) TogglePlayback(context.Context) error { return f.record("toggle") }
func (f *fakeDeps) SkipToNext(context.Context) error     { return f.record("next") }
func (f *fakeDeps) SkipToPrevious(context.Context) error { return f.record("prev") }
func (f *fakeDeps) JoinVoice(context.Context) error      { return f.record("join") }
func (f *fakeDeps) LeaveVoice(context.Context) error     { return f.record("leave") }
func (f *fakeDeps) Refresh(context.Context) error        { return f.record("refresh") }
func (f *fakeDeps) Visible()                             { f.record("visible") }
func (f *fakeDeps) Hidden()                              { f.record("hidden") }

func (f *fakeDeps) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeDeps) PlayPlaylist(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, name)
	return nil
}

func (f *fakeDeps) Dismiss(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed = append(f.dismissed, id)
	return true
}

func (f *fakeDeps) Add(_ context.Context, rawURL string, _ bool, _ string) (*services.AddResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, rawURL)
	return &services.AddResult{Success: true, DownloadID: "d1"}, nil
}

func (f *fakeDeps) Playlists(context.Context) (*services.PlaylistList, error) {
	return &services.PlaylistList{Playlists: f.playlists}, nil
}

func newTestModel(t *testing.T) (*Model, *fakeDeps) {
	t.Helper()
	fake := &fakeDeps{playlists: []models.Playlist{{Name: "Road Trip", SongCount: 3}}}
	deps := Deps{
		Player:    fake,
		Downloads: fake,
		Library:   fake,
		Playlists: fake,
		Visible:   fake.Visible,
		Hidden:    fake.Hidden,
	}
	m := NewModel(context.Background(), deps, NewBridge(8))
	m.Update(tea.WindowSizeMsg{Width: 240, Height: 60})
	return m, fake
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// exec runs cmd and returns its message; nil commands yield nil.
func exec(cmd tea.Cmd) tea.Msg {
	if cmd == nil {
		return nil
	}
	return cmd()
}

func TestBridge(t *testing.T) {
	t.Run("delivers callbacks as messages", func(t *testing.T) {
		b := NewBridge(4)
		b.RenderPlayer(player.State{IsPlaying: true})
		b.Notify(shared.LevelSuccess, "Download started")

		msg := b.wait()().(Msg)
		if msg.kind != MsgPlayerChanged {
			t.Fatalf("expected player message, got %v", msg.kind)
		}
		if !msg.data.(player.State).IsPlaying {
			t.Error("expected state to be carried")
		}

		msg = b.wait()().(Msg)
		if msg.kind != MsgNotice || msg.data.(notice).text != "Download started" {
			t.Errorf("unexpected notice %+v", msg)
		}
	})

	t.Run("Close unblocks senders and waiters", func(t *testing.T) {
		b := NewBridge(1)
		b.RenderLibrary(nil)

		done := make(chan struct{})
		go func() {
			b.RenderLibrary(nil)
			close(done)
		}()

		b.Close()
		b.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("sender still blocked after Close")
		}

		// Either the buffered message or the closed marker; neither blocks.
		msg := b.wait()().(Msg)
		if msg.kind != MsgLibraryChanged && msg.kind != MsgBridgeClosed {
			t.Errorf("unexpected message %v", msg.kind)
		}
	})
}

func TestModel(t *testing.T) {
	t.Run("renders pushed player state", func(t *testing.T) {
		m, _ := newTestModel(t)
		song := models.Track{ID: "s1", Title: "Blue Monday", Duration: 449}
		m.Update(playerChangedMsg(player.State{
			IsPlaying:       true,
			CurrentSong:     &song,
			CurrentPlaylist: &models.PlaylistRef{Name: "Road Trip"},
			ShuffledQueue:   []models.Track{song, {ID: "s2", Title: "Ceremony", Duration: 262}},
			ElapsedTime:     60,
			SongDuration:    449,
			Discord:         models.DiscordStatus{BotReady: true, VoiceConnected: true},
		}))

		view := m.View()
		for _, want := range []string{"⏸ Blue Monday", "from Road Trip", "1:00 / 7:29", "1. Ceremony", "in voice"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected view to contain %q", want)
			}
		}
	})

	t.Run("renders download stages", func(t *testing.T) {
		m, _ := newTestModel(t)
		entry := downloads.Entry{
			DownloadEntry: models.DownloadEntry{ID: "d1", Title: "Regret", Status: models.DownloadFailed, Error: "Video unavailable"},
			Stages:        downloads.Markers(models.DownloadFailed, models.DownloadProcessing),
		}
		m.Update(downloadsChangedMsg([]downloads.Entry{entry}))

		view := m.View()
		for _, want := range []string{"Regret", "Failed", "✓ Downloading", "✗ Processing", "Video unavailable"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected view to contain %q", want)
			}
		}
	})

	t.Run("transport keys call the player", func(t *testing.T) {
		m, fake := newTestModel(t)
		for _, k := range []tea.KeyMsg{{Type: tea.KeySpace}, runes("n"), runes("p"), runes("v"), runes("x")} {
			_, cmd := m.Update(k)
			exec(cmd)
		}

		want := []string{"toggle", "next", "prev", "join", "leave"}
		if strings.Join(fake.calls, ",") != strings.Join(want, ",") {
			t.Errorf("expected calls %v, got %v", want, fake.calls)
		}
	})

	t.Run("enter plays the selected playlist", func(t *testing.T) {
		m, fake := newTestModel(t)
		m.Update(exec(m.fetchPlaylists()))

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		exec(cmd)
		if len(fake.played) != 1 || fake.played[0] != "Road Trip" {
			t.Errorf("expected Road Trip to be played, got %v", fake.played)
		}
	})

	t.Run("add submits the typed URL", func(t *testing.T) {
		m, fake := newTestModel(t)
		m.Update(runes("a"))
		if !m.adding {
			t.Fatal("expected input mode")
		}

		m.Update(runes("https://youtu.be/abc"))
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		exec(cmd)

		if m.adding {
			t.Error("expected input mode to end")
		}
		if len(fake.added) != 1 || fake.added[0] != "https://youtu.be/abc" {
			t.Errorf("expected URL to be added, got %v", fake.added)
		}
	})

	t.Run("escape cancels adding", func(t *testing.T) {
		m, fake := newTestModel(t)
		m.Update(runes("a"))
		m.Update(runes("https://youtu.be/abc"))
		m.Update(tea.KeyMsg{Type: tea.KeyEsc})

		if m.adding || len(fake.added) != 0 {
			t.Errorf("expected nothing added, got %v", fake.added)
		}
	})

	t.Run("dismiss removes only finished downloads", func(t *testing.T) {
		m, fake := newTestModel(t)
		m.Update(downloadsChangedMsg([]downloads.Entry{
			{DownloadEntry: models.DownloadEntry{ID: "running", Status: models.DownloadDownloading}},
			{DownloadEntry: models.DownloadEntry{ID: "done", Status: models.DownloadCompleted}},
			{DownloadEntry: models.DownloadEntry{ID: "broken", Status: models.DownloadFailed}},
		}))
		m.Update(runes("d"))

		if strings.Join(fake.dismissed, ",") != "done,broken" {
			t.Errorf("expected finished downloads dismissed, got %v", fake.dismissed)
		}
	})

	t.Run("start failure is shown as degraded", func(t *testing.T) {
		m, _ := newTestModel(t)
		m.Update(startedMsg(errors.New("player status: connection refused")))

		if !strings.Contains(m.View(), "degraded") {
			t.Error("expected degraded banner")
		}
	})

	t.Run("quit closes the bridge", func(t *testing.T) {
		m, _ := newTestModel(t)
		_, cmd := m.Update(runes("q"))
		if _, ok := exec(cmd).(tea.QuitMsg); !ok {
			t.Error("expected quit command")
		}

		msg := m.bridge.wait()().(Msg)
		if msg.kind != MsgBridgeClosed {
			t.Errorf("expected closed bridge, got %v", msg.kind)
		}
	})
}

func TestModelLifecycle(t *testing.T) {
	t.Run("regaining focus reopens the push channels", func(t *testing.T) {
		m, fake := newTestModel(t)
		_, cmd := m.Update(tea.FocusMsg{})
		exec(cmd)

		if got := fake.recorded(); len(got) != 1 || got[0] != "visible" {
			t.Errorf("expected visible, got %v", got)
		}
	})

	t.Run("losing focus closes the push channels", func(t *testing.T) {
		m, fake := newTestModel(t)
		_, cmd := m.Update(tea.BlurMsg{})
		exec(cmd)
		_, cmd = m.Update(tea.FocusMsg{})
		exec(cmd)

		got := fake.recorded()
		if len(got) != 2 || got[0] != "hidden" || got[1] != "visible" {
			t.Errorf("expected hidden then visible, got %v", got)
		}
	})

	t.Run("reconnect key reopens the push channels", func(t *testing.T) {
		m, fake := newTestModel(t)
		_, cmd := m.Update(runes("c"))
		exec(cmd)

		if got := fake.recorded(); len(got) != 1 || got[0] != "visible" {
			t.Errorf("expected visible, got %v", got)
		}
		if !strings.Contains(m.View(), "Reconnecting live updates") {
			t.Error("expected a reconnect notice")
		}
	})

	t.Run("missing lifecycle hooks are ignored", func(t *testing.T) {
		fake := &fakeDeps{}
		m := NewModel(context.Background(), Deps{Player: fake, Downloads: fake, Library: fake, Playlists: fake}, NewBridge(1))
		_, focus := m.Update(tea.FocusMsg{})
		_, blur := m.Update(tea.BlurMsg{})

		if focus != nil || blur != nil {
			t.Error("expected no commands without hooks")
		}
		if got := fake.recorded(); len(got) != 0 {
			t.Errorf("expected no calls, got %v", got)
		}
	})
}
