package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/jbx/internal/downloads"
	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/player"
	"github.com/desertthunder/jbx/internal/shared"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlayerChanged MsgKind = iota
	MsgDownloadsChanged
	MsgLibraryChanged
	MsgNotice
	MsgPlaylistsFetched
	MsgStarted
	MsgBridgeClosed
)

type notice struct {
	level shared.Level
	text  string
}

// playerChangedMsg is the constructor for [MsgPlayerChanged]
func playerChangedMsg(s player.State) Msg {
	return Msg{kind: MsgPlayerChanged, data: s}
}

// downloadsChangedMsg is the constructor for [MsgDownloadsChanged]
func downloadsChangedMsg(entries []downloads.Entry) Msg {
	return Msg{kind: MsgDownloadsChanged, data: entries}
}

// libraryChangedMsg is the constructor for [MsgLibraryChanged]
func libraryChangedMsg(songs []models.Track) Msg {
	return Msg{kind: MsgLibraryChanged, data: songs}
}

// noticeMsg is the constructor for [MsgNotice]
func noticeMsg(level shared.Level, text string) Msg {
	return Msg{kind: MsgNotice, data: notice{level, text}}
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{
		kind: MsgPlaylistsFetched,
		data: struct {
			playlists []models.Playlist
			err       error
		}{playlists, err},
	}
}

// startedMsg is the constructor for [MsgStarted]
func startedMsg(err error) Msg {
	return Msg{kind: MsgStarted, data: err}
}

// Bridge turns renderer and notifier callbacks into [Msg] values for the [Model].
//
// It implements [player.Renderer], [downloads.Renderer], [library.Renderer] and [shared.Notifier].
// Callbacks block while the buffer is full and return immediately once the bridge is closed.
type Bridge struct {
	msgs chan Msg
	done chan struct{}
	once sync.Once
}

// NewBridge creates a bridge buffering up to size messages.
func NewBridge(size int) *Bridge {
	if size <= 0 {
		size = 64
	}
	return &Bridge{msgs: make(chan Msg, size), done: make(chan struct{})}
}

func (b *Bridge) post(m Msg) {
	select {
	case <-b.done:
	case b.msgs <- m:
	}
}

func (b *Bridge) RenderPlayer(s player.State)               { b.post(playerChangedMsg(s)) }
func (b *Bridge) RenderDownloads(entries []downloads.Entry) { b.post(downloadsChangedMsg(entries)) }
func (b *Bridge) RenderLibrary(songs []models.Track)        { b.post(libraryChangedMsg(songs)) }
func (b *Bridge) Notify(l shared.Level, text string)        { b.post(noticeMsg(l, text)) }

// Close stops delivery. Safe to call more than once.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

// wait returns a command that delivers the next bridged message.
func (b *Bridge) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case m := <-b.msgs:
			return m
		case <-b.done:
			return Msg{kind: MsgBridgeClosed}
		}
	}
}
