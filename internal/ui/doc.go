// Package ui implements the jukebox dashboard using bubbletea's Elm architecture.
//
// The dashboard shows three live views fed by push channels:
//  1. Now playing : current song, progress bar, voice status and the upcoming queue
//  2. Downloads : every tracked download with its pipeline stages
//  3. Browse : playlists and library songs, switched with tab
//
// State never flows from the model back into the session. The session's renderers post copies of
// their state through a [Bridge], which the [Model] drains one message at a time with a blocking
// [tea.Cmd], the same way progress updates are read from a channel.
//
// Keyboard bindings (space, n, p, enter, a, d, v, x, tab, q) are listed with charmbracelet/bubbles/help.
package ui
