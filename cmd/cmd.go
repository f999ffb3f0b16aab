// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jbx/internal/formatter"
)

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

func poolFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "Concurrent workers (max 10; default from import.workers)",
		},
		&cli.Float64Flag{
			Name:  "rate",
			Usage: "Requests per second (default from import.rate_limit)",
		},
	}
}

// setupCommand creates the config file and the local cache.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create a config file and initialize the local cache",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "user",
				Usage: "Write the config to the user config directory instead of ./config.toml",
			},
			&cli.BoolFlag{
				Name:  "reset-cache",
				Usage: "Drop and recreate the offline cache tables",
			},
		},
		Action: r.Setup,
	}
}

// playerCommand handles transport control.
func playerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "player",
		Aliases: []string{"p"},
		Usage:   "Playback control",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show the current song, queue and voice status",
				Flags:  jsonFlags(),
				Action: r.PlayerStatus,
			},
			{
				Name:    "toggle",
				Aliases: []string{"pause", "resume"},
				Usage:   "Pause or resume playback",
				Action:  r.PlayerToggle,
			},
			{
				Name:    "next",
				Aliases: []string{"skip"},
				Usage:   "Skip to the next song",
				Action:  r.PlayerNext,
			},
			{
				Name:    "prev",
				Aliases: []string{"previous"},
				Usage:   "Go back to the previous song",
				Action:  r.PlayerPrevious,
			},
			{
				Name:  "play",
				Usage: "Shuffle a playlist into the queue and start playing",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "playlist"},
				},
				Action: r.PlayerPlay,
			},
			{
				Name:   "watch",
				Usage:  "Follow player changes as they are pushed",
				Action: r.PlayerWatch,
			},
		},
	}
}

// downloadsCommand handles the download pipeline.
func downloadsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "downloads",
		Aliases: []string{"dl"},
		Usage:   "Download songs into the library",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Download a YouTube URL into the library",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "playlist",
						Aliases: []string{"p"},
						Usage:   "Add the finished song to this playlist",
					},
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Follow the download until it finishes",
					},
				},
				Action: r.DownloadsAdd,
			},
			{
				Name:   "status",
				Usage:  "List downloads that are running or recently finished",
				Flags:  jsonFlags(),
				Action: r.DownloadsStatus,
			},
			{
				Name:   "watch",
				Usage:  "Follow download progress as it is pushed",
				Action: r.DownloadsWatch,
			},
			{
				Name:  "import",
				Usage: "Download every URL listed in a file (one per line)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "file"},
				},
				Flags: append(poolFlags(),
					&cli.StringFlag{
						Name:    "playlist",
						Aliases: []string{"p"},
						Usage:   "Add every finished song to this playlist",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the result as JSON",
					},
				),
				Action: r.DownloadsImport,
			},
		},
	}
}

// libraryCommand handles library songs.
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Browse and edit library songs",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List library songs, newest first",
				Flags: append(jsonFlags(),
					&cli.StringFlag{
						Name:    "filter",
						Aliases: []string{"f"},
						Usage:   "Only songs whose title or filename contains this text",
					},
					&cli.BoolFlag{
						Name:  "offline",
						Usage: "Read the local cache instead of the server",
					},
				),
				Action: r.LibraryList,
			},
			{
				Name:  "rename",
				Usage: "Rename a song",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "title"},
				},
				Action: r.LibraryRename,
			},
			{
				Name:    "delete",
				Aliases: []string{"rm"},
				Usage:   "Delete a song and remove it from every playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.LibraryDelete,
			},
			{
				Name:   "stats",
				Usage:  "Show song count, total length and size",
				Flags:  jsonFlags(),
				Action: r.LibraryStats,
			},
		},
	}
}

// playlistsCommand handles playlist management.
func playlistsCommand(r *Runner) *cli.Command {
	nameArg := []cli.Argument{&cli.StringArg{Name: "name"}}
	formFlags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "tag",
			Aliases: []string{"t"},
			Usage:   "Tag to attach (repeatable)",
		},
		&cli.StringFlag{
			Name:    "image",
			Aliases: []string{"i"},
			Usage:   "Cover image file",
		},
	}

	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Manage playlists",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List playlists",
				Flags: append(jsonFlags(),
					&cli.BoolFlag{
						Name:  "offline",
						Usage: "Read the local cache instead of the server",
					},
				),
				Action: r.PlaylistsList,
			},
			{
				Name:      "show",
				Usage:     "Show a playlist and its songs",
				Arguments: nameArg,
				Flags: append(jsonFlags(),
					&cli.BoolFlag{
						Name:  "offline",
						Usage: "Read the local cache instead of the server",
					},
				),
				Action:    r.PlaylistsShow,
			},
			{
				Name:      "create",
				Usage:     "Create a playlist",
				Arguments: nameArg,
				Flags:     formFlags,
				Action:    r.PlaylistsCreate,
			},
			{
				Name:      "update",
				Usage:     "Rename, retag or change the cover of a playlist",
				Arguments: nameArg,
				Flags: append(formFlags,
					&cli.StringFlag{
						Name:  "rename",
						Usage: "New display name",
					},
				),
				Action: r.PlaylistsUpdate,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a playlist",
				Arguments: nameArg,
				Action:    r.PlaylistsDelete,
			},
			{
				Name:  "add-song",
				Usage: "Add a library song to a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
					&cli.StringArg{Name: "song-id"},
				},
				Action: r.PlaylistsAddSong,
			},
			{
				Name:  "remove-song",
				Usage: "Remove an entry from a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
					&cli.StringArg{Name: "entry-id"},
				},
				Action: r.PlaylistsRemoveSong,
			},
			{
				Name:  "export",
				Usage: "Export playlists to files",
				Flags: append(poolFlags(),
					&cli.StringSliceFlag{
						Name:    "name",
						Aliases: []string{"n"},
						Usage:   "Playlist to export (repeatable; default: all)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: " + strings.Join(formatter.Formats, ", "),
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: playlists_export_{epoch})",
					},
				),
				Action: r.PlaylistsExport,
			},
		},
	}
}

// settingsCommand handles server-side settings.
func settingsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "View and change server settings",
		Commands: []*cli.Command{
			{
				Name:   "get",
				Usage:  "Show settings with the bot token masked",
				Flags:  jsonFlags(),
				Action: r.SettingsGet,
			},
			{
				Name:  "set",
				Usage: "Change general settings",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "auto-play", Usage: "Start playing when a playlist is opened"},
					&cli.BoolFlag{Name: "notifications", Usage: "Show notifications"},
					&cli.IntFlag{Name: "volume", Usage: "Default volume (0-100)"},
				},
				Action: r.SettingsSet,
			},
			{
				Name:  "test-discord",
				Usage: "Validate and store Discord bot credentials",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "token",
						Usage:    "Bot token",
						Sources:  cli.EnvVars("JBX_DISCORD_TOKEN"),
						Required: true,
					},
					&cli.StringFlag{
						Name:     "channel",
						Usage:    "Voice channel ID",
						Required: true,
					},
				},
				Action: r.SettingsTestDiscord,
			},
		},
	}
}

// discordCommand handles the bot's voice connection.
func discordCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "discord",
		Usage: "Discord bot voice control",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show bot and voice connection status",
				Flags:  jsonFlags(),
				Action: r.DiscordStatus,
			},
			{
				Name:   "join",
				Usage:  "Join the configured voice channel",
				Action: r.DiscordJoin,
			},
			{
				Name:   "leave",
				Usage:  "Leave the voice channel (stops playback)",
				Action: r.DiscordLeave,
			},
		},
	}
}

// apiCommand handles direct API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct API calls to the jukebox server",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the live dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the dashboard owns the terminal",
				Value: "./tmp/jbx-tui.log",
			},
		},
		Action: r.TUI,
	}
}

// mockCommand runs the in-memory server.
func mockCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "mock",
		Usage: "Run an in-memory jukebox server for development",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default from mock.host and mock.port)",
			},
			&cli.DurationFlag{
				Name:  "stage-delay",
				Usage: "Time each simulated download spends per stage",
			},
			&cli.BoolFlag{
				Name:  "empty",
				Usage: "Start without demo songs and playlists",
			},
		},
		Action: r.Mock,
	}
}
