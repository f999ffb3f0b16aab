package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jbx/internal/repositories"
	"github.com/desertthunder/jbx/internal/services"
	"github.com/desertthunder/jbx/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	api        *services.APIService
	jukebox    *services.Jukebox
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	API        *services.APIService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.API == nil {
		opts.API = services.NewAPIService(opts.Config.Server.BaseURL, opts.HTTPClient)
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		api:        opts.API,
		jukebox:    services.NewJukebox(opts.API),
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, playerCommand, downloadsCommand, libraryCommand, playlistsCommand,
		settingsCommand, discordCommand, apiCommand, tuiCommand, mockCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Configure loads the config named by --config (or the first one found) and rebuilds the clients.
//
// Runs as the root command's Before hook so every subcommand sees the resolved config.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	config, path, err := shared.ResolveConfig(cmd.String("config"))
	switch {
	case errors.Is(err, shared.ErrMissingConfig) && cmd.Args().First() == "setup":
		config = shared.DefaultConfig()
	case err != nil:
		return ctx, err
	}
	if url := cmd.String("server"); url != "" {
		config.Server.BaseURL = url
	}
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	r.config = config
	r.configPath = path
	r.httpClient = &http.Client{Timeout: config.Server.Timeout()}
	r.api = services.NewAPIService(config.Server.BaseURL, r.httpClient)
	r.jukebox = services.NewJukebox(r.api)

	r.logger.Debug("configured", "config", path, "server", config.Server.BaseURL)
	return ctx, nil
}

// openCache opens the local cache database with its schema up to date.
func (r *Runner) openCache() (*sql.DB, error) {
	return shared.OpenCache(r.config.Cache)
}

// songCache opens the cache and returns its song table; the caller closes the database.
func (r *Runner) songCache() (*repositories.SongRepository, *sql.DB, error) {
	db, err := r.openCache()
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewSongRepository(db), db, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return err
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
