package tasks

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/jbx/internal/formatter"
	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/shared"
)

// ExportOpts contains configuration for bulk playlist exports.
type ExportOpts struct {
	Pool
	Format    string       // Export format: json, csv, markdown, txt
	OutputDir string       // Base output directory (default: playlists_export_{epoch})
	BaseURL   string       // Server URL used to resolve cover images for Markdown
	Client    *http.Client // Client used for cover images
}

// PlaylistExportResult is the outcome of exporting one playlist.
type PlaylistExportResult struct {
	Playlist string   `json:"playlist"`
	Success  bool     `json:"success"`
	Files    []string `json:"files,omitempty"`
	Error    error    `json:"-"`
	Reason   string   `json:"error,omitempty"`
}

// ExportResult summarises a bulk export.
type ExportResult struct {
	TotalPlaylists    int                    `json:"total_playlists"`
	SuccessfulExports int                    `json:"successful_exports"`
	FailedExports     int                    `json:"failed_exports"`
	OutputDirectory   string                 `json:"output_directory"`
	Format            string                 `json:"format"`
	Results           []PlaylistExportResult `json:"results"`
	ManifestPath      string                 `json:"-"`
}

type exportJob struct {
	name     string
	playlist *models.Playlist
}

// Exporter writes many playlists to disk.
type Exporter struct {
	client PlaylistFetcher
	opts   ExportOpts
}

// NewExporter creates an exporter that loads playlists through client.
func NewExporter(client PlaylistFetcher, opts ExportOpts) *Exporter {
	opts.Pool = opts.Pool.normalize()
	if opts.Format == "" {
		opts.Format = "json"
	}
	return &Exporter{client: client, opts: opts}
}

// Run fetches each named playlist at the configured rate and exports it on the worker pool.
//
// Partial failures are recorded in the result; a manifest is written once all workers finish.
func (e *Exporter) Run(ctx context.Context, progress chan<- ProgressUpdate, names []string) (*ExportResult, error) {
	if e.client == nil {
		return nil, fmt.Errorf("%w: jukebox client not initialized", shared.ErrServiceUnavailable)
	}

	opts := e.opts
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("playlists_export_%d", time.Now().Unix())
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &ExportResult{
		TotalPlaylists:  len(names),
		OutputDirectory: opts.OutputDir,
		Format:          opts.Format,
		Results:         make([]PlaylistExportResult, 0, len(names)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan exportJob, len(names))
	results := make(chan PlaylistExportResult, len(names))

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go e.worker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, name := range names {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			sendProgress(progress, fetchingPlaylistUpdate(i+1, len(names), name))
			pl, err := e.client.Playlist(ctx, name)
			if err != nil {
				results <- PlaylistExportResult{
					Playlist: name,
					Error:    fmt.Errorf("failed to fetch playlist: %w", err),
				}
				continue
			}
			jobs <- exportJob{name: name, playlist: pl}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		if res.Success {
			result.SuccessfulExports++
			sendProgress(progress, exportCompletedUpdate(completed, len(names), res.Playlist, len(res.Files)))
		} else {
			res.Reason = res.Error.Error()
			result.FailedExports++
			sendProgress(progress, exportFailedUpdate(completed, len(names), res.Playlist, res.Error))
		}
		result.Results = append(result.Results, res)
	}

	sendProgress(progress, completeUpdate(result.SuccessfulExports, result.FailedExports))

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, ctx.Err()
}

// worker receives from jobs until the channel closes. The results channel is buffered for every
// name, so a worker never blocks on send.
func (e *Exporter) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan exportJob,
	results chan<- PlaylistExportResult,
	opts ExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		res := PlaylistExportResult{Playlist: job.name}

		md := formatter.MarkdownOpts{Client: opts.Client}
		if job.playlist.Image != "" && opts.BaseURL != "" {
			md.ImageURL = strings.TrimRight(opts.BaseURL, "/") + "/" + strings.TrimLeft(job.playlist.Image, "/")
		}

		files, err := formatter.Write(ctx, job.playlist, opts.Format, opts.OutputDir, md)
		if err != nil {
			res.Error = err
		} else {
			res.Success = true
			res.Files = files
		}
		results <- res
	}
}
