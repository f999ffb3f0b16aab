package tasks

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"

	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/services"
)

const (
	DefaultWorkers   = 3
	MaxWorkers       = 10
	DefaultRateLimit = 2.0
)

// Adder submits a URL for download.
type Adder interface {
	AddToLibrary(ctx context.Context, rawURL string, autoAdd bool, target string) (*services.AddResult, error)
}

// PlaylistFetcher loads a single playlist with its songs.
type PlaylistFetcher interface {
	Playlist(ctx context.Context, name string) (*models.Playlist, error)
}

// Pool holds the concurrency settings shared by bulk operations.
type Pool struct {
	Workers   int     // Concurrent workers (default: 3, max: 10)
	RateLimit float64 // Requests per second (default: 2)
}

func (p Pool) normalize() Pool {
	if p.Workers <= 0 {
		p.Workers = DefaultWorkers
	}
	if p.Workers > MaxWorkers {
		p.Workers = MaxWorkers
	}
	if p.RateLimit <= 0 {
		p.RateLimit = DefaultRateLimit
	}
	return p
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// ReadURLs reads one URL per line, skipping blanks, `#` comments and duplicates.
func ReadURLs(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return lo.Uniq(urls), nil
}
