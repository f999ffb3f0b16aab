package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/services"
	"github.com/desertthunder/jbx/internal/shared"
	th "github.com/desertthunder/jbx/internal/testing"
)

type fakeAdder struct {
	mu       sync.Mutex
	calls    []string
	inFlight atomic.Int32
	peak     atomic.Int32
	fail     map[string]error
}

func (f *fakeAdder) AddToLibrary(ctx context.Context, rawURL string, autoAdd bool, target string) (*services.AddResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	id := fmt.Sprintf("dl-%d", len(f.calls))
	f.mu.Unlock()

	if err := f.fail[rawURL]; err != nil {
		return nil, err
	}
	return &services.AddResult{Success: true, DownloadID: id}, nil
}

type fakeFetcher struct {
	playlists map[string]*models.Playlist
}

func (f *fakeFetcher) Playlist(_ context.Context, name string) (*models.Playlist, error) {
	pl, ok := f.playlists[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, name)
	}
	return pl, nil
}

func drain(ch chan ProgressUpdate) []ProgressUpdate {
	var out []ProgressUpdate
	for {
		select {
		case u := <-ch:
			out = append(out, u)
		default:
			return out
		}
	}
}

func TestReadURLs(t *testing.T) {
	input := `
# favourites
https://youtu.be/aaa
https://youtu.be/bbb

https://youtu.be/aaa
   https://www.youtube.com/watch?v=ccc
`
	urls, err := ReadURLs(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadURLs failed: %v", err)
	}

	want := []string{"https://youtu.be/aaa", "https://youtu.be/bbb", "https://www.youtube.com/watch?v=ccc"}
	if len(urls) != len(want) {
		t.Fatalf("expected %d URLs, got %v", len(want), urls)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], want[i])
		}
	}
}

func TestPool(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p := Pool{}.normalize()
		if p.Workers != DefaultWorkers || p.RateLimit != DefaultRateLimit {
			t.Errorf("unexpected defaults: %+v", p)
		}
	})

	t.Run("caps workers", func(t *testing.T) {
		if p := (Pool{Workers: 50}).normalize(); p.Workers != MaxWorkers {
			t.Errorf("expected %d workers, got %d", MaxWorkers, p.Workers)
		}
	})
}

func TestImporter(t *testing.T) {
	ctx := context.Background()
	fast := Pool{Workers: 2, RateLimit: 1000}

	t.Run("submits valid URLs in input order", func(t *testing.T) {
		adder := &fakeAdder{fail: map[string]error{
			"https://youtu.be/bad": fmt.Errorf("%w: Video unavailable", shared.ErrCommandFailed),
		}}
		progress := make(chan ProgressUpdate, 64)

		urls := []string{
			"https://youtu.be/one",
			"https://vimeo.com/123",
			"https://youtu.be/bad",
			"https://www.youtube.com/watch?v=two",
		}
		res, err := NewImporter(adder, ImportOpts{Pool: fast}).Run(ctx, progress, urls)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		if res.Total != 4 || res.Accepted != 2 || res.Failed != 2 {
			t.Errorf("unexpected totals: %+v", res)
		}
		if len(adder.calls) != 3 {
			t.Errorf("invalid URL should not reach the server, calls: %v", adder.calls)
		}
		if !errors.Is(res.Items[1].Error, shared.ErrInvalidURL) {
			t.Errorf("expected ErrInvalidURL for item 1, got %v", res.Items[1].Error)
		}
		if !errors.Is(res.Items[2].Error, shared.ErrCommandFailed) {
			t.Errorf("expected ErrCommandFailed for item 2, got %v", res.Items[2].Error)
		}
		if res.Items[0].DownloadID == "" || res.Items[3].DownloadID == "" {
			t.Errorf("expected download ids for accepted items, got %+v", res.Items)
		}
		if res.Items[2].Reason == "" {
			t.Error("expected failure reason to be recorded")
		}

		updates := drain(progress)
		if len(updates) == 0 {
			t.Fatal("expected progress updates")
		}
		if updates[0].Phase != ValidateURLs || updates[0].Step != 3 {
			t.Errorf("unexpected first update: %+v", updates[0])
		}
		if last := updates[len(updates)-1]; last.Phase != Complete {
			t.Errorf("expected final Complete update, got %+v", last)
		}
	})

	t.Run("bounds concurrency by worker count", func(t *testing.T) {
		adder := &fakeAdder{}
		urls := make([]string, 12)
		for i := range urls {
			urls[i] = fmt.Sprintf("https://youtu.be/v%d", i)
		}

		res, err := NewImporter(adder, ImportOpts{Pool: fast}).Run(ctx, nil, urls)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if res.Accepted != 12 {
			t.Errorf("expected all accepted, got %d", res.Accepted)
		}
		if peak := adder.peak.Load(); peak > 2 {
			t.Errorf("expected at most 2 concurrent submissions, saw %d", peak)
		}
	})

	t.Run("full progress channel does not block", func(t *testing.T) {
		progress := make(chan ProgressUpdate)
		_, err := NewImporter(&fakeAdder{}, ImportOpts{Pool: fast}).Run(ctx, progress, []string{"https://youtu.be/x"})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	})

	t.Run("auto add requires target", func(t *testing.T) {
		_, err := NewImporter(&fakeAdder{}, ImportOpts{AutoAdd: true}).Run(ctx, nil, []string{"https://youtu.be/x"})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("nil client", func(t *testing.T) {
		_, err := NewImporter(nil, ImportOpts{}).Run(ctx, nil, nil)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		adder := &fakeAdder{}
		res, err := NewImporter(adder, ImportOpts{Pool: fast}).Run(cctx, nil, []string{"https://youtu.be/a", "https://youtu.be/b"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if res.Accepted != 0 || res.Failed != 2 {
			t.Errorf("expected every item to fail, got %+v", res)
		}
	})
}

func TestExporter(t *testing.T) {
	ctx := context.Background()
	fetcher := &fakeFetcher{playlists: map[string]*models.Playlist{
		"road_trip": {
			Name:           "Road Trip",
			SerializedName: "road_trip",
			Songs:          []models.Track{{ID: "e1", Title: "Song One", Duration: 180}},
		},
		"chill": {Name: "Chill", SerializedName: "chill"},
	}}

	t.Run("exports and writes manifest", func(t *testing.T) {
		dir := t.TempDir()
		progress := make(chan ProgressUpdate, 32)

		res, err := NewExporter(fetcher, ExportOpts{
			Pool:      Pool{Workers: 2, RateLimit: 1000},
			Format:    "csv",
			OutputDir: dir,
		}).Run(ctx, progress, []string{"road_trip", "chill", "missing"})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		if res.SuccessfulExports != 2 || res.FailedExports != 1 {
			t.Errorf("unexpected totals: %+v", res)
		}
		th.AssertFileExists(t, filepath.Join(dir, "road_trip_songs.csv"))
		th.AssertFileExists(t, filepath.Join(dir, "chill_metadata.json"))
		th.AssertFileExists(t, res.ManifestPath)

		manifest := th.MustReadFile(t, res.ManifestPath)
		if !strings.Contains(manifest, `"failed_exports": 1`) || !strings.Contains(manifest, "playlist not found") {
			t.Errorf("unexpected manifest: %s", manifest)
		}
		if len(drain(progress)) == 0 {
			t.Error("expected progress updates")
		}
	})

	t.Run("creates output directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "out")
		_, err := NewExporter(fetcher, ExportOpts{Pool: Pool{RateLimit: 1000}, OutputDir: dir}).Run(ctx, nil, []string{"chill"})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "chill.json")); err != nil {
			t.Errorf("expected json export: %v", err)
		}
	})

	t.Run("unknown format fails each playlist", func(t *testing.T) {
		res, err := NewExporter(fetcher, ExportOpts{
			Pool:      Pool{RateLimit: 1000},
			Format:    "xml",
			OutputDir: t.TempDir(),
		}).Run(ctx, nil, []string{"chill"})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if res.FailedExports != 1 {
			t.Errorf("expected failure, got %+v", res)
		}
	})
}
