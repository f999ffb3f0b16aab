package tasks

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/desertthunder/jbx/internal/library"
	"github.com/desertthunder/jbx/internal/shared"
)

// ImportOpts configures a bulk import.
type ImportOpts struct {
	Pool
	AutoAdd        bool   // Add each finished download to TargetPlaylist
	TargetPlaylist string // Playlist used when AutoAdd is set
}

// ImportItem is the outcome of submitting one URL.
type ImportItem struct {
	Index      int    `json:"index"`
	URL        string `json:"url"`
	DownloadID string `json:"download_id,omitempty"`
	Error      error  `json:"-"`
	Reason     string `json:"error,omitempty"`
}

// ImportResult summarises a bulk import. Items keep the input order.
type ImportResult struct {
	Total    int          `json:"total"`
	Accepted int          `json:"accepted"`
	Failed   int          `json:"failed"`
	Items    []ImportItem `json:"items"`
}

// Importer submits many URLs to the download pipeline.
type Importer struct {
	client Adder
	opts   ImportOpts
}

// NewImporter creates an importer using client for submissions.
func NewImporter(client Adder, opts ImportOpts) *Importer {
	opts.Pool = opts.Pool.normalize()
	return &Importer{client: client, opts: opts}
}

type importJob struct {
	index int
	url   string
}

// Run validates urls, then submits the valid ones through a rate-limited worker pool.
//
// Invalid URLs are reported as failures without contacting the server. Cancelling ctx stops
// submission; URLs not yet submitted are reported with the context error.
func (i *Importer) Run(ctx context.Context, progress chan<- ProgressUpdate, urls []string) (*ImportResult, error) {
	if i.client == nil {
		return nil, fmt.Errorf("%w: jukebox client not initialized", shared.ErrServiceUnavailable)
	}
	if i.opts.AutoAdd && i.opts.TargetPlaylist == "" {
		return nil, fmt.Errorf("%w: target playlist", shared.ErrMissingArgument)
	}

	result := &ImportResult{Total: len(urls), Items: make([]ImportItem, len(urls))}

	var jobs []importJob
	for idx, u := range urls {
		result.Items[idx] = ImportItem{Index: idx, URL: u}
		if err := library.ValidateURL(u); err != nil {
			result.Items[idx].Error = err
			continue
		}
		jobs = append(jobs, importJob{index: idx, url: u})
	}
	sendProgress(progress, validateUpdate(len(jobs), len(urls)))

	limiter := rate.NewLimiter(rate.Limit(i.opts.RateLimit), 1)
	queue := make(chan importJob)
	results := make(chan ImportItem, len(jobs))

	var wg sync.WaitGroup
	for w := 0; w < i.opts.Workers; w++ {
		wg.Add(1)
		go i.worker(ctx, &wg, limiter, queue, results)
	}

	go func() {
		defer close(queue)
		for _, j := range jobs {
			select {
			case <-ctx.Done():
				return
			case queue <- j:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	seen := make(map[int]bool, len(jobs))
	completed := 0
	for res := range results {
		completed++
		seen[res.Index] = true
		result.Items[res.Index] = res
		sendProgress(progress, submittedUpdate(completed, len(jobs), res))
	}

	for _, j := range jobs {
		if !seen[j.index] {
			result.Items[j.index].Error = ctx.Err()
		}
	}

	for idx := range result.Items {
		item := &result.Items[idx]
		if item.Error != nil {
			item.Reason = item.Error.Error()
			result.Failed++
		} else {
			result.Accepted++
		}
	}

	sendProgress(progress, completeUpdate(result.Accepted, result.Failed))
	return result, ctx.Err()
}

func (i *Importer) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan importJob,
	results chan<- ImportItem,
) {
	defer wg.Done()

	for job := range jobs {
		item := ImportItem{Index: job.index, URL: job.url}

		if err := limiter.Wait(ctx); err != nil {
			item.Error = err
			results <- item
			continue
		}

		res, err := i.client.AddToLibrary(ctx, job.url, i.opts.AutoAdd, i.opts.TargetPlaylist)
		if err != nil {
			item.Error = err
		} else {
			item.DownloadID = res.DownloadID
		}
		results <- item
	}
}
