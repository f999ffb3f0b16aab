package downloads

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/shared"
	"github.com/desertthunder/jbx/internal/stream"
)

// Default timings.
const (
	DefaultPruneAfter   = 10 * time.Second
	DefaultRefreshDelay = time.Second
)

// Source fetches the downloads the server still knows about.
type Source interface {
	DownloadsStatus(ctx context.Context) ([]models.DownloadEntry, error)
}

// Refresher reloads the library listing after a download lands.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Renderer receives the tracked set, in first-seen order, after every change.
type Renderer interface {
	RenderDownloads([]Entry)
}

// RendererFunc adapts a function to [Renderer].
type RendererFunc func([]Entry)

func (f RendererFunc) RenderDownloads(e []Entry) { f(e) }

// Entry is a tracked download and its rendered stages.
type Entry struct {
	models.DownloadEntry
	// Reached is the furthest non-terminal stage seen, used to place a failure.
	Reached   models.DownloadStatus
	Stages    []Stage
	UpdatedAt time.Time
}

// Label is the human name of the entry's status.
func (e Entry) Label() string { return Label(e.Status) }

// Options holds the tracker's collaborators and timings.
type Options struct {
	PruneAfter   time.Duration
	RefreshDelay time.Duration
	Refresher    Refresher
	Renderer     Renderer
	Clock        shared.Clock
	Logger       *log.Logger
}

// OptionsFromConfig builds timings from the [downloads] config section.
func OptionsFromConfig(cfg shared.DownloadsConfig) Options {
	return Options{PruneAfter: cfg.PruneAfter(), RefreshDelay: cfg.LibraryRefreshDelay()}
}

type tracked struct {
	entry Entry
	prune shared.Timer
}

// Tracker keeps one entry per in-flight download id.
//
// Terminal entries are removed PruneAfter after they finish unless dismissed first.
// A transition into completed schedules one library refresh RefreshDelay later.
type Tracker struct {
	src    Source
	opts   Options
	logger *log.Logger

	mu      sync.Mutex
	entries map[string]*tracked
	order   []string

	renderMu sync.Mutex
}

// New creates an empty tracker.
func New(src Source, opts Options) *Tracker {
	if opts.PruneAfter <= 0 {
		opts.PruneAfter = DefaultPruneAfter
	}
	if opts.RefreshDelay <= 0 {
		opts.RefreshDelay = DefaultRefreshDelay
	}
	if opts.Clock == nil {
		opts.Clock = shared.SystemClock{}
	}
	if opts.Renderer == nil {
		opts.Renderer = RendererFunc(func([]Entry) {})
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Tracker{
		src:     src,
		opts:    opts,
		logger:  opts.Logger,
		entries: map[string]*tracked{},
	}
}

// Bootstrap applies every download the server reports, as if each had just been pushed.
func (t *Tracker) Bootstrap(ctx context.Context) error {
	list, err := t.src.DownloadsStatus(ctx)
	if err != nil {
		t.logger.Error("failed to load downloads", "err", err)
		return fmt.Errorf("downloads status: %w", err)
	}
	for _, d := range list {
		t.Apply(d)
	}
	return nil
}

// HandleEvent applies a push from the downloads channel.
func (t *Tracker) HandleEvent(e stream.Event) {
	if e.Type != "" {
		t.logger.Debug("ignoring typed downloads event", "type", e.Type)
		return
	}

	var d models.DownloadEntry
	if err := e.Decode(&d); err != nil {
		t.logger.Error("bad download event", "err", err)
		return
	}
	t.Apply(d)
}

// Apply creates or updates the entry for d.ID.
func (t *Tracker) Apply(d models.DownloadEntry) {
	if d.ID == "" {
		t.logger.Warn("download event without id", "err", shared.ErrInvalidEvent)
		return
	}
	if !d.Status.Valid() {
		t.logger.Warn("download event with unknown status", "id", d.ID, "status", d.Status)
		return
	}

	t.mu.Lock()
	tr, seen := t.entries[d.ID]
	if !seen {
		tr = &tracked{entry: Entry{DownloadEntry: d, Reached: models.DownloadPending}}
		t.entries[d.ID] = tr
		t.order = append(t.order, d.ID)
		t.logger.Info("tracking download", "id", d.ID)
	}

	prev := tr.entry.Status
	merge(&tr.entry, d, seen)
	t.scheduleLocked(d.ID, tr, seen, prev)
	t.mu.Unlock()

	t.render()
}

// merge writes d over e; title and uploader are kept when the update omits them.
func merge(e *Entry, d models.DownloadEntry, seen bool) {
	if seen {
		title, uploader := e.Title, e.Uploader
		e.DownloadEntry = d
		if d.Title == "" {
			e.Title = title
		}
		if d.Uploader == "" {
			e.Uploader = uploader
		}
	}

	if !d.Status.Terminal() {
		e.Reached = d.Status
	} else if d.Status == models.DownloadCompleted {
		e.Reached = models.DownloadCompleted
	}
	e.Stages = Markers(e.Status, e.Reached)
}

func (t *Tracker) scheduleLocked(id string, tr *tracked, seen bool, prev models.DownloadStatus) {
	tr.entry.UpdatedAt = t.opts.Clock.Now()
	status := tr.entry.Status

	if status.Terminal() && tr.prune == nil {
		tr.prune = t.opts.Clock.AfterFunc(t.opts.PruneAfter, func() { t.remove(id, tr) })
	} else if !status.Terminal() && tr.prune != nil {
		tr.prune.Stop()
		tr.prune = nil
	}

	if status == models.DownloadCompleted && (!seen || prev != models.DownloadCompleted) && t.opts.Refresher != nil {
		t.logger.Debug("scheduling library refresh", "id", id, "delay", t.opts.RefreshDelay)
		t.opts.Clock.AfterFunc(t.opts.RefreshDelay, t.refresh)
	}
}

func (t *Tracker) refresh() {
	if err := t.opts.Refresher.Refresh(context.Background()); err != nil {
		t.logger.Error("library refresh failed", "err", err)
	}
}

// remove drops id if it is still the same tracked instance.
func (t *Tracker) remove(id string, tr *tracked) {
	t.mu.Lock()
	if t.entries[id] != tr {
		t.mu.Unlock()
		return
	}
	t.deleteLocked(id)
	t.mu.Unlock()

	t.logger.Debug("pruned download", "id", id)
	t.render()
}

// Dismiss removes an entry immediately. It reports whether the id was tracked.
func (t *Tracker) Dismiss(id string) bool {
	t.mu.Lock()
	tr, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return false
	}
	if tr.prune != nil {
		tr.prune.Stop()
	}
	t.deleteLocked(id)
	t.mu.Unlock()

	t.render()
	return true
}

func (t *Tracker) deleteLocked(id string) {
	delete(t.entries, id)
	t.order = lo.Without(t.order, id)
}

// Entries returns the tracked downloads in first-seen order.
func (t *Tracker) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Get returns the entry for id.
func (t *Tracker) Get(id string) (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", shared.ErrDownloadNotFound, id)
	}
	return cloneEntry(tr.entry), nil
}

// Active reports whether any download is being shown.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries) > 0
}

// Close cancels every pending prune.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tr := range t.entries {
		if tr.prune != nil {
			tr.prune.Stop()
			tr.prune = nil
		}
	}
}

// render draws the newest tracked set; renders never overtake each other.
func (t *Tracker) render() {
	t.renderMu.Lock()
	defer t.renderMu.Unlock()
	t.opts.Renderer.RenderDownloads(t.Entries())
}

func (t *Tracker) snapshotLocked() []Entry {
	return lo.Map(t.order, func(id string, _ int) Entry {
		return cloneEntry(t.entries[id].entry)
	})
}

func cloneEntry(e Entry) Entry {
	e.Stages = append([]Stage(nil), e.Stages...)
	return e
}
