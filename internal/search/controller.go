// Package search implements the search session controller: debounced,
// cancellable catalog lookups plus a recent-query history kept in sync with a
// backing store.
package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"movie-discovery-search-service/internal/models"
)

// Catalog looks up one page of movies for a query.
type Catalog interface {
	SearchMovies(ctx context.Context, query string, page int) (*models.ResultPage, error)
}

// HistoryStore persists recent queries. Implementations enforce uniqueness by
// exact string, move duplicates to the front, and retain a bounded count.
type HistoryStore interface {
	Save(ctx context.Context, query string) error
	List(ctx context.Context, limit int) ([]string, error)
	Remove(ctx context.Context, query string) error
	Clear(ctx context.Context) error
}

// Recorder receives lookup and history outcomes. A nil Recorder is allowed.
type Recorder interface {
	ObserveLookup(outcome string, d time.Duration)
	HistoryFailure(op string)
}

const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Options tunes a Controller. Zero values fall back to defaults.
type Options struct {
	Debounce       time.Duration
	LookupTimeout  time.Duration
	HistoryLimit   int
	HistoryTimeout time.Duration
	// LiveSearch feeds every OnQueryChanged into the submit pipeline.
	LiveSearch bool
}

const (
	DefaultDebounce       = 500 * time.Millisecond
	DefaultLookupTimeout  = 10 * time.Second
	DefaultHistoryTimeout = 5 * time.Second

	subscriberBuffer = 16
)

func (o Options) withDefaults() Options {
	if o.Debounce < 0 {
		o.Debounce = 0
	}
	if o.LookupTimeout <= 0 {
		o.LookupTimeout = DefaultLookupTimeout
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = models.DefaultHistoryLimit
	}
	if o.HistoryTimeout <= 0 {
		o.HistoryTimeout = DefaultHistoryTimeout
	}
	return o
}

// Controller owns the state of one search view. All state mutation happens
// under mu, and a lookup result is applied only while its generation is
// still the current one, so a superseded request can never overwrite the
// outcome of a newer submit regardless of response arrival order.
type Controller struct {
	log      *slog.Logger
	catalog  Catalog
	history  HistoryStore
	recorder Recorder
	opts     Options

	// base is cancelled by Close; every pipeline derives from it.
	base     context.Context
	stopBase context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	state   models.SearchState
	gen     uint64
	cancel  context.CancelFunc
	subs    map[int]chan models.SearchState
	nextSub int
	closed  bool

	// refreshSeq stamps each history List; only a list newer than
	// refreshApplied may replace the snapshot.
	refreshSeq     uint64
	refreshApplied uint64
}

// NewController creates a Controller in the initial state. Debounce is taken
// as given (zero disables it); other zero options use defaults.
func NewController(logger *slog.Logger, catalog Catalog, history HistoryStore, recorder Recorder, opts Options) *Controller {
	base, stop := context.WithCancel(context.Background())
	return &Controller{
		log:      logger.With("component", "search_controller"),
		catalog:  catalog,
		history:  history,
		recorder: recorder,
		opts:     opts.withDefaults(),
		base:     base,
		stopBase: stop,
		state:    models.InitialSearchState(),
		subs:     make(map[int]chan models.SearchState),
	}
}

// State returns the current snapshot.
func (c *Controller) State() models.SearchState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel that receives every applied state, in order.
// A slow subscriber loses the oldest buffered snapshots, never the newest.
// The channel is closed by the returned cancel func or by Close.
func (c *Controller) Subscribe() (<-chan models.SearchState, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan models.SearchState, subscriberBuffer)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// OnQueryChanged records the text currently in the input field.
func (c *Controller) OnQueryChanged(text string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.QueryText = text
	c.publishLocked()
	c.mu.Unlock()

	if c.opts.LiveSearch {
		c.Submit(text)
	}
}

// Submit starts a debounced lookup for query, superseding any pending one.
// A blank query is equivalent to Clear.
func (c *Controller) Submit(query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		c.Clear()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.invalidateLocked()
	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel
	gen := c.gen

	c.state.Phase = models.PhaseLoading
	c.state.ErrorMessage = ""
	c.state.IsInitial = false
	c.state.LastQuery = query
	c.publishLocked()

	c.wg.Add(1)
	go c.run(ctx, cancel, gen, query)
}

// Retry resubmits the last query, if any.
func (c *Controller) Retry() {
	c.mu.Lock()
	last := c.state.LastQuery
	c.mu.Unlock()

	if last != "" {
		c.Submit(last)
	}
}

// Clear cancels any pending lookup and returns to the initial state.
// The cached history snapshot is kept.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.invalidateLocked()

	history, version := c.state.History, c.state.Version
	c.state = models.InitialSearchState()
	c.state.History = history
	c.state.Version = version
	c.publishLocked()
}

// SelectHistoryEntry puts a recent query back into the input and submits it.
func (c *Controller) SelectHistoryEntry(query string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.QueryText = query
	c.publishLocked()
	c.mu.Unlock()

	c.Submit(query)
}

// RemoveHistoryEntry deletes query from the store and refreshes the snapshot.
// Store failures are logged and leave the snapshot as it was.
func (c *Controller) RemoveHistoryEntry(ctx context.Context, query string) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.HistoryTimeout)
	defer cancel()

	if err := c.history.Remove(ctx, query); err != nil {
		c.historyFailed(ctx, "remove", query, err)
		return
	}
	c.refresh(ctx)
}

// ClearHistory deletes every stored query and refreshes the snapshot.
func (c *Controller) ClearHistory(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.HistoryTimeout)
	defer cancel()

	if err := c.history.Clear(ctx); err != nil {
		c.historyFailed(ctx, "clear", "", err)
		return
	}
	c.refresh(ctx)
}

// RefreshHistory replaces the cached snapshot with the store's current list.
func (c *Controller) RefreshHistory(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.HistoryTimeout)
	defer cancel()
	c.refresh(ctx)
}

// Close cancels pending work, waits for it to finish and closes subscribers.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.invalidateLocked()
	c.mu.Unlock()

	c.stopBase()
	c.wg.Wait()

	c.mu.Lock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()
}

// invalidateLocked cancels the pending pipeline and retires its generation.
func (c *Controller) invalidateLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, gen uint64, query string) {
	defer c.wg.Done()
	defer cancel()

	if c.opts.Debounce > 0 {
		timer := time.NewTimer(c.opts.Debounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.cancelled(query, "debounce")
			return
		case <-timer.C:
		}
	}

	if !c.isCurrent(gen) {
		c.cancelled(query, "debounce")
		return
	}

	started := time.Now()
	lookupCtx, cancelLookup := context.WithTimeout(ctx, c.opts.LookupTimeout)
	page, err := c.catalog.SearchMovies(lookupCtx, query, 1)
	timedOut := errors.Is(lookupCtx.Err(), context.DeadlineExceeded)
	cancelLookup()

	if !c.apply(gen, query, page, err, timedOut) {
		c.cancelled(query, "lookup")
		return
	}

	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	if c.recorder != nil {
		c.recorder.ObserveLookup(outcome, time.Since(started))
	}

	c.recordHistory(query)
}

func (c *Controller) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && gen == c.gen
}

// apply publishes the lookup outcome if gen is still current.
func (c *Controller) apply(gen uint64, query string, page *models.ResultPage, err error, timedOut bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.gen {
		return false
	}

	if err != nil {
		lookupErr := &LookupError{Query: query, Err: err, TimedOut: timedOut}
		c.log.Info("search lookup failed", "query", query, "error", err)
		c.state.Phase = models.PhaseError
		c.state.ErrorMessage = lookupErr.Reason()
		c.state.Results = []models.MovieSummary{}
	} else {
		results := []models.MovieSummary{}
		if page != nil && page.Results != nil {
			results = page.Results
		}
		c.state.Phase = models.PhaseSuccess
		c.state.ErrorMessage = ""
		c.state.Results = results
	}
	c.publishLocked()
	return true
}

// recordHistory saves the query and refreshes the snapshot. It does not
// derive from the pipeline context, so a later submit does not abort it.
func (c *Controller) recordHistory(query string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.base), c.opts.HistoryTimeout)
	defer cancel()

	if err := c.history.Save(ctx, query); err != nil {
		c.historyFailed(ctx, "save", query, err)
		return
	}
	c.refresh(ctx)
}

func (c *Controller) refresh(ctx context.Context) {
	c.mu.Lock()
	c.refreshSeq++
	seq := c.refreshSeq
	c.mu.Unlock()

	entries, err := c.history.List(ctx, c.opts.HistoryLimit)
	if err != nil {
		c.historyFailed(ctx, "list", "", err)
		return
	}
	if entries == nil {
		entries = []string{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || seq <= c.refreshApplied {
		return
	}
	c.refreshApplied = seq
	c.state.History = entries
	c.publishLocked()
}

func (c *Controller) historyFailed(ctx context.Context, op, query string, err error) {
	c.log.WarnContext(ctx, "search history operation failed",
		slog.String("op", op),
		slog.String("query", query),
		slog.String("error", err.Error()),
	)
	if c.recorder != nil {
		c.recorder.HistoryFailure(op)
	}
}

func (c *Controller) cancelled(query, stage string) {
	c.log.Debug("search superseded", "query", query, "stage", stage)
	if c.recorder != nil {
		c.recorder.ObserveLookup(OutcomeCancelled, 0)
	}
}

// publishLocked bumps the version and fans the snapshot out to subscribers.
func (c *Controller) publishLocked() {
	c.state.Version++
	snapshot := c.state
	for _, ch := range c.subs {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}
