package session

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/rubiojr/mithril/pkg/cache"
	"github.com/rubiojr/mithril/pkg/core"
	"github.com/rubiojr/mithril/pkg/log"
	"github.com/rubiojr/mithril/pkg/realtime"
	"github.com/rubiojr/mithril/pkg/snippets"
)

// NoCacheQuery is the literal query that disables cache reads on this device.
const NoCacheQuery = "nocache"

const (
	DefaultDebounce       = 300 * time.Millisecond
	DefaultSnippetDelay   = 50 * time.Millisecond
	DefaultVisibleResults = 10
)

// Searcher is the remote search API.
type Searcher interface {
	Search(ctx context.Context, query string, max int) (*core.ResultSet, error)
	Snippets(ctx context.Context, ids []string, query string) (io.ReadCloser, error)
}

// Evaluator answers arithmetic queries. Any error means "not math".
type Evaluator interface {
	Evaluate(expr string) (string, error)
}

// State is the controller's position in the query lifecycle.
type State int32

const (
	StateIdle State = iota
	StateDebouncing
	StateCacheHit
	StateFetching
	StateRendered
	StateSnippetsStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateCacheHit:
		return "cache-hit"
	case StateFetching:
		return "fetching"
	case StateRendered:
		return "rendered"
	case StateSnippetsStreaming:
		return "snippets-streaming"
	default:
		return "unknown"
	}
}

// ControllerOptions tunes the lifecycle timings and limits. Zero values
// select the defaults.
type ControllerOptions struct {
	Debounce       time.Duration
	SnippetDelay   time.Duration
	MaxResults     int
	VisibleResults int
	TitleWords     int
	Now            func() time.Time
}

func (o *ControllerOptions) setDefaults() {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.SnippetDelay <= 0 {
		o.SnippetDelay = DefaultSnippetDelay
	}
	if o.MaxResults <= 0 {
		o.MaxResults = 50
	}
	if o.VisibleResults <= 0 {
		o.VisibleResults = DefaultVisibleResults
	}
	if o.TitleWords <= 0 {
		o.TitleWords = core.DefaultTitleWords
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// pendingFetch is the single outstanding snippet request.
type pendingFetch struct {
	gen    uint64
	cancel context.CancelFunc
	count  int
}

// Controller turns a stream of query submissions into at most one
// authoritative search and one snippet stream at a time.
//
// All state below the mailbox is owned by the loop goroutine started by Run.
// Timers and network goroutines never touch it directly; they post closures
// to the mailbox.
type Controller struct {
	opts     ControllerOptions
	cache    *cache.ResultCache
	searcher Searcher
	eval     Evaluator
	emit     func(realtime.Event)
	log      *log.Logger

	mailbox chan func()
	done    chan struct{}
	running atomic.Bool
	state   atomic.Int32

	ctx           context.Context
	debounceTimer *time.Timer
	debounceGen   uint64
	seq           uint64
	searchCancel  context.CancelFunc
	query         string
	snippetTimer  *time.Timer
	snippetGen    uint64
	pending       *pendingFetch
}

// NewController wires a controller. eval may be nil to disable the math
// shortcut. emit is called from the loop goroutine and must not block.
func NewController(c *cache.ResultCache, searcher Searcher, eval Evaluator, emit func(realtime.Event), opts ControllerOptions) *Controller {
	opts.setDefaults()
	if emit == nil {
		emit = func(realtime.Event) {}
	}
	return &Controller{
		opts:     opts,
		cache:    c,
		searcher: searcher,
		eval:     eval,
		emit:     emit,
		log:      log.ForService("session"),
		mailbox:  make(chan func(), 128),
		done:     make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled. It may only be called once.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("controller already running")
	}
	c.ctx = ctx
	defer close(c.done)
	defer c.shutdown()

	for {
		select {
		case fn := <-c.mailbox:
			fn()
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Controller) shutdown() {
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	if c.searchCancel != nil {
		c.searchCancel()
	}
	c.cancelSnippets()
	c.setState(StateIdle)
}

// post queues fn for the loop. Posts after the loop exited are dropped.
func (c *Controller) post(fn func()) {
	select {
	case c.mailbox <- fn:
	case <-c.done:
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	if old := State(c.state.Swap(int32(s))); old != s {
		c.log.Debugf("%s -> %s", old, s)
	}
}

// Submit registers an input event. The query is dispatched once no other
// Submit arrives within the debounce delay. Blank input is ignored and leaves
// a pending query untouched.
func (c *Controller) Submit(query string) {
	query = core.NormalizeQuery(query)
	if query == "" {
		return
	}
	c.post(func() { c.restartDebounce(query) })
}

// SubmitNow dispatches query immediately, cancelling any pending debounce.
func (c *Controller) SubmitNow(query string) {
	c.post(func() {
		c.stopDebounce()
		c.dispatch(query)
	})
}

// RequestSnippets starts a snippet fetch for ids and the current query,
// superseding any fetch in flight.
func (c *Controller) RequestSnippets(ids []string) {
	c.post(func() {
		if c.query == "" || len(ids) == 0 {
			return
		}
		c.startSnippets(ids, c.query)
	})
}

func (c *Controller) stopDebounce() {
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}
	c.debounceGen++
}

func (c *Controller) restartDebounce(query string) {
	c.stopDebounce()
	gen := c.debounceGen
	c.setState(StateDebouncing)
	c.debounceTimer = time.AfterFunc(c.opts.Debounce, func() {
		c.post(func() {
			// A timer that fired while being stopped must not dispatch.
			if gen != c.debounceGen {
				return
			}
			c.debounceTimer = nil
			c.dispatch(query)
		})
	})
}

func (c *Controller) dispatch(raw string) {
	query := core.NormalizeQuery(raw)
	if query == "" {
		c.setState(StateIdle)
		return
	}

	// A new session supersedes everything still in flight.
	c.seq++
	seq := c.seq
	if c.searchCancel != nil {
		c.searchCancel()
		c.searchCancel = nil
	}
	c.cancelSnippets()
	c.query = query

	if query == NoCacheQuery {
		c.cache.Disable()
	}

	if c.eval != nil {
		if value, err := c.eval.Evaluate(query); err == nil {
			c.log.Debugf("math shortcut for %q = %s", query, value)
			c.emit(realtime.Event{Type: realtime.TypeMathResult, Query: query, Value: value})
			c.setState(StateIdle)
			return
		}
	}

	c.emit(realtime.Event{Type: realtime.TypeLoadingStarted, Query: query})

	if rs, ok := c.cache.Get(query); ok {
		c.log.Debugf("cache hit for %q", query)
		c.setState(StateCacheHit)
		c.render(seq, query, rs, true)
		return
	}

	c.setState(StateFetching)
	ctx, cancel := context.WithCancel(c.ctx)
	c.searchCancel = cancel
	start := c.opts.Now()
	max := c.opts.MaxResults
	go func() {
		rs, err := c.searcher.Search(ctx, query, max)
		c.post(func() { c.searchDone(seq, query, start, rs, err) })
	}()
}

func (c *Controller) searchDone(seq uint64, query string, start time.Time, rs *core.ResultSet, err error) {
	if seq != c.seq {
		c.log.Debugf("dropping stale response for %q", query)
		return
	}
	if c.searchCancel != nil {
		c.searchCancel()
		c.searchCancel = nil
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.log.Errorf("search for %q failed: %v", query, err)
		c.setState(StateIdle)
		c.emit(realtime.Event{Type: realtime.TypeError, Query: query, Message: err.Error()})
		return
	}

	processed := core.Process(rs, c.opts.TitleWords)
	processed.ElapsedMs = float64(c.opts.Now().Sub(start)) / float64(time.Millisecond)
	c.cache.Set(query, processed)
	c.render(seq, query, processed, false)
}

func (c *Controller) render(seq uint64, query string, rs *core.ResultSet, fromCache bool) {
	c.emit(realtime.Event{
		Type:      realtime.TypeResultsReady,
		Query:     query,
		Results:   rs,
		Groups:    core.Group(rs.Results),
		FromCache: fromCache,
		Elapsed:   core.FormatElapsed(rs.Elapsed()),
	})

	if len(rs.Results) == 0 {
		c.setState(StateIdle)
		return
	}
	c.setState(StateRendered)

	ids := rs.IDs(c.opts.VisibleResults)
	c.snippetTimer = time.AfterFunc(c.opts.SnippetDelay, func() {
		c.post(func() {
			if seq != c.seq {
				return
			}
			c.snippetTimer = nil
			c.startSnippets(ids, query)
		})
	})
}

// cancelSnippets stops a scheduled snippet fetch and cancels the one in
// flight. Emissions of the cancelled generation are dropped by the loop.
func (c *Controller) cancelSnippets() {
	if c.snippetTimer != nil {
		c.snippetTimer.Stop()
		c.snippetTimer = nil
	}
	if c.pending != nil {
		c.log.Debugf("cancelling snippet fetch %d", c.pending.gen)
		c.pending.cancel()
		c.pending = nil
	}
}

func (c *Controller) startSnippets(ids []string, query string) {
	c.cancelSnippets()
	c.snippetGen++
	gen := c.snippetGen
	ctx, cancel := context.WithCancel(c.ctx)
	c.pending = &pendingFetch{gen: gen, cancel: cancel}
	c.setState(StateSnippetsStreaming)

	go func() {
		body, err := c.searcher.Snippets(ctx, ids, query)
		if err != nil {
			c.post(func() { c.snippetsDone(gen, query, err) })
			return
		}
		defer body.Close()
		err = snippets.Stream(ctx, body, func(s snippets.Snippet) {
			c.post(func() { c.snippetReady(gen, query, s) })
		})
		c.post(func() { c.snippetsDone(gen, query, err) })
	}()
}

func (c *Controller) snippetReady(gen uint64, query string, s snippets.Snippet) {
	if c.pending == nil || c.pending.gen != gen {
		return
	}
	c.pending.count++
	c.emit(realtime.Event{
		Type:    realtime.TypeSnippetReady,
		Query:   query,
		DocID:   s.DocID,
		Snippet: snippets.Highlight(s.Text, query),
	})
}

func (c *Controller) snippetsDone(gen uint64, query string, err error) {
	if c.pending == nil || c.pending.gen != gen {
		return
	}
	count := c.pending.count
	c.pending.cancel()
	c.pending = nil
	c.setState(StateIdle)

	if err != nil && !errors.Is(err, context.Canceled) {
		// Rendered results stay; they keep their original snippets.
		c.log.Warnf("snippet stream for %q failed after %d snippets: %v", query, count, err)
	}
	c.emit(realtime.Event{Type: realtime.TypeSnippetsDone, Query: query, Count: count})
}
