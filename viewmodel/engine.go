package viewmodel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/justbri/moviepicker/metrics"
	"github.com/justbri/moviepicker/models"
	"github.com/justbri/moviepicker/store"
)

// Update is one publication of the engine. When Err is set, View is the last good view.
type Update struct {
	View ViewModel
	Err  error
}

// Engine turns a subscription into a stream of views. All state is owned by the Run
// goroutine; the setters hand work to it and return without waiting for a rebuild.
type Engine struct {
	sub      store.Subscription
	pageSize int

	ops     chan func()
	updates chan Update
	done    chan struct{}

	mu      sync.RWMutex
	current ViewModel
	ready   bool

	records []models.Movie
	synced  bool
	filters Filters
	page    int
	target  string
}

type Option func(*Engine)

func WithPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

func WithFilters(f Filters) Option {
	return func(e *Engine) { e.filters = f }
}

// WithPage sets the page requested before the first snapshot. It is clamped on build.
func WithPage(page int) Option {
	return func(e *Engine) { e.page = page }
}

func NewEngine(sub store.Subscription, opts ...Option) *Engine {
	e := &Engine{
		sub:      sub,
		pageSize: DefaultPageSize,
		ops:      make(chan func()),
		updates:  make(chan Update, 1),
		done:     make(chan struct{}),
		filters:  DefaultFilters(),
		page:     1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Updates delivers the latest view. A slow reader only sees the newest one.
// The channel is closed when Run returns.
func (e *Engine) Updates() <-chan Update { return e.updates }

// Current returns the most recent view; ok is false before the first snapshot.
func (e *Engine) Current() (ViewModel, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current, e.ready
}

// Run processes snapshots and parameter changes until ctx ends or the subscription
// closes. It cancels the subscription before returning.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.updates)
	defer close(e.done)
	defer e.sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case snap, ok := <-e.sub.Snapshots():
			if !ok {
				return nil
			}
			if snap.Err != nil {
				vm, _ := e.Current()
				e.publish(Update{View: vm, Err: fmt.Errorf("collection snapshot: %w", snap.Err)})
				continue
			}
			e.records = snap.Movies
			e.synced = true
			e.rebuild()

		case op := <-e.ops:
			op()
			if e.synced {
				e.rebuild()
			}
		}
	}
}

// SetFilters replaces the filter parameters and returns to the first page.
func (e *Engine) SetFilters(f Filters) bool {
	return e.do(func() {
		e.filters = f
		e.page = 1
	})
}

func (e *Engine) SetPage(page int) bool {
	return e.do(func() { e.page = page })
}

// MarkNewlyAdded makes id the scroll target of the first view that contains it.
func (e *Engine) MarkNewlyAdded(id string) bool {
	return e.do(func() { e.target = id })
}

// do hands fn to the Run goroutine. It reports false once Run has returned.
func (e *Engine) do(fn func()) bool {
	select {
	case e.ops <- fn:
		return true
	case <-e.done:
		return false
	}
}

func (e *Engine) rebuild() {
	start := time.Now()

	vm := Build(e.records, e.filters, e.page, e.pageSize)
	if e.target != "" && vm.Contains(e.target) {
		if page := vm.PageOf(e.target); page != vm.Page {
			vm = Build(e.records, e.filters, page, e.pageSize)
		}
		vm.ScrollTarget = e.target
		e.target = ""
	}
	e.page = vm.Page

	metrics.ViewRecomputeDuration.Observe(time.Since(start).Seconds())

	e.mu.Lock()
	e.current = vm
	e.ready = true
	e.mu.Unlock()

	e.publish(Update{View: vm})
}

// publish replaces any unread update. Only the Run goroutine sends, so the
// second send cannot block.
func (e *Engine) publish(u Update) {
	select {
	case e.updates <- u:
	default:
		select {
		case <-e.updates:
		default:
		}
		e.updates <- u
	}
}
