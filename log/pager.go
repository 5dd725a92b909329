package log

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/opsorch/adminlog/logger"
	"github.com/opsorch/adminlog/logquery"
	"github.com/opsorch/adminlog/metrics"
	"github.com/opsorch/adminlog/orcherr"
	"github.com/opsorch/adminlog/schema"
)

// ErrDone is returned by Next once the pager has stopped.
var ErrDone = errors.New("log pager: no more pages")

// PagerConfig controls a backward history walk.
type PagerConfig struct {
	Window   time.Duration // width of each page's window
	MaxPages int           // 0 means no limit
	Rate     rate.Limit    // pages per second; 0 means unpaced
	Burst    int
}

// Page is one window's worth of entries.
type Page struct {
	Query   schema.LogQuery   `json:"query"`
	Entries []schema.LogEntry `json:"entries"`
	URL     string            `json:"url,omitempty"`
}

// Pager walks a Builder backward one window per page and hands each descriptor
// to a Provider. It stops after a window comes back empty, after MaxPages, or
// after a provider error. Like the Builder it drives, it is not safe for
// concurrent use.
type Pager struct {
	provider Provider
	builder  *logquery.Builder
	window   time.Duration
	maxPages int
	limiter  *rate.Limiter

	pages int
	done  bool
}

// NewPager validates cfg and returns a pager positioned at the builder's cursor.
func NewPager(provider Provider, builder *logquery.Builder, cfg PagerConfig) (*Pager, error) {
	if provider == nil {
		return nil, errors.New("log pager: provider required")
	}
	if builder == nil {
		return nil, errors.New("log pager: builder required")
	}
	if ms := cfg.Window.Milliseconds(); ms <= 0 {
		return nil, orcherr.InvalidWindowDuration(ms)
	}
	if cfg.MaxPages < 0 {
		return nil, orcherr.BadRequest(fmt.Sprintf("max pages must not be negative, got %d", cfg.MaxPages))
	}

	limit, burst := cfg.Rate, cfg.Burst
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Pager{
		provider: provider,
		builder:  builder,
		window:   cfg.Window,
		maxPages: cfg.MaxPages,
		limiter:  rate.NewLimiter(limit, burst),
	}, nil
}

// Next slides the window back and fetches it.
func (p *Pager) Next(ctx context.Context) (Page, error) {
	if p.done {
		return Page{}, ErrDone
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return Page{}, err
	}
	if err := p.builder.SlideWindowBackwardBy(p.window); err != nil {
		return Page{}, err
	}
	metrics.WindowSlides.Inc()

	query := p.builder.Query()
	res, err := p.provider.Query(ctx, query)
	if err != nil {
		p.done = true
		metrics.LogQueries.WithLabelValues("error").Inc()
		return Page{}, fmt.Errorf("query window [%d, %d): %w", *query.StartTimeMillis, query.EndTimeMillis, err)
	}
	metrics.LogQueries.WithLabelValues("success").Inc()
	metrics.LogEntriesReturned.Add(float64(len(res.Entries)))

	p.pages++
	if len(res.Entries) == 0 || (p.maxPages > 0 && p.pages >= p.maxPages) {
		p.done = true
	}
	window, _ := query.Window()
	logger.Get().Debug("log page fetched",
		"start", window.StartMillis,
		"end", window.EndMillis,
		"width", window.Duration(),
		"entries", len(res.Entries),
		"page", p.pages,
		"done", p.done,
	)
	return Page{Query: query, Entries: res.Entries, URL: res.URL}, nil
}

// Collect fetches pages until at least minEntries entries are gathered or the pager stops.
// Empty pages are dropped from the result. minEntries <= 0 drains the pager.
func (p *Pager) Collect(ctx context.Context, minEntries int) ([]Page, error) {
	var (
		pages []Page
		total int
	)
	for !p.done {
		page, err := p.Next(ctx)
		if err != nil {
			return pages, err
		}
		if len(page.Entries) > 0 {
			pages = append(pages, page)
			total += len(page.Entries)
		}
		if minEntries > 0 && total >= minEntries {
			break
		}
	}
	return pages, nil
}

// Done reports whether Next will return ErrDone.
func (p *Pager) Done() bool {
	return p.done
}

// Pages is the number of windows fetched so far.
func (p *Pager) Pages() int {
	return p.pages
}

// Cursor is where the next window would end; a later walk can resume from it.
func (p *Pager) Cursor() int64 {
	return p.builder.EndTime()
}
