// Package logquery builds time-windowed log query descriptors and walks them
// backward through history one non-overlapping window at a time.
package logquery

import (
	"context"
	"errors"
	"math"
	"slices"
	"time"

	"github.com/opsorch/adminlog/orcherr"
	"github.com/opsorch/adminlog/schema"
)

// VersionRegistry supplies the deployment versions to query when the caller names none.
type VersionRegistry interface {
	DefaultVersionIDs(ctx context.Context) ([]string, error)
}

// Request carries the optional inputs for a new Builder. Times are epoch milliseconds.
type Request struct {
	Versions  []string
	StartTime *int64
	EndTime   *int64
}

// State tells whether the descriptor currently has a lower bound.
type State int

const (
	// StateUnbounded: only the end time is set.
	StateUnbounded State = iota
	// StateWindowed: both ends of [start, end) are set.
	StateWindowed
)

func (s State) String() string {
	if s == StateWindowed {
		return "windowed"
	}
	return "unbounded"
}

var (
	errNoRegistry = errors.New("no version registry configured")
	errNoDefaults = errors.New("registry returned no default versions")
)

// Builder owns one log query descriptor and a cursor marking where the next
// backward window ends. It is not safe for concurrent use; paginate in parallel
// with separate builders.
type Builder struct {
	query    schema.LogQuery
	endTime  int64
	versions []string
}

type options struct {
	registry VersionRegistry
	clock    Clock
	policy   Policy
}

// Option customizes New.
type Option func(*options)

// WithVersionRegistry sets the lookup used when the request names no versions.
func WithVersionRegistry(r VersionRegistry) Option {
	return func(o *options) { o.registry = r }
}

// WithClock sets the time source used when the request has no end time.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithPolicy replaces DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

// New resolves the version list and the time window and returns a ready Builder.
// The version registry is consulted once, and only when req.Versions is empty;
// its failure is returned as a version_resolution_failed error wrapping the cause.
func New(ctx context.Context, req Request, opts ...Option) (*Builder, error) {
	o := options{clock: SystemClock{}, policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.policy.Validate(); err != nil {
		return nil, err
	}

	versions, err := resolveVersions(ctx, req.Versions, o.registry)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		query: schema.LogQuery{
			MinSeverity:    o.policy.MinSeverity,
			IncludeAppLogs: o.policy.IncludeAppLogs,
			BatchSize:      o.policy.BatchSize,
			VersionIDs:     versions,
		},
		versions: versions,
	}

	end := o.clock.Now().UnixMilli()
	if req.EndTime != nil {
		end = *req.EndTime
	}
	b.setWindow(req.StartTime, end)
	return b, nil
}

func resolveVersions(ctx context.Context, requested []string, registry VersionRegistry) ([]string, error) {
	if len(requested) > 0 {
		return slices.Clone(requested), nil
	}
	if registry == nil {
		return nil, orcherr.VersionResolution(errNoRegistry)
	}
	defaults, err := registry.DefaultVersionIDs(ctx)
	if err != nil {
		return nil, orcherr.VersionResolution(err)
	}
	if len(defaults) == 0 {
		return nil, orcherr.VersionResolution(errNoDefaults)
	}
	return slices.Clone(defaults), nil
}

// setWindow rewrites the descriptor bounds and moves the cursor to end.
func (b *Builder) setWindow(start *int64, end int64) {
	if start != nil {
		s := *start
		b.query.StartTimeMillis = &s
	}
	b.query.EndTimeMillis = end
	b.endTime = end
}

// SlideWindowBackward points the descriptor at [cursor-durationMillis, cursor) and
// leaves the cursor one millisecond before the new start, so consecutive calls
// cover strictly earlier, non-overlapping windows. Starts below zero are kept as is,
// but the new cursor must stay representable: a start at or below math.MinInt64 is rejected.
func (b *Builder) SlideWindowBackward(durationMillis int64) error {
	if durationMillis <= 0 {
		return orcherr.InvalidWindowDuration(durationMillis)
	}
	if b.endTime < math.MinInt64+1+durationMillis {
		return orcherr.WindowOutOfRange(b.endTime, durationMillis)
	}
	start := b.endTime - durationMillis
	b.setWindow(&start, b.endTime)
	b.endTime = start - 1
	return nil
}

// SlideWindowBackwardBy is SlideWindowBackward for a time.Duration; sub-millisecond parts are dropped.
func (b *Builder) SlideWindowBackwardBy(d time.Duration) error {
	return b.SlideWindowBackward(d.Milliseconds())
}

// EndTime returns the cursor: where the next backward window will end.
func (b *Builder) EndTime() int64 {
	return b.endTime
}

// VersionsToQuery returns the versions resolved at construction.
func (b *Builder) VersionsToQuery() []string {
	return slices.Clone(b.versions)
}

// Query returns a copy of the current descriptor.
func (b *Builder) Query() schema.LogQuery {
	return b.query.Clone()
}

// State reports whether the descriptor has a lower bound yet.
func (b *Builder) State() State {
	if b.query.StartTimeMillis == nil {
		return StateUnbounded
	}
	return StateWindowed
}
