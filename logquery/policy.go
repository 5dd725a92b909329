package logquery

import (
	"fmt"
	"math"
	"time"

	"github.com/opsorch/adminlog/orcherr"
	"github.com/opsorch/adminlog/schema"
)

// DefaultBatchSize only changes how the log service chunks retrieval, never the result.
const DefaultBatchSize = 1000

// MaxBatchSize is the largest page size a log service request can carry.
const MaxBatchSize = math.MaxInt32

// Policy holds the fixed parts of every descriptor a Builder produces.
type Policy struct {
	BatchSize      int
	MinSeverity    schema.Severity
	IncludeAppLogs bool
}

// DefaultPolicy fetches info and above, application logs included, 1000 per batch.
func DefaultPolicy() Policy {
	return Policy{
		BatchSize:      DefaultBatchSize,
		MinSeverity:    schema.SeverityInfo,
		IncludeAppLogs: true,
	}
}

// Validate rejects policies no log service could honor.
func (p Policy) Validate() error {
	if p.BatchSize <= 0 {
		return orcherr.BadRequest(fmt.Sprintf("batch size must be positive, got %d", p.BatchSize))
	}
	if p.BatchSize > MaxBatchSize {
		return orcherr.BadRequest(fmt.Sprintf("batch size must not exceed %d, got %d", MaxBatchSize, p.BatchSize))
	}
	if p.MinSeverity < schema.SeverityDebug || !p.MinSeverity.Valid() {
		return orcherr.BadRequest(fmt.Sprintf("invalid minimum severity %s", p.MinSeverity))
	}
	return nil
}

// Clock is the wall-clock source for open-ended requests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }
