// Package progress carries fractional progress and cooperative cancellation
// between a running reconstruction and the caller that owns the sink.
package progress

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/chazu/cocone/pkg/failure"
)

// Sink is the caller-owned progress object. Implementations must tolerate
// concurrent SetFraction and ShouldCancel calls from the worker while the
// caller reads them.
type Sink interface {
	SetFraction(f float64)
	ShouldCancel() bool
}

// Tracker is a lock-free Sink backed by atomics.
type Tracker struct {
	frac   atomic.Uint64
	cancel atomic.Bool
}

var _ Sink = (*Tracker)(nil)

// NewTracker returns a Tracker at fraction 0.
func NewTracker() *Tracker {
	return &Tracker{}
}

// SetFraction stores f clamped to [0, 1].
func (t *Tracker) SetFraction(f float64) {
	t.frac.Store(math.Float64bits(clamp(f)))
}

// Fraction returns the last stored fraction.
func (t *Tracker) Fraction() float64 {
	return math.Float64frombits(t.frac.Load())
}

// Cancel requests cooperative cancellation.
func (t *Tracker) Cancel() {
	t.cancel.Store(true)
}

// ShouldCancel reports whether Cancel has been called.
func (t *Tracker) ShouldCancel() bool {
	return t.cancel.Load()
}

type discard struct{}

func (discard) SetFraction(float64) {}
func (discard) ShouldCancel() bool  { return false }

// Discard ignores progress and never cancels.
var Discard Sink = discard{}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

type span struct {
	parent Sink
	lo, hi float64
}

func (s span) SetFraction(f float64) {
	s.parent.SetFraction(s.lo + clamp(f)*(s.hi-s.lo))
}

func (s span) ShouldCancel() bool { return s.parent.ShouldCancel() }

// Sub maps a stage's [0, 1] progress onto [lo, hi] of parent.
func Sub(parent Sink, lo, hi float64) Sink {
	return span{parent: OrDiscard(parent), lo: lo, hi: hi}
}

func clamp(f float64) float64 {
	switch {
	case f < 0 || math.IsNaN(f):
		return 0
	case f > 1:
		return 1
	}
	return f
}

// DefaultEvery is the polling period used by the expensive inner loops.
const DefaultEvery = 1024

// Poller rate-limits progress updates and cancellation checks inside a loop.
type Poller struct {
	ctx   context.Context
	sink  Sink
	stage string
	every int
	n     int
}

// NewPoller returns a Poller that touches the sink every `every` ticks.
func NewPoller(ctx context.Context, sink Sink, stage string, every int) *Poller {
	if every <= 0 {
		every = DefaultEvery
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Poller{ctx: ctx, sink: OrDiscard(sink), stage: stage, every: every}
}

// Tick counts one unit of work. Every `every` ticks it publishes done/total
// and checks for cancellation.
func (p *Poller) Tick(done, total int) error {
	p.n++
	if p.n < p.every {
		return nil
	}
	p.n = 0
	return p.Report(done, total)
}

// Report publishes done/total and checks for cancellation immediately.
func (p *Poller) Report(done, total int) error {
	if total > 0 {
		p.sink.SetFraction(float64(done) / float64(total))
	}
	return p.Check()
}

// Check returns a cancelled failure if the context is done or the sink asks
// to stop.
func (p *Poller) Check() error {
	if err := p.ctx.Err(); err != nil {
		return failure.Wrap(failure.KindCancelled, p.stage, err)
	}
	if p.sink.ShouldCancel() {
		return failure.New(failure.KindCancelled, p.stage, "cancellation requested")
	}
	return nil
}

// Done publishes completion of the stage.
func (p *Poller) Done() {
	p.sink.SetFraction(1)
}
