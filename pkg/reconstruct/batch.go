package reconstruct

import (
	"context"
	"runtime"

	"github.com/chazu/cocone/pkg/geom"
	"github.com/chazu/cocone/pkg/progress"
	"golang.org/x/sync/errgroup"
)

// Request is one independent reconstruction in a batch.
type Request struct {
	Name   string
	Points *geom.Points
	Sink   progress.Sink
}

// Outcome pairs a request with its result or failure.
type Outcome struct {
	Name   string
	Result *Result
	Err    error
}

// ReconstructAll runs the requests concurrently on at most workers
// goroutines (0 means GOMAXPROCS). One request failing does not stop the
// others. Outcomes are returned in request order.
func ReconstructAll(ctx context.Context, reqs []Request, workers int, opts Options) []Outcome {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make([]Outcome, len(reqs))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, req := range reqs {
		g.Go(func() error {
			o := opts
			if req.Name != "" {
				o.PartName = req.Name
			}
			res, err := Reconstruct(ctx, req.Points, req.Sink, o)
			out[i] = Outcome{Name: req.Name, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
