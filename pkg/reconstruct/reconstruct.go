// Package reconstruct runs the full surface reconstruction pipeline:
// Delaunay triangulation, cocone classification, orientation and surface
// extraction. A request either yields a complete mesh or fails as a whole.
package reconstruct

import (
	"context"
	"fmt"
	"time"

	"github.com/chazu/cocone/pkg/cocone"
	"github.com/chazu/cocone/pkg/delaunay"
	"github.com/chazu/cocone/pkg/failure"
	"github.com/chazu/cocone/pkg/geom"
	"github.com/chazu/cocone/pkg/kernel"
	"github.com/chazu/cocone/pkg/orient"
	"github.com/chazu/cocone/pkg/progress"
	"github.com/chazu/cocone/pkg/surface"
	"github.com/google/uuid"
)

// Options tunes a reconstruction.
type Options struct {
	Precision      geom.Precision
	CosThreshold   float64
	Quorum         int // 0 means the dimension N
	MaxRadiusRatio float64
	SameSign       bool
	RawCandidates  bool // accept bare candidates without labelling
	Epsilon        float64
	PartName       string
	Logger         *Logger // nil discards logs
}

// DefaultOptions returns the pipeline defaults.
func DefaultOptions() Options {
	c := cocone.DefaultOptions()
	return Options{
		Precision:      geom.PrecisionAuto,
		CosThreshold:   c.CosThreshold,
		MaxRadiusRatio: c.MaxRadiusRatio,
		Epsilon:        orient.DefaultEpsilon,
	}
}

// StageTiming records how long one stage took.
type StageTiming struct {
	Stage   string
	Elapsed time.Duration
}

// Stats summarises a reconstruction.
type Stats struct {
	Points      int
	Dim         int
	Simplices   int
	Facets      int
	Poles       int // interior samples with a finite pole
	HullPoles   int
	Candidates  int
	Accepted    int
	Relabelled  int
	Components  int
	NonManifold int
	Filtered    int // orientation tests settled in floating point
	Exact       int // orientation tests settled exactly
	Apex        bool
	Timings     []StageTiming
}

// Result is a finished reconstruction. The caller owns Mesh.
type Result struct {
	ID       string
	Mesh     *kernel.Mesh
	Warnings []string
	Stats    Stats
}

// Reconstruct builds an oriented surface mesh from pts. Progress is reported
// to sink (nil discards it) and cancellation is honoured through both ctx and
// sink. An empty classification is not an error: it yields an empty mesh and
// a warning.
func Reconstruct(ctx context.Context, pts *geom.Points, sink progress.Sink, opts Options) (*Result, error) {
	res := &Result{ID: uuid.NewString()}
	log := opts.Logger
	if log == nil {
		log = NoopLogger()
	}
	log = log.WithRequest(res.ID).WithDimension(pts.Dim()).WithCount(pts.Len())
	sink = progress.OrDiscard(sink)
	res.Stats.Points = pts.Len()
	res.Stats.Dim = pts.Dim()

	if pts.Dim() < 2 {
		err := failure.Degenerate("reconstruct", "surfaces need dimension at least 2, got %d", pts.Dim())
		log.LogStage(ctx, "reconstruct", 0, err)
		return nil, err
	}

	timed := func(stage string, fn func() error, attrs func() []any) error {
		start := time.Now()
		err := fn()
		elapsed := time.Since(start)
		res.Stats.Timings = append(res.Stats.Timings, StageTiming{Stage: stage, Elapsed: elapsed})
		if err != nil {
			log.LogStage(ctx, stage, elapsed, err)
			return err
		}
		log.LogStage(ctx, stage, elapsed, nil, attrs()...)
		return nil
	}

	var tr *delaunay.Triangulation
	err := timed("delaunay", func() (err error) {
		tr, err = delaunay.Build(ctx, pts, delaunay.Options{
			Precision: opts.Precision,
			Sink:      progress.Sub(sink, 0, 0.6),
		})
		return err
	}, func() []any {
		return []any{"simplices", len(tr.Simplices), "facets", len(tr.Facets), "apex", tr.Apex}
	})
	if err != nil {
		return nil, err
	}
	res.Stats.Simplices = len(tr.Simplices)
	res.Stats.Facets = len(tr.Facets)
	res.Stats.Filtered = tr.Stats.Filtered
	res.Stats.Exact = tr.Stats.Exact
	res.Stats.Apex = tr.Apex

	var c *cocone.Result
	err = timed("cocone", func() (err error) {
		c, err = cocone.Classify(ctx, tr, cocone.Options{
			CosThreshold:   opts.CosThreshold,
			Quorum:         opts.Quorum,
			MaxRadiusRatio: opts.MaxRadiusRatio,
			SameSign:       opts.SameSign,
			RawCandidates:  opts.RawCandidates,
			Sink:           progress.Sub(sink, 0.6, 0.85),
		})
		return err
	}, func() []any {
		return []any{"poles", c.Stats.Poles, "hull_poles", c.Stats.HullPoles,
			"candidates", c.Stats.Candidates, "accepted", c.Stats.Accepted, "relabelled", c.Stats.Relabelled}
	})
	if err != nil {
		return nil, err
	}
	res.Stats.Poles = c.Stats.Poles
	res.Stats.HullPoles = c.Stats.HullPoles
	res.Stats.Candidates = c.Stats.Candidates
	res.Stats.Accepted = c.Stats.Accepted
	res.Stats.Relabelled = c.Stats.Relabelled
	res.Stats.NonManifold = c.Stats.NonManifold

	if len(c.Accepted) == 0 {
		empty := failure.New(failure.KindEmptyResult, "cocone", "no facet passed classification")
		res.Warnings = append(res.Warnings, empty.Error())
		res.Mesh = &kernel.Mesh{Dim: pts.Dim(), PartName: opts.PartName}
		sink.SetFraction(1)
		log.LogResult(ctx, res)
		return res, nil
	}
	if c.Stats.NonManifold > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d ridges are shared by more than two facets", c.Stats.NonManifold))
	}

	var o *orient.Result
	err = timed("orient", func() (err error) {
		o, err = orient.Orient(ctx, c, orient.Options{
			Epsilon: opts.Epsilon,
			Sink:    progress.Sub(sink, 0.85, 0.95),
		})
		return err
	}, func() []any {
		return []any{"components", len(o.Components)}
	})
	if err != nil {
		return nil, err
	}
	res.Stats.Components = len(o.Components)

	err = timed("surface", func() (err error) {
		res.Mesh, err = surface.Extract(ctx, c, o, surface.Options{
			PartName: opts.PartName,
			Sink:     progress.Sub(sink, 0.95, 1),
		})
		return err
	}, func() []any {
		return []any{"vertices", res.Mesh.VertexCount()}
	})
	if err != nil {
		return nil, err
	}
	sink.SetFraction(1)
	log.LogResult(ctx, res)
	return res, nil
}
