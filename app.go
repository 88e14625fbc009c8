package main

import (
	"context"
	"fmt"
	"time"

	"github.com/chazu/cocone/pkg/config"
	"github.com/chazu/cocone/pkg/engine"
	"github.com/chazu/cocone/pkg/kernel"
	"github.com/chazu/cocone/pkg/kernel/sdfx"
	"github.com/chazu/cocone/pkg/reconstruct"
	"github.com/chazu/cocone/pkg/sample"
	"github.com/google/uuid"
)

// colorPalette is a default palette used to assign distinct colors to clouds.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App runs scene scripts end to end: evaluation, sampling and
// reconstruction.
type App struct {
	engine *engine.Engine
	kernel kernel.Kernel
	cfg    *config.Config
	log    *reconstruct.Logger
}

// MeshData is the JSON-serializable mesh of one cloud. For 3D clouds
// Vertices and Normals hold three corners per triangle, unindexed. Other
// dimensions keep the indexed form: Dim coordinates per vertex in Vertices,
// Dim indices per facet in Facets and Dim components per facet in Normals.
type MeshData struct {
	PartName   string    `json:"partName"`
	Dim        int       `json:"dim"`
	Vertices   []float32 `json:"vertices"`
	Normals    []float32 `json:"normals"`
	Facets     []uint32  `json:"facets,omitempty"`
	Color      string    `json:"color"`
	Points     int       `json:"points"`
	FacetCount int       `json:"facetCount"`
	Components int       `json:"components"`
}

// EvalErrorData is a JSON-serializable error or warning.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result of one run.
type EvalResult struct {
	RequestID string          `json:"requestId"`
	Meshes    []MeshData      `json:"meshes"`
	Errors    []EvalErrorData `json:"errors"`
	Warnings  []EvalErrorData `json:"warnings"`
}

// NewApp creates an App with the default configuration and a silent logger.
func NewApp() *App {
	return &App{
		engine: engine.NewEngine(),
		kernel: sdfx.New(),
		cfg:    config.Default(),
		log:    reconstruct.NoopLogger(),
	}
}

// NewAppWithConfig creates an App that logs and reconstructs as cfg says.
func NewAppWithConfig(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &App{
		engine: engine.NewEngine(),
		kernel: sdfx.New(),
		cfg:    cfg,
		log:    cfg.Logger(),
	}, nil
}

// Evaluate runs source with a background context.
func (a *App) Evaluate(source string) EvalResult {
	return a.EvaluateContext(context.Background(), source)
}

// EvaluateContext takes scene source and returns one mesh per cloud plus
// any errors and warnings. A failing cloud is reported as an error without
// dropping the others.
func (a *App) EvaluateContext(ctx context.Context, source string) EvalResult {
	result := EvalResult{
		RequestID: uuid.NewString(),
		Meshes:    []MeshData{},
		Errors:    []EvalErrorData{},
		Warnings:  []EvalErrorData{},
	}
	log := a.log.WithRequest(result.RequestID)
	fail := func(msg string) EvalResult {
		result.Errors = append(result.Errors, EvalErrorData{Message: msg})
		return result
	}

	// Step 1: Evaluate the source into a scene graph.
	start := time.Now()
	res, err := a.engine.Evaluate(source)
	if err != nil {
		log.LogStage(ctx, "evaluate", time.Since(start), err)
		return fail(err.Error())
	}
	for _, w := range res.Warnings {
		result.Warnings = append(result.Warnings, EvalErrorData{Line: w.Line, Col: w.Col, Message: w.Message})
	}
	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		log.DebugContext(ctx, "scene has errors", "errors", len(res.Errors))
		return result
	}
	log.LogStage(ctx, "evaluate", time.Since(start), nil, "nodes", res.Graph.NodeCount())

	// Step 2: Gather one point cloud per cloud root.
	start = time.Now()
	clouds, err := sample.Collect(res.Graph, a.kernel, a.cfg.Sample.Cells)
	log.LogStage(ctx, "sample", time.Since(start), err, "clouds", len(clouds))
	if err != nil {
		return fail("sampling failed: " + err.Error())
	}
	if len(clouds) == 0 {
		return result
	}

	// Step 3: Reconstruct every cloud.
	reqs := make([]reconstruct.Request, len(clouds))
	for i, c := range clouds {
		reqs[i] = reconstruct.Request{Name: c.Name, Points: c.Points}
	}
	opts := a.cfg.Options()
	opts.Logger = log
	outcomes := reconstruct.ReconstructAll(ctx, reqs, a.cfg.Batch.Workers, opts)

	// Step 4: Convert meshes to the output format.
	for i, o := range outcomes {
		if o.Err != nil {
			result.Errors = append(result.Errors, EvalErrorData{Message: fmt.Sprintf("cloud %q: %v", o.Name, o.Err)})
			continue
		}
		for _, w := range o.Result.Warnings {
			result.Warnings = append(result.Warnings, EvalErrorData{Message: fmt.Sprintf("cloud %q: %s", o.Name, w)})
		}
		md, err := meshData(o.Result)
		if err != nil {
			result.Errors = append(result.Errors, EvalErrorData{Message: fmt.Sprintf("cloud %q: %v", o.Name, err)})
			continue
		}
		md.Color = colorPalette[i%len(colorPalette)]
		result.Meshes = append(result.Meshes, md)
	}
	return result
}

// meshData converts a reconstruction result to its output form.
func meshData(res *reconstruct.Result) (MeshData, error) {
	m := res.Mesh
	md := MeshData{
		PartName:   m.PartName,
		Dim:        m.Dim,
		Points:     res.Stats.Points,
		FacetCount: m.FacetCount(),
		Components: res.Stats.Components,
		Vertices:   []float32{},
		Normals:    []float32{},
	}
	if m.IsEmpty() {
		return md, nil
	}
	if m.Dim == 3 {
		pos, nrm, err := m.Triangles()
		if err != nil {
			return MeshData{}, err
		}
		md.Vertices, md.Normals = pos, nrm
		return md, nil
	}
	md.Vertices = toFloat32(m.Vertices)
	md.Normals = toFloat32(m.FacetNormals)
	md.Facets = m.Facets
	return md, nil
}

func toFloat32(xs []float64) []float32 {
	out := make([]float32, len(xs))
	for i, x := range xs {
		out[i] = float32(x)
	}
	return out
}
