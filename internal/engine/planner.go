package engine

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/aretw0/reactor/pkg/domain"
	"github.com/aretw0/reactor/pkg/ports"
)

type seedRole int

const (
	roleUniform seedRole = iota
	// roleChimney counts toward the square-side total.
	roleChimney
	// roleRim is forced to the square-side total.
	roleRim
)

type referencePoint struct {
	label  string
	offset domain.Vector3
	role   seedRole
	volume bool
}

// referencePoints locate the edges of the seeding rule, relative to the
// reactor center. The off-axis chimney points sit halfway between the chimney
// footprint and the square side, on the cut lines of the outer grid cells.
func referencePoints(dims domain.Dimensions, squareWidth float64) []referencePoint {
	c := dims.ChimneyWidth() / 2
	r, h := dims.Radius(), dims.Height()
	off := (squareWidth/2 - c) / 2
	return []referencePoint{
		{label: "chimney-x", offset: domain.V3(c, 0, 0), role: roleChimney},
		{label: "chimney-x+", offset: domain.V3(c, c+off, 0), role: roleChimney},
		{label: "chimney-x-", offset: domain.V3(c, -c-off, 0), role: roleChimney},
		{label: "chimney-y", offset: domain.V3(0, c, 0)},
		{label: "chimney-y+", offset: domain.V3(c+off, c, 0)},
		{label: "chimney-y-", offset: domain.V3(-c-off, c, 0)},
		{label: "reactor-height", offset: domain.V3(r, r, h/2), volume: true},
		{label: "chimney-height", offset: domain.V3(2*c, 2*c, h+dims.ChimneyHeight()/2), volume: true},
		{label: "rim+x", offset: domain.V3(r, 0, 0), role: roleRim},
		{label: "rim+y", offset: domain.V3(0, r, 0), role: roleRim},
		{label: "rim-x", offset: domain.V3(-r, 0, 0), role: roleRim},
		{label: "rim-y", offset: domain.V3(0, -r, 0), role: roleRim},
	}
}

// meshPlan is the input of the edge seeding rule.
type meshPlan struct {
	shape       domain.Shape
	dims        domain.Dimensions
	squareWidth float64
	meshSize    float64
	// geometric seeds the radial transition edge with a geometric progression.
	geometric bool
	// volume includes the extrusion edges and enables hexahedra.
	volume bool
}

func segmentCount(length, meshSize float64) int {
	return max(1, int(math.Ceil(length/meshSize-1e-9)))
}

// planSegments assigns a 1-D hypothesis to every characteristic edge of
// plan.shape and enables the quadrangle (and hexahedron) algorithms.
func planSegments(k ports.KernelSession, mesh domain.MeshHandle, plan meshPlan, tol float64) ([]domain.EdgeSeed, error) {
	if err := k.DefaultSegments(mesh, 1); err != nil {
		return nil, kernelErr("plan.default", err)
	}

	var seeds []domain.EdgeSeed
	assign := func(label string, edge domain.Shape, length float64, hyp domain.SegmentHypothesis) error {
		if err := k.Segment(mesh, edge, hyp); err != nil {
			return kernelErr("plan.segment", err)
		}
		seeds = append(seeds, domain.EdgeSeed{Label: label, Edge: edge, Length: length, Hypothesis: hyp})
		return nil
	}

	total := 0
	for _, rp := range referencePoints(plan.dims, plan.squareWidth) {
		if rp.volume && !plan.volume {
			continue
		}
		edge, err := k.EdgeNearPoint(plan.shape, r3.Add(plan.dims.Center, rp.offset))
		if err != nil {
			return nil, kernelErr("plan.edge_near_point", err)
		}
		length, err := k.Length(edge)
		if err != nil {
			return nil, kernelErr("plan.length", err)
		}
		n := segmentCount(length, plan.meshSize)
		switch rp.role {
		case roleChimney:
			total += n
		case roleRim:
			n = total
		}
		if err := assign(rp.label, edge, length, domain.UniformSegments(n, true)); err != nil {
			return nil, err
		}
	}

	edges, err := k.SubShapes(plan.shape, domain.ShapeEdge)
	if err != nil {
		return nil, kernelErr("plan.edges", err)
	}
	on := (plan.squareWidth/2 + plan.dims.Radius()/math.Sqrt2) / 2
	radial, err := findEdgeByMidpoint(k, edges, r3.Add(plan.dims.Center, domain.V3(on, on, 0)), tol)
	if err != nil {
		return nil, err
	}
	length, err := k.Length(radial)
	if err != nil {
		return nil, kernelErr("plan.length", err)
	}
	hyp := domain.UniformSegments(segmentCount(length, plan.meshSize), true)
	if plan.geometric {
		prog, err := GeometricProgression(plan.dims.Radius(), plan.squareWidth, plan.meshSize)
		if err != nil {
			return nil, err
		}
		hyp = domain.GeometricSegments(prog.MinLength, prog.Ratio, true)
	}
	if err := assign("radial", radial, length, hyp); err != nil {
		return nil, err
	}

	if err := k.Quadrangle(mesh); err != nil {
		return nil, kernelErr("plan.quadrangle", err)
	}
	if plan.volume {
		if err := k.Hexahedron(mesh); err != nil {
			return nil, kernelErr("plan.hexahedron", err)
		}
	}
	return seeds, nil
}

// Mesh seeds, tags and computes the hexahedral mesh of g.
func (e *Engine) Mesh(ctx context.Context, g *domain.ReactorGeometry, optimize bool) (*domain.ReactorMesh, error) {
	const op = "mesh"
	if g == nil || g.Solid().IsZero() {
		return nil, domain.NewError(op, domain.KindInvalidParameter, "geometry has not been created")
	}
	logger := e.logger.With("build_id", g.BuildID())

	mesh, err := e.kernel.NewMesh(g.Solid(), "reactor")
	if err != nil {
		return nil, kernelErr(op, err)
	}
	seeds, err := planSegments(e.kernel, mesh, meshPlan{
		shape:       g.Solid(),
		dims:        g.Dimensions(),
		squareWidth: g.SquareWidth(),
		meshSize:    g.MeshSize(),
		geometric:   optimize,
		volume:      true,
	}, e.edgeTol)
	if err != nil {
		return nil, err
	}
	for _, s := range seeds {
		logger.DebugContext(ctx, "edge seeded", "label", s.Label, "edge", s.Edge.String(), "length", s.Length,
			"count", s.Hypothesis.Count, "start", s.Hypothesis.Start, "ratio", s.Hypothesis.Ratio)
	}

	groups := g.Groups()
	for _, tag := range []struct {
		group domain.Shape
		name  string
	}{
		{groups.Inlet, GroupInlet},
		{groups.Outlet, GroupOutlet},
		{groups.Wall, GroupWall},
	} {
		if err := e.kernel.GroupOnGeometry(mesh, tag.group, tag.name); err != nil {
			return nil, kernelErr(op, err)
		}
	}

	start := time.Now()
	err = e.kernel.Compute(ctx, mesh)
	elapsed := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		werr := domain.WrapError(op, domain.KindMeshCompute, err)
		e.emitMeshCompute(ctx, g.BuildID(), elapsed, 0, werr)
		logger.WarnContext(ctx, "mesh compute failed", "duration", elapsed, "error", err)
		return nil, werr
	}

	ratios, err := e.kernel.AspectRatios(mesh)
	if err != nil {
		return nil, kernelErr(op, err)
	}
	e.emitMeshCompute(ctx, g.BuildID(), elapsed, len(ratios), nil)
	logger.InfoContext(ctx, "mesh computed", "elements", len(ratios), "duration", elapsed)
	return domain.NewReactorMesh(mesh, g, seeds, elapsed), nil
}

// AspectRatios returns the positive element aspect ratios of m.
func (e *Engine) AspectRatios(m *domain.ReactorMesh) ([]float64, error) {
	if m == nil || m.Handle().IsZero() {
		return nil, domain.NewError("aspect_ratios", domain.KindInvalidParameter, "mesh has not been computed")
	}
	raw, err := e.kernel.AspectRatios(m.Handle())
	if err != nil {
		return nil, kernelErr("aspect_ratios", err)
	}
	return positiveRatios(raw), nil
}

func positiveRatios(raw []float64) []float64 {
	out := make([]float64, 0, len(raw))
	for _, r := range raw {
		if r > 0 {
			out = append(out, r)
		}
	}
	return out
}
