package engine

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/aretw0/reactor/pkg/domain"
	"github.com/aretw0/reactor/pkg/ports"
)

// minChimneyCover is the smallest square width, as a fraction of the chimney
// width, that still contains the chimney footprint.
const minChimneyCover = 0.8

var up = domain.V3(0, 0, 1)

// build tracks one pass through the geometry state machine.
type build struct {
	e      *Engine
	id     string
	state  *domain.BuildState
	logger *slog.Logger
}

func (e *Engine) newBuild(ctx context.Context) *build {
	b := &build{e: e, id: uuid.NewString(), state: domain.NewBuildState()}
	b.logger = e.logger.With("build_id", b.id)
	b.logger.DebugContext(ctx, "stage entered", "stage", b.state.Stage)
	e.emitStageEnter(ctx, b.id, b.state.Stage)
	return b
}

func (b *build) advance(ctx context.Context, next domain.BuildStage) error {
	if err := b.state.Advance(next); err != nil {
		return b.fail(ctx, err)
	}
	b.logger.DebugContext(ctx, "stage entered", "stage", next)
	b.e.emitStageEnter(ctx, b.id, next)
	return nil
}

// fail records err against the current stage and moves the build to Failed.
func (b *build) fail(ctx context.Context, err error) error {
	stage := b.state.Stage
	var de *domain.Error
	if errors.As(err, &de) && de.Stage == "" {
		de.Stage = stage
	}
	b.state.Fail()
	b.logger.WarnContext(ctx, "build failed", "stage", stage, "error", err)
	b.e.emitStageFailed(ctx, b.id, stage, err)
	return err
}

// adjustMeshSize shrinks meshSize so the chimney width is a whole number of elements.
func adjustMeshSize(chimneyWidth, meshSize float64) float64 {
	n := math.Ceil(chimneyWidth/meshSize - 1e-9)
	return chimneyWidth / math.Max(1, n)
}

// squareWidthFor rounds radius × fraction up to a whole number of elements.
func squareWidthFor(radius, fraction, meshSize float64) float64 {
	n := math.Ceil(radius*fraction/meshSize - 1e-9)
	return math.Max(1, n) * meshSize
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// validateDimensions rejects inputs no kernel call should ever see.
func validateDimensions(p domain.GeometryParams) error {
	const op = "validate"
	switch {
	case !domain.Finite3(p.Center):
		return domain.NewError(op, domain.KindInvalidParameter, "center must be finite, got %v", p.Center)
	case !positive(p.Reactor.X) || !positive(p.Reactor.Y):
		return domain.NewError(op, domain.KindInvalidParameter, "reactor radius and height must be positive, got %v", p.Reactor)
	case !positive(p.Chimney.X) || !positive(p.Chimney.Y):
		return domain.NewError(op, domain.KindInvalidParameter, "chimney width and height must be positive, got %v", p.Chimney)
	case !positive(p.MeshSize):
		return domain.NewError(op, domain.KindInvalidParameter, "mesh size must be positive, got %g", p.MeshSize)
	}
	return nil
}

func validateFractions(square, curvature float64) error {
	const op = "validate"
	if !(square > 0 && square < 1) {
		return domain.NewError(op, domain.KindInvalidParameter, "square fraction must be in (0, 1), got %g", square)
	}
	if !(curvature > 0 && curvature < 1) {
		return domain.NewError(op, domain.KindInvalidParameter, "curvature fraction must be in (0, 1), got %g", curvature)
	}
	return nil
}

// checkLayout enforces that the chimney fits in the square and the square in the disk.
func checkLayout(dims domain.Dimensions, width, curvature float64) error {
	const op = "layout"
	if width < minChimneyCover*dims.ChimneyWidth() {
		return domain.NewError(op, domain.KindGeometryConstraint,
			"square width %g is below %g x chimney width %g", width, minChimneyCover, dims.ChimneyWidth())
	}
	// Equal widths put the footprint cuts through the square corners.
	if math.Abs(width-dims.ChimneyWidth()) <= 1e-9*dims.ChimneyWidth() {
		return domain.NewError(op, domain.KindGeometryConstraint,
			"square width %g equals chimney width; the footprint cuts would meet the square corners", width)
	}
	if width/math.Sqrt2 >= dims.Radius() || width/2*(1+math.Abs(curvature)) >= dims.Radius() {
		return domain.NewError(op, domain.KindGeometryConstraint,
			"square width %g with curvature %g does not fit in radius %g", width, curvature, dims.Radius())
	}
	return nil
}

func dimensionsOf(p domain.GeometryParams) domain.Dimensions {
	return domain.Dimensions{Center: p.Center, Reactor: p.Reactor, Chimney: p.Chimney}
}

// buildBase draws the partitioned 2-D profile: a disk split into a curved
// central square (itself cut into a 3x3 grid around the chimney footprint)
// and four wedges bounded by diagonal radials.
func buildBase(k ports.GeometryKernel, dims domain.Dimensions, width, curvature float64) (domain.Shape, error) {
	sk := NewSketcher(k, dims.Center.Z)
	c := domain.V2(dims.Center.X, dims.Center.Y)
	r := dims.Radius()
	half := width / 2
	cw := dims.ChimneyWidth() / 2

	disk, err := sk.Disk(c, r)
	if err != nil {
		return domain.Shape{}, err
	}
	disk, err = k.Rotate(disk, dims.Center, up, math.Pi/4)
	if err != nil {
		return domain.Shape{}, kernelErr("base.rotate", err)
	}

	square, err := sk.CurvedSquare(c, domain.V2(width, width), curvature)
	if err != nil {
		return domain.Shape{}, err
	}

	type stroke struct {
		from          domain.Vector2
		angle, length float64
	}
	draw := func(strokes []stroke) ([]domain.Shape, error) {
		out := make([]domain.Shape, 0, len(strokes))
		for _, s := range strokes {
			line, err := sk.RadialLine(s.from, s.angle, s.length)
			if err != nil {
				return nil, err
			}
			out = append(out, line)
		}
		return out, nil
	}

	radials, err := draw([]stroke{
		{domain.V2(c.X+half, c.Y+half), math.Pi / 4, r},
		{domain.V2(c.X-half, c.Y-half), math.Pi / 4, -r},
		{domain.V2(c.X-half, c.Y+half), 3 * math.Pi / 4, r},
		{domain.V2(c.X+half, c.Y-half), 3 * math.Pi / 4, -r},
	})
	if err != nil {
		return domain.Shape{}, err
	}
	cuts, err := draw([]stroke{
		{domain.V2(c.X+cw, c.Y+width), math.Pi / 2, -2 * width},
		{domain.V2(c.X-cw, c.Y+width), math.Pi / 2, -2 * width},
		{domain.V2(c.X-width, c.Y+cw), 0, 2 * width},
		{domain.V2(c.X-width, c.Y-cw), 0, 2 * width},
	})
	if err != nil {
		return domain.Shape{}, err
	}

	grid, err := k.Partition([]domain.Shape{square}, cuts)
	if err != nil {
		return domain.Shape{}, kernelErr("base.partition_square", err)
	}
	if grid, err = k.GlueEdges(grid, glueEdgeTolerance); err != nil {
		return domain.Shape{}, kernelErr("base.glue", err)
	}

	partition, err := k.Partition([]domain.Shape{disk}, append([]domain.Shape{grid}, radials...))
	if err != nil {
		return domain.Shape{}, kernelErr("base.partition_disk", err)
	}
	if partition, err = k.GlueEdges(partition, glueEdgeTolerance); err != nil {
		return domain.Shape{}, kernelErr("base.glue", err)
	}
	return partition, nil
}

// Create builds a grouped reactor solid.
func (e *Engine) Create(ctx context.Context, p domain.GeometryParams) (*domain.ReactorGeometry, error) {
	b := e.newBuild(ctx)

	if err := validateDimensions(p); err != nil {
		return nil, b.fail(ctx, err)
	}
	dims := dimensionsOf(p)
	meshSize := adjustMeshSize(dims.ChimneyWidth(), p.MeshSize)
	b.logger.InfoContext(ctx, "adjusted mesh size", "from", p.MeshSize, "to", meshSize)

	square, curvature := p.PerSquare, p.CurvatureFraction
	if p.Optimize {
		square, curvature = e.optimizedFractions(ctx, b, dims, meshSize, p)
		if err := ctx.Err(); err != nil {
			return nil, b.fail(ctx, err)
		}
	}
	if err := validateFractions(square, curvature); err != nil {
		return nil, b.fail(ctx, err)
	}
	width := squareWidthFor(dims.Radius(), square, meshSize)
	if err := checkLayout(dims, width, curvature); err != nil {
		return nil, b.fail(ctx, err)
	}
	profile := domain.Profile{
		SquareFraction:    square,
		CurvatureFraction: curvature,
		MeshSize:          meshSize,
		SquareWidth:       width,
		Optimized:         p.Optimize,
	}

	if err := b.advance(ctx, domain.StageBuildingProfile); err != nil {
		return nil, err
	}
	base, err := buildBase(e.kernel, dims, width, curvature)
	if err != nil {
		return nil, b.fail(ctx, err)
	}
	if err := e.kernel.CheckShape(base); err != nil {
		b.logger.WarnContext(ctx, "profile check failed", "error", err)
	}

	if err := b.advance(ctx, domain.StageExtruding); err != nil {
		return nil, err
	}
	solid, err := e.kernel.Extrude(base, domain.V3(0, 0, dims.Height()))
	if err != nil {
		return nil, b.fail(ctx, kernelErr("extrude.reactor", err))
	}
	if solid, err = e.kernel.GlueFaces(solid, glueFaceTolerance); err != nil {
		return nil, b.fail(ctx, kernelErr("extrude.glue", err))
	}

	if err := b.advance(ctx, domain.StageFusingChimney); err != nil {
		return nil, err
	}
	reactor, err := e.fuseChimney(solid, dims)
	if err != nil {
		return nil, b.fail(ctx, err)
	}
	if faces, err := e.kernel.SubShapes(reactor, domain.ShapeFace); err == nil {
		b.logger.InfoContext(ctx, "solid created", "faces", len(faces))
	}

	if err := b.advance(ctx, domain.StageGroupingFaces); err != nil {
		return nil, err
	}
	groups, err := createGroups(e.kernel, reactor, dims)
	if err != nil {
		return nil, b.fail(ctx, err)
	}

	if err := b.advance(ctx, domain.StageDone); err != nil {
		return nil, err
	}
	return domain.NewReactorGeometry(b.id, reactor, groups, dims, profile), nil
}

// fuseChimney extrudes the top face above the center and partitions the
// chimney against the reactor body.
func (e *Engine) fuseChimney(solid domain.Shape, dims domain.Dimensions) (domain.Shape, error) {
	top, err := e.kernel.FaceNearPoint(solid, r3.Add(dims.Center, domain.V3(0, 0, dims.Height())))
	if err != nil {
		return domain.Shape{}, kernelErr("chimney.top_face", err)
	}
	chimney, err := e.kernel.Extrude(top, domain.V3(0, 0, dims.ChimneyHeight()))
	if err != nil {
		return domain.Shape{}, kernelErr("chimney.extrude", err)
	}
	reactor, err := e.kernel.Partition([]domain.Shape{solid, chimney}, nil)
	if err != nil {
		return domain.Shape{}, kernelErr("chimney.partition", err)
	}
	if reactor, err = e.kernel.GlueFaces(reactor, glueFaceTolerance); err != nil {
		return domain.Shape{}, kernelErr("chimney.glue", err)
	}
	return reactor, nil
}

// optimizedFractions runs the optimizer and falls back to the configured pair
// when it fails. The failure is logged, never returned.
func (e *Engine) optimizedFractions(ctx context.Context, b *build, dims domain.Dimensions, meshSize float64, p domain.GeometryParams) (float64, float64) {
	fallback := domain.DefaultOptimizerSettings().Fallback
	if e.optimizer == nil {
		b.logger.WarnContext(ctx, "optimizer not configured, using fallback fractions",
			"square_fraction", fallback.X, "curvature_fraction", fallback.Y)
		return fallback.X, fallback.Y
	}
	if f := e.optimizer.settings.Fallback; validateFractions(f.X, f.Y) == nil {
		fallback = f
	}

	out, err := e.optimizer.Optimize(ctx, b.id, dims, meshSize, domain.V2(p.PerSquare, p.CurvatureFraction))
	if err != nil {
		b.logger.WarnContext(ctx, "optimization failed, using fallback fractions",
			"square_fraction", fallback.X, "curvature_fraction", fallback.Y, "error", err)
		return fallback.X, fallback.Y
	}
	b.logger.InfoContext(ctx, "optimized fractions",
		"square_fraction", out.SquareFraction,
		"curvature_fraction", out.CurvatureFraction,
		"objective", out.Objective,
		"evaluations", out.Evaluations,
		"status", out.Status)
	return out.SquareFraction, out.CurvatureFraction
}

// Optimize runs the fraction search alone for p's dimensions.
func (e *Engine) Optimize(ctx context.Context, p domain.GeometryParams) (domain.OptimizationOutcome, error) {
	if e.optimizer == nil {
		return domain.OptimizationOutcome{}, domain.NewError("optimize", domain.KindOptimizationFailed, "optimizer not configured")
	}
	if err := validateDimensions(p); err != nil {
		return domain.OptimizationOutcome{}, err
	}
	meshSize := adjustMeshSize(p.Chimney.X, p.MeshSize)
	return e.optimizer.Optimize(ctx, uuid.NewString(), dimensionsOf(p), meshSize, domain.V2(p.PerSquare, p.CurvatureFraction))
}
