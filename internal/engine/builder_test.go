package engine

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/reactor/internal/testutils"
	"github.com/aretw0/reactor/pkg/domain"
)

func scenarioDims() domain.Dimensions {
	return dimensionsOf(testutils.ScenarioParams())
}

func groupSize(t *testing.T, e *Engine, g domain.Shape) int {
	t.Helper()
	members, err := e.Kernel().GroupMembers(g)
	require.NoError(t, err)
	return len(members)
}

func TestAdjustMeshSize(t *testing.T) {
	assert.InDelta(t, 0.5, adjustMeshSize(2, 0.5), 1e-15)
	assert.InDelta(t, 2.0/7, adjustMeshSize(2, 0.3), 1e-15)
	assert.InDelta(t, 2.0, adjustMeshSize(2, 5), 1e-15)
}

func TestSquareWidthIsMultipleOfMeshSize(t *testing.T) {
	for _, ms := range []float64{0.3, 0.45, 0.5, 0.7, 1.1} {
		adj := adjustMeshSize(2, ms)
		for _, ps := range []float64{0.11, 0.2, 0.35, 0.5, 0.63, 0.77, 0.9} {
			w := squareWidthFor(10, ps, adj)
			n := w / adj
			assert.InDelta(t, math.Round(n), n, 1e-9, "ms=%g ps=%g", ms, ps)
			assert.GreaterOrEqual(t, w, 10*ps-1e-9)
			assert.Less(t, w, 10*ps+adj)
		}
	}
}

func TestCreate_ScenarioA(t *testing.T) {
	ctx := context.Background()
	var stages []domain.BuildStage
	e := NewEngine(testutils.NewSession(t), WithHooks(domain.LifecycleHooks{
		OnStageEnter: func(_ context.Context, ev *domain.StageEvent) { stages = append(stages, ev.Stage) },
	}))

	g, err := e.Create(ctx, testutils.ScenarioParams())
	require.NoError(t, err)

	assert.Equal(t, []domain.BuildStage{
		domain.StageValidating,
		domain.StageBuildingProfile,
		domain.StageExtruding,
		domain.StageFusingChimney,
		domain.StageGroupingFaces,
		domain.StageDone,
	}, stages)

	assert.InDelta(t, 0.5, g.MeshSize(), 1e-12)
	assert.InDelta(t, 5.0, g.SquareWidth(), 1e-12)
	assert.GreaterOrEqual(t, g.SquareWidth(), 0.8*g.Dimensions().ChimneyWidth())
	assert.NotEmpty(t, g.BuildID())
	assert.False(t, g.Profile().Optimized)

	groups := g.Groups()
	require.True(t, groups.Complete())
	assert.Equal(t, 13, groupSize(t, e, groups.Inlet))
	assert.Equal(t, 1, groupSize(t, e, groups.Outlet))
	assert.Equal(t, 20, groupSize(t, e, groups.Wall))

	m, err := e.Mesh(ctx, g, false)
	require.NoError(t, err)
	assert.Same(t, g, m.Geometry())

	ratios, err := e.AspectRatios(m)
	require.NoError(t, err)
	require.NotEmpty(t, ratios)
	for _, r := range ratios {
		assert.Greater(t, r, 0.0)
	}

	seeds := map[string]domain.EdgeSeed{}
	for _, s := range m.Seeds() {
		seeds[s.Label] = s
	}
	square := seeds["chimney-x"].Hypothesis.Count + seeds["chimney-x+"].Hypothesis.Count + seeds["chimney-x-"].Hypothesis.Count
	assert.Equal(t, 12, square)
	for _, rim := range []string{"rim+x", "rim+y", "rim-x", "rim-y"} {
		assert.Equal(t, square, seeds[rim].Hypothesis.Count, rim)
	}
	assert.Equal(t, domain.SegmentsUniform, seeds["radial"].Hypothesis.Kind)
	assert.Equal(t, 40, seeds["reactor-height"].Hypothesis.Count)
	assert.Equal(t, 10, seeds["chimney-height"].Hypothesis.Count)
}

func TestMesh_GeometricRadial(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(testutils.NewSession(t))

	g, err := e.Create(ctx, testutils.ScenarioParams())
	require.NoError(t, err)

	m, err := e.Mesh(ctx, g, true)
	require.NoError(t, err)

	var radial domain.EdgeSeed
	for _, s := range m.Seeds() {
		if s.Label == "radial" {
			radial = s
		}
	}
	require.Equal(t, domain.SegmentsGeometric, radial.Hypothesis.Kind)
	assert.InDelta(t, 0.5, radial.Hypothesis.Start, 1e-12)
	assert.InDelta(t, 1+2*math.Pi/40, radial.Hypothesis.Ratio, 1e-12)

	ratios, err := e.AspectRatios(m)
	require.NoError(t, err)
	assert.NotEmpty(t, ratios)
}

func TestCreate_ScenarioB_ConstraintViolation(t *testing.T) {
	ctx := context.Background()
	sess := testutils.NewSession(t)
	var failed []domain.BuildStage
	e := NewEngine(sess, WithHooks(domain.LifecycleHooks{
		OnStageFailed: func(_ context.Context, ev *domain.StageEvent) { failed = append(failed, ev.Stage) },
	}))

	p := testutils.ScenarioParams()
	p.Chimney.X = 9
	_, err := e.Create(ctx, p)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindGeometryConstraint))
	assert.ErrorIs(t, err, domain.ErrGeometryConstraint)
	assert.Zero(t, sess.ShapeCount())
	assert.Equal(t, []domain.BuildStage{domain.StageValidating}, failed)

	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.StageValidating, de.Stage)
}

func TestCreate_ScenarioB_NoKernelMutation(t *testing.T) {
	k := new(testutils.MockKernel)
	e := NewEngine(k)

	p := testutils.ScenarioParams()
	p.Chimney.X = 9
	_, err := e.Create(context.Background(), p)
	assert.True(t, domain.IsKind(err, domain.KindGeometryConstraint))

	k.AssertNotCalled(t, "Extrude", mock.Anything, mock.Anything)
	k.AssertNotCalled(t, "Partition", mock.Anything, mock.Anything)
	k.AssertExpectations(t)
}

func TestCreate_InvalidParameters(t *testing.T) {
	k := new(testutils.MockKernel)
	e := NewEngine(k)

	for name, mutate := range map[string]func(*domain.GeometryParams){
		"square zero":        func(p *domain.GeometryParams) { p.PerSquare = 0 },
		"square one":         func(p *domain.GeometryParams) { p.PerSquare = 1 },
		"curvature zero":     func(p *domain.GeometryParams) { p.CurvatureFraction = 0 },
		"curvature negative": func(p *domain.GeometryParams) { p.CurvatureFraction = -0.2 },
		"mesh size":          func(p *domain.GeometryParams) { p.MeshSize = 0 },
		"radius":             func(p *domain.GeometryParams) { p.Reactor.X = -1 },
		"chimney height":     func(p *domain.GeometryParams) { p.Chimney.Y = math.Inf(1) },
		"center":             func(p *domain.GeometryParams) { p.Center.Z = math.NaN() },
	} {
		p := testutils.ScenarioParams()
		mutate(&p)
		_, err := e.Create(context.Background(), p)
		assert.True(t, domain.IsKind(err, domain.KindInvalidParameter), name)
	}
	k.AssertExpectations(t)
}

func TestCreate_SquareWidthProperty(t *testing.T) {
	for _, tc := range []struct{ ps, ms float64 }{{0.3, 0.5}, {0.77, 0.5}, {0.5, 0.3}} {
		p := testutils.ScenarioParams()
		p.PerSquare, p.MeshSize = tc.ps, tc.ms

		g, err := NewEngine(testutils.NewSession(t)).Create(context.Background(), p)
		require.NoError(t, err, "%+v", tc)

		n := g.SquareWidth() / g.MeshSize()
		assert.InDelta(t, math.Round(n), n, 1e-9, "%+v", tc)
		assert.GreaterOrEqual(t, g.SquareWidth(), 0.8*p.Chimney.X)
	}
}

func TestCreate_OffsetCenter(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(testutils.NewSession(t))

	p := testutils.ScenarioParams()
	p.Center = domain.V3(3, -2, 1)
	g, err := e.Create(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 13, groupSize(t, e, g.Groups().Inlet))

	_, err = e.Mesh(ctx, g, false)
	require.NoError(t, err)
}

func TestBuildBase_Idempotent(t *testing.T) {
	count := func() (int, int) {
		sess := testutils.NewSession(t)
		base, err := buildBase(sess, scenarioDims(), 5, 0.1)
		require.NoError(t, err)
		faces, err := sess.SubShapes(base, domain.ShapeFace)
		require.NoError(t, err)
		edges, err := sess.SubShapes(base, domain.ShapeEdge)
		require.NoError(t, err)
		return len(faces), len(edges)
	}

	f1, e1 := count()
	f2, e2 := count()
	assert.Equal(t, f1, f2)
	assert.Equal(t, e1, e2)
	assert.Equal(t, 13, f1)
}

func TestMesh_Uncreated(t *testing.T) {
	e := NewEngine(new(testutils.MockKernel))
	_, err := e.Mesh(context.Background(), nil, false)
	assert.True(t, domain.IsKind(err, domain.KindInvalidParameter))

	_, err = e.AspectRatios(nil)
	assert.True(t, domain.IsKind(err, domain.KindInvalidParameter))
}

func TestPositiveRatios(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5}, positiveRatios([]float64{0, 1, -3, 2.5, math.NaN()}))
}

func TestCreate_StrongCurvature(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct{ ps, k float64 }{{0.9, 0.8}, {0.99, 0.8}, {0.5, 0.95}} {
		p := testutils.ScenarioParams()
		p.PerSquare, p.CurvatureFraction = tc.ps, tc.k

		e := NewEngine(testutils.NewSession(t))
		g, err := e.Create(ctx, p)
		require.NoError(t, err, "%+v", tc)
		assert.True(t, g.Groups().Complete(), "%+v", tc)
		assert.Equal(t, 13, groupSize(t, e, g.Groups().Inlet), "%+v", tc)
	}
}

func TestMesh_NarrowSquare(t *testing.T) {
	ctx := context.Background()
	for _, center := range []domain.Vector3{domain.V3(0, 0, 0), domain.V3(3, -2, 1)} {
		for _, k := range []float64{0.1, 0.5} {
			p := testutils.ScenarioParams()
			p.Center, p.PerSquare, p.CurvatureFraction = center, 0.3, k

			e := NewEngine(testutils.NewSession(t))
			g, err := e.Create(ctx, p)
			require.NoError(t, err, "center=%v k=%g", center, k)
			require.InDelta(t, 3.0, g.SquareWidth(), 1e-9)

			m, err := e.Mesh(ctx, g, false)
			require.NoError(t, err, "center=%v k=%g", center, k)
			ratios, err := e.AspectRatios(m)
			require.NoError(t, err)
			assert.NotEmpty(t, ratios)
		}
	}
}

func TestReferencePoints_InsideSquare(t *testing.T) {
	dims := scenarioDims()
	for _, width := range []float64{3, 5, 9.5} {
		for _, rp := range referencePoints(dims, width) {
			if rp.volume || rp.role == roleRim {
				continue
			}
			assert.LessOrEqual(t, math.Abs(rp.offset.X), width/2, "%s width=%g", rp.label, width)
			assert.LessOrEqual(t, math.Abs(rp.offset.Y), width/2, "%s width=%g", rp.label, width)
		}
	}
}

func TestCreate_SquareEqualsChimney(t *testing.T) {
	p := testutils.ScenarioParams()
	p.PerSquare = 0.2

	sess := testutils.NewSession(t)
	_, err := NewEngine(sess).Create(context.Background(), p)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindGeometryConstraint))
	assert.ErrorContains(t, err, "equals chimney width")
	assert.Zero(t, sess.ShapeCount())
}

func TestBuildBase_BulgedSolidRepartitions(t *testing.T) {
	sess := testutils.NewSession(t)
	base, err := buildBase(sess, scenarioDims(), 9, 0.8)
	require.NoError(t, err)
	solid, err := sess.Extrude(base, domain.V3(0, 0, 20))
	require.NoError(t, err)
	_, err = sess.Partition([]domain.Shape{solid}, nil)
	assert.NoError(t, err)
}
