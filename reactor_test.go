package reactor_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/reactor"
	"github.com/aretw0/reactor/pkg/adapters/memory"
	"github.com/aretw0/reactor/pkg/domain"
	"github.com/aretw0/reactor/pkg/observability"
	"github.com/aretw0/reactor/pkg/ports"
)

func scenarioA() domain.GeometryParams {
	p := domain.DefaultGeometryParams()
	p.CurvatureFraction = 0.1
	return p
}

func quickSettings() domain.OptimizerSettings {
	s := domain.DefaultOptimizerSettings()
	s.MaxIterations = 3
	s.MaxEvaluations = 16
	return s
}

func TestFacade_Integration(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	var mu sync.Mutex
	var stages []domain.BuildStage
	maker, err := reactor.New(ctx,
		reactor.WithMetrics(metrics),
		reactor.WithHooks(domain.LifecycleHooks{
			OnStageEnter: func(_ context.Context, ev *domain.StageEvent) {
				mu.Lock()
				defer mu.Unlock()
				stages = append(stages, ev.Stage)
			},
		}),
	)
	require.NoError(t, err)
	defer maker.Close()

	g, err := maker.CreateGeometry(ctx, scenarioA()).Unwrap()
	require.NoError(t, err)
	assert.InDelta(t, 5.0, g.SquareWidth(), 1e-12)
	assert.True(t, g.Groups().Complete())
	assert.Len(t, stages, 6)

	mesh, err := maker.Mesh(ctx, g, false).Unwrap()
	require.NoError(t, err)

	ratios, err := maker.AspectRatios(ctx, mesh).Unwrap()
	require.NoError(t, err)
	require.NotEmpty(t, ratios)
	for _, r := range ratios {
		assert.Greater(t, r, 0.0)
	}

	stats := maker.Stats(ctx, mesh).Must()
	assert.Equal(t, len(ratios), stats.Count)

	var geo, msh bytes.Buffer
	require.NoError(t, maker.ExportGeometry(g, &geo, domain.FormatYAML))
	require.NoError(t, maker.ExportMesh(mesh, &msh, domain.FormatYAML))
	assert.NotZero(t, geo.Len())
	assert.NotZero(t, msh.Len())

	err = maker.ExportMesh(mesh, &msh, domain.FormatSTL)
	assert.True(t, domain.IsKind(err, domain.KindKernelOperation))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Builds.WithLabelValues("ok")))
	assert.Equal(t, float64(stats.Count), testutil.ToFloat64(metrics.MeshElements))
}

func TestFacade_ConstraintViolation(t *testing.T) {
	ctx := context.Background()
	maker, err := reactor.New(ctx)
	require.NoError(t, err)
	defer maker.Close()

	p := scenarioA()
	p.Chimney.X = 9
	res := maker.CreateGeometry(ctx, p)
	require.False(t, res.IsOk())
	assert.Nil(t, res.Value())
	assert.ErrorIs(t, res.Err(), domain.ErrGeometryConstraint)

	mres := maker.Mesh(ctx, nil, false)
	assert.True(t, domain.IsKind(mres.Err(), domain.KindInvalidParameter))
}

func TestFacade_OptimizedBuild(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewStore()
	s := quickSettings()

	var mu sync.Mutex
	trials := 0
	maker, err := reactor.New(ctx,
		reactor.WithOptimizerSettings(s),
		reactor.WithParallelism(2),
		reactor.WithTrialCache(cache),
		reactor.WithHooks(domain.LifecycleHooks{
			OnTrial: func(context.Context, *domain.TrialEvent) {
				mu.Lock()
				defer mu.Unlock()
				trials++
			},
		}),
	)
	require.NoError(t, err)
	defer maker.Close()
	assert.Equal(t, 2, maker.Settings().Parallelism)

	p := scenarioA()
	p.Optimize = true
	g, err := maker.CreateGeometry(ctx, p).Unwrap()
	require.NoError(t, err)
	assert.True(t, g.Profile().Optimized)
	assert.True(t, s.SquareBounds.Contains(g.Profile().SquareFraction))
	assert.True(t, s.CurvatureBounds.Contains(g.Profile().CurvatureFraction))
	assert.Positive(t, trials)
	assert.Positive(t, cache.Len())

	mesh, err := maker.Mesh(ctx, g, true).Unwrap()
	require.NoError(t, err)
	assert.NotEmpty(t, mesh.Seeds())

	out, err := maker.Optimize(ctx, p).Unwrap()
	require.NoError(t, err)
	assert.True(t, s.SquareBounds.Contains(out.SquareFraction))
}

func TestFacade_OptimizeUnreachableFallsBack(t *testing.T) {
	ctx := context.Background()
	s := quickSettings()
	s.SquareBounds = domain.Bounds{Min: 1.5, Max: 2}
	maker, err := reactor.New(ctx, reactor.WithOptimizerSettings(s))
	require.NoError(t, err)
	defer maker.Close()

	p := scenarioA()
	p.Optimize = true
	g, err := maker.CreateGeometry(ctx, p).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 0.99, g.Profile().SquareFraction)
	assert.Equal(t, 0.1, g.Profile().CurvatureFraction)

	res := maker.Optimize(ctx, p)
	assert.ErrorIs(t, res.Err(), domain.ErrOptimizationFailed)
}

func TestFacade_SessionFactory(t *testing.T) {
	ctx := context.Background()
	opened := 0
	var mu sync.Mutex
	factory := ports.SessionFactoryFunc(func(ctx context.Context) (ports.KernelSession, error) {
		mu.Lock()
		defer mu.Unlock()
		opened++
		return memory.NewSession(), nil
	})

	maker, err := reactor.New(ctx, reactor.WithSessionFactory(factory), reactor.WithEdgeTolerance(0.2))
	require.NoError(t, err)
	_, err = maker.CreateGeometry(ctx, scenarioA()).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 1, opened)

	require.NoError(t, maker.Close())
	require.NoError(t, maker.Close())
	res := maker.CreateGeometry(ctx, scenarioA())
	assert.True(t, domain.IsKind(res.Err(), domain.KindKernelOperation))

	_, err = reactor.New(ctx, reactor.WithSessionFactory(ports.SessionFactoryFunc(
		func(context.Context) (ports.KernelSession, error) { return nil, errors.New("no license") },
	)))
	assert.ErrorContains(t, err, "no license")
}

func TestFacade_ClosedMakerRejectsOperations(t *testing.T) {
	ctx := context.Background()
	opened := 0
	factory := ports.SessionFactoryFunc(func(context.Context) (ports.KernelSession, error) {
		opened++
		return memory.NewSession(), nil
	})
	maker, err := reactor.New(ctx, reactor.WithSessionFactory(factory), reactor.WithOptimizerSettings(quickSettings()))
	require.NoError(t, err)
	require.NoError(t, maker.Close())

	res := maker.Optimize(ctx, scenarioA())
	require.Error(t, res.Err())
	assert.True(t, domain.IsKind(res.Err(), domain.KindKernelOperation))
	assert.ErrorContains(t, res.Err(), "maker is closed")
	assert.Equal(t, 1, opened, "no trial sessions after close")
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, reactor.Version)
}
