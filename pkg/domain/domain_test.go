package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult(t *testing.T) {
	ok := Ok(42)
	assert.True(t, ok.IsOk())
	assert.NoError(t, ok.Err())
	v, err := ok.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	boom := errors.New("boom")
	failed := From(7, boom)
	assert.False(t, failed.IsOk())
	assert.Equal(t, 0, failed.Value(), "a failure never carries a value")
	_, err = failed.Unwrap()
	assert.ErrorIs(t, err, boom)

	assert.Error(t, Fail[int](nil).Err(), "a failure always carries a reason")
	assert.Panics(t, func() { failed.Must() })
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewError("curvedSquare", KindInvalidParameter, "curvature is %g", 0.0))

	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.NotErrorIs(t, err, ErrGeometryConstraint)
	assert.True(t, IsKind(err, KindInvalidParameter))
	assert.False(t, IsKind(errors.New("plain"), KindInvalidParameter))

	de := WrapError("Extrude", KindKernelOperation, errors.New("degenerate"))
	de.Stage = StageExtruding
	assert.Equal(t, "Extrude: kernel_operation_failure (stage=extruding): degenerate", de.Error())
}

func TestBuildState(t *testing.T) {
	s := NewBuildState()
	for _, next := range []BuildStage{StageBuildingProfile, StageExtruding, StageFusingChimney, StageGroupingFaces, StageDone} {
		require.NoError(t, s.Advance(next))
	}
	assert.Equal(t, StageDone, s.Stage)
	assert.Len(t, s.History, 6)
	assert.Error(t, s.Advance(StageFailed), "terminal stages are final")

	s = NewBuildState()
	assert.Error(t, s.Advance(StageExtruding), "stages cannot be skipped")
	require.NoError(t, s.Advance(StageBuildingProfile))
	assert.Error(t, s.Advance(StageBuildingProfile), "stages are not re-entrant")
	s.Fail()
	assert.Equal(t, StageFailed, s.Stage)
	s.Fail()
	assert.Equal(t, []BuildStage{StageValidating, StageBuildingProfile, StageFailed}, s.History)
}

func TestHooksMerge(t *testing.T) {
	var calls []string
	a := LifecycleHooks{OnTrial: func(context.Context, *TrialEvent) { calls = append(calls, "a") }}
	b := LifecycleHooks{
		OnTrial:      func(context.Context, *TrialEvent) { calls = append(calls, "b") },
		OnStageEnter: func(context.Context, *StageEvent) { calls = append(calls, "stage") },
	}

	m := a.Merge(b)
	m.OnTrial(context.Background(), &TrialEvent{})
	m.OnStageEnter(context.Background(), &StageEvent{})
	assert.Nil(t, m.OnMeshCompute)
	assert.Equal(t, []string{"a", "b", "stage"}, calls)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{1.5, 0, -1, 1.0, 2.0})
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 2.0, s.Max)
	assert.InDelta(t, 1.5, s.Mean, 1e-12)
	assert.InDelta(t, 1.0, s.Objective(), 1e-12)

	assert.Zero(t, Summarize(nil).Count)
}

func TestSegmentHypothesis(t *testing.T) {
	assert.NoError(t, UniformSegments(3, true).Validate())
	assert.Error(t, UniformSegments(0, false).Validate())
	assert.NoError(t, GeometricSegments(0.1, 1.2, false).Validate())
	assert.Error(t, GeometricSegments(0, 1.2, false).Validate())
	assert.Error(t, SegmentHypothesis{}.Validate())
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("out/Reactor.STL")
	require.NoError(t, err)
	assert.Equal(t, FormatSTL, f)

	f, err = FormatFromPath("mesh.yml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = FormatFromPath("mesh.obj")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestBounds(t *testing.T) {
	b := Bounds{Min: 0.05, Max: 0.8}
	assert.True(t, b.Valid())
	assert.True(t, b.Contains(0.05))
	assert.False(t, b.Contains(0.9))
	assert.Equal(t, 0.8, b.Clamp(2))
	assert.False(t, Bounds{Min: 1, Max: 1}.Valid())
}

func TestReactorGeometryAccessors(t *testing.T) {
	g := NewReactorGeometry("b1", Shape{ID: 9, Type: ShapeCompound},
		FaceGroups{Inlet: Shape{ID: 1}, Outlet: Shape{ID: 2}, Wall: Shape{ID: 3}},
		Dimensions{Reactor: V2(10, 20), Chimney: V2(2, 5)},
		Profile{MeshSize: 0.5, SquareWidth: 5})

	assert.True(t, g.Groups().Complete())
	assert.Equal(t, 25.0, g.Dimensions().TotalHeight())
	assert.Equal(t, 5.0, g.SquareWidth())
	assert.Contains(t, g.String(), "square=5")
}
