package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/reactor/pkg/domain"
	"github.com/aretw0/reactor/pkg/observability"
)

func stage(s domain.BuildStage) *domain.StageEvent {
	return &domain.StageEvent{EventBase: domain.EventBase{BuildID: "b1"}, Stage: s}
}

func TestMetrics_Hooks(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	h := m.Hooks()

	h.OnStageEnter(ctx, stage(domain.StageValidating))
	h.OnStageEnter(ctx, stage(domain.StageDone))
	h.OnStageEnter(ctx, stage(domain.StageValidating))
	h.OnStageFailed(ctx, stage(domain.StageValidating))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StageEntries.WithLabelValues("validating")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Builds.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Builds.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageFailures.WithLabelValues("validating")))

	h.OnTrial(ctx, &domain.TrialEvent{Objective: 0.4})
	h.OnTrial(ctx, &domain.TrialEvent{Objective: 1e6, Penalized: true})
	h.OnTrial(ctx, &domain.TrialEvent{Objective: 0.4, Cached: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Trials.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Trials.WithLabelValues("penalized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Trials.WithLabelValues("cached")))

	h.OnMeshCompute(ctx, &domain.MeshEvent{Duration: 20 * time.Millisecond, Elements: 640})
	h.OnMeshCompute(ctx, &domain.MeshEvent{Duration: time.Millisecond, Err: errors.New("boom")})
	assert.Equal(t, 640.0, testutil.ToFloat64(m.MeshElements))
	assert.Equal(t, 2, testutil.CollectAndCount(m.MeshDuration))

	count, err := testutil.GatherAndCount(reg, "reactor_optimizer_trial_objective")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	_, err = observability.NewMetrics(reg)
	assert.Error(t, err)

	_, err = observability.NewMetrics(nil)
	assert.NoError(t, err)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := observability.LogHooks(logger)

	ctx := context.Background()
	h.OnStageEnter(ctx, stage(domain.StageExtruding))
	h.OnTrial(ctx, &domain.TrialEvent{SquareFraction: 0.5, CurvatureFraction: 0.1, Objective: 0.3})
	h.OnMeshCompute(ctx, &domain.MeshEvent{Elements: 12})

	out := buf.String()
	assert.Contains(t, out, "stage=extruding")
	assert.Contains(t, out, "build_id=b1")
	assert.Contains(t, out, "square_fraction=0.5")
	assert.Contains(t, out, "elements=12")
}
