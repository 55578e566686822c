package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/reactor/pkg/domain"
)

// LogHooks returns lifecycle hooks that log every event to logger.
// Trials are logged at debug level.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageEnter: func(ctx context.Context, ev *domain.StageEvent) {
			logger.InfoContext(ctx, "stage_enter", "build_id", ev.BuildID, "stage", ev.Stage)
		},
		OnStageFailed: func(ctx context.Context, ev *domain.StageEvent) {
			logger.WarnContext(ctx, "stage_failed", "build_id", ev.BuildID, "stage", ev.Stage, "error", ev.Err)
		},
		OnTrial: func(ctx context.Context, ev *domain.TrialEvent) {
			logger.DebugContext(ctx, "trial",
				"build_id", ev.BuildID,
				"square_fraction", ev.SquareFraction,
				"curvature_fraction", ev.CurvatureFraction,
				"objective", ev.Objective,
				"penalized", ev.Penalized,
				"cached", ev.Cached,
			)
		},
		OnMeshCompute: func(ctx context.Context, ev *domain.MeshEvent) {
			if ev.Err != nil {
				logger.WarnContext(ctx, "mesh_compute", "build_id", ev.BuildID, "duration", ev.Duration, "error", ev.Err)
				return
			}
			logger.InfoContext(ctx, "mesh_compute", "build_id", ev.BuildID, "duration", ev.Duration, "elements", ev.Elements)
		},
	}
}
