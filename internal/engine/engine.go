package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/reactor/internal/logging"
	"github.com/aretw0/reactor/pkg/domain"
	"github.com/aretw0/reactor/pkg/ports"
)

const (
	// DefaultEdgeTolerance is the per-axis tolerance of the midpoint edge search.
	DefaultEdgeTolerance = 1e-1

	glueEdgeTolerance = 1e-7
	glueFaceTolerance = 1e-6
)

// Engine builds reactor geometries and meshes against one kernel session.
// It is not safe for concurrent use, because the session is not.
type Engine struct {
	kernel    ports.KernelSession
	optimizer *Optimizer
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	edgeTol   float64
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHooks registers lifecycle hooks.
func WithHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithEdgeTolerance overrides DefaultEdgeTolerance.
func WithEdgeTolerance(tol float64) EngineOption {
	return func(e *Engine) {
		if tol > 0 {
			e.edgeTol = tol
		}
	}
}

// WithOptimizer enables optimized builds. Without it, Create falls back to the
// default fractions whenever optimization is requested.
func WithOptimizer(o *Optimizer) EngineOption {
	return func(e *Engine) {
		e.optimizer = o
	}
}

// NewEngine creates an engine bound to kernel.
func NewEngine(kernel ports.KernelSession, opts ...EngineOption) *Engine {
	e := &Engine{
		kernel:  kernel,
		logger:  logging.NewNop(),
		edgeTol: DefaultEdgeTolerance,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Kernel returns the session the engine builds in.
func (e *Engine) Kernel() ports.KernelSession {
	return e.kernel
}

func (e *Engine) emitStageEnter(ctx context.Context, buildID string, stage domain.BuildStage) {
	if e.hooks.OnStageEnter == nil {
		return
	}
	e.hooks.OnStageEnter(ctx, &domain.StageEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventStageEnter, BuildID: buildID},
		Stage:     stage,
	})
}

func (e *Engine) emitStageFailed(ctx context.Context, buildID string, stage domain.BuildStage, err error) {
	if e.hooks.OnStageFailed == nil {
		return
	}
	e.hooks.OnStageFailed(ctx, &domain.StageEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventStageFailed, BuildID: buildID},
		Stage:     stage,
		Err:       err,
	})
}

func (e *Engine) emitMeshCompute(ctx context.Context, buildID string, d time.Duration, elements int, err error) {
	if e.hooks.OnMeshCompute == nil {
		return
	}
	e.hooks.OnMeshCompute(ctx, &domain.MeshEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventMeshCompute, BuildID: buildID},
		Duration:  d,
		Elements:  elements,
		Err:       err,
	})
}

// kernelErr classifies a kernel adapter error.
func kernelErr(op string, err error) error {
	return domain.WrapError(op, domain.KindKernelOperation, err)
}
