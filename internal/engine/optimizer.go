package engine

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"github.com/aretw0/reactor/internal/logging"
	"github.com/aretw0/reactor/pkg/domain"
	"github.com/aretw0/reactor/pkg/ports"
)

const (
	defaultPenalty = 1e6

	// logisticMargin keeps the transform away from its flat tails.
	logisticMargin = 1e-6
)

// Optimizer searches the (square, curvature) fraction box for the profile
// with the smallest worst-case aspect ratio. Each trial runs in a session
// from a pool opened through the factory, so trials may run concurrently.
type Optimizer struct {
	factory  ports.SessionFactory
	settings domain.OptimizerSettings
	cache    ports.TrialCache
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	edgeTol  float64
}

// OptimizerOption configures an Optimizer.
type OptimizerOption func(*Optimizer)

// WithTrialCache memoises trial objectives.
func WithTrialCache(c ports.TrialCache) OptimizerOption {
	return func(o *Optimizer) {
		o.cache = c
	}
}

// WithOptimizerLogger sets the optimizer logger.
func WithOptimizerLogger(logger *slog.Logger) OptimizerOption {
	return func(o *Optimizer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTrialHooks registers the OnTrial hook (other hooks are ignored).
func WithTrialHooks(hooks domain.LifecycleHooks) OptimizerOption {
	return func(o *Optimizer) {
		o.hooks = hooks
	}
}

// WithTrialEdgeTolerance overrides DefaultEdgeTolerance for trial meshes.
func WithTrialEdgeTolerance(tol float64) OptimizerOption {
	return func(o *Optimizer) {
		if tol > 0 {
			o.edgeTol = tol
		}
	}
}

// NewOptimizer creates an optimizer drawing trial sessions from factory.
func NewOptimizer(factory ports.SessionFactory, settings domain.OptimizerSettings, opts ...OptimizerOption) *Optimizer {
	if !(settings.Penalty > 0) {
		settings.Penalty = defaultPenalty
	}
	o := &Optimizer{
		factory:  factory,
		settings: settings,
		logger:   logging.NewNop(),
		edgeTol:  DefaultEdgeTolerance,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Settings returns the search configuration.
func (o *Optimizer) Settings() domain.OptimizerSettings {
	return o.settings
}

// incumbent is the best trial seen so far.
type incumbent struct {
	x     domain.Vector2
	value float64
}

// search is the state of one Optimize call.
type search struct {
	o        *Optimizer
	buildID  string
	dims     domain.Dimensions
	meshSize float64
	pool     chan ports.KernelSession
	logger   *slog.Logger

	mu          sync.Mutex
	best        incumbent
	evaluations int
}

// Optimize minimises max(aspect ratio) − 1 of the base profile over the
// configured bounds. Extra seeds inside the bounds are evaluated up front and
// compete with the search result.
//
// It returns an OptimizationFailed error when the bounds are invalid, when no
// trial produced a feasible profile, or when ctx ends. Otherwise the best
// evaluated pair is returned; Status reports how the search terminated.
func (o *Optimizer) Optimize(ctx context.Context, buildID string, dims domain.Dimensions, meshSize float64, seeds ...domain.Vector2) (domain.OptimizationOutcome, error) {
	const op = "optimize"
	s := o.settings
	if !s.SquareBounds.Valid() || !s.CurvatureBounds.Valid() {
		return domain.OptimizationOutcome{}, domain.NewError(op, domain.KindOptimizationFailed,
			"invalid bounds square=%+v curvature=%+v", s.SquareBounds, s.CurvatureBounds)
	}
	if o.factory == nil {
		return domain.OptimizationOutcome{}, domain.NewError(op, domain.KindOptimizationFailed, "no session factory")
	}

	workers := max(1, s.Parallelism)
	pool, closeAll, err := o.openPool(ctx, workers)
	if err != nil {
		return domain.OptimizationOutcome{}, domain.WrapError(op, domain.KindOptimizationFailed, err)
	}
	defer closeAll()

	run := &search{
		o:        o,
		buildID:  buildID,
		dims:     dims,
		meshSize: meshSize,
		pool:     pool,
		logger:   o.logger.With("build_id", buildID),
		best:     incumbent{value: math.Inf(1)},
	}
	started := time.Now()

	start := domain.V2(s.SquareBounds.Clamp(s.Start.X), s.CurvatureBounds.Clamp(s.Start.Y))
	candidates := append([]domain.Vector2{start, s.Fallback}, seeds...)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, x := range candidates {
		if !s.SquareBounds.Contains(x.X) || !s.CurvatureBounds.Contains(x.Y) {
			continue
		}
		g.Go(func() error {
			run.evaluate(gctx, x)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return domain.OptimizationOutcome{}, domain.WrapError(op, domain.KindOptimizationFailed, err)
	}

	f := func(u []float64) float64 {
		return run.evaluate(ctx, o.bounded(u))
	}
	grad := func(dst, u []float64) {
		fd.Gradient(dst, f, u, &fd.Settings{
			Formula:    fd.Central,
			Step:       s.FiniteDifferenceStep,
			Concurrent: workers > 1,
		})
	}
	u0 := []float64{unbound(start.X, s.SquareBounds), unbound(start.Y, s.CurvatureBounds)}
	res, err := optimize.Minimize(optimize.Problem{Func: f, Grad: grad}, u0, &optimize.Settings{
		MajorIterations:   s.MaxIterations,
		FuncEvaluations:   s.MaxEvaluations,
		GradientThreshold: 1e-9,
		Converger:         &optimize.FunctionConverge{Absolute: 1e-6, Relative: 1e-6, Iterations: 3},
	}, &optimize.LBFGS{})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.OptimizationOutcome{}, domain.WrapError(op, domain.KindOptimizationFailed, ctxErr)
	}

	status, iterations, converged := "unknown", 0, false
	if res != nil {
		status, iterations, converged = res.Status.String(), res.MajorIterations, !res.Status.Early()
	}
	if err != nil {
		// Mesh counts move in whole elements, so the line search often stalls
		// on a plateau; the incumbent still stands.
		run.logger.DebugContext(ctx, "search stopped", "status", status, "error", err)
		converged = false
	}

	best, evaluations := run.result()
	if !(best.value < s.Penalty) {
		return domain.OptimizationOutcome{}, domain.NewError(op, domain.KindOptimizationFailed,
			"no feasible trial in square=%+v curvature=%+v after %d evaluations", s.SquareBounds, s.CurvatureBounds, evaluations)
	}
	run.logger.InfoContext(ctx, "search finished",
		"status", status,
		"converged", converged,
		"iterations", iterations,
		"evaluations", evaluations,
		"objective", best.value,
		"duration", time.Since(started))
	return domain.OptimizationOutcome{
		SquareFraction:    best.x.X,
		CurvatureFraction: best.x.Y,
		Objective:         best.value,
		Evaluations:       evaluations,
		Iterations:        iterations,
		Status:            status,
	}, nil
}

func (o *Optimizer) openPool(ctx context.Context, n int) (chan ports.KernelSession, func(), error) {
	pool := make(chan ports.KernelSession, n)
	opened := make([]ports.KernelSession, 0, n)
	closeAll := func() {
		for _, sess := range opened {
			if err := sess.Close(); err != nil {
				o.logger.Debug("closing trial session", "session", sess.ID(), "error", err)
			}
		}
	}
	for range n {
		sess, err := o.factory.NewSession(ctx)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		opened = append(opened, sess)
		pool <- sess
	}
	return pool, closeAll, nil
}

// bounded maps the unconstrained search point u into the fraction box.
func (o *Optimizer) bounded(u []float64) domain.Vector2 {
	return domain.V2(bound(u[0], o.settings.SquareBounds), bound(u[1], o.settings.CurvatureBounds))
}

func bound(u float64, b domain.Bounds) float64 {
	return b.Min + (b.Max-b.Min)/(1+math.Exp(-u))
}

func unbound(v float64, b domain.Bounds) float64 {
	t := (v - b.Min) / (b.Max - b.Min)
	t = math.Max(logisticMargin, math.Min(1-logisticMargin, t))
	return math.Log(t / (1 - t))
}

// evaluate returns the objective at x, or the penalty when the trial fails.
func (r *search) evaluate(ctx context.Context, x domain.Vector2) float64 {
	o := r.o
	penalty := o.settings.Penalty
	key := trialKey(r.dims, r.meshSize, x)

	if o.cache != nil {
		v, ok, err := o.cache.Get(ctx, key)
		if err != nil {
			r.logger.DebugContext(ctx, "trial cache get failed", "key", key, "error", err)
		}
		if ok {
			r.record(ctx, x, v, v >= penalty, true)
			return v
		}
	}

	var sess ports.KernelSession
	select {
	case sess = <-r.pool:
	case <-ctx.Done():
		return penalty
	}
	v, err := profileObjective(ctx, sess, r.dims, r.meshSize, x, o.edgeTol)
	r.pool <- sess

	penalized := err != nil
	if penalized {
		if ctx.Err() != nil {
			return penalty
		}
		r.logger.DebugContext(ctx, "trial penalized",
			"square_fraction", x.X, "curvature_fraction", x.Y, "error", err)
		v = penalty
	}
	if o.cache != nil {
		if err := o.cache.Put(ctx, key, v); err != nil {
			r.logger.DebugContext(ctx, "trial cache put failed", "key", key, "error", err)
		}
	}
	r.record(ctx, x, v, penalized, false)
	return v
}

func (r *search) record(ctx context.Context, x domain.Vector2, v float64, penalized, cached bool) {
	r.mu.Lock()
	r.evaluations++
	if v < r.best.value {
		r.best = incumbent{x: x, value: v}
	}
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "trial",
		"square_fraction", x.X, "curvature_fraction", x.Y, "objective", v, "cached", cached)
	if h := r.o.hooks.OnTrial; h != nil {
		h(ctx, &domain.TrialEvent{
			EventBase:         domain.EventBase{Timestamp: time.Now(), Type: domain.EventTrial, BuildID: r.buildID},
			SquareFraction:    x.X,
			CurvatureFraction: x.Y,
			Objective:         v,
			Penalized:         penalized,
			Cached:            cached,
		})
	}
}

func (r *search) result() (incumbent, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.best, r.evaluations
}
