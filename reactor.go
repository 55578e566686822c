package reactor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/reactor/internal/engine"
	"github.com/aretw0/reactor/internal/logging"
	"github.com/aretw0/reactor/pkg/adapters/memory"
	"github.com/aretw0/reactor/pkg/domain"
	"github.com/aretw0/reactor/pkg/observability"
	"github.com/aretw0/reactor/pkg/ports"
)

// Maker is the high-level entry point for the reactor library.
// It owns one kernel session for the geometries and meshes it builds and
// opens independent sessions for optimizer trials.
type Maker struct {
	mu        sync.Mutex
	factory   ports.SessionFactory
	session   ports.KernelSession
	engine    *engine.Engine
	optimizer *engine.Optimizer
	settings  domain.OptimizerSettings
	cache     ports.TrialCache
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	edgeTol   float64
	closed    bool
}

// Option defines a functional option for configuring the Maker.
type Option func(*Maker)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Maker) {
		m.logger = logger
	}
}

// WithHooks registers observability hooks. Repeated calls chain.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Maker) {
		m.hooks = m.hooks.Merge(hooks)
	}
}

// WithMetrics records builds, stages, trials and mesh computations in metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Maker) {
		if metrics != nil {
			m.hooks = m.hooks.Merge(metrics.Hooks())
		}
	}
}

// WithTrialCache memoises optimizer trials.
func WithTrialCache(cache ports.TrialCache) Option {
	return func(m *Maker) {
		m.cache = cache
	}
}

// WithSessionFactory replaces the in-memory kernel.
func WithSessionFactory(f ports.SessionFactory) Option {
	return func(m *Maker) {
		m.factory = f
	}
}

// WithOptimizerSettings replaces domain.DefaultOptimizerSettings.
func WithOptimizerSettings(s domain.OptimizerSettings) Option {
	return func(m *Maker) {
		m.settings = s
	}
}

// WithParallelism sets how many trials run at once.
func WithParallelism(n int) Option {
	return func(m *Maker) {
		if n > 0 {
			m.settings.Parallelism = n
		}
	}
}

// WithEdgeTolerance sets the per-axis tolerance of the edge search.
func WithEdgeTolerance(tol float64) Option {
	return func(m *Maker) {
		m.edgeTol = tol
	}
}

// New initializes a Maker and opens its kernel session.
// By default it builds against the in-memory kernel.
func New(ctx context.Context, opts ...Option) (*Maker, error) {
	m := &Maker{
		settings: domain.DefaultOptimizerSettings(),
		edgeTol:  engine.DefaultEdgeTolerance,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.factory == nil {
		m.factory = memory.NewFactory()
	}
	if m.logger == nil {
		m.logger = logging.NewNop()
	}

	session, err := m.factory.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open kernel session: %w", err)
	}
	m.session = session
	m.logger = m.logger.With("session", session.ID())

	optOpts := []engine.OptimizerOption{
		engine.WithOptimizerLogger(m.logger),
		engine.WithTrialHooks(m.hooks),
		engine.WithTrialEdgeTolerance(m.edgeTol),
	}
	if m.cache != nil {
		optOpts = append(optOpts, engine.WithTrialCache(m.cache))
	}
	m.optimizer = engine.NewOptimizer(m.factory, m.settings, optOpts...)

	m.engine = engine.NewEngine(session,
		engine.WithLogger(m.logger),
		engine.WithHooks(m.hooks),
		engine.WithEdgeTolerance(m.edgeTol),
		engine.WithOptimizer(m.optimizer),
	)
	return m, nil
}

func (m *Maker) lock(op string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.NewError(op, domain.KindKernelOperation, "maker is closed")
	}
	return nil
}

// CreateGeometry builds a grouped reactor solid.
func (m *Maker) CreateGeometry(ctx context.Context, p domain.GeometryParams) domain.Result[*domain.ReactorGeometry] {
	if err := m.lock("CreateGeometry"); err != nil {
		return domain.Fail[*domain.ReactorGeometry](err)
	}
	defer m.mu.Unlock()
	return domain.From(m.engine.Create(ctx, p))
}

// Mesh computes a structured mesh of g. With optimize set, the radial edges
// use geometric-progression spacing.
func (m *Maker) Mesh(ctx context.Context, g *domain.ReactorGeometry, optimize bool) domain.Result[*domain.ReactorMesh] {
	if err := m.lock("Mesh"); err != nil {
		return domain.Fail[*domain.ReactorMesh](err)
	}
	defer m.mu.Unlock()
	return domain.From(m.engine.Mesh(ctx, g, optimize))
}

// AspectRatios returns the positive element aspect ratios of mesh.
func (m *Maker) AspectRatios(_ context.Context, mesh *domain.ReactorMesh) domain.Result[[]float64] {
	if err := m.lock("AspectRatios"); err != nil {
		return domain.Fail[[]float64](err)
	}
	defer m.mu.Unlock()
	return domain.From(m.engine.AspectRatios(mesh))
}

// Stats summarises the aspect ratios of mesh.
func (m *Maker) Stats(ctx context.Context, mesh *domain.ReactorMesh) domain.Result[domain.AspectStats] {
	ratios, err := m.AspectRatios(ctx, mesh).Unwrap()
	if err != nil {
		return domain.Fail[domain.AspectStats](err)
	}
	return domain.Ok(domain.Summarize(ratios))
}

// ExportGeometry writes the solid of g.
func (m *Maker) ExportGeometry(g *domain.ReactorGeometry, w io.Writer, format domain.ExportFormat) error {
	if err := m.lock("ExportGeometry"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	return m.engine.ExportGeometry(g, w, format)
}

// ExportMesh writes a computed mesh.
func (m *Maker) ExportMesh(mesh *domain.ReactorMesh, w io.Writer, format domain.ExportFormat) error {
	if err := m.lock("ExportMesh"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	return m.engine.ExportMesh(mesh, w, format)
}

// Optimize searches the square and curvature fractions for p's dimensions
// without building the full solid. Unlike CreateGeometry, a failed search is
// reported rather than replaced by the fallback pair.
func (m *Maker) Optimize(ctx context.Context, p domain.GeometryParams) domain.Result[domain.OptimizationOutcome] {
	if err := m.lock("Optimize"); err != nil {
		return domain.Fail[domain.OptimizationOutcome](err)
	}
	// Trials run in their own sessions; the Maker session stays free.
	m.mu.Unlock()
	return domain.From(m.engine.Optimize(ctx, p))
}

// Settings returns the optimizer settings in effect.
func (m *Maker) Settings() domain.OptimizerSettings {
	return m.settings
}

// Close releases the kernel session. Geometries and meshes built by the
// Maker are unusable afterwards.
func (m *Maker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.session.Close()
}
