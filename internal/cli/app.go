package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/reactor"
	"github.com/aretw0/reactor/internal/adapters/file"
	"github.com/aretw0/reactor/internal/dto"
	"github.com/aretw0/reactor/internal/presentation/report"
	"github.com/aretw0/reactor/pkg/adapters/redis"
	"github.com/aretw0/reactor/pkg/domain"
	"github.com/aretw0/reactor/pkg/observability"
)

const pingTimeout = 2 * time.Second

// App bundles what a command needs: a Maker, the optional trial cache and
// the report renderer.
type App struct {
	Maker    *reactor.Maker
	Cache    *redis.Cache
	Logger   *slog.Logger
	Renderer *report.Renderer
	Params   dto.ParamsFile
}

// Open wires an App for the parameters f.
func Open(ctx context.Context, f dto.ParamsFile, o Options, logger *slog.Logger, out io.Writer) (*App, error) {
	app := &App{
		Logger:   logger,
		Renderer: report.NewRenderer(out, o.Plain),
		Params:   f,
	}

	opts, cache, err := MakerOptions(ctx, f, o, logger)
	if err != nil {
		return nil, err
	}
	app.Cache = cache
	opts = append(opts, reactor.WithHooks(observability.LogHooks(logger)))

	app.Maker, err = reactor.New(ctx, opts...)
	if err != nil {
		app.closeCache()
		return nil, err
	}
	return app, nil
}

// MakerOptions translates f and o into Maker options. The returned cache is
// nil when none is configured or the server cannot be reached.
func MakerOptions(ctx context.Context, f dto.ParamsFile, o Options, logger *slog.Logger) ([]reactor.Option, *redis.Cache, error) {
	settings := f.Settings(domain.DefaultOptimizerSettings())
	if o.Parallelism > 0 {
		settings.Parallelism = o.Parallelism
	}
	opts := []reactor.Option{
		reactor.WithLogger(logger),
		reactor.WithOptimizerSettings(settings),
	}

	cache, err := openCache(ctx, f.Cache, o.RedisAddr, logger)
	if err != nil {
		return nil, nil, err
	}
	if cache != nil {
		opts = append(opts, reactor.WithTrialCache(cache))
	}
	return opts, cache, nil
}

func openCache(ctx context.Context, cfg dto.CacheSection, addrFlag string, logger *slog.Logger) (*redis.Cache, error) {
	addr := cfg.RedisAddr
	if addrFlag != "" {
		addr = addrFlag
	}
	if addr == "" {
		return nil, nil
	}
	ttl, err := cfg.Duration()
	if err != nil {
		return nil, err
	}
	var opts []redis.Option
	if cfg.Prefix != "" {
		opts = append(opts, redis.WithPrefix(cfg.Prefix))
	}
	if ttl > 0 {
		opts = append(opts, redis.WithTTL(ttl))
	}
	cache := redis.New(addr, "", 0, opts...)

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := cache.Ping(pctx); err != nil {
		logger.Warn("trial cache unavailable, continuing without it", "addr", addr, "error", err)
		_ = cache.Close()
		return nil, nil
	}
	logger.Info("trial cache connected", "addr", addr)
	return cache, nil
}

func (a *App) closeCache() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn("failed to close trial cache", "error", err)
		}
	}
}

// Close releases the Maker and the cache.
func (a *App) Close() error {
	a.closeCache()
	if a.Maker != nil {
		return a.Maker.Close()
	}
	return nil
}

// BuildOptions select the outputs of Build.
type BuildOptions struct {
	// GeometryOut and MeshOut are export paths; the format follows the extension.
	GeometryOut string
	MeshOut     string
	// SavePath writes the resolved parameters before building.
	SavePath string
	// SkipMesh stops after the geometry.
	SkipMesh bool
}

// Build creates the geometry, meshes it, exports what was asked and renders
// the report.
func (a *App) Build(ctx context.Context, bo BuildOptions) error {
	p := a.Params.Params()
	if bo.SavePath != "" {
		if err := file.Save(bo.SavePath, a.Params); err != nil {
			return err
		}
		a.Logger.Info("parameters saved", "path", bo.SavePath)
	}

	rep := report.Report{Params: p}
	g, err := a.Maker.CreateGeometry(ctx, p).Unwrap()
	if err != nil {
		return err
	}
	rep.Geometry = g

	if bo.GeometryOut != "" {
		if err := exportTo(bo.GeometryOut, func(w io.Writer, f domain.ExportFormat) error {
			return a.Maker.ExportGeometry(g, w, f)
		}); err != nil {
			return err
		}
		rep.Exported = append(rep.Exported, bo.GeometryOut)
	}

	if !bo.SkipMesh {
		mesh, err := a.Maker.Mesh(ctx, g, p.Optimize).Unwrap()
		if err != nil {
			return err
		}
		stats, err := a.Maker.Stats(ctx, mesh).Unwrap()
		if err != nil {
			return err
		}
		rep.Mesh, rep.Stats = mesh, stats

		if bo.MeshOut != "" {
			if err := exportTo(bo.MeshOut, func(w io.Writer, f domain.ExportFormat) error {
				return a.Maker.ExportMesh(mesh, w, f)
			}); err != nil {
				return err
			}
			rep.Exported = append(rep.Exported, bo.MeshOut)
		}
	}

	return a.Renderer.Render(rep)
}

// Optimize runs the fraction search alone and renders its outcome.
func (a *App) Optimize(ctx context.Context, purge bool) error {
	if purge {
		if a.Cache == nil {
			return errors.New("--purge-cache needs a reachable trial cache")
		}
		n, err := a.Cache.Purge(ctx)
		if err != nil {
			return err
		}
		a.Logger.Info("trial cache purged", "removed", n)
	}

	p := a.Params.Params()
	out, err := a.Maker.Optimize(ctx, p).Unwrap()
	if err != nil {
		return err
	}
	p.PerSquare, p.CurvatureFraction = out.SquareFraction, out.CurvatureFraction
	return a.Renderer.Render(report.Report{Params: p, Outcome: &out})
}

// exportTo writes a file whose format follows its extension. A failed
// export removes the partial file.
func exportTo(path string, write func(io.Writer, domain.ExportFormat) error) (err error) {
	format, err := domain.FormatFromPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	return write(f, format)
}
