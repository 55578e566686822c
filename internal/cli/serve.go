package cli

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aretw0/reactor"
	"github.com/aretw0/reactor/internal/dto"
	httpadapter "github.com/aretw0/reactor/pkg/adapters/http"
	"github.com/aretw0/reactor/pkg/adapters/redis"
	"github.com/aretw0/reactor/pkg/observability"
)

// NewServer wires the HTTP handler: one Maker per request, shared metrics and
// a shared trial cache. The returned func releases the cache.
func NewServer(ctx context.Context, f dto.ParamsFile, o Options, logger *slog.Logger) (http.Handler, func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observability.NewMetrics(reg)
	if err != nil {
		return nil, nil, err
	}

	opts, cache, err := MakerOptions(ctx, f, o, logger)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, reactor.WithMetrics(metrics))

	newMaker := func(ctx context.Context) (httpadapter.Maker, error) {
		m, err := reactor.New(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	handler := httpadapter.NewHandler(newMaker, reg, logger, reactor.Version,
		httpadapter.WithRequestTimeout(o.RequestTimeout))
	return handler, func() { closeCache(cache, logger) }, nil
}

func closeCache(c *redis.Cache, logger *slog.Logger) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("failed to close trial cache", "error", err)
	}
}
