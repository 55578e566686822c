/*
Package observability turns reactor lifecycle hooks into telemetry.

Metrics exposes prometheus collectors for builds, stages, optimizer trials and
mesh computations. LogHooks writes the same events to a structured logger.
Both return domain.LifecycleHooks, so they can be combined with Merge:

	metrics, _ := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := metrics.Hooks().Merge(observability.LogHooks(logger))
*/
package observability
