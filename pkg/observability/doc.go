/*
Package observability turns engine lifecycle hooks into structured logs and
Prometheus metrics.

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := observability.Combine(observability.LoggingHooks(logger), metrics.Hooks())
	engine := quarry.New(quarry.WithLifecycleHooks(hooks))
*/
package observability
