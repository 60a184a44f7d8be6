// Package router assembles the health-aware traffic router. A Router owns the
// endpoint registry, the rotation cursor, the health prober, the metric buffer
// and the Prometheus exporter; request handlers receive it by reference.
//
// Lifecycle:
//
//	r, err := router.New(endpoints, router.Options{Service: "load_balancer"}, logger)
//	r.Start(ctx) // begins background probing
//	defer r.Stop()
package router
