// Package metrics records request outcomes in a bounded ring buffer and
// derives counters and summaries from it.
//
// The buffer holds at most Capacity entries; recording beyond that evicts the
// oldest entry. Per (service, endpoint) counters always describe exactly the
// entries currently held, so they can be recomputed from the buffer at any time.
//
// Reads return point-in-time copies:
//
//	collector := metrics.NewCollector(1000)
//	collector.Record(metrics.Metric{
//		Service:    "load_balancer",
//		Endpoint:   "server1",
//		Method:     http.MethodGet,
//		StatusCode: 200,
//		Latency:    150 * time.Millisecond,
//	})
//
//	recent := collector.WindowSince(5 * time.Minute)
//	summary := collector.Summary()
//
// Exporter mirrors the same outcomes, plus endpoint health, as Prometheus
// series on a registry owned by the caller.
package metrics
