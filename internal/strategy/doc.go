// Package strategy selects the next endpoint for an incoming request.
//
// Two rotations are offered over the registry's fixed ring order:
//
//   - health-aware (default): round robin that skips endpoints whose last
//     health record is not healthy, bounded to one full cycle
//   - naive: plain rotation that ignores health and can route to endpoints
//     already known to be down; it must be selected explicitly
//
// Unhealthy endpoints are skipped in place, never removed from the ring.
package strategy
