// Package handler implements the HTTP surfaces of the router. ProxyHandler
// serves the proxy listener: it selects an endpoint, forwards the request once
// and records the outcome. APIHandler serves the admin listener with health,
// metric, alert and dashboard views, all wrapped in the JSON envelope.
package handler
