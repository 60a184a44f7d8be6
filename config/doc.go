// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the listener addresses, the endpoint
// list, the selection policy, probe and forwarding timeouts, metric buffer
// size and alert thresholds.
//
// Endpoints may also be supplied through ENDPOINT_URLS as a comma separated
// list, each entry optionally written as name=url.
package config
