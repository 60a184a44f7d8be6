// Package httpserver wraps net/http.Server with address validation, listener
// timeouts and graceful shutdown. Both the proxy and the admin listener use it.
package httpserver
