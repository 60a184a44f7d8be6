// Package proxy forwards a single inbound request to a chosen endpoint and
// relays the response verbatim. It is the isolation boundary of the router:
// downstream timeouts and connection failures become a uniform 503 envelope
// and the underlying error is only logged.
//
// Each request is forwarded exactly once. A failed forward is never resubmitted
// to another endpoint.
package proxy
