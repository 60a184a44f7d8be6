package proxy

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"sync"
	"time"

	"github.com/angeloszaimis/health-router/internal/endpoint"
	"github.com/angeloszaimis/health-router/internal/envelope"
)

const DefaultTimeout = 30 * time.Second

// ErrAborted marks a forward whose response broke off after the status line
// was already sent downstream.
var ErrAborted = errors.New("response aborted")

var forwardedHeaders = []string{"Forwarded", "X-Forwarded-For", "X-Forwarded-Host", "X-Forwarded-Proto"}

// Outcome describes one forwarding attempt. Aborted is set when the
// response body could not be relayed in full; the caller must then abort
// its own response with http.ErrAbortHandler.
type Outcome struct {
	StatusCode int
	Latency    time.Duration
	Err        error
	Aborted    bool
}

// Failed reports whether the attempt ended in a transport failure.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

type stateKey struct{}

type forwardState struct {
	endpoint string
	err      error
}

// Forwarder keeps one reverse proxy per endpoint over a shared transport.
type Forwarder struct {
	transport http.RoundTripper
	timeout   time.Duration
	logger    *slog.Logger

	mutex   sync.RWMutex
	proxies map[string]*httputil.ReverseProxy
}

// NewForwarder builds a forwarder for the given endpoints. A non-positive
// timeout falls back to DefaultTimeout; a nil transport uses a dedicated
// http.Transport.
func NewForwarder(endpoints []*endpoint.Endpoint, timeout time.Duration, transport http.RoundTripper, logger *slog.Logger) *Forwarder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if transport == nil {
		transport = newTransport()
	}

	f := &Forwarder{
		transport: transport,
		timeout:   timeout,
		logger:    logger,
		proxies:   make(map[string]*httputil.ReverseProxy, len(endpoints)),
	}

	for _, e := range endpoints {
		f.proxies[e.Name()] = f.newReverseProxy(e)
	}

	return f
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Timeout returns the bound applied to each forward.
func (f *Forwarder) Timeout() time.Duration {
	return f.timeout
}

func (f *Forwarder) newReverseProxy(e *endpoint.Endpoint) *httputil.ReverseProxy {
	target := e.URL()

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			// Rewrite strips inbound Forwarded and X-Forwarded-* headers; keep them as sent.
			for _, h := range forwardedHeaders {
				if v, ok := pr.In.Header[h]; ok {
					pr.Out.Header[h] = v
				}
			}
		},
		Transport:    f.transport,
		ErrorHandler: f.handleError,
		ErrorLog:     slog.NewLogLogger(f.logger.Handler(), slog.LevelWarn),
	}
}

func (f *Forwarder) proxyFor(e *endpoint.Endpoint) *httputil.ReverseProxy {
	f.mutex.RLock()
	rp, ok := f.proxies[e.Name()]
	f.mutex.RUnlock()

	if ok {
		return rp
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	if rp, ok = f.proxies[e.Name()]; ok {
		return rp
	}

	rp = f.newReverseProxy(e)
	f.proxies[e.Name()] = rp
	return rp
}

// Forward sends r to e once and writes the downstream response to w. On a
// transport failure w receives the 503 envelope and the outcome carries the
// error. A response that breaks off mid-body is reported as an aborted 503.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, e *endpoint.Endpoint) (outcome Outcome) {
	state := &forwardState{endpoint: e.Name()}

	ctx, cancel := context.WithTimeout(r.Context(), f.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, stateKey{}, state)

	rec := newStatusRecorder(w)
	start := time.Now()

	defer func() {
		p := recover()
		if p == nil {
			return
		}
		if p != http.ErrAbortHandler {
			panic(p)
		}

		f.logger.Warn("Forwarding aborted mid-response",
			slog.String("endpoint", e.Name()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("sent_status", rec.StatusCode()))

		outcome = Outcome{
			StatusCode: http.StatusServiceUnavailable,
			Latency:    time.Since(start),
			Err:        ErrAborted,
			Aborted:    true,
		}
	}()

	f.proxyFor(e).ServeHTTP(rec, r.WithContext(ctx))

	return Outcome{
		StatusCode: rec.StatusCode(),
		Latency:    time.Since(start),
		Err:        state.err,
	}
}

func (f *Forwarder) handleError(w http.ResponseWriter, r *http.Request, err error) {
	name := ""
	if state, ok := r.Context().Value(stateKey{}).(*forwardState); ok {
		state.err = err
		name = state.endpoint
	}

	f.logger.Error("Forwarding failed",
		slog.String("endpoint", name),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("err", err))

	if werr := envelope.ServiceUnavailable(w); werr != nil {
		f.logger.Debug("Failed to write error envelope", slog.Any("err", werr))
	}
}
