package handler

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angeloszaimis/health-router/internal/envelope"
	"github.com/angeloszaimis/health-router/internal/router"
)

type ProxyHandler struct {
	logger *slog.Logger
	router *router.Router
}

func NewProxyHandler(logger *slog.Logger, r *router.Router) *ProxyHandler {
	return &ProxyHandler{
		logger: logger,
		router: r,
	}
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := extractClientIP(r)
	log := h.logger.With(slog.String("request_id", uuid.NewString()))

	log.Info("Received request",
		slog.String("from", clientIP),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("proto", r.Proto),
		slog.String("host", r.Host),
		slog.String("user_agent", r.UserAgent()))

	target, err := h.router.Next()
	if err != nil {
		log.Warn("No healthy endpoints available",
			slog.String("client", clientIP),
			slog.Any("err", err))
		if err := envelope.ServiceUnavailable(w); err != nil {
			log.Debug("Failed to write response", slog.Any("err", err))
		}
		return
	}

	log.Info("Forwarding to endpoint",
		slog.String("client", clientIP),
		slog.String("endpoint", target.Name()))

	outcome := h.router.Forward(w, r, target)

	attrs := []any{
		slog.String("endpoint", target.Name()),
		slog.Int("status", outcome.StatusCode),
		slog.Duration("latency", outcome.Latency),
	}
	if outcome.Aborted {
		log.Warn("Request aborted", attrs...)
		panic(http.ErrAbortHandler)
	}
	if outcome.Failed() {
		log.Warn("Request failed", attrs...)
		return
	}
	log.Info("Request completed", attrs...)
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
