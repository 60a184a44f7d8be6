package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
)

// Item is the entity created by POST /items.
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Backend     string `json:"backend"`
}

type createItemRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type backend struct {
	name    string
	logger  *slog.Logger
	failing atomic.Bool
}

func newBackend(name string, logger *slog.Logger) *backend {
	return &backend{name: name, logger: logger}
}

func (b *backend) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", b.health)
	mux.HandleFunc("POST /fail", b.toggleFailure)
	mux.HandleFunc("POST /items", b.createItem)
	mux.HandleFunc("/", b.echo)
	return mux
}

func (b *backend) health(w http.ResponseWriter, r *http.Request) {
	if b.failing.Load() {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// toggleFailure flips the health probe between 200 and 500.
func (b *backend) toggleFailure(w http.ResponseWriter, r *http.Request) {
	failing := !b.failing.Load()
	b.failing.Store(failing)

	b.logger.Info("Health toggled", slog.Bool("failing", failing))
	writeJSON(w, http.StatusOK, map[string]bool{"failing": failing})
}

func (b *backend) createItem(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var req createItemRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}

	if req.Title == "" {
		req.Title = "Default Item"
	}

	b.logger.Info("Item created", slog.String("from", r.RemoteAddr), slog.String("title", req.Title))

	writeJSON(w, http.StatusCreated, map[string]Item{"item": {
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Backend:     b.name,
	}})
}

func (b *backend) echo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"backend": b.name,
		"method":  r.Method,
		"path":    r.URL.Path,
		"query":   r.URL.RawQuery,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
