// Package httpapi exposes a kvcache.Cache over HTTP.
//
//	PUT    /add     {"key": "...", "value": "..."}  201
//	DELETE /delete  {"key": "..."}                  204, 404 if absent
//	GET    /get     {"key": "..."}                  200 with the raw value, 404 if absent
//	GET    /list                                    200 with a JSON object of all entries
//	PATCH  /modify  {"key": "...", "value": "..."}  204, 404 if absent
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"
)

// MaxBodyBytes limits the size of a request body.
const MaxBodyBytes = 2 << 20

// Cache is the subset of kvcache.Cache the handlers use.
type Cache interface {
	List(ctx context.Context) (map[string]string, error)
	Add(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) (bool, error)
	Modify(ctx context.Context, key, value string) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
}

// Handler routes cache requests.
type Handler struct {
	cache Cache
	log   *slog.Logger
	mux   *http.ServeMux
}

// New returns a Handler serving c. A nil logger uses slog.Default().
func New(c Cache, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{cache: c, log: log, mux: http.NewServeMux()}
	h.mux.HandleFunc("PUT /add", h.add)
	h.mux.HandleFunc("DELETE /delete", h.delete)
	h.mux.HandleFunc("GET /get", h.get)
	h.mux.HandleFunc("GET /list", h.list)
	h.mux.HandleFunc("PATCH /modify", h.modify)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	h.mux.ServeHTTP(sw, r)
	h.log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", sw.status, "duration", time.Since(start))
}

type keyPayload struct {
	Key *string `json:"key"`
}

type entryPayload struct {
	Key   *string `json:"key"`
	Value *string `json:"value"`
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	var p entryPayload
	if !decode(w, r, &p) {
		return
	}
	if p.Key == nil || p.Value == nil {
		http.Error(w, "missing field: key and value are required", http.StatusUnprocessableEntity)
		return
	}
	if err := h.cache.Add(r.Context(), *p.Key, *p.Value); err != nil {
		h.storageError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	var p keyPayload
	if !decode(w, r, &p) {
		return
	}
	if p.Key == nil {
		http.Error(w, "missing field: key is required", http.StatusUnprocessableEntity)
		return
	}
	ok, err := h.cache.Delete(r.Context(), *p.Key)
	if err != nil {
		h.storageError(w, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) modify(w http.ResponseWriter, r *http.Request) {
	var p entryPayload
	if !decode(w, r, &p) {
		return
	}
	if p.Key == nil || p.Value == nil {
		http.Error(w, "missing field: key and value are required", http.StatusUnprocessableEntity)
		return
	}
	ok, err := h.cache.Modify(r.Context(), *p.Key, *p.Value)
	if err != nil {
		h.storageError(w, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	var p keyPayload
	if !decode(w, r, &p) {
		return
	}
	if p.Key == nil {
		http.Error(w, "missing field: key is required", http.StatusUnprocessableEntity)
		return
	}
	v, ok, err := h.cache.Get(r.Context(), *p.Key)
	if err != nil {
		h.storageError(w, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(v)) //nolint:errcheck // client went away
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	m, err := h.cache.List(r.Context())
	if err != nil {
		h.storageError(w, err)
		return
	}
	if m == nil {
		m = map[string]string{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		h.storageError(w, fmt.Errorf("encode list: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		h.log.Debug("write list response", "error", err)
	}
}

// storageError reports a backend malfunction. The cache has already logged it.
func (h *Handler) storageError(w http.ResponseWriter, err error) {
	h.log.Debug("responding with storage error", "error", err)
	http.Error(w, "storage failure", http.StatusInternalServerError)
}

// decode reads a JSON body into v, writing the error response itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		http.Error(w, "expected Content-Type: application/json", http.StatusUnsupportedMediaType)
		return false
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	err = dec.Decode(v)
	if err == nil {
		// Exactly one JSON value is allowed.
		if extra := dec.Decode(&json.RawMessage{}); extra != io.EOF {
			err = extra
			if err == nil {
				err = errors.New("trailing data after JSON body")
			}
		}
	}
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &tooLarge):
		http.Error(w, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
	case errors.As(err, &typeErr):
		http.Error(w, "invalid field type: "+typeErr.Field, http.StatusUnprocessableEntity)
	default:
		http.Error(w, "malformed JSON body", http.StatusBadRequest)
	}
	return false
}

// statusWriter records the status code for request logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
