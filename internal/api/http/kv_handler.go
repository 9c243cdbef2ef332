package http

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/amakane-hakari/kairos/internal/evictmap"
)

type kvHandler struct {
	m *evictmap.Map[string, string]

	// defaultTTL は ttl クエリが省略されたときに使う値（ナノ秒）。
	// 設定のホットリロードで差し替わる。
	defaultTTL atomic.Int64
}

func (h *kvHandler) mount(r chi.Router) {
	r.Route("/kvs", func(r chi.Router) {
		r.Get("/", wrap(h.stats))
		r.Delete("/", wrap(h.clear))
		r.Put("/{key}", wrap(h.put))
		r.Get("/{key}", wrap(h.get))
		r.Delete("/{key}", wrap(h.del))
		r.Post("/{key}/if-absent", wrap(h.putIfAbsent))
		r.Post("/{key}/replace", wrap(h.replace))
	})
}

type valueRequest struct {
	Value string `json:"value"`
}

type valueDTO struct {
	Key   string  `json:"key"`
	Value string  `json:"value,omitempty"`
	Prev  *string `json:"prev,omitempty"`
	TTL   string  `json:"ttl,omitempty"`
}

type statsDTO struct {
	Size int `json:"size"`
}

// parseTTL は ttl クエリパラメータを解釈します。省略時は既定 TTL。
func (h *kvHandler) parseTTL(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("ttl")
	if raw == "" {
		return time.Duration(h.defaultTTL.Load()), nil
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		return 0, InvalidTTL("ttl must be a duration like 500ms")
	}
	if ttl < 0 {
		return 0, InvalidTTL("ttl must not be negative")
	}
	return ttl, nil
}

func (h *kvHandler) put(w http.ResponseWriter, r *http.Request) error {
	key := chi.URLParam(r, "key")
	if key == "" {
		return BadRequest("empty key")
	}
	ttl, err := h.parseTTL(r)
	if err != nil {
		return err
	}
	var req valueRequest
	if err := DecodeJSON(r, &req); err != nil {
		return err
	}

	dto := valueDTO{Key: key, Value: req.Value, TTL: ttl.String()}
	if prev, ok := h.m.Put(key, req.Value, ttl); ok {
		dto.Prev = &prev
	}
	writeSuccess(w, http.StatusOK, dto)
	return nil
}

func (h *kvHandler) putIfAbsent(w http.ResponseWriter, r *http.Request) error {
	key := chi.URLParam(r, "key")
	if key == "" {
		return BadRequest("empty key")
	}
	ttl, err := h.parseTTL(r)
	if err != nil {
		return err
	}
	var req valueRequest
	if err := DecodeJSON(r, &req); err != nil {
		return err
	}

	if existing, ok := h.m.PutIfAbsent(key, req.Value, ttl); ok {
		return Conflict("key already present", valueDTO{Key: key, Value: existing})
	}
	writeSuccess(w, http.StatusCreated, valueDTO{Key: key, Value: req.Value, TTL: ttl.String()})
	return nil
}

func (h *kvHandler) replace(w http.ResponseWriter, r *http.Request) error {
	key := chi.URLParam(r, "key")
	if key == "" {
		return BadRequest("empty key")
	}
	ttl, err := h.parseTTL(r)
	if err != nil {
		return err
	}
	var req valueRequest
	if err := DecodeJSON(r, &req); err != nil {
		return err
	}

	prev, ok := h.m.Replace(key, req.Value, ttl)
	if !ok {
		return NotFound("key not found")
	}
	writeSuccess(w, http.StatusOK, valueDTO{Key: key, Value: req.Value, Prev: &prev, TTL: ttl.String()})
	return nil
}

func (h *kvHandler) get(w http.ResponseWriter, r *http.Request) error {
	key := chi.URLParam(r, "key")
	if key == "" {
		return BadRequest("empty key")
	}
	v, ok := h.m.Get(key)
	if !ok {
		return NotFound("key not found")
	}
	writeSuccess(w, http.StatusOK, valueDTO{Key: key, Value: v})
	return nil
}

func (h *kvHandler) del(w http.ResponseWriter, r *http.Request) error {
	key := chi.URLParam(r, "key")
	if key == "" {
		return BadRequest("empty key")
	}
	dto := valueDTO{Key: key}
	if prev, ok := h.m.Delete(key); ok {
		dto.Prev = &prev
	}
	writeSuccess(w, http.StatusOK, dto)
	return nil
}

func (h *kvHandler) clear(w http.ResponseWriter, _ *http.Request) error {
	h.m.Clear()
	writeSuccess(w, http.StatusOK, statsDTO{Size: 0})
	return nil
}

func (h *kvHandler) stats(w http.ResponseWriter, _ *http.Request) error {
	writeSuccess(w, http.StatusOK, statsDTO{Size: h.m.Len()})
	return nil
}
