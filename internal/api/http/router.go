package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amakane-hakari/kairos/internal/evictmap"
	ilog "github.com/amakane-hakari/kairos/internal/log"
)

// Router は KVS の HTTP サーフェスです。既定 TTL は設定のホット
// リロードに合わせて差し替えられる。
type Router struct {
	kv  *kvHandler
	mux *chi.Mux
}

// NewRouter は新しい Router を作成します。
func NewRouter(m *evictmap.Map[string, string], l ilog.Logger) *Router {
	kv := &kvHandler{m: m}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware())
	r.Use(RecoverMiddleware())
	r.Use(AccessLog(l))

	r.Get("/health", healthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	kv.mount(r)

	return &Router{kv: kv, mux: r}
}

// ServeHTTP は http.Handler の実装です。
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// SetDefaultTTL は ttl クエリ省略時に使う TTL を差し替えます。
func (rt *Router) SetDefaultTTL(d time.Duration) {
	if d < 0 {
		d = 0
	}
	rt.kv.defaultTTL.Store(int64(d))
}
