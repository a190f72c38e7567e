package admin

import (
	"net/http"

	"news-digest/internal/handler/http/auth"
)

// Register mounts the admin routes on mux behind RequireAdmin.
func Register(mux *http.ServeMux, deps Deps, jwtSecret []byte) {
	guard := auth.RequireAdmin(jwtSecret)

	mux.Handle("POST /admin/digests", guard(TriggerHandler{deps}))
	mux.Handle("GET /admin/digests", guard(ListHandler{deps}))
	mux.Handle("POST /admin/digests/redeliver", guard(RedeliverHandler{deps}))
	mux.Handle("POST /admin/digests/preview", guard(PreviewHandler{deps}))
	mux.Handle("POST /admin/batches/{frequency}", guard(BatchHandler{deps}))
}
