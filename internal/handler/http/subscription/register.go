package subscription

import "net/http"

// Register mounts the public subscriber routes on mux. wrap, when non-nil,
// decorates every handler (the server passes its rate limiter).
func Register(mux *http.ServeMux, svc Service, wrap func(http.Handler) http.Handler) {
	if wrap == nil {
		wrap = func(h http.Handler) http.Handler { return h }
	}
	mux.Handle("POST /subscriptions", wrap(SubscribeHandler{svc}))
	mux.Handle("GET /preferences", wrap(GetPreferencesHandler{svc}))
	mux.Handle("PUT /preferences", wrap(UpdatePreferencesHandler{svc}))
	mux.Handle("POST /unsubscribe", wrap(UnsubscribeHandler{svc}))
}
