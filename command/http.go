package command

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewHTTPHandler exposes a Router over HTTP. One endpoint, one
// envelope: POST /v1/commands.
func NewHTTPHandler(router *Router) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/v1/commands", func(w http.ResponseWriter, req *http.Request) {
		var cmd Request
		if err := json.NewDecoder(req.Body).Decode(&cmd); err != nil {
			writeJSON(w, http.StatusBadRequest, Response{OK: false, Error: "invalid request body"})
			return
		}
		// Unknown types and handler failures still answer 200 with
		// OK=false: the envelope is the protocol, not the HTTP status.
		writeJSON(w, http.StatusOK, router.Dispatch(req.Context(), cmd))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
