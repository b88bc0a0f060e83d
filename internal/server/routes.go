package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/eventinvite/eventinvite-go/internal/api"
	"github.com/eventinvite/eventinvite-go/internal/api/admin"
	"github.com/eventinvite/eventinvite-go/internal/api/public"
	httpmw "github.com/eventinvite/eventinvite-go/internal/platform/http/middleware"
)

// buildRouter assembles the full routing tree: transport middleware, the
// authenticated admin API under /api and the rate-limited public surface.
func (s *Server) buildRouter(adminH *admin.Handler, publicH *public.Handler, gate *authGate) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(httpmw.RequestLogger(s.logger))
	r.Use(httpmw.AccessLog(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(gate.Middleware)
		adminH.Routes(r)
	})

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		publicH.Routes(r)
	})

	return r
}
