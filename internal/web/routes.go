package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kozaktomas/facegraph/internal/web/handlers"
	"github.com/kozaktomas/facegraph/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.backend, s.logger)
	mergeHandler := handlers.NewMergeHandler(s.config, s.svc, s.logger)
	clustersHandler := handlers.NewClustersHandler(s.backend, s.logger)

	// Unauthenticated probes
	s.router.Get("/api/v1/health", healthHandler.Check)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireToken(s.config.Web.APIToken))

		// Consolidation
		r.Post("/merge_clusters", mergeHandler.Merge)
		r.Get("/merge_clusters", mergeHandler.Preview)

		// Read-only listings
		r.Get("/clusters", clustersHandler.List)
		r.Get("/clusters/{id}/faces", clustersHandler.Faces)
		r.Get("/similar_clusters", clustersHandler.Suggestions)
		r.Get("/merges", clustersHandler.Merges)
	})
}
