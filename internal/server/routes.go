package server

import (
	"github.com/jarlhq/jarl/internal/server/handlers"
)

func (s *Server) registerRoutes() {
	s.router.Get("/health", s.health.HealthHandler)
	s.router.Get("/health/live", s.health.LivenessHandler)
	s.router.Get("/health/ready", s.health.ReadinessHandler)

	s.router.Get("/version", handlers.VersionHandler)

	if s.window != nil {
		s.router.Get("/status", handlers.StatusHandler(s.service, s.window))
	}

	s.router.Get("/metrics", MetricsHandler)
}
