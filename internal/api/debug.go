package api

import (
	"net/http"
	"time"

	"evdarp/internal/buildinfo"
)

// VersionHandler handles GET /version
func (s *Server) VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"build":  buildinfo.Info(),
		"time":   time.Now().UTC().Format(time.RFC3339),
		"solver": s.Planner.SolverName(),
		"config": map[string]any{
			"instance":         s.Config.Instance,
			"features":         s.Config.Features,
			"rate":             s.Config.Rate,
			"burst":            s.Config.Burst,
			"has_database_url": s.Config.DatabaseURL != "",
			"has_redis_url":    s.Config.RedisURL != "",
		},
	})
}
