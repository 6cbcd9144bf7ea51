package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	batchHandler "github.com/zhouzirui/callsight/backend/internal/handler/batch"
	liveHandler "github.com/zhouzirui/callsight/backend/internal/handler/live"
	middlewarePkg "github.com/zhouzirui/callsight/backend/internal/middleware"
	"github.com/zhouzirui/callsight/backend/internal/session"
	batchService "github.com/zhouzirui/callsight/backend/internal/service/batch"
	"github.com/zhouzirui/callsight/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. batchSvc may be nil
// when the spool flow is disabled.
func NewRouter(registry *session.Registry, live *liveHandler.Handler, batchSvc *batchService.Service, staticDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"status":          "ok",
			"active_sessions": registry.Len(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		live.RegisterRoutes(api)

		if batchSvc != nil {
			batchHandler.New(batchSvc).RegisterRoutes(api)
		} else {
			api.Post("/transcriptions", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "batch transcription disabled")
			})
		}
	})

	mountStatic(r, staticDir)

	return r
}

// mountStatic serves the demo dashboard when the static directory
// exists. The API stays usable without it.
func mountStatic(r chi.Router, staticDir string) {
	if staticDir == "" {
		return
	}
	if info, err := os.Stat(staticDir); err != nil || !info.IsDir() {
		return
	}

	fs := http.FileServer(http.Dir(staticDir))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
	})
	r.Get("/manifest.json", fs.ServeHTTP)
	r.Handle("/static/*", http.StripPrefix("/static/", fs))
}
