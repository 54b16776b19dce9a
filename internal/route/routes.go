package route

import (
	"net/http"
	"os"
	"path/filepath"

	"pillscout/internal/config"
	"pillscout/internal/handler"
	"pillscout/internal/knowledge"
	"pillscout/internal/logger"
	"pillscout/internal/middleware"
	"pillscout/internal/repository"
	"pillscout/internal/service/websocket"

	"github.com/gorilla/mux"
)

// Dependencies groups what the router hands to the handlers. ScanRepo and
// DetectionRepo are nil when history is disabled.
type Dependencies struct {
	Config        *config.Config
	Logger        *logger.Logger
	Analyzer      handler.Analyzer
	Knowledge     *knowledge.Base
	ModelID       string
	Hub           *websocket.HubService
	ScanRepo      repository.ScanRepository
	DetectionRepo repository.DetectionRepository
}

// dynamicHTMLHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers static file serving, API endpoints and wraps the
// router with the CORS and authentication middleware.
func SetupRoutes(deps Dependencies) http.Handler {
	cfg := deps.Config
	r := mux.NewRouter()

	// Static files
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDirectory))))

	// Analysis
	r.HandleFunc("/api/analyze", handler.AnalyzeHandler(deps.Analyzer, cfg, deps.Logger)).Methods(http.MethodPost)
	r.HandleFunc("/api/camera", handler.CameraWebsocketHandler(deps.Analyzer, cfg, deps.Logger)).Methods(http.MethodGet)
	r.HandleFunc("/api/medications", handler.MedicationsHandler(deps.Knowledge)).Methods(http.MethodGet)
	r.HandleFunc("/health", handler.HealthHandler(deps.ModelID, deps.ScanRepo != nil)).Methods(http.MethodGet)

	if deps.Hub != nil {
		r.HandleFunc("/api/feed", handler.FeedWebsocketHandler(deps.Hub, deps.Logger)).Methods(http.MethodGet)
	}

	// History
	if deps.ScanRepo != nil && deps.DetectionRepo != nil {
		r.HandleFunc("/api/scans", handler.GetScansHandler(cfg, deps.Logger, deps.ScanRepo, deps.DetectionRepo)).Methods(http.MethodGet)
		r.HandleFunc("/api/scans/view", handler.ViewScanHandler(deps.Logger, deps.ScanRepo)).Methods(http.MethodGet)
		r.HandleFunc("/api/scans/delete", handler.DeleteScanHandler(deps.Logger, deps.ScanRepo)).Methods(http.MethodPost, http.MethodDelete)
		r.HandleFunc("/api/scans/clear", handler.ClearScansHandler(cfg, deps.Logger, deps.ScanRepo)).Methods(http.MethodPost)
		r.HandleFunc("/api/scans/stats", handler.ScanStatsHandler(deps.Logger, deps.ScanRepo)).Methods(http.MethodGet)
	}

	// Log endpoints
	r.HandleFunc("/logs/{level:info|warning|error}", handler.ShowLogsHandler(cfg)).Methods(http.MethodGet)
	r.HandleFunc("/logs/{level:info|warning|error}/clear", handler.ClearLogsHandler(deps.Logger)).Methods(http.MethodPost, http.MethodGet)

	// Auth endpoints
	r.HandleFunc("/auth/login", handler.LoginHandler(cfg, deps.Logger)).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", handler.LogoutHandler)

	// Automatic HTML handler mapping for example: /login -> /static/login.html
	r.PathPrefix("/").Handler(dynamicHTMLHandler(cfg.StaticDirectory)).Methods(http.MethodGet)

	return middleware.CORSMiddleware(middleware.AuthMiddleware(cfg.Password)(r))
}
