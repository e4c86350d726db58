package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gisst-archive/gisst/internal/auth"
	"github.com/gisst-archive/gisst/internal/catalog"
	"github.com/gisst-archive/gisst/internal/clone"
	"github.com/gisst-archive/gisst/internal/metrics"
	"github.com/gisst-archive/gisst/internal/search"
	"github.com/gisst-archive/gisst/internal/storage"
	"github.com/gisst-archive/gisst/internal/upload"
)

// maxBodyBytes bounds every request body, per §6's ≈32 MiB global default.
const maxBodyBytes = 32 << 20

// RouterConfig holds all dependencies needed to build the HTTP router. It
// is populated in main.go after all components are initialized and passed
// to NewRouter as a single struct to keep the constructor signature
// manageable as the number of dependencies grows.
type RouterConfig struct {
	AuthService *auth.AuthService
	Logger      *zap.Logger
	DB          *gorm.DB
	Store       *storage.Store
	Indexer     *search.Indexer
	Querier     *search.Querier
	Uploads     *upload.Manager
	CloneEngine *clone.Engine

	Files       catalog.FileRepository
	Objects     catalog.ObjectRepository
	Works       catalog.WorkRepository
	Environments catalog.EnvironmentRepository
	Instances   catalog.InstanceRepository
	ObjectLinks catalog.ObjectLinkRepository
	States      catalog.StateRepository
	Replays     catalog.ReplayRepository
	Saves       catalog.SaveRepository
	Screenshots catalog.ScreenshotRepository
	Creators    catalog.CreatorRepository

	Metrics *metrics.Metrics

	BaseURL string
	// Secure controls whether auth cookies are set with the Secure flag —
	// true in production (HTTPS), false in local development.
	Secure bool
}

// limitRequestBody enforces the ≈32 MiB global body limit from §6.
func limitRequestBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

// NewRouter builds and returns the fully configured Chi router per §6's
// route table.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(limitRequestBody)

	jwtMgr := cfg.AuthService.JWTManager()
	authHandler := NewAuthHandler(cfg.AuthService, cfg.Logger, cfg.Secure)
	instanceHandler := NewInstanceHandler(cfg.Instances, cfg.Works, cfg.Environments, cfg.Querier, cfg.CloneEngine, cfg.Metrics, cfg.Logger)
	creatorHandler := NewCreatorHandler(cfg.Creators, cfg.Logger)
	objectHandler := NewObjectHandler(cfg.Objects, cfg.Files, cfg.Store, cfg.Logger)
	dataHandler := NewDataHandler(cfg.Instances, cfg.Works, cfg.Environments, cfg.ObjectLinks, cfg.States, cfg.Replays, cfg.Saves, cfg.BaseURL, cfg.Logger)
	resourceHandler := NewResourceHandler(cfg.Uploads, cfg.Store, cfg.Files, cfg.Logger)
	recordsHandler := NewRecordsHandler(cfg.DB, cfg.Store, cfg.Files, cfg.States, cfg.Replays, cfg.Saves, cfg.Screenshots, cfg.Works, cfg.Instances, cfg.Indexer, cfg.Metrics, cfg.Logger)

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		Ok(w, map[string]string{"service": "gisst"})
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	// --- OAuth handoff — public, the user is not yet authenticated. ---
	r.Get("/login", authHandler.Login)
	r.Get("/auth/{provider}/callback", authHandler.Callback)
	r.Get("/logout", authHandler.Logout)

	// --- Player manifest — public per §6, the one data route not gated by
	// Authenticate, since it is the payload the embeddable player fetches
	// cross-origin. ---
	r.Get("/data/{instance_id}", dataHandler.Manifest)

	// --- Authenticated read/browse and mutation routes. ---
	r.Group(func(r chi.Router) {
		r.Use(Authenticate(jwtMgr))

		r.Get("/instances", instanceHandler.List)
		r.Get("/instances/{id}", instanceHandler.GetByID)
		r.Get("/instances/{id}/clone", instanceHandler.Clone)

		r.Get("/creators/{id}", creatorHandler.GetByID)

		r.Get("/objects/{id}", objectHandler.GetByID)
		r.Get("/objects/{id}/*", objectHandler.GetSubpath)

		r.Get("/play/{instance_id}", dataHandler.Play)

		r.Post("/resources", resourceHandler.Create)
		r.Head("/resources/{id}", resourceHandler.Head)
		r.Patch("/resources/{id}", resourceHandler.Patch)

		r.Post("/states/create", recordsHandler.CreateState)
		r.Get("/states/{id}", recordsHandler.GetState)
		r.Post("/replays/create", recordsHandler.CreateReplay)
		r.Get("/replays/{id}", recordsHandler.GetReplay)
		r.Post("/saves/create", recordsHandler.CreateSave)
		r.Get("/saves/{id}", recordsHandler.GetSave)
		r.Post("/screenshots/create", recordsHandler.CreateScreenshot)
		r.Get("/screenshots/{id}", recordsHandler.GetScreenshot)
		r.Get("/works/{id}", recordsHandler.GetWork)
	})

	return r
}
