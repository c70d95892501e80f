package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devilmonastery/pocketid-dashboard/internal/auth/oidc"
	"github.com/devilmonastery/pocketid-dashboard/internal/config"
	"github.com/devilmonastery/pocketid-dashboard/internal/domain/repositories"
	"github.com/devilmonastery/pocketid-dashboard/internal/infrastructure/database/memory"
	"github.com/devilmonastery/pocketid-dashboard/internal/infrastructure/database/migrations"
	"github.com/devilmonastery/pocketid-dashboard/internal/infrastructure/database/postgres"
	"github.com/devilmonastery/pocketid-dashboard/internal/notify"
	"github.com/devilmonastery/pocketid-dashboard/internal/pkg/idgen"
	"github.com/devilmonastery/pocketid-dashboard/internal/pkg/logger"
	"github.com/devilmonastery/pocketid-dashboard/internal/pocketid"
	"github.com/devilmonastery/pocketid-dashboard/server/internal/handlers"
	"github.com/devilmonastery/pocketid-dashboard/server/internal/middleware"
	"github.com/devilmonastery/pocketid-dashboard/server/internal/session"
)

// oidcRetryInterval is how often a failed startup discovery is retried
const oidcRetryInterval = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := setupLogging(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to setup logging: %v\n", err)
		os.Exit(1)
	}

	log := slog.Default().With("component", "server")
	log.Info("starting pocket-id dashboard")

	if err := idgen.Initialize(1); err != nil {
		log.Error("failed to initialize id generator", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()

	// Storage: postgres when configured, in-memory otherwise
	var sessionRepo repositories.SessionRepository
	var requestRepo repositories.AccessRequestRepository

	if cfg.Database.URL != "" {
		conn, err := postgres.NewConnection(cfg.Database.URL)
		if err != nil {
			log.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer conn.Close()

		if err := conn.RunMigrations(migrations.FS); err != nil {
			log.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}

		sessionRepo = postgres.NewSessionRepository(conn.DB)
		requestRepo = postgres.NewAccessRequestRepository(conn.DB)
		log.Info("using postgres storage")
	} else {
		sessionRepo = memory.NewSessionRepository()
		requestRepo = memory.NewAccessRequestRepository()
		log.Warn("no database configured, sessions will not survive restarts")
	}

	cipher, err := session.NewCipher(cfg.Session.Secret)
	if err != nil {
		log.Error("failed to initialize session cipher", slog.Any("error", err))
		os.Exit(1)
	}

	sessionMgr := session.NewManager(cfg.Session, sessionRepo, cipher, slog.Default())
	go sessionMgr.RunCleanup(ctx, cfg.Session.CleanupInterval.Std())

	// A provider outage at startup is survivable: serve everything except
	// login and keep retrying discovery in the background
	oidcClient := oidc.NewClient(cfg.OIDC, slog.Default())
	if err := oidcClient.Initialize(ctx); err != nil {
		log.Warn("oidc discovery failed, login disabled until the provider is reachable",
			slog.Any("error", err))
		go oidcClient.RetryInitialize(ctx, oidcRetryInterval)
	}

	pocketID := pocketid.NewClient(cfg.PocketID, slog.Default())
	notifier := notify.NewNotifier(cfg.SMTP, slog.Default())
	if !notifier.Enabled() {
		log.Info("smtp not configured, access request notifications disabled")
	}

	h := handlers.New(cfg, slog.Default(), sessionMgr, oidcClient, pocketID, requestRepo, notifier)
	router := createRouter(cfg, h, sessionMgr, oidcClient)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("listening", slog.String("address", addr))

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// setupLogging configures the global structured logger
func setupLogging(logLevel, logFormat string) error {
	globalLogger, err := logger.SetupLogger(logger.Config{
		Level:       logger.ParseLevel(logLevel),
		LogToStderr: true,
		Format:      logFormat,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(globalLogger)
	return nil
}

// createRouter wires routes and the middleware chain
func createRouter(cfg *config.Config, h *handlers.Handler, sessionMgr *session.Manager, oidcClient *oidc.Client) http.Handler {
	router := mux.NewRouter()

	sessionMw := middleware.NewSessionMiddleware(sessionMgr)
	validateMw := middleware.NewValidateSession(sessionMgr, slog.Default())
	authMw := middleware.NewAuthMiddleware(sessionMgr, oidcClient, slog.Default())

	router.Use(middleware.CORS(cfg.Server.CORSOrigin))
	router.Use(middleware.LogRequest(slog.Default()))
	router.Use(sessionMw.Attach)
	router.Use(validateMw.Check)

	// Operational endpoints
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Auth flow
	router.HandleFunc("/auth/login", h.Login).Methods("GET")
	router.HandleFunc("/auth/login-url", h.LoginURL).Methods("GET")
	router.HandleFunc("/auth/callback", h.Callback).Methods("GET")
	router.HandleFunc("/auth/logout", h.Logout).Methods("GET", "POST")
	router.HandleFunc("/auth/status", h.Status).Methods("GET")
	router.Handle("/auth/user", authMw.RequireAuth(http.HandlerFunc(h.User))).Methods("GET")

	// Public frontend configuration
	router.HandleFunc("/api/config", h.AppConfig).Methods("GET")

	// App catalog and access requests
	router.Handle("/api/apps", authMw.RequireAuth(http.HandlerFunc(h.Apps))).Methods("GET")
	router.Handle("/api/apps/requests", authMw.RequireAuth(http.HandlerFunc(h.MyRequests))).Methods("GET")
	router.Handle("/api/apps/request-access", authMw.RequireAuth(http.HandlerFunc(h.RequestAccess))).Methods("POST")
	router.Handle("/api/apps/clear-cache", authMw.RequireAuth(http.HandlerFunc(h.ClearCache))).Methods("POST")
	router.Handle("/api/apps/{id}/logo", authMw.RequireAuth(http.HandlerFunc(h.AppLogo))).Methods("GET")

	// Admin
	router.Handle("/api/admin/access-requests", authMw.RequireAdmin(http.HandlerFunc(h.AdminListRequests))).Methods("GET")
	router.Handle("/api/admin/access-requests/{id}", authMw.RequireAdmin(http.HandlerFunc(h.AdminUpdateRequest))).Methods("PUT")
	router.Handle("/api/admin/access-requests/{id}", authMw.RequireAdmin(http.HandlerFunc(h.AdminDeleteRequest))).Methods("DELETE")
	router.Handle("/api/admin/groups", authMw.RequireAdmin(http.HandlerFunc(h.AdminListGroups))).Methods("GET")

	// Everything else is the SPA
	router.PathPrefix("/").Handler(handlers.NewSPAHandler(cfg.Server.StaticDir))

	return router
}
