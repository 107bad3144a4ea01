// Package server wires the store, services, handlers and middleware into an
// HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"learningTrackerAPI/handlers"
	"learningTrackerAPI/internal/config"
	"learningTrackerAPI/internal/logger"
	"learningTrackerAPI/internal/store"
	"learningTrackerAPI/internal/types/session"
	"learningTrackerAPI/internal/workers"
	"learningTrackerAPI/middleware"
	"learningTrackerAPI/services"
)

type Server struct {
	cfg     *config.Config
	log     logger.Logger
	store   store.Store
	limiter *middleware.RateLimiter
	login   *middleware.RateLimiter
	handler http.Handler

	Entries *services.EntryService
	Auth    *services.AuthService
}

// New builds the full handler chain. csrfKey must be 32 bytes.
func New(cfg *config.Config, st store.Store, csrfKey []byte, log logger.Logger) *Server {
	middleware.InitPrometheus()

	// Validated by config.Load.
	proxies, _ := cfg.TrustedProxyNets()

	// Login gets a fifth of the general budget per IP.
	loginLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS/5, max(cfg.RateLimitBurst/5, 1)).TrustProxies(proxies)

	s := &Server{
		cfg:     cfg,
		log:     log,
		store:   st,
		limiter: middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).TrustProxies(proxies),
		login:   loginLimiter,
		Entries: services.NewEntryService(st, log),
		Auth:    services.NewAuthService(st, st, cfg.SessionTTL, log),
	}
	s.handler = s.routes(csrfKey)
	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes(csrfKey []byte) http.Handler {
	entryHandler := handlers.NewEntryHandler(s.Entries, s.log)
	authHandler := handlers.NewAuthHandler(s.Auth, s.cfg.SecureCookies, s.log)
	pageHandler := handlers.NewCalendarPageHandler(s.Entries, s.log)
	healthHandler := handlers.NewHealthHandler(s.store)

	r := mux.NewRouter()

	standardRouter := r.PathPrefix("/").Subrouter()
	standardRouter.Use(s.limiter.Middleware)
	standardRouter.Use(middleware.MonitorMiddleware)
	standardRouter.Use(middleware.RequestLogger(s.log.Named("http")))

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(s.cfg.MetricsUser, s.cfg.MetricsPass)(promhttp.Handler()))
	standardRouter.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(s.cfg.PprofSecret)(pprofMux()))
	standardRouter.HandleFunc("/health", healthHandler.Health).Methods("GET")

	// -------------------------------------------------------------------------
	// APP ROUTES (CSRF + SESSION)
	// -------------------------------------------------------------------------
	app := standardRouter.PathPrefix("/").Subrouter()
	app.Use(middleware.CSRF(middleware.CSRFOptions{
		Key:            csrfKey,
		Secure:         s.cfg.SecureCookies,
		AllowedOrigins: s.cfg.AllowedOrigins,
		Log:            s.log.Named("csrf"),
	}))
	app.Use(middleware.SessionMiddleware(s.Auth, s.log.Named("session")))

	app.HandleFunc("/", pageHandler.ServeCalendar).Methods("GET")
	app.HandleFunc("/get-entry/", entryHandler.LegacyGetEntry).Methods("GET")

	api := app.PathPrefix("/api").Subrouter()
	api.HandleFunc("/", entryHandler.Welcome).Methods("GET")
	api.HandleFunc("/get-csrf-token/", authHandler.CSRFToken).Methods("GET")
	api.HandleFunc("/csrf/", authHandler.CSRFToken).Methods("GET")
	api.Handle("/login/", s.login.Middleware(http.HandlerFunc(authHandler.Login))).Methods("POST")
	api.HandleFunc("/logout/", authHandler.Logout).Methods("POST")

	api.HandleFunc("/entry/", entryHandler.GetEntry).Methods("GET")
	api.Handle("/entry/", middleware.RequireAuth(http.HandlerFunc(entryHandler.UpsertEntry))).Methods("POST")
	api.HandleFunc("/learned-entries/", entryHandler.ListEntries).Methods("GET")
	api.HandleFunc("/learned-entries/{id}/", entryHandler.GetEntryByID).Methods("GET")
	api.HandleFunc("/topics/", entryHandler.Topics).Methods("GET")
	api.HandleFunc("/stats/", entryHandler.Stats).Methods("GET")
	api.HandleFunc("/calendar/", entryHandler.Calendar).Methods("GET")

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins(s.cfg.AllowedOrigins),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", session.CSRFHeaderName, "X-Pprof-Secret"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorillaHandlers.AllowCredentials(),
	)

	recovery := gorillaHandlers.RecoveryHandler(
		gorillaHandlers.RecoveryLogger(recoveryLogger{s.log}),
		gorillaHandlers.PrintRecoveryStack(false),
	)

	return recovery(corsHandler(r))
}

func pprofMux() http.Handler {
	m := http.NewServeMux()
	m.HandleFunc("/debug/pprof/", pprof.Index)
	m.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	m.HandleFunc("/debug/pprof/profile", pprof.Profile)
	m.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	m.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return m
}

type recoveryLogger struct {
	log logger.Logger
}

func (l recoveryLogger) Println(args ...interface{}) {
	l.log.Error(args...)
}

// BootstrapSuperuser creates the configured superuser if one is set.
func (s *Server) BootstrapSuperuser(ctx context.Context) error {
	if s.cfg.SuperuserUsername == "" || s.cfg.SuperuserPassword == "" {
		return nil
	}

	_, created, err := s.Auth.CreateSuperuser(ctx, s.cfg.SuperuserUsername, s.cfg.SuperuserEmail, s.cfg.SuperuserPassword)
	if err != nil {
		return fmt.Errorf("failed to bootstrap superuser: %w", err)
	}
	if created {
		s.log.Infow("Superuser created", "username", s.cfg.SuperuserUsername)
	} else {
		s.log.Infow("Superuser already exists", "username", s.cfg.SuperuserUsername)
	}
	return nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	go s.limiter.Cleanup(bgCtx, time.Minute, 3*time.Minute)
	go s.login.Cleanup(bgCtx, time.Minute, 3*time.Minute)
	workerDone := workers.StartCleanupWorker(bgCtx, s.Auth, s.cfg.SessionCleanupInterval, s.log.Named("workers"))

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Starting server on port %s", s.cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.log.Errorw("Server shutdown error", "err", err)
	}

	stopBackground()
	<-workerDone
	s.log.Info("Server shutdown complete")
	return nil
}
