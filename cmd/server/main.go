package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/certdesk/certdesk/backend-go/internal/asset"
	"github.com/certdesk/certdesk/backend-go/internal/auth"
	"github.com/certdesk/certdesk/backend-go/internal/command"
	"github.com/certdesk/certdesk/backend-go/internal/config"
	"github.com/certdesk/certdesk/backend-go/internal/document"
	"github.com/certdesk/certdesk/backend-go/internal/engine"
	"github.com/certdesk/certdesk/backend-go/internal/export"
	mw "github.com/certdesk/certdesk/backend-go/internal/middleware"
	"github.com/certdesk/certdesk/backend-go/internal/session"
	"github.com/certdesk/certdesk/backend-go/internal/template"
	"github.com/certdesk/certdesk/backend-go/internal/typeid"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := template.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("open template store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	preset, err := document.LookupPreset(cfg.DefaultPreset)
	if err != nil {
		slog.Error("default preset", "error", err)
		os.Exit(1)
	}

	authService := auth.NewService(cfg.JWTSecret)

	templateService := template.NewService(store)
	templateHandler := template.NewHandler(templateService)

	limits := asset.Limits{
		ElementMaxBytes:    cfg.ElementMaxBytes,
		BackgroundMaxBytes: cfg.BackgroundMaxBytes,
		FallbackAfter:      cfg.DecodeFallbackAfter,
		Timeout:            cfg.DecodeTimeout,
	}
	library := asset.NewLibrary(cfg.AssetDir)
	ingestor := asset.NewIngestor(limits, library)
	assetHandler := asset.NewHandler(cfg.AssetDir, ingestor, library, limits)
	exportHandler := export.NewHandler(library)

	// One editor per session, optionally bound to a stored template
	newDispatcher := func(r *http.Request, sessionID, userID string) (*command.Dispatcher, error) {
		log := slog.With("session", sessionID)
		opts := engine.Options{
			Preset:        preset,
			SnapThreshold: cfg.SnapThreshold,
			HistoryDepth:  cfg.HistoryDepth,
			NewID:         typeid.NewElementID,
			Logger:        log,
		}

		if templateID := r.URL.Query().Get("template"); templateID != "" {
			if userID == "" {
				return nil, fmt.Errorf("%w: template sessions need a token", session.ErrDenied)
			}
			tpl, err := templateService.Get(r.Context(), templateID, userID)
			if errors.Is(err, template.ErrNotFound) || errors.Is(err, template.ErrForbidden) {
				return nil, fmt.Errorf("%w: %v", session.ErrDenied, err)
			}
			if err != nil {
				return nil, err
			}
			opts.Initial = tpl.Document
			opts.OnSave = func(canonical []byte) error {
				saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_, err := templateService.Save(saveCtx, templateID, userID, "", canonical)
				return err
			}
		}

		return command.NewDispatcher(engine.New(opts), ingestor, library, log), nil
	}

	hub := session.NewHub(cfg.SessionIdleTimeout)
	if err := hub.Start(cfg.ReapSchedule); err != nil {
		slog.Error("start session hub", "error", err)
		os.Exit(1)
	}
	sessionHandler := session.NewHandler(hub, authService, newDispatcher, cfg.OriginHosts())

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Asset and export endpoints are public; the editor works without an account
	r.HandleFunc("/assets/upload", assetHandler.Upload).Methods("POST", "OPTIONS")
	r.PathPrefix(asset.URLPrefix).Handler(assetHandler.Serve()).Methods("GET")
	r.HandleFunc("/export/{format}", exportHandler.Export).Methods("POST", "OPTIONS")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/templates", templateHandler.List).Methods("GET")
	api.HandleFunc("/templates", templateHandler.Create).Methods("POST")
	api.HandleFunc("/templates/{templateId}", templateHandler.Get).Methods("GET")
	api.HandleFunc("/templates/{templateId}", templateHandler.Save).Methods("PUT")
	api.HandleFunc("/templates/{templateId}", templateHandler.Delete).Methods("DELETE")

	// WebSocket endpoint
	r.HandleFunc("/ws/editor/{sessionId}", sessionHandler.ServeWS)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Stop hub first so every editor is disposed
		slog.Info("closing sessions...", "open", hub.Len())
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "preset", preset.Name)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
