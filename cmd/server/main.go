package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kcwdesign/kcw/backend-go/internal/asset"
	"github.com/kcwdesign/kcw/backend-go/internal/auth"
	"github.com/kcwdesign/kcw/backend-go/internal/autosave"
	"github.com/kcwdesign/kcw/backend-go/internal/config"
	"github.com/kcwdesign/kcw/backend-go/internal/design"
	"github.com/kcwdesign/kcw/backend-go/internal/document"
	"github.com/kcwdesign/kcw/backend-go/internal/engine"
	"github.com/kcwdesign/kcw/backend-go/internal/export"
	mw "github.com/kcwdesign/kcw/backend-go/internal/middleware"
	"github.com/kcwdesign/kcw/backend-go/internal/render"
	"github.com/kcwdesign/kcw/backend-go/internal/session"
	"github.com/kcwdesign/kcw/backend-go/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	preset, err := document.LookupPreset(cfg.DefaultPreset)
	if err != nil {
		slog.Error("default preset", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, cfg.StoreDriver, cfg.SQLitePath, cfg.DatabaseURL)
	if err != nil {
		slog.Error("open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	fonts, err := render.NewFonts()
	if err != nil {
		slog.Error("load fonts", "error", err)
		os.Exit(1)
	}
	renderer := render.NewRenderer(fonts)

	// Every session saves under its own id unless it was opened from another key.
	newEngine := func(sessionID string) *engine.Engine {
		return engine.NewEngine(engine.Options{
			HistoryLimit: cfg.HistoryLimit,
			MaxZoom:      cfg.MaxZoom,
			Preset:       preset,
			Measurer:     renderer.Measurer(),
			Store:        st,
			StoreKey:     sessionID,
			Logger:       slog.Default().With("session", sessionID),
		})
	}

	hub := session.NewHub(newEngine)
	go hub.Run()

	saver, err := autosave.New(hub, cfg.AutosaveSchedule)
	if err != nil {
		slog.Error("autosave", "error", err)
		os.Exit(1)
	}
	saver.Start()

	authService := auth.NewService(cfg.JWTSecret, auth.DefaultTokenTTL)
	authHandler := auth.NewHandler(authService)

	designService := design.NewService(hub, authService, st)
	designHandler := design.NewHandler(designService)

	assetHandler := asset.NewHandler(cfg.AssetDir, hub)
	exportHandler := export.NewHandler(hub, renderer, cfg.MaxZoom)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Uploaded originals, immutable by id
	r.PathPrefix("/assets/").Handler(assetHandler.Serve()).Methods("GET")

	// Public API
	r.HandleFunc("/api/presets", designHandler.Presets).Methods("GET")
	r.HandleFunc("/api/sessions", designHandler.Create).Methods("POST")
	r.HandleFunc("/api/designs", designHandler.ListSaved).Methods("GET")

	// Session-scoped routes need that session's token
	api := r.PathPrefix("/api/sessions/{id}").Subrouter()
	api.Use(authService.SessionMiddleware)

	api.HandleFunc("", designHandler.Get).Methods("GET")
	api.HandleFunc("", designHandler.Delete).Methods("DELETE")
	api.HandleFunc("/token", authHandler.Refresh).Methods("POST")
	api.HandleFunc("/actions", designHandler.Act).Methods("POST")
	api.HandleFunc("/pages", designHandler.Pages).Methods("GET")
	api.HandleFunc("/pages/{n}/thumb.png", exportHandler.Thumbnail).Methods("GET")
	api.HandleFunc("/objects/{objectId}/image", designHandler.ObjectImage).Methods("GET")
	api.HandleFunc("/images", assetHandler.Upload).Methods("POST")
	api.HandleFunc("/export.png", exportHandler.ExportPNG).Methods("GET")

	// A session may delete only the design it saves under
	r.Handle("/api/designs/{key}", authService.SessionMiddleware(http.HandlerFunc(designHandler.DeleteSaved))).Methods("DELETE")

	// WebSocket endpoint, token via ?token=
	ws := r.PathPrefix("/ws/sessions/{id}").Subrouter()
	ws.Use(authService.SessionMiddleware)
	ws.HandleFunc("", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, cfg.OriginPatterns())
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mw.CORS(cfg.AllowedOrigins)(r),
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

		// One last autosave before sessions go away
		saver.Stop()
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
		saver.RunOnce(saveCtx)
		saveCancel()
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "store", cfg.StoreDriver)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *session.Hub, origins []string) {
	sessionID := auth.SessionIDFromContext(r.Context())
	if _, ok := hub.Get(sessionID); !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: origins,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := session.NewClient(hub, conn, sessionID, clientID)

	hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
