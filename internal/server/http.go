package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/windfall/fgl_practice/internal/config"
	httphandler "github.com/windfall/fgl_practice/internal/handler/http"
	wshandler "github.com/windfall/fgl_practice/internal/handler/ws"
	"github.com/windfall/fgl_practice/internal/middleware"
)

// HTTPServer represents the HTTP server.
type HTTPServer struct {
	server *http.Server
	log    zerolog.Logger
}

// NewHTTPServer creates a new HTTP server.
func NewHTTPServer(
	cfg *config.Config,
	log zerolog.Logger,
	healthHandler *httphandler.HealthHandler,
	practiceHandler *httphandler.PracticeHandler,
	shadowingHandler *httphandler.ShadowingHandler,
	mediaHandler *httphandler.MediaHandler,
	hub *WebSocketHub,
	wsHandler *wshandler.Handler,
) *HTTPServer {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(chimiddleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)

	// Stored audio playback
	r.Get("/audios/*", mediaHandler.Serve)

	// Live slot updates
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		hub.HandleWebSocket(w, req, wsHandler)
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Flashcards
		r.Get("/levels", practiceHandler.Levels)
		r.Get("/card", practiceHandler.Card)
		r.Post("/mark_known", practiceHandler.MarkKnown)

		// Shadowing reader
		r.Get("/shadowing/books", shadowingHandler.Books)
		r.Get("/shadowing/structure", shadowingHandler.Structure)
		r.Get("/shadowing/content", shadowingHandler.Content)
		r.Get("/shadowing/content/more", shadowingHandler.More)
		r.Post("/shadowing/generate_tts", shadowingHandler.GenerateTts)

		// Session actions
		r.Get("/session", practiceHandler.Session)
		r.Route("/session/slots/{slotID}", func(r chi.Router) {
			r.Post("/record", practiceHandler.Record)
			r.Post("/stop", practiceHandler.Stop)
			r.Post("/discard", practiceHandler.Discard)
			r.Post("/save", practiceHandler.Save)
			r.Post("/rate", practiceHandler.Rate)
			r.Post("/transcribe", practiceHandler.Transcribe)
			r.Post("/tts", practiceHandler.Synthesize)
			r.Get("/audio", practiceHandler.Playback)
		})

		// Assessment history
		r.Get("/reports", practiceHandler.Reports)
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddress(),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &HTTPServer{
		server: server,
		log:    log,
	}
}

// Start starts the HTTP server.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
