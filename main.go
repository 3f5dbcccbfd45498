package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/serisow/studypack/config"
	"github.com/serisow/studypack/extractor"
	"github.com/serisow/studypack/handlers"
	"github.com/serisow/studypack/logging"
	"github.com/serisow/studypack/pipeline"
	"github.com/serisow/studypack/pipeline/llm_service"
	"github.com/serisow/studypack/server"

	"github.com/urfave/negroni"
)

func main() {
	cfg := config.Load()

	handler, err := logging.NewDailyFileHandler("logs", &slog.HandlerOptions{Level: slog.LevelInfo})
	if err != nil {
		log.Fatal("Failed to initialize logging:", err)
	}
	logger := slog.New(handler)

	registry := pipeline.NewPluginRegistry()
	registry.RegisterLLMService("gemini", llm_service.NewGeminiService(logger))
	registry.RegisterLLMService("openai", llm_service.NewOpenAIService(logger))

	ext := extractor.New(logger, extractor.Options{
		PDFMode:   cfg.PDFMode,
		RasterDPI: cfg.RasterDPI,
	})

	runner := pipeline.NewRunner(cfg, registry, ext, logger)

	store := pipeline.NewSessionStore(logger)
	store.StartCleanup(cfg.SessionTTL, cfg.CleanupInterval)
	defer store.StopCleanup()

	studyPackHandler := handlers.NewStudyPackHandler(cfg, runner, store, logger)

	r := server.SetupRoutes(studyPackHandler)
	n := setupNegroni(r)

	if cfg.Environment == "production" {
		server.ServeProduction(n, cfg)
	} else {
		srv := &http.Server{
			Addr:         ":" + cfg.HTTPPort,
			Handler:      n,
			IdleTimeout:  time.Minute,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: cfg.NotesTimeout + time.Minute,
		}
		server.ServeDevelopment(srv)
	}
}

func setupNegroni(r *mux.Router) *negroni.Negroni {
	n := negroni.New()

	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())

	n.UseHandler(r)
	return n
}
