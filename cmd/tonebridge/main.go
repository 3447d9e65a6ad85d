// ToneBridge server — Korean tone/politeness transformation over HTTP.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/politeai/tonebridge/pkg/api"
	"github.com/politeai/tonebridge/pkg/config"
	"github.com/politeai/tonebridge/pkg/database"
	"github.com/politeai/tonebridge/pkg/llm"
	"github.com/politeai/tonebridge/pkg/pipeline"
	"github.com/politeai/tonebridge/pkg/rag"
	"github.com/politeai/tonebridge/pkg/refresh"
	"github.com/politeai/tonebridge/pkg/version"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	// 1. Load settings (reads .env when present)
	settings, err := config.Load()
	if err != nil {
		logger.Error("Failed to load settings", "error", err)
		os.Exit(1)
	}
	logger.Info("Starting "+version.Full(), "port", settings.Port, "rag_enabled", settings.RAGEnabled)

	// 2. LLM clients: Gemini for analysis and final generation, OpenAI as the
	// router's fallback lane.
	gemini, err := llm.NewGeminiClient(ctx, settings.GeminiAPIKey,
		settings.OpenAITemperature, settings.OpenAIMaxTokens)
	if err != nil {
		logger.Error("Failed to initialize Gemini client", "error", err)
		os.Exit(1)
	}
	cacheMetrics := llm.NewCacheMetrics()
	openai := llm.NewOpenAIClient(settings.OpenAIAPIKey,
		settings.OpenAITemperature, settings.OpenAIMaxTokens, cacheMetrics)
	router := llm.NewRouter(gemini, openai)
	logger.Info("LLM clients initialized",
		"final_model", settings.GeminiFinalModel, "label_model", settings.GeminiLabelModel)

	// 3. Optional RAG store
	var dbClient *database.Client
	var ragService *rag.Service
	var retriever pipeline.Retriever
	if settings.RAGEnabled {
		dbCfg, err := database.NewConfig(settings.DatabaseURL)
		if err != nil {
			logger.Error("Failed to load database config", "error", err)
			os.Exit(1)
		}
		dbClient, err = database.NewClient(ctx, dbCfg)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				logger.Error("Error closing database client", "error", err)
			}
		}()
		logger.Info("Connected to PostgreSQL database")

		store := database.NewRagStore(dbClient.DB())
		embedder := rag.NewEmbedder(settings.OpenAIAPIKey, settings.RAGEmbeddingModel)
		index := rag.NewIndex(settings.RAGMMRDuplicateThreshold, logger)
		ragService = rag.NewService(store, embedder, index, logger)

		// Retrieval on an empty index degrades to no hits, so a failed initial
		// load is not fatal: the hourly refresher or the admin reload endpoint
		// can recover the index and retrieval resumes on the same service.
		retriever = ragService
		if count, err := ragService.Reload(ctx); err != nil {
			logger.Error("RAG index loading failed, starting with empty index", "error", err)
		} else {
			logger.Info("RAG index loaded", "entries", count)
		}

		refresher := refresh.NewService(time.Hour, ragService, logger)
		refresher.Start(ctx)
		defer refresher.Stop()
	} else {
		logger.Info("RAG disabled")
	}

	// 4. Pipeline and HTTP server
	p := pipeline.New(router, settings, retriever, logger)

	e := echo.New()
	server := api.NewServer(p, settings, dbClient, ragService, logger)
	server.Register(e)

	httpServer := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// 5. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		logger.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("Shutdown complete")
}
