package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/embeddings"
	"github.com/mikeboe/deep-research/pkg/index"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/server"
	"github.com/mikeboe/deep-research/pkg/splitter"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database Connection
	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal("Failed to connect to database", err)
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		fatal("Failed to initialize schema", err)
	}

	models, err := clients.NewModels(ctx, cfg.GoogleApiKey, cfg.FastModel, cfg.ReasoningModel)
	if err != nil {
		fatal("Failed to init models", err)
	}
	llm := research.NewLLMCollaborators(models.Fast, models.Reasoning)

	search, err := clients.NewSearchProvider(cfg)
	if err != nil {
		fatal("Failed to init search provider", err)
	}

	engine := research.NewEngine(clients.EngineOptions(cfg), llm, search, llm)
	assembler := research.NewReportAssembler(llm, llm)

	indexer, err := newIndexer(ctx, cfg, db)
	if err != nil {
		fatal("Failed to init source indexer", err)
	}

	svc := server.NewService(db, engine, assembler, indexer)
	svc.DefaultBreadth = cfg.Breadth
	svc.DefaultDepth = cfg.Depth
	handler := server.NewHandler(svc)

	// Web Server Setup
	r := gin.Default()

	// CORS Setup
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"}, // Allow all for dev
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Mcp-Session-Id", "Mcp-Protocol-Version"},
		ExposeHeaders: []string{"Content-Length", "Mcp-Session-Id"},
	}))

	handler.RegisterRoutes(r)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		slog.Info("Server starting", "port", cfg.Port, "search_provider", cfg.SearchProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("Failed to start server", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	svc.Shutdown()
}

func newIndexer(ctx context.Context, cfg *config.Config, db *database.PostgresDB) (*index.SourceIndexer, error) {
	if err := db.InitVectorSchema(ctx, cfg.CollectionName, cfg.EmbeddingDimension); err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewGoogleEmbedder(ctx, cfg.EmbeddingModel, cfg.GoogleApiKey, cfg.EmbeddingDimension)
	if err != nil {
		return nil, err
	}
	ts, err := splitter.NewRecursiveCharacterTextSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	store, err := vectorstore.NewPGVectorStore(db.Pool, cfg.CollectionName)
	if err != nil {
		return nil, err
	}
	return index.NewSourceIndexer(ts, embedder, store), nil
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
