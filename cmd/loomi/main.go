package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/ai"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/answer"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/chunker"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/config"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/embedcache"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/handler"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/job"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/middleware"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/repo"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/retrieval"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/schedule"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/service"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/tablestore"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/vectorstore"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "loomi",
		Short: "loomi story QA backend",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run loomi server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			db, err := repo.Open(filepath.Join(cfg.DataDir, "loomi.db"))
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := repo.ApplyMigrations(db); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, db)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, db *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("data_dir", cfg.DataDir),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	tables, err := tablestore.New(db)
	if err != nil {
		return fmt.Errorf("init table store: %w", err)
	}
	store, err := vectorstore.Open(cfg.DataDir, tables)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}

	embedders, generator := buildAI(cfg.AI)

	params := retrieval.Params{
		TopK:          cfg.Retrieval.TopK,
		MinSimilarity: cfg.Retrieval.MinSimilarity,
		MMRLambda:     cfg.Retrieval.MMRLambda,
	}
	engine := retrieval.NewEngine(store, embedders, params)
	orchestrator := answer.New(store, engine, generator, params)

	ck := chunker.New(cfg.Retrieval.ChunkChars, cfg.Retrieval.SentenceOverlap)
	storyService := service.NewStoryService(store, ck, embedders, orchestrator)
	paragraphService := service.NewParagraphService(generator, repo.NewTextRepo(db))

	deps := handler.RouterDeps{
		Stories: handler.NewStoryHandler(storyService, paragraphService),
	}

	webEngine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewSnapshotFlushJob(store), cfg.SnapshotCron); err != nil {
		return fmt.Errorf("schedule snapshot flush: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening",
		zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := webEngine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	if err := store.Close(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Warn("flush snapshot on shutdown failed", zap.Error(err))
	}
	return nil
}

// buildAI wires the configured provider into the embedder set and the
// generator. A missing or broken provider config is not fatal: the local
// embedder still indexes and the answer chain degrades to its fallbacks.
func buildAI(cfg config.AIConfig) (ai.EmbedderSet, ai.IGenerator) {
	embedders := ai.EmbedderSet{Local: ai.NewLocalEmbedder()}
	var generator ai.IGenerator
	timeout := time.Duration(cfg.Timeout) * time.Second

	genProvider, err := ai.NewGenerateProvider(cfg.Provider, cfg)
	if err != nil {
		logutil.GetLogger(context.Background()).Warn("generation provider unavailable", zap.Error(err))
	} else {
		generator = ai.WithGenerateTimeout(ai.NewGenerator(genProvider, cfg.Model), timeout)
	}

	embedProvider, err := ai.NewEmbedProvider(cfg.Provider, cfg)
	if err != nil {
		logutil.GetLogger(context.Background()).Warn("embed provider unavailable, using local embedder only", zap.Error(err))
		return embedders, generator
	}
	remote := ai.WithEmbedTimeout(ai.NewEmbedder(embedProvider, cfg.EmbedModel), timeout)
	embedders.Remote = embedcache.WrapLruCacheToEmbedder(
		remote,
		cfg.EmbedCacheSize,
		time.Duration(cfg.EmbedCacheTTL)*time.Second,
	)
	return embedders, generator
}
