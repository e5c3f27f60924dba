// Package main is the application entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus-rag-go/internal/config"
	"campus-rag-go/internal/crawler"
	"campus-rag-go/internal/extract"
	"campus-rag-go/internal/handler"
	"campus-rag-go/internal/middleware"
	"campus-rag-go/internal/model"
	"campus-rag-go/internal/pipeline"
	"campus-rag-go/internal/repository"
	"campus-rag-go/internal/retrieval"
	"campus-rag-go/internal/service"
	"campus-rag-go/pkg/database"
	"campus-rag-go/pkg/embedding"
	"campus-rag-go/pkg/kafka"
	"campus-rag-go/pkg/llm"
	"campus-rag-go/pkg/log"
	"campus-rag-go/pkg/storage"
	"campus-rag-go/pkg/token"
	"campus-rag-go/pkg/vecindex"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. Configuration and logging.
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("logger initialized successfully")

	// 2. Datastores and the task queue.
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	kafka.InitProducer(cfg.Kafka)

	if err := database.DB.AutoMigrate(
		&model.Document{},
		&model.DocumentChunk{},
		&model.ScrapeSource{},
	); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	// The index dimension must match the embedding model; Open fails hard on
	// a mismatch with an existing file rather than serving wrong distances.
	index, err := vecindex.Open(cfg.Vector.IndexPath, cfg.Vector.Dimension)
	if err != nil {
		log.Fatalf("failed to open vector index: %v", err)
	}
	log.Infof("vector index loaded: %d vectors, dimension %d", index.Len(), index.Dimension())

	// 3. Repositories.
	docRepo := repository.NewDocumentRepository(database.DB)
	chunkRepo := repository.NewChunkRepository(database.DB)
	sourceRepo := repository.NewScrapeSourceRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.RDB)

	// 4. Clients and the ingestion pipeline.
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	fileStore := storage.NewFileStore(cfg.MinIO)
	extractor := extract.New(cfg.Extract)

	processor := pipeline.NewProcessor(fileStore, extractor, embeddingClient, index, chunkRepo)
	engine := retrieval.NewEngine(embeddingClient, index, chunkRepo)
	siteCrawler := crawler.NewCrawler(database.DB, cfg.Crawler, fileStore, processor)

	// 5. Services.
	documentService := service.NewDocumentService(docRepo, chunkRepo, fileStore, index, kafka.ProduceIngestTask)
	chatService := service.NewChatService(engine, chunkRepo, conversationRepo, llmClient)
	adminService := service.NewAdminService(docRepo, chunkRepo, sourceRepo, index, embeddingClient, siteCrawler)

	// 6. Background workers: ingest consumer and the crawl scheduler.
	go kafka.StartConsumer(cfg.Kafka, processor)

	crawlCtx, cancelCrawl := context.WithCancel(context.Background())
	scheduler := crawler.NewScheduler(siteCrawler, cfg.Crawler.IntervalHours)
	scheduler.Start(crawlCtx)

	// 7. HTTP routes.
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	documentHandler := handler.NewDocumentHandler(documentService)
	chatHandler := handler.NewChatHandler(chatService)
	adminHandler := handler.NewAdminHandler(adminService)

	apiV1 := r.Group("/api/v1")
	{
		documents := apiV1.Group("/documents")
		documents.Use(middleware.AuthMiddleware(jwtManager))
		{
			documents.POST("/upload", documentHandler.Upload)
			documents.GET("", documentHandler.List)
			documents.DELETE("/:id", documentHandler.Delete)
		}

		chat := apiV1.Group("/chat")
		chat.Use(middleware.AuthMiddleware(jwtManager))
		{
			chat.POST("/ask", chatHandler.Ask)
			chat.GET("/history", chatHandler.History)
			chat.GET("/stream", chatHandler.Stream)
		}

		admin := apiV1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtManager), middleware.AdminOnly())
		{
			admin.GET("/stats", adminHandler.Stats)
			admin.POST("/scrape", adminHandler.TriggerScrape)

			sources := admin.Group("/sources")
			{
				sources.POST("", adminHandler.CreateSource)
				sources.GET("", adminHandler.ListSources)
				sources.PUT("/:id", adminHandler.UpdateSource)
				sources.DELETE("/:id", adminHandler.DeleteSource)
			}

			debug := admin.Group("/debug")
			{
				debug.GET("/chunks", adminHandler.SampleChunks)
				debug.GET("/search", adminHandler.DebugSearch)
			}
		}
	}

	// 8. Serve with graceful shutdown.
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received, stopping...")

	cancelCrawl()
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP server shutdown failed: %v", err)
	}

	log.Info("server stopped cleanly")
}
