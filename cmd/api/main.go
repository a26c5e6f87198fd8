// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/exam-forge/internal/config"
	"github.com/yourusername/exam-forge/internal/generation"
	"github.com/yourusername/exam-forge/internal/jobs"
	"github.com/yourusername/exam-forge/internal/pdfimport"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
	}
	router.Use(cors.New(corsConfig))

	// 生成クライアントの初期化
	generator, err := generation.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if err != nil {
		log.Fatalf("Failed to init generation client: %v", err)
	}
	generator.SetTimeout(time.Duration(cfg.GenerationTimeoutSeconds) * time.Second)

	// 永続化先の初期化（DATABASE_URL 未設定のローカル開発では保存をスキップ）
	sink, closeSink, err := setupSink(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to init sink: %v", err)
	}
	defer closeSink()

	// ジョブストアとコーディネーターの初期化
	store := jobs.NewStore(time.Duration(cfg.JobExpireMinutes) * time.Minute)
	coordinator, err := jobs.NewCoordinator(store, generator, sink, cfg.MaxUnitRetries, log.Default())
	if err != nil {
		log.Fatalf("Failed to init coordinator: %v", err)
	}

	// 放置されたジョブを定期的に破棄する
	store.StartJanitor(context.Background(), time.Minute, log.Default())

	// 自動実行モード（QUEUE_REDIS_URL が設定されている場合のみ有効）
	var runner jobs.Runner
	if cfg.QueueRedisURL != "" {
		manager, err := setupJobs(cfg, coordinator)
		if err != nil {
			log.Fatalf("Failed to init job manager: %v", err)
		}
		manager.StartWorkers()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = manager.Shutdown(shutdownCtx)
		}()
		runner = manager
	}

	// ルーティングの設定
	setupRoutes(router, cfg, coordinator, runner)

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "exam-forge-api",
		"version": "0.1.0",
	})
}

// setupRoutes は API グループの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, coordinator *jobs.Coordinator, runner jobs.Runner) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	opts := jobs.HandlerOptions{
		Runner:          runner,
		PollIntervalMs:  cfg.PollIntervalMs,
		MaxRawTextBytes: cfg.MaxRawTextBytes,
	}

	api := router.Group("/api")
	{
		api.POST("/tests/process", jobs.ProcessHandler(coordinator, opts))
		api.GET("/jobs/:id", jobs.StatusHandler(coordinator, opts))

		// PDFアップロード経由の取り込み（抽出サービスが設定されている場合のみ）
		if cfg.PDFExtractorURL != "" {
			extractor := pdfimport.NewService(cfg.PDFExtractorURL, pdfimport.Limits{
				MaxFileSize: cfg.MaxFileSize,
				MaxPages:    cfg.MaxPages,
				MaxTextSize: cfg.MaxRawTextBytes,
			})
			api.POST("/tests/upload", pdfimport.UploadHandler(extractor, coordinator, opts))
		}
	}
}
