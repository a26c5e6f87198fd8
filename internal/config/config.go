// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// 生成 (OpenAI) 設定
	OpenAIAPIKey             string // OpenAI APIキー
	OpenAIModel              string // 使用するモデル名
	GenerationTimeoutSeconds int    // 1パッセージあたりの生成タイムアウト（秒）
	MaxUnitRetries           int    // 同一パッセージの連続失敗を打ち切るまでの回数

	// ジョブ/キュー設定
	JobExpireMinutes int    // 放置されたジョブを破棄するまでの時間（分）
	PollIntervalMs   int    // クライアントに提示するポーリング間隔（ミリ秒）
	QueueRedisURL    string // Asynq用Redis接続URL（自動実行モードで使用、空なら無効）

	// 永続化設定
	DatabaseURL string // PostgreSQL接続URL（空ならローカル開発では保存をスキップ）

	// PDF取り込み設定
	PDFExtractorURL string // テキスト抽出サービスのURL（空ならアップロード経路は無効）
	MaxFileSize     int64  // 単一ファイルの最大サイズ（バイト）
	MaxPages        int    // 単一ファイルの最大ページ数
	MaxRawTextBytes int64  // 1ジョブが受け付ける原文テキストの最大サイズ（バイト）
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		// 生成設定
		OpenAIAPIKey:             getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:              getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GenerationTimeoutSeconds: getEnvAsInt("GENERATION_TIMEOUT_SECONDS", 60),
		MaxUnitRetries:           getEnvAsInt("MAX_UNIT_RETRIES", 3),

		// ジョブ/キュー設定
		JobExpireMinutes: getEnvAsInt("JOB_EXPIRE_MINUTES", 30),
		PollIntervalMs:   getEnvAsInt("POLL_INTERVAL_MS", 2000),
		QueueRedisURL:    getEnv("QUEUE_REDIS_URL", ""),

		// 永続化設定
		DatabaseURL: getEnv("DATABASE_URL", ""),

		// PDF取り込み設定
		PDFExtractorURL: getEnv("PDF_EXTRACTOR_URL", ""),
		MaxFileSize:     getEnvAsInt64("MAX_FILE_SIZE", 20971520), // 20MB
		MaxPages:        getEnvAsInt("MAX_PAGES", 200),
		MaxRawTextBytes: getEnvAsInt64("MAX_RAW_TEXT_BYTES", 1024*1024), // 1MB
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.GenerationTimeoutSeconds <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT_SECONDS must be positive")
	}
	if c.MaxUnitRetries <= 0 {
		return fmt.Errorf("MAX_UNIT_RETRIES must be positive")
	}

	// ローカル開発では外部サービスの設定は任意
	// 本番環境では厳格にチェックする想定
	if c.GinMode == "release" {
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required in release mode")
		}
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required in release mode")
		}
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
