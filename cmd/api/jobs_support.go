package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/exam-forge/internal/config"
	"github.com/yourusername/exam-forge/internal/extraction"
	"github.com/yourusername/exam-forge/internal/jobs"
	"github.com/yourusername/exam-forge/internal/storage/postgres"
)

// setupJobs は Redis 接続を解決して自動実行用のマネージャーを構築します。
func setupJobs(cfg *config.Config, coordinator *jobs.Coordinator) (*jobs.Manager, error) {
	opt, err := redis.ParseURL(cfg.QueueRedisURL)
	if err != nil {
		return nil, err
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}
	return jobs.NewManager(redisOpt, coordinator, log.Default())
}

// setupSink は保存先を構築します。DATABASE_URL 未設定のローカル開発では
// 結果を破棄するシンクを返します（release モードでは config が未設定を拒否します）。
func setupSink(ctx context.Context, cfg *config.Config) (jobs.Sink, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Println("DATABASE_URL is not set; generated questions will not be persisted")
		return discardSink{}, func() {}, nil
	}

	sink, err := postgres.NewSink(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return sink, sink.Close, nil
}

// discardSink は結果を保存しないシンクです。ローカル開発用。
type discardSink struct{}

func (discardSink) Commit(_ context.Context, targetID string, records []extraction.QuestionRecord) error {
	log.Printf("discarding %d generated questions for target %s", len(records), targetID)
	return nil
}
