package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
)

const (
	taskTypeExtraction = "extraction:process"
	queueExtraction    = "extraction"
)

// Manager は自動実行モードのジョブ投入とワーカー管理を担います。
// クライアントがポーリングしている間、ワーカーがサーバー側で AdvanceOne を
// 終端状態まで繰り返します。
type Manager struct {
	client      *asynq.Client
	server      *asynq.Server
	mux         *asynq.ServeMux
	coordinator *Coordinator
	logger      *log.Logger
}

// TaskPayload は抽出ジョブのペイロードです。
type TaskPayload struct {
	JobID string `json:"jobId"`
}

// NewManager は Manager を初期化します。
func NewManager(redisOpt asynq.RedisClientOpt, coordinator *Coordinator, logger *log.Logger) (*Manager, error) {
	if coordinator == nil {
		return nil, errors.New("coordinator is nil")
	}

	client := asynq.NewClient(redisOpt)
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				queueExtraction: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		client:      client,
		server:      server,
		mux:         mux,
		coordinator: coordinator,
		logger:      logger,
	}
	mux.HandleFunc(taskTypeExtraction, manager.handleExtractionTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && err != asynq.ErrServerClosed {
			if m.logger != nil {
				m.logger.Printf("asynq server stopped with error: %v", err)
			} else {
				log.Printf("asynq server stopped with error: %v", err)
			}
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	m.client.Close()
	return nil
}

// Schedule はジョブをキューに投入します。
func (m *Manager) Schedule(ctx context.Context, jobID string) error {
	if jobID == "" {
		return fmt.Errorf("jobID is required")
	}

	body, err := json.Marshal(&TaskPayload{JobID: jobID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(taskTypeExtraction, body, asynq.Queue(queueExtraction))
	if _, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(1)); err != nil {
		return err
	}
	return nil
}

func (m *Manager) handleExtractionTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}
	if payload.JobID == "" {
		return fmt.Errorf("missing jobId in payload")
	}
	return m.coordinator.Run(ctx, payload.JobID)
}
