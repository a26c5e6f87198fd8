// Package postgres は設問バッチの永続化先（Persistence Sink）の
// PostgreSQL 実装を提供します。
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yourusername/exam-forge/internal/extraction"
)

// Sink は完了した設問バッチを questions テーブルに保存します。
type Sink struct {
	pool *pgxpool.Pool
}

// NewSink は接続プールを作成して Sink を返します。
func NewSink(ctx context.Context, databaseURL string) (*Sink, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// 接続テスト
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Sink{pool: pool}, nil
}

// Close は接続プールを閉じます。
func (s *Sink) Close() {
	s.pool.Close()
}

const insertQuestionSQL = `
INSERT INTO questions (
	test_id, question_number, question_text, options, correct_answers,
	section, explanation, passage, positive_marks, negative_marks
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const touchTestSQL = `UPDATE tests SET updated_at = now() WHERE id = $1`

// Commit はジョブの全設問を1トランザクションで保存し、対象テストの
// 更新時刻を進めます。途中で失敗した場合は何も書き込まれません。
func (s *Sink) Commit(ctx context.Context, targetID string, records []extraction.QuestionRecord) error {
	if targetID == "" {
		return fmt.Errorf("targetID is required")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(insertQuestionSQL,
			targetID,
			record.Number,
			record.PromptText,
			record.Options,
			[]string{record.CorrectAnswer},
			string(record.SectionTag),
			record.Explanation,
			record.Passage,
			1.0,
			-0.25,
		)
	}
	batch.Queue(touchTestSQL, targetID)

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert question batch: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch results: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
