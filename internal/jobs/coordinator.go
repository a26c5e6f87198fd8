package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/exam-forge/internal/extraction"
)

// Sink は完了した設問バッチを永続化する外部コラボレーターです。
type Sink interface {
	Commit(ctx context.Context, targetID string, records []extraction.QuestionRecord) error
}

// Coordinator は抽出ジョブの状態機械です。Segmenter と Generator の呼び出しを
// 順序付け、Store を更新し、終端条件を判定します。
type Coordinator struct {
	store          *Store
	generator      extraction.Generator
	sink           Sink
	maxUnitRetries int
	retryDelay     time.Duration
	logger         *log.Logger
}

// NewCoordinator は Coordinator を作成します。
func NewCoordinator(store *Store, generator extraction.Generator, sink Sink, maxUnitRetries int, logger *log.Logger) (*Coordinator, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if generator == nil {
		return nil, errors.New("generator is nil")
	}
	if sink == nil {
		return nil, errors.New("sink is nil")
	}
	if maxUnitRetries <= 0 {
		maxUnitRetries = 3
	}
	return &Coordinator{
		store:          store,
		generator:      generator,
		sink:           sink,
		maxUnitRetries: maxUnitRetries,
		retryDelay:     2 * time.Second,
		logger:         logger,
	}, nil
}

// StartResult は start 操作の応答です。
type StartResult struct {
	JobID     string `json:"jobId"`
	Status    Status `json:"status"`
	UnitCount int    `json:"unitCount"`
}

// AdvanceResult は advance 操作の応答です。
type AdvanceResult struct {
	JobID              string                      `json:"jobId"`
	Status             Status                      `json:"status"`
	Cursor             int                         `json:"cursor"`
	UnitCount          int                         `json:"unitCount"`
	NewRecords         []extraction.QuestionRecord `json:"newRecords"`
	TotalQuestionCount int                         `json:"totalQuestionCount"`
}

// Start は生テキストを分割してジョブを登録します。分割は起動時に一度だけ
// 実行され、ユニット列は以後固定です。
func (c *Coordinator) Start(ctx context.Context, rawText, targetID, title string) (*StartResult, error) {
	units, err := extraction.Segment(rawText)
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:       uuid.NewString(),
		TargetID: targetID,
		Title:    title,
		Status:   StatusPending,
		Units:    units,
		Results:  make([]extraction.QuestionRecord, 0),
	}
	// ユニットが1件以上あるので即座に running へ遷移する。
	job.Status = StatusRunning

	if err := c.store.Insert(job); err != nil {
		return nil, err
	}
	if c.logger != nil {
		c.logger.Printf("job started id=%s units=%d target=%s", job.ID, len(units), targetID)
	}

	return &StartResult{
		JobID:     job.ID,
		Status:    job.Status,
		UnitCount: len(units),
	}, nil
}

// AdvanceOne は次の1ユニットを処理します。最後のユニットの消化に成功した
// 場合は同じ呼び出しの中で Sink へのコミットと完了遷移まで行います。
func (c *Coordinator) AdvanceOne(ctx context.Context, jobID string) (*AdvanceResult, error) {
	claim, err := c.store.BeginAdvance(jobID)
	if err != nil {
		return nil, err
	}

	records, genErr := c.generator.Generate(ctx, claim.Unit)
	if genErr == nil {
		genErr = extraction.ValidateRecords(records)
	}
	if genErr != nil {
		return nil, c.failAdvance(claim, genErr)
	}

	applied, ok := c.store.CompleteAdvance(jobID, records)
	if !ok {
		// 生成中にキャンセル・削除されたジョブ。結果は破棄する。
		return nil, extraction.NewNotFound(jobID)
	}
	if c.logger != nil {
		c.logger.Printf("job advanced id=%s cursor=%d/%d records=%d",
			jobID, applied.Snapshot.Cursor, applied.Snapshot.UnitCount, len(applied.Batch))
	}

	if applied.Finished {
		return c.finish(ctx, jobID, applied.TargetID, applied.Results, applied.Batch)
	}

	return &AdvanceResult{
		JobID:              jobID,
		Status:             applied.Snapshot.Status,
		Cursor:             applied.Snapshot.Cursor,
		UnitCount:          applied.Snapshot.UnitCount,
		NewRecords:         applied.Batch,
		TotalQuestionCount: applied.Snapshot.TotalQuestionCount,
	}, nil
}

// finish は全結果を Sink にコミットし、ジョブを終端状態へ遷移させます。
// コミットの直前に取り消し要求を確認し、取り消し済みなら Sink を呼ばずに
// 結果を破棄します。
func (c *Coordinator) finish(ctx context.Context, jobID, targetID string, results, batch []extraction.QuestionRecord) (*AdvanceResult, error) {
	if !c.store.PrepareCommit(jobID) {
		return nil, extraction.NewNotFound(jobID)
	}

	commitErr := c.sink.Commit(ctx, targetID, results)
	if commitErr != nil {
		perr := extraction.NewPersistenceError("生成結果の保存に失敗しました。", commitErr)
		c.store.FinishJob(jobID, &ErrorInfo{
			Code:    perr.Code,
			Message: perr.Message,
			Phase:   perr.Phase,
		})
		if c.logger != nil {
			c.logger.Printf("job commit failed id=%s: %v", jobID, commitErr)
		}
		return nil, perr
	}

	snap := c.store.FinishJob(jobID, nil)
	if c.logger != nil {
		c.logger.Printf("job completed id=%s questions=%d", jobID, snap.TotalQuestionCount)
	}
	if batch == nil {
		batch = make([]extraction.QuestionRecord, 0)
	}
	return &AdvanceResult{
		JobID:              jobID,
		Status:             snap.Status,
		Cursor:             snap.Cursor,
		UnitCount:          snap.UnitCount,
		NewRecords:         batch,
		TotalQuestionCount: snap.TotalQuestionCount,
	}, nil
}

// failAdvance は生成失敗を記録し、呼び出し元へ返すエラーを確定します。
// 再試行上限を超えた retriable 失敗は非 retriable に格上げされます。
func (c *Coordinator) failAdvance(claim *AdvanceClaim, genErr error) error {
	var exErr *extraction.Error
	if !errors.As(genErr, &exErr) {
		exErr = extraction.NewGenerationError("設問の生成に失敗しました。", false, genErr)
	}

	terminal := !exErr.Retriable
	if !terminal && claim.Attempts+1 >= c.maxUnitRetries {
		terminal = true
		exErr = extraction.NewGenerationError(
			fmt.Sprintf("同一パッセージで%d回連続で生成に失敗したため処理を打ち切りました。", claim.Attempts+1),
			false, exErr)
	}

	c.store.FailAdvance(claim.JobID, &ErrorInfo{
		Code:    exErr.Code,
		Message: exErr.Message,
		Phase:   exErr.Phase,
	}, terminal)

	if c.logger != nil {
		c.logger.Printf("job advance failed id=%s cursor=%d terminal=%t: %v",
			claim.JobID, claim.Cursor, terminal, genErr)
	}
	return exErr
}

// Status はジョブ状態の読み取り専用スナップショットを返します。
func (c *Coordinator) Status(jobID string) (Snapshot, error) {
	return c.store.Snapshot(jobID)
}

// Cancel はジョブを取り消します。冪等で常に成功します。
func (c *Coordinator) Cancel(jobID string) {
	c.store.Cancel(jobID)
	if c.logger != nil {
		c.logger.Printf("job cancelled id=%s", jobID)
	}
}

// Run はジョブが終端状態になるまで AdvanceOne を繰り返します。
// 自動実行モード（クライアントはポーリングのみ）のワーカーから呼ばれます。
func (c *Coordinator) Run(ctx context.Context, jobID string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := c.AdvanceOne(ctx, jobID)
		if err == nil {
			if result.Status.Terminal() {
				return nil
			}
			continue
		}

		var exErr *extraction.Error
		if errors.As(err, &exErr) {
			switch {
			case exErr.Code == extraction.CodeJobNotFound:
				// キャンセル済みまたは掃除済み。正常終了扱い。
				return nil
			case exErr.Retriable:
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(c.retryDelay):
				}
				continue
			}
		}
		return err
	}
}
