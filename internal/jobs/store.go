package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/yourusername/exam-forge/internal/extraction"
)

// Store はアクティブなジョブをプロセス内で管理するレジストリです。
// マップ自体は Store のロックで保護し、ジョブ単位の排他は advancing フラグで
// 表現します。生成呼び出しの間ロックは保持しません。
type Store struct {
	mu         sync.RWMutex
	jobs       map[string]*Job
	staleAfter time.Duration
	now        func() time.Time
}

// NewStore は Store を作成します。staleAfter を超えて更新のないジョブは
// EvictStale の対象になります。
func NewStore(staleAfter time.Duration) *Store {
	return &Store{
		jobs:       make(map[string]*Job),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Insert は新規ジョブを登録します。同一IDが既に存在する場合は衝突エラーを
// 返します（IDはサーバー生成のため通常は起こりません）。
func (s *Store) Insert(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return extraction.NewConflict(job.ID)
	}
	now := s.now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	s.jobs[job.ID] = job
	return nil
}

// Snapshot はジョブ状態の読み取り専用コピーを返します。
func (s *Store) Snapshot(jobID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok || job.cancelRequested {
		return Snapshot{}, extraction.NewNotFound(jobID)
	}
	return job.snapshot(), nil
}

// AdvanceClaim は1回の advance のための占有チケットです。
type AdvanceClaim struct {
	JobID    string
	TargetID string
	Unit     extraction.WorkUnit
	Cursor   int
	// Attempts は同一カーソル位置でのこれまでの失敗回数です。
	Attempts int
}

// BeginAdvance はジョブを1回の advance のために占有します。
// 終端状態・未登録のジョブには JOB_NOT_FOUND、占有中のジョブには
// JOB_CONFLICT を返します。
func (s *Store) BeginAdvance(jobID string) (*AdvanceClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.Status.Terminal() || job.cancelRequested {
		return nil, extraction.NewNotFound(jobID)
	}
	if job.advancing {
		return nil, extraction.NewConflict(jobID)
	}

	// running かつ非占有のジョブは常に cursor < len(units)。最後のユニットの
	// 反映から終端遷移までは占有されたままなので、ここには到達しない。
	job.advancing = true
	return &AdvanceClaim{
		JobID:    job.ID,
		TargetID: job.TargetID,
		Unit:     job.Units[job.Cursor],
		Cursor:   job.Cursor,
		Attempts: job.retries,
	}, nil
}

// ApplyResult は生成成功を反映した結果です。
type ApplyResult struct {
	Snapshot Snapshot
	// Batch は通し番号を振り直した追加分のコピーです。
	Batch []extraction.QuestionRecord
	// Finished はカーソルがユニット列を消化し切ったことを示します。
	// この場合占有は解放されず、FinishJob まで維持されます。
	Finished bool
	TargetID string
	// Results は Finished の場合のみ、コミット対象の全結果のコピーです。
	Results []extraction.QuestionRecord
}

// CompleteAdvance は生成済みレコードをジョブに反映します。ジョブが既に
// キャンセル・削除されている場合は結果を破棄し false を返します。
// レコードの通し番号はジョブ全体で単調増加となるよう振り直します。
func (s *Store) CompleteAdvance(jobID string, records []extraction.QuestionRecord) (*ApplyResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	if job.cancelRequested {
		// 生成中に取り消されたジョブ。結果を反映せず除去する。
		delete(s.jobs, jobID)
		return nil, false
	}
	if job.Status != StatusRunning {
		job.advancing = false
		return nil, false
	}

	batch := make([]extraction.QuestionRecord, len(records))
	copy(batch, records)
	for i := range batch {
		batch[i].Number = job.TotalQuestionCount + i + 1
	}

	job.Results = append(job.Results, batch...)
	job.TotalQuestionCount += len(batch)
	job.Cursor++
	job.retries = 0
	job.UpdatedAt = s.now().UTC()

	result := &ApplyResult{
		Batch:    batch,
		TargetID: job.TargetID,
	}
	if job.Cursor >= len(job.Units) {
		// 完了コミットが終わるまで占有を解放しない。
		result.Finished = true
		result.Results = append([]extraction.QuestionRecord(nil), job.Results...)
	} else {
		job.advancing = false
	}
	result.Snapshot = job.snapshot()
	return result, true
}

// FailAdvance は advance の失敗を記録し占有を解放します。
// terminal が真の場合ジョブは error 状態になります。偽の場合はカーソルを
// 進めず running のまま、同一ユニットの再試行を待ちます。
func (s *Store) FailAdvance(jobID string, errInfo *ErrorInfo, terminal bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return
	}
	if job.cancelRequested {
		delete(s.jobs, jobID)
		return
	}
	job.advancing = false
	if job.Status != StatusRunning {
		return
	}
	job.UpdatedAt = s.now().UTC()
	if terminal {
		job.Status = StatusError
		job.Error = errInfo
		return
	}
	job.retries++
}

// PrepareCommit は完了コミットを実行してよいかを判定します。占有中に取り消し
// 要求が届いていた場合はジョブを破棄して false を返し、Sink は呼ばれません。
// true を返した時点でコミットが確定し、以後の取り消しは完了との競合として
// 扱われます。
func (s *Store) PrepareCommit(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return false
	}
	if job.cancelRequested {
		delete(s.jobs, jobID)
		return false
	}
	job.committing = true
	return true
}

// FinishJob は完了コミットの結果を反映し占有を解放します。
func (s *Store) FinishJob(jobID string, errInfo *ErrorInfo) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return Snapshot{JobID: jobID, Status: StatusCancelled}
	}
	job.advancing = false
	job.committing = false
	job.UpdatedAt = s.now().UTC()
	if errInfo != nil {
		job.Status = StatusError
		job.Error = errInfo
	} else {
		job.Status = StatusCompleted
	}
	return job.snapshot()
}

// Cancel はジョブを取り消してレジストリから除去します。冪等であり、
// 未存在・終端状態のジョブに対しても成功扱いです。advance 実行中の場合は
// 取り消し要求として記録し、実行中の advance が結果を破棄します。
func (s *Store) Cancel(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return
	}
	if job.Status.Terminal() || job.committing {
		// 完了済み・コミット確定済みのジョブは猶予期間の掃除に任せる。
		return
	}
	if job.advancing {
		job.cancelRequested = true
		return
	}
	job.Status = StatusCancelled
	delete(s.jobs, jobID)
}

// EvictStale は staleAfter を超えて更新のないジョブを除去し、除去件数を
// 返します。advance 実行中のジョブは対象外です。非終端ジョブの除去は
// 暗黙のキャンセルと等価で、Sink は呼ばれません。
func (s *Store) EvictStale() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().UTC().Add(-s.staleAfter)
	evicted := 0
	for id, job := range s.jobs {
		if job.advancing {
			continue
		}
		if job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			evicted++
		}
	}
	return evicted
}

// Len は登録中のジョブ数を返します。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// StartJanitor は放置ジョブの掃除ループを起動します。ctx のキャンセルで
// 停止します。
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration, logger *log.Logger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.EvictStale(); n > 0 && logger != nil {
					logger.Printf("evicted %d stale job(s)", n)
				}
			}
		}
	}()
}
