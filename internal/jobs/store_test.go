package jobs

import (
	"errors"
	"testing"
	"time"

	"github.com/yourusername/exam-forge/internal/extraction"
)

func newTestJob(id string, unitCount int) *Job {
	units := make([]extraction.WorkUnit, unitCount)
	for i := range units {
		units[i] = extraction.WorkUnit{
			Content:       "passage",
			SectionTag:    extraction.SectionEnglish,
			SequenceIndex: i,
		}
	}
	return &Job{
		ID:      id,
		Status:  StatusRunning,
		Units:   units,
		Results: make([]extraction.QuestionRecord, 0),
	}
}

func TestStoreInsertDuplicate(t *testing.T) {
	store := NewStore(time.Minute)
	if err := store.Insert(newTestJob("job-1", 1)); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	err := store.Insert(newTestJob("job-1", 1))
	var exErr *extraction.Error
	if !errors.As(err, &exErr) || exErr.Code != extraction.CodeJobConflict {
		t.Fatalf("expected JOB_CONFLICT, got %v", err)
	}
}

func TestStoreBeginAdvanceConflict(t *testing.T) {
	store := NewStore(time.Minute)
	if err := store.Insert(newTestJob("job-1", 2)); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	if _, err := store.BeginAdvance("job-1"); err != nil {
		t.Fatalf("first BeginAdvance returned error: %v", err)
	}

	_, err := store.BeginAdvance("job-1")
	var exErr *extraction.Error
	if !errors.As(err, &exErr) || exErr.Code != extraction.CodeJobConflict {
		t.Fatalf("expected JOB_CONFLICT, got %v", err)
	}
	if !exErr.Retriable {
		t.Fatal("advance conflict should be retriable")
	}
}

func TestStoreBeginAdvanceUnknownJob(t *testing.T) {
	store := NewStore(time.Minute)

	_, err := store.BeginAdvance("missing")
	var exErr *extraction.Error
	if !errors.As(err, &exErr) || exErr.Code != extraction.CodeJobNotFound {
		t.Fatalf("expected JOB_NOT_FOUND, got %v", err)
	}
}

func TestStoreCompleteAdvanceRenumbers(t *testing.T) {
	store := NewStore(time.Minute)
	if err := store.Insert(newTestJob("job-1", 2)); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	if _, err := store.BeginAdvance("job-1"); err != nil {
		t.Fatalf("BeginAdvance returned error: %v", err)
	}
	result, ok := store.CompleteAdvance("job-1", []extraction.QuestionRecord{
		{Number: 1, PromptText: "Q1"},
		{Number: 2, PromptText: "Q2"},
	})
	if !ok {
		t.Fatal("CompleteAdvance discarded the first batch")
	}
	if result.Finished {
		t.Fatal("job should not be finished after the first unit")
	}

	if _, err := store.BeginAdvance("job-1"); err != nil {
		t.Fatalf("second BeginAdvance returned error: %v", err)
	}
	result, ok = store.CompleteAdvance("job-1", []extraction.QuestionRecord{
		{Number: 1, PromptText: "Q3"},
	})
	if !ok {
		t.Fatal("CompleteAdvance discarded the second batch")
	}
	if !result.Finished {
		t.Fatal("job should be finished after the last unit")
	}

	// 通し番号はジョブ全体で単調増加に振り直される。
	for i, record := range result.Results {
		if record.Number != i+1 {
			t.Fatalf("record %d has number %d, want %d", i, record.Number, i+1)
		}
	}
	if result.Snapshot.TotalQuestionCount != 3 {
		t.Fatalf("unexpected total question count: %d", result.Snapshot.TotalQuestionCount)
	}
}

func TestStoreCancelRemovesJob(t *testing.T) {
	store := NewStore(time.Minute)
	if err := store.Insert(newTestJob("job-1", 1)); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	store.Cancel("job-1")
	store.Cancel("job-1") // 冪等

	_, err := store.Snapshot("job-1")
	var exErr *extraction.Error
	if !errors.As(err, &exErr) || exErr.Code != extraction.CodeJobNotFound {
		t.Fatalf("expected JOB_NOT_FOUND after cancel, got %v", err)
	}
}

func TestStoreCancelDiscardsInflightResult(t *testing.T) {
	store := NewStore(time.Minute)
	if err := store.Insert(newTestJob("job-1", 1)); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	if _, err := store.BeginAdvance("job-1"); err != nil {
		t.Fatalf("BeginAdvance returned error: %v", err)
	}
	store.Cancel("job-1")

	if _, ok := store.CompleteAdvance("job-1", []extraction.QuestionRecord{{Number: 1, PromptText: "Q"}}); ok {
		t.Fatal("expected in-flight result to be discarded after cancel")
	}
}

func TestStoreCancelBetweenLastAdvanceAndCommit(t *testing.T) {
	store := NewStore(time.Minute)
	if err := store.Insert(newTestJob("job-1", 1)); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	if _, err := store.BeginAdvance("job-1"); err != nil {
		t.Fatalf("BeginAdvance returned error: %v", err)
	}
	result, ok := store.CompleteAdvance("job-1", []extraction.QuestionRecord{{Number: 1, PromptText: "Q"}})
	if !ok || !result.Finished {
		t.Fatalf("expected finished advance, got ok=%t result=%+v", ok, result)
	}

	// 最後のユニットの反映後、コミット前に取り消しが届いた場合、
	// コミットは実行されずジョブは破棄される。
	store.Cancel("job-1")
	if store.PrepareCommit("job-1") {
		t.Fatal("commit must be discarded after cancel")
	}
	if _, err := store.Snapshot("job-1"); err == nil {
		t.Fatal("cancelled job should be removed")
	}
}

func TestStoreCancelDuringCommitIsCompletionRace(t *testing.T) {
	store := NewStore(time.Minute)
	if err := store.Insert(newTestJob("job-1", 1)); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	if _, err := store.BeginAdvance("job-1"); err != nil {
		t.Fatalf("BeginAdvance returned error: %v", err)
	}
	if _, ok := store.CompleteAdvance("job-1", []extraction.QuestionRecord{{Number: 1, PromptText: "Q"}}); !ok {
		t.Fatal("CompleteAdvance discarded the batch")
	}
	if !store.PrepareCommit("job-1") {
		t.Fatal("PrepareCommit should succeed without a cancel request")
	}

	// コミット確定後の取り消しは完了との競合として扱われ、結果は残る。
	store.Cancel("job-1")

	snap := store.FinishJob("job-1", nil)
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", snap.Status)
	}
	if _, err := store.Snapshot("job-1"); err != nil {
		t.Fatalf("committed job should stay visible: %v", err)
	}
}

func TestStoreCancelRequestedHidesJob(t *testing.T) {
	store := NewStore(time.Minute)
	if err := store.Insert(newTestJob("job-1", 2)); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if _, err := store.BeginAdvance("job-1"); err != nil {
		t.Fatalf("BeginAdvance returned error: %v", err)
	}

	// advance 実行中の取り消しは要求として記録され、ジョブは即座に外から
	// 見えなくなる。
	store.Cancel("job-1")

	if _, err := store.Snapshot("job-1"); err == nil {
		t.Fatal("cancel-requested job should not be visible via Snapshot")
	}
	_, err := store.BeginAdvance("job-1")
	var exErr *extraction.Error
	if !errors.As(err, &exErr) || exErr.Code != extraction.CodeJobNotFound {
		t.Fatalf("expected JOB_NOT_FOUND, got %v", err)
	}
}

func TestStoreFailAdvanceAfterCancelRemovesJob(t *testing.T) {
	store := NewStore(time.Minute)
	if err := store.Insert(newTestJob("job-1", 1)); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if _, err := store.BeginAdvance("job-1"); err != nil {
		t.Fatalf("BeginAdvance returned error: %v", err)
	}

	store.Cancel("job-1")
	store.FailAdvance("job-1", &ErrorInfo{Code: extraction.CodeGenerationFailed}, true)

	if _, err := store.Snapshot("job-1"); err == nil {
		t.Fatal("cancelled job should be removed even when the advance fails")
	}
}

func TestStoreEvictStale(t *testing.T) {
	store := NewStore(time.Minute)
	current := time.Now()
	store.now = func() time.Time { return current }

	if err := store.Insert(newTestJob("stale", 1)); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if err := store.Insert(newTestJob("busy", 1)); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if _, err := store.BeginAdvance("busy"); err != nil {
		t.Fatalf("BeginAdvance returned error: %v", err)
	}

	current = current.Add(2 * time.Minute)
	if n := store.EvictStale(); n != 1 {
		t.Fatalf("EvictStale evicted %d jobs, want 1", n)
	}

	// advance 実行中のジョブは放置扱いにならない。
	if _, err := store.Snapshot("busy"); err != nil {
		t.Fatalf("busy job should survive eviction: %v", err)
	}
	if _, err := store.Snapshot("stale"); err == nil {
		t.Fatal("stale job should be evicted")
	}
}
