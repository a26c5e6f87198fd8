// Package jobs は抽出ジョブの状態管理とコーディネーター、HTTPハンドラーを
// 提供します。
package jobs

import (
	"time"

	"github.com/yourusername/exam-forge/internal/extraction"
)

// Status はジョブの実行状態を表します。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Terminal は終端状態（以後フィールドが変化しない状態）かどうかを返します。
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	}
	return false
}

// ErrorInfo はジョブ失敗時のエラー情報を保持します。
// Phase により「生成に失敗した」のか「生成は成功したが保存に失敗した」のかを
// 区別できます。
type ErrorInfo struct {
	Code    string           `json:"code"`
	Message string           `json:"message"`
	Phase   extraction.Phase `json:"phase,omitempty"`
}

// Job は1件の抽出ジョブの権威状態です。Store の単一ライター規律の下でのみ
// 変更されます。
type Job struct {
	ID                 string
	TargetID           string
	Title              string
	Status             Status
	Units              []extraction.WorkUnit
	Cursor             int
	Results            []extraction.QuestionRecord
	TotalQuestionCount int
	Error              *ErrorInfo
	CreatedAt          time.Time
	UpdatedAt          time.Time

	// advancing は advance が実行中であることを示す占有フラグです。
	// Store のロック下でのみ読み書きされます。
	advancing bool
	// cancelRequested は advance 実行中に届いた取り消し要求を記録します。
	// 実行中の advance が結果を反映する前に観測し、結果を破棄します。
	cancelRequested bool
	// committing は完了コミットの実行が確定したことを示します。以後の取り消し
	// は完了との競合として扱い、コミットを妨げません。
	committing bool
	// retries は現在のカーソル位置での連続失敗回数です。
	retries int
}

// Snapshot はジョブ状態の読み取り専用コピーです。ポーリング応答はこの
// 射影だけを参照し、変更系の経路には触れません。
type Snapshot struct {
	JobID              string     `json:"jobId"`
	Title              string     `json:"title,omitempty"`
	Status             Status     `json:"status"`
	Cursor             int        `json:"cursor"`
	UnitCount          int        `json:"unitCount"`
	TotalQuestionCount int        `json:"totalQuestionCount"`
	Error              *ErrorInfo `json:"error,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func (j *Job) snapshot() Snapshot {
	snap := Snapshot{
		JobID:              j.ID,
		Title:              j.Title,
		Status:             j.Status,
		Cursor:             j.Cursor,
		UnitCount:          len(j.Units),
		TotalQuestionCount: j.TotalQuestionCount,
		CreatedAt:          j.CreatedAt,
		UpdatedAt:          j.UpdatedAt,
	}
	if j.Error != nil {
		copied := *j.Error
		snap.Error = &copied
	}
	return snap
}
