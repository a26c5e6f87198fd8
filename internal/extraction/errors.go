package extraction

import "fmt"

// Phase はエラーが発生した処理フェーズを表します。
type Phase string

const (
	PhaseInput       Phase = "input"
	PhaseGeneration  Phase = "generation"
	PhasePersistence Phase = "persistence"
)

// エラーコード一覧。HTTPレイヤーはこのコードでステータスを決定します。
const (
	CodeInvalidInput      = "INVALID_INPUT"
	CodeJobNotFound       = "JOB_NOT_FOUND"
	CodeJobConflict       = "JOB_CONFLICT"
	CodeGenerationFailed  = "GENERATION_FAILED"
	CodePersistenceFailed = "PERSISTENCE_FAILED"
)

// Error は抽出パイプラインの型付きエラーです。
// Retriable は同一ユニットへの advance 再試行で解消しうる失敗を示します。
type Error struct {
	Code      string
	Message   string
	Phase     Phase
	Retriable bool
	Err       error
}

// Error は error インターフェースを実装します。
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返します。
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// NewInvalidInput は入力不正エラーを作成します。
func NewInvalidInput(message string, cause error) *Error {
	e := newError(CodeInvalidInput, message, cause)
	e.Phase = PhaseInput
	return e
}

// NewGenerationError は生成フェーズの失敗を作成します。
func NewGenerationError(message string, retriable bool, cause error) *Error {
	e := newError(CodeGenerationFailed, message, cause)
	e.Phase = PhaseGeneration
	e.Retriable = retriable
	return e
}

// NewPersistenceError は保存フェーズの失敗を作成します。
func NewPersistenceError(message string, cause error) *Error {
	e := newError(CodePersistenceFailed, message, cause)
	e.Phase = PhasePersistence
	return e
}

// NewNotFound はジョブ未存在エラーを作成します。
func NewNotFound(jobID string) *Error {
	return newError(CodeJobNotFound, fmt.Sprintf("指定されたジョブは存在しません: %s", jobID), nil)
}

// NewConflict は同一ジョブへの同時 advance 衝突を表します。
// status を再取得してから advance をやり直すことで解消できます。
func NewConflict(jobID string) *Error {
	e := newError(CodeJobConflict, fmt.Sprintf("ジョブは別のリクエストで処理中です: %s", jobID), nil)
	e.Retriable = true
	return e
}
