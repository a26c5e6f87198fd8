package extraction

import (
	"context"
	"fmt"
)

// Generator は1パッセージ分の設問生成を行う外部コラボレーターです。
// 実装は internal/generation にあります。呼び出しは互いに独立しており、
// 同一ジョブに対する直列化は Coordinator 側が保証します。
type Generator interface {
	Generate(ctx context.Context, unit WorkUnit) ([]QuestionRecord, error)
}

// ValidateRecords は生成結果の形を検証します。promptText が欠落した設問や
// ユニット内で number が重複した設問は不正としてエラーにします。
func ValidateRecords(records []QuestionRecord) error {
	seen := make(map[int]bool, len(records))
	for i, record := range records {
		if record.PromptText == "" {
			return NewGenerationError(
				fmt.Sprintf("生成された設問 %d 件目に本文がありません。", i+1), true, nil)
		}
		if seen[record.Number] {
			return NewGenerationError(
				fmt.Sprintf("生成された設問の番号が重複しています: %d", record.Number), true, nil)
		}
		seen[record.Number] = true
	}
	return nil
}
