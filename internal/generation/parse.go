package generation

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/yourusername/exam-forge/internal/extraction"
)

// unitResponse は生成器が返すJSONの期待形です。
type unitResponse struct {
	Questions []struct {
		Number        int      `json:"number"`
		Passage       string   `json:"passage"`
		Question      string   `json:"question"`
		Options       []string `json:"options"`
		CorrectOption string   `json:"correctOption"`
		Explanation   string   `json:"explanation"`
	} `json:"questions"`
}

var (
	codeFenceRe     = regexp.MustCompile("```(?:json)?\n?")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	controlCharRe   = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
)

// extractJSON は生成器の応答からJSONオブジェクト部分を取り出します。
// コードフェンス・前後のおしゃべり・末尾カンマ・制御文字を除去します。
func extractJSON(response string) string {
	cleaned := codeFenceRe.ReplaceAllString(response, "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start != -1 && end != -1 && end > start {
		cleaned = cleaned[start : end+1]
	}

	cleaned = trailingCommaRe.ReplaceAllString(cleaned, "$1")
	cleaned = controlCharRe.ReplaceAllString(cleaned, "")
	return cleaned
}

// parseUnitResponse は生成器の応答を検証済みの QuestionRecord 列に変換します。
// 形の崩れた応答は retriable な生成エラーとして返します。
func parseUnitResponse(response string, unit extraction.WorkUnit) ([]extraction.QuestionRecord, error) {
	var payload unitResponse
	if err := json.Unmarshal([]byte(extractJSON(response)), &payload); err != nil {
		return nil, extraction.NewGenerationError("生成器の応答をJSONとして解釈できませんでした。", true, err)
	}
	if len(payload.Questions) == 0 {
		return nil, extraction.NewGenerationError("生成器の応答に設問が含まれていません。", true, nil)
	}

	records := make([]extraction.QuestionRecord, 0, len(payload.Questions))
	for i, q := range payload.Questions {
		number := q.Number
		if number == 0 {
			number = i + 1
		}

		options := make([]string, 0, len(q.Options))
		for _, opt := range q.Options {
			if trimmed := strings.TrimSpace(opt); trimmed != "" {
				options = append(options, trimmed)
			}
		}

		correct := strings.TrimSpace(q.CorrectOption)
		if correct == "" && len(options) > 0 {
			correct = "A"
		}

		passage := strings.TrimSpace(q.Passage)
		if passage == "" {
			passage = unit.Content
		}

		records = append(records, extraction.QuestionRecord{
			Number:        number,
			PromptText:    strings.TrimSpace(q.Question),
			Options:       options,
			CorrectAnswer: correct,
			Explanation:   strings.TrimSpace(q.Explanation),
			Passage:       passage,
			SectionTag:    unit.SectionTag,
		})
	}
	return records, nil
}
