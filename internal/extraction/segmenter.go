package extraction

import (
	"regexp"
	"strings"
)

// セクション見出し判定用のキーワード。先にマッチしたものが優先されます。
var sectionKeywords = []struct {
	keywords []string
	section  SectionType
}{
	{[]string{"english", "language"}, SectionEnglish},
	{[]string{"gk", "general knowledge", "current affairs"}, SectionGKCA},
	{[]string{"logical"}, SectionLogicalReasoning},
	{[]string{"legal", "reasoning"}, SectionLegalReasoning},
	{[]string{"quantitative", "mathemat", "aptitude"}, SectionQuantitative},
}

const maxHeaderLineLen = 64

var (
	blockSeparator  = regexp.MustCompile(`\n[ \t]*\n`)
	questionStartRe = regexp.MustCompile(`^\s*(\d+[\.\):\-]|\(\d+\))\s+`)
)

// Segment は生テキストを空行区切りのパッセージ列に分割し、各パッセージに
// セクション種別を付与します。決定的な純関数であり、同じ入力に対して常に
// 同じ結果を返します。
func Segment(rawText string) ([]WorkUnit, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, NewInvalidInput("テキストを入力してください。", nil)
	}

	normalized := strings.ReplaceAll(rawText, "\r\n", "\n")
	blocks := blockSeparator.Split(normalized, -1)

	units := make([]WorkUnit, 0, len(blocks))
	current := SectionEnglish
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if section, ok := sectionHeader(block); ok {
			current = section
			continue
		}
		units = append(units, WorkUnit{
			Content:       block,
			SectionTag:    current,
			SequenceIndex: len(units),
		})
	}

	if len(units) == 0 {
		return nil, NewInvalidInput("パッセージの境界を検出できませんでした。", nil)
	}
	return units, nil
}

// sectionHeader はブロックがセクション見出し1行のみで構成される場合に
// 対応するセクション種別を返します。
func sectionHeader(block string) (SectionType, bool) {
	if strings.Contains(block, "\n") {
		return "", false
	}
	line := strings.TrimSpace(block)
	if len([]rune(line)) > maxHeaderLineLen {
		return "", false
	}
	if questionStartRe.MatchString(line) {
		return "", false
	}

	lower := strings.ToLower(line)
	for _, entry := range sectionKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.section, true
			}
		}
	}
	return "", false
}
