package extraction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentSplitsOnBlankLines(t *testing.T) {
	raw := "最初のパッセージです。\n複数行にまたがります。\n\n二番目のパッセージです。\n\n\n三番目のパッセージです。"

	units, err := Segment(raw)
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, "最初のパッセージです。\n複数行にまたがります。", units[0].Content)
	assert.Equal(t, "二番目のパッセージです。", units[1].Content)
	assert.Equal(t, "三番目のパッセージです。", units[2].Content)
}

func TestSegmentDeterministic(t *testing.T) {
	raw := "Passage one.\n\nPassage two.\n\nPassage three."

	first, err := Segment(raw)
	require.NoError(t, err)
	second, err := Segment(raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSegmentSequenceIndicesAreDense(t *testing.T) {
	raw := "A.\n\n   \n\nB.\n\nC."

	units, err := Segment(raw)
	require.NoError(t, err)
	for i, unit := range units {
		assert.Equal(t, i, unit.SequenceIndex)
	}
}

func TestSegmentSectionHeaders(t *testing.T) {
	raw := "導入のパッセージ。\n\nSECTION A: ENGLISH LANGUAGE\n\nEnglish passage.\n\nLogical Reasoning\n\nLogic passage."

	units, err := Segment(raw)
	require.NoError(t, err)
	require.Len(t, units, 3)

	// 見出し行はユニットとして出力されず、以降のブロックに種別が伝播する。
	assert.Equal(t, SectionEnglish, units[0].SectionTag)
	assert.Equal(t, SectionEnglish, units[1].SectionTag)
	assert.Equal(t, SectionLogicalReasoning, units[2].SectionTag)
}

func TestSegmentDefaultSection(t *testing.T) {
	units, err := Segment("見出しのないパッセージ。")
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, SectionEnglish, units[0].SectionTag)
}

func TestSegmentQuestionLineIsNotHeader(t *testing.T) {
	// 設問番号で始まる1行はキーワードを含んでいても見出し扱いしない。
	raw := "1. Which legal principle applies here?"

	units, err := Segment(raw)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, raw, units[0].Content)
}

func TestSegmentWindowsNewlines(t *testing.T) {
	units, err := Segment("First.\r\n\r\nSecond.")
	require.NoError(t, err)
	require.Len(t, units, 2)
}

func TestSegmentEmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\n\t\n"} {
		_, err := Segment(raw)
		require.Error(t, err)

		var exErr *Error
		require.True(t, errors.As(err, &exErr))
		assert.Equal(t, CodeInvalidInput, exErr.Code)
	}
}
