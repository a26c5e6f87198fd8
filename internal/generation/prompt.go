package generation

import (
	"fmt"
	"strings"

	"github.com/yourusername/exam-forge/internal/extraction"
)

// basePrompt は試験テキストの構造化抽出を指示するシステムプロンプトです。
const basePrompt = `# Role
You are an expert AI for automated test paper structuring and generation.
Your job: take raw pasted exam content (from PDF/Word) and produce clean,
exam-ready question records in JSON format.

# Rules
1. Extract only useful test information:
   - Passage
   - Questions
   - Options
   - Correct option (if missing, analyze the question and passage to
     determine the most logical answer)
   - Explanation (if missing, generate a detailed logical explanation
     based on the passage content)
2. Passage-Question Linking: if the passage is followed by multiple
   questions, keep the same passage for all of them.
3. Broken or noisy text must be fixed, cleaned, and made readable.
4. Do not hallucinate extra questions beyond the given text.
5. Always return valid JSON. No explanations outside the JSON, no
   markdown formatting, no extra text.`

// buildUnitPrompt は1パッセージ分の抽出プロンプトを組み立てます。
func buildUnitPrompt(unit extraction.WorkUnit) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\n# Input (passage ")
	fmt.Fprintf(&b, "%d, section %s):\n", unit.SequenceIndex+1, unit.SectionTag)
	b.WriteString(unit.Content)
	b.WriteString(`

# Task
Extract the questions contained in this passage. Return VALID JSON in this
EXACT format:
{
  "questions": [
    {
      "number": 1,
      "passage": "Passage text here...",
      "question": "Question text here...",
      "options": ["A) ...", "B) ...", "C) ...", "D) ..."],
      "correctOption": "B",
      "explanation": "Explanation here..."
    }
  ]
}

Number the questions starting from 1 within this passage.`)
	return b.String()
}
