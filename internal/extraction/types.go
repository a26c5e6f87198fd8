// Package extraction は試験テキストの分割と設問生成のドメイン型を提供します。
package extraction

// SectionType は設問が属するセクション種別を表します。
type SectionType string

const (
	SectionEnglish          SectionType = "ENGLISH"
	SectionGKCA             SectionType = "GK_CA"
	SectionLegalReasoning   SectionType = "LEGAL_REASONING"
	SectionLogicalReasoning SectionType = "LOGICAL_REASONING"
	SectionQuantitative     SectionType = "QUANTITATIVE_TECHNIQUES"
)

// WorkUnit は1つのパッセージ（処理単位）を表します。
type WorkUnit struct {
	Content       string      `json:"content"`
	SectionTag    SectionType `json:"sectionTag"`
	SequenceIndex int         `json:"sequenceIndex"`
}

// QuestionRecord は生成された設問1件を表します。
type QuestionRecord struct {
	Number        int         `json:"number"`
	PromptText    string      `json:"promptText"`
	Options       []string    `json:"options"`
	CorrectAnswer string      `json:"correctAnswer"`
	Explanation   string      `json:"explanation,omitempty"`
	Passage       string      `json:"passage,omitempty"`
	SectionTag    SectionType `json:"sectionTag"`
}
