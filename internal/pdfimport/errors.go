// Package pdfimport はPDFアップロードの検証と外部テキスト抽出サービスへの
// 連携を提供します。
package pdfimport

import "fmt"

// Error はPDF取り込み処理の型付きエラーです。
type Error struct {
	Code    string
	Message string
	Err     error
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
