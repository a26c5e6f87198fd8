package pdfimport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
)

// Limits はアップロード受け入れの上限です。
type Limits struct {
	MaxFileSize int64
	MaxPages    int
	MaxTextSize int64
}

// Service はPDFの検証と外部抽出サービスへの連携を行います。
type Service struct {
	extractorURL string
	client       *http.Client
	limits       Limits
}

// NewService は Service を作成します。extractorURL はテキスト抽出サービスの
// エンドポイントです。
func NewService(extractorURL string, limits Limits) *Service {
	return &Service{
		extractorURL: extractorURL,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		limits: limits,
	}
}

// extractorResponse はテキスト抽出サービスの応答です。
type extractorResponse struct {
	Text string `json:"text"`
}

// ExtractMultipart はアップロードされたPDFを検証し、外部抽出サービスから
// 生テキストを取得します。
func (s *Service) ExtractMultipart(ctx context.Context, file *multipart.FileHeader) (string, error) {
	if file == nil {
		return "", newError("INVALID_INPUT", "PDFファイルを選択してください。", nil)
	}
	if s.limits.MaxFileSize > 0 && file.Size > s.limits.MaxFileSize {
		return "", newError("LIMIT_EXCEEDED",
			fmt.Sprintf("ファイルサイズが上限(%dバイト)を超えています。", s.limits.MaxFileSize), nil)
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("アップロードファイルの読み込みに失敗しました: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("アップロードファイルの読み込みに失敗しました: %w", err)
	}

	if err := s.validatePDF(data); err != nil {
		return "", err
	}

	text, err := s.callExtractor(ctx, file.Filename, data)
	if err != nil {
		return "", err
	}
	if s.limits.MaxTextSize > 0 && int64(len(text)) > s.limits.MaxTextSize {
		return "", newError("LIMIT_EXCEEDED",
			fmt.Sprintf("抽出テキストが上限(%dバイト)を超えています。", s.limits.MaxTextSize), nil)
	}
	return text, nil
}

// validatePDF はMIMEシグネチャとPDF構造、ページ数上限を検査します。
func (s *Service) validatePDF(data []byte) error {
	if mtype := mimetype.Detect(data); !mtype.Is("application/pdf") {
		return newError("UNSUPPORTED_FILE",
			fmt.Sprintf("PDFファイルのみアップロードできます (received: %s)", mtype.String()), nil)
	}

	rs := bytes.NewReader(data)
	if err := pdfapi.Validate(rs, nil); err != nil {
		return newError("UNSUPPORTED_PDF", "PDFの検証に失敗しました。ファイルが破損していないか確認してください。", err)
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return err
	}
	pages, err := pdfapi.PageCount(rs, nil)
	if err != nil {
		return newError("UNSUPPORTED_PDF", "PDFのページ数を取得できませんでした。", err)
	}
	if s.limits.MaxPages > 0 && pages > s.limits.MaxPages {
		return newError("LIMIT_EXCEEDED",
			fmt.Sprintf("ページ数が上限(%dページ)を超えています。", s.limits.MaxPages), nil)
	}
	return nil
}

// callExtractor は外部抽出サービスにPDFを送信し、生テキストを受け取ります。
func (s *Service) callExtractor(ctx context.Context, filename string, data []byte) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.extractorURL, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", newError("EXTRACTOR_UNAVAILABLE", "テキスト抽出サービスに接続できませんでした。", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newError("EXTRACTOR_UNAVAILABLE",
			fmt.Sprintf("テキスト抽出サービスがエラーを返しました (status=%d)。", resp.StatusCode), nil)
	}

	var payload extractorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", newError("EXTRACTOR_UNAVAILABLE", "テキスト抽出サービスの応答を解釈できませんでした。", err)
	}
	if payload.Text == "" {
		return "", newError("INVALID_INPUT", "PDFからテキストを抽出できませんでした。", nil)
	}
	return payload.Text, nil
}
