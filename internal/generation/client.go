// Package generation は OpenAI API を使った設問生成アダプターを提供します。
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/yourusername/exam-forge/internal/extraction"
)

const (
	// DefaultModel はデフォルトで使用するOpenAIモデル
	DefaultModel = "gpt-4o-mini"

	// DefaultTimeout はAPI呼び出しのデフォルトタイムアウト
	DefaultTimeout = 60 * time.Second

	maxOutputTokens = 4096
	temperature     = 0.1
)

// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set: please set OPENAI_API_KEY environment variable")

// Client は OpenAI API を使用した Generator 実装です。
// 呼び出し間で状態を共有しないため、異なるジョブの生成を並行して
// 実行できます。
type Client struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewClient は Client を作成します。
func NewClient(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if model == "" {
		model = DefaultModel
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	return &Client{
		client:  client,
		model:   model,
		timeout: DefaultTimeout,
	}, nil
}

// SetTimeout はAPIコールのタイムアウトを設定します。
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// ModelName はモデル名を返します。
func (c *Client) ModelName() string {
	return c.model
}

// Generate は1パッセージ分の設問を生成します。外部生成器の出力は信頼せず、
// JSON抽出と形の検証を経てから返します。
func (c *Client) Generate(ctx context.Context, unit extraction.WorkUnit) ([]extraction.QuestionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(buildUnitPrompt(unit)),
		},
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(maxOutputTokens),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyAPIError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, extraction.NewGenerationError("生成器から応答がありませんでした。", true, nil)
	}

	records, err := parseUnitResponse(completion.Choices[0].Message.Content, unit)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// classifyAPIError は外部API失敗を retriable / 非 retriable に分類します。
// レート制限・サーバーエラー・タイムアウトは一時的な失敗として扱います。
func classifyAPIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return extraction.NewGenerationError("生成器の応答がタイムアウトしました。", true, err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return extraction.NewGenerationError(
				fmt.Sprintf("生成器が一時的に利用できません (status=%d)。", apiErr.StatusCode), true, err)
		}
		return extraction.NewGenerationError(
			fmt.Sprintf("生成器がリクエストを拒否しました (status=%d)。", apiErr.StatusCode), false, err)
	}

	// ネットワーク断などの輸送エラーは再試行で回復しうる。
	return extraction.NewGenerationError("生成器の呼び出しに失敗しました。", true, err)
}

// インターフェース実装の確認
var _ extraction.Generator = (*Client)(nil)
