package jobs

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/exam-forge/internal/extraction"
)

// Service は抽出ジョブの操作面です。Coordinator が実装します。
type Service interface {
	Start(ctx context.Context, rawText, targetID, title string) (*StartResult, error)
	AdvanceOne(ctx context.Context, jobID string) (*AdvanceResult, error)
	Status(jobID string) (Snapshot, error)
	Cancel(jobID string)
}

// Runner はジョブを自動実行ワーカーへ投入するためのインターフェースです。
type Runner interface {
	Schedule(ctx context.Context, jobID string) error
}

// HandlerOptions はHTTPハンドラーの設定です。
type HandlerOptions struct {
	// Runner が nil の場合、自動実行モードは利用できません。
	Runner Runner
	// PollIntervalMs はクライアントに案内する最小ポーリング間隔です。
	PollIntervalMs int
	// MaxRawTextBytes は start が受け付ける rawText の上限です。0 は無制限。
	MaxRawTextBytes int64
}

// processRequest は action で多重化された単一エンドポイントのボディです。
type processRequest struct {
	Action   string `json:"action"`
	JobID    string `json:"jobId"`
	RawText  string `json:"rawText"`
	TargetID string `json:"targetId"`
	Title    string `json:"title"`
	Mode     string `json:"mode"`
}

// ProcessHandler は POST /api/tests/process のハンドラーを返します。
// action フィールドで start / advance / status / cancel を振り分けます。
func ProcessHandler(svc Service, opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req processRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    extraction.CodeInvalidInput,
				"message": "リクエストボディをJSONで送信してください。",
			})
			return
		}

		switch req.Action {
		case "start":
			handleStart(c, svc, opts, &req)
		case "advance":
			handleAdvance(c, svc, &req)
		case "status":
			handleStatus(c, svc, opts, req.JobID)
		case "cancel":
			handleCancel(c, svc, req.JobID)
		default:
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    extraction.CodeInvalidInput,
				"message": "action には start / advance / status / cancel のいずれかを指定してください。",
			})
		}
	}
}

func handleStart(c *gin.Context, svc Service, opts HandlerOptions, req *processRequest) {
	if strings.TrimSpace(req.RawText) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    extraction.CodeInvalidInput,
			"message": "rawText を指定してください。",
		})
		return
	}

	if opts.MaxRawTextBytes > 0 && int64(len(req.RawText)) > opts.MaxRawTextBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"code":    extraction.CodeInvalidInput,
			"message": "rawText が大きすぎます。分割して送信してください。",
		})
		return
	}

	auto := req.Mode == "auto"
	if auto && opts.Runner == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    extraction.CodeInvalidInput,
			"message": "自動実行モードはこのサーバーでは利用できません。",
		})
		return
	}

	result, err := svc.Start(c.Request.Context(), req.RawText, req.TargetID, req.Title)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	if auto {
		if err := opts.Runner.Schedule(c.Request.Context(), result.JobID); err != nil {
			// 投入に失敗したジョブは残さない。
			svc.Cancel(result.JobID)
			RespondWithError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"jobId":        result.JobID,
		"status":       result.Status,
		"unitCount":    result.UnitCount,
		"retryAfterMs": opts.PollIntervalMs,
	})
}

func handleAdvance(c *gin.Context, svc Service, req *processRequest) {
	if strings.TrimSpace(req.JobID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    extraction.CodeInvalidInput,
			"message": "jobId を指定してください。",
		})
		return
	}

	result, err := svc.AdvanceOne(c.Request.Context(), req.JobID)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobId":              result.JobID,
		"status":             result.Status,
		"cursor":             result.Cursor,
		"unitCount":          result.UnitCount,
		"newRecords":         result.NewRecords,
		"totalQuestionCount": result.TotalQuestionCount,
	})
}

func handleStatus(c *gin.Context, svc Service, opts HandlerOptions, jobID string) {
	if strings.TrimSpace(jobID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    extraction.CodeInvalidInput,
			"message": "jobId を指定してください。",
		})
		return
	}

	snap, err := svc.Status(jobID)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	payload := gin.H{
		"jobId":              snap.JobID,
		"status":             snap.Status,
		"cursor":             snap.Cursor,
		"unitCount":          snap.UnitCount,
		"totalQuestionCount": snap.TotalQuestionCount,
		"updatedAt":          snap.UpdatedAt,
		"retryAfterMs":       opts.PollIntervalMs,
	}
	if snap.Title != "" {
		payload["title"] = snap.Title
	}
	if snap.Error != nil {
		payload["error"] = snap.Error
	}
	c.JSON(http.StatusOK, payload)
}

func handleCancel(c *gin.Context, svc Service, jobID string) {
	if strings.TrimSpace(jobID) != "" {
		svc.Cancel(jobID)
	}
	// キャンセルは冪等で常に成功する。完了と競合しても失敗にはしない。
	c.JSON(http.StatusOK, gin.H{
		"message": "ジョブをキャンセルしました。",
	})
}

// StatusHandler は GET /api/jobs/:id のハンドラーを返します。
// ポーリング専用の読み取りエンドポイントで、変更系の経路には触れません。
func StatusHandler(svc Service, opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		handleStatus(c, svc, opts, c.Param("id"))
	}
}

// RespondWithError はエラーを共通形式の JSON レスポンスに変換して返します。
func RespondWithError(c *gin.Context, err error) {
	var exErr *extraction.Error
	switch {
	case errors.As(err, &exErr):
		payload := gin.H{
			"code":    exErr.Code,
			"message": exErr.Message,
		}
		if exErr.Phase != "" {
			payload["phase"] = exErr.Phase
		}
		if exErr.Retriable {
			payload["retriable"] = true
		}
		c.JSON(statusForCode(exErr.Code), payload)
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}

func statusForCode(code string) int {
	switch code {
	case extraction.CodeInvalidInput:
		return http.StatusBadRequest
	case extraction.CodeJobNotFound:
		return http.StatusNotFound
	case extraction.CodeJobConflict:
		return http.StatusConflict
	case extraction.CodeGenerationFailed:
		return http.StatusBadGateway
	case extraction.CodePersistenceFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
