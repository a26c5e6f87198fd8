package pdfimport

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/exam-forge/internal/jobs"
)

// Extractor はアップロードされたPDFから生テキストを取得します。
type Extractor interface {
	ExtractMultipart(ctx context.Context, file *multipart.FileHeader) (string, error)
}

// UploadHandler は POST /api/tests/upload のハンドラーを返します。
// PDFを検証・抽出したうえで抽出ジョブを開始します。
func UploadHandler(extractor Extractor, svc jobs.Service, opts jobs.HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "multipart/form-data でPDFファイルを送信してください。",
			})
			return
		}
		defer form.RemoveAll()

		file := extractSingleFile(form)
		if file == nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "PDFファイルを選択してください。",
			})
			return
		}

		rawText, err := extractor.ExtractMultipart(c.Request.Context(), file)
		if err != nil {
			respondWithError(c, err)
			return
		}

		targetID := strings.TrimSpace(c.PostForm("targetId"))
		title := strings.TrimSpace(c.PostForm("title"))
		auto := c.PostForm("mode") == "auto"
		if auto && opts.Runner == nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "自動実行モードはこのサーバーでは利用できません。",
			})
			return
		}

		result, err := svc.Start(c.Request.Context(), rawText, targetID, title)
		if err != nil {
			respondWithError(c, err)
			return
		}

		if auto {
			if err := opts.Runner.Schedule(c.Request.Context(), result.JobID); err != nil {
				svc.Cancel(result.JobID)
				respondWithError(c, err)
				return
			}
		}

		c.JSON(http.StatusAccepted, gin.H{
			"jobId":        result.JobID,
			"status":       result.Status,
			"unitCount":    result.UnitCount,
			"retryAfterMs": opts.PollIntervalMs,
		})
	}
}

func extractSingleFile(form *multipart.Form) *multipart.FileHeader {
	if form == nil {
		return nil
	}
	for _, key := range []string{"file", "file[]", "files", "files[]"} {
		if files := form.File[key]; len(files) > 0 {
			return files[0]
		}
	}
	return nil
}

func respondWithError(c *gin.Context, err error) {
	var impErr *Error
	if errors.As(err, &impErr) {
		status := http.StatusBadRequest
		switch impErr.Code {
		case "LIMIT_EXCEEDED":
			status = http.StatusRequestEntityTooLarge
		case "EXTRACTOR_UNAVAILABLE":
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"code":    impErr.Code,
			"message": impErr.Message,
		})
		return
	}
	jobs.RespondWithError(c, err)
}
