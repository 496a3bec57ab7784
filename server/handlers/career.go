package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wordflowlab/careerpilot/pkg/career"
	"github.com/wordflowlab/careerpilot/pkg/logging"
	"github.com/wordflowlab/careerpilot/pkg/types"
	"github.com/wordflowlab/careerpilot/server/observability"
)

// RequestIDKey gin 上下文中保存请求 ID 的键
const RequestIDKey = "requestID"

// CVProcessor 导入简历并生成摘要
type CVProcessor interface {
	Process(ctx context.Context, path string) (*career.CVResult, error)
}

// CourseRecommender 根据画像推荐课程
type CourseRecommender interface {
	Recommend(ctx context.Context, query string) (string, error)
}

// CareerHandler handles the CV upload and course recommendation routes
type CareerHandler struct {
	cv        CVProcessor
	courses   CourseRecommender
	uploadDir string
	metrics   *observability.MetricsManager
	logger    *logging.Logger
}

// NewCareerHandler creates a new CareerHandler.
// uploadDir 为空时使用系统临时目录; metrics 可以为 nil。
func NewCareerHandler(cv CVProcessor, courses CourseRecommender, uploadDir string, metrics *observability.MetricsManager, logger *logging.Logger) *CareerHandler {
	if logger == nil {
		logger = logging.Default
	}
	return &CareerHandler{
		cv:        cv,
		courses:   courses,
		uploadDir: uploadDir,
		metrics:   metrics,
		logger:    logger,
	}
}

// UploadCV 接收 multipart 字段 file, 暂存到本请求独占的目录, 处理完成后无论成败都删除。
func (h *CareerHandler) UploadCV(c *gin.Context) {
	ctx := c.Request.Context()

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.observeUpload("too_large", "")
			c.String(http.StatusRequestEntityTooLarge, "File too large.")
			return
		}
		h.observeUpload("missing", "")
		h.logger.Warn(ctx, "cv.upload_missing", map[string]interface{}{"error": err.Error()})
		c.String(StatusFor(types.ErrUploadMissing), "No file uploaded.")
		return
	}
	ext := extLabel(fh.Filename)

	dir, err := os.MkdirTemp(h.uploadDir, "upload-"+c.GetString(RequestIDKey)+"-*")
	if err != nil {
		h.observeUpload("failed", ext)
		h.logger.Error(ctx, "cv.stage_failed", map[string]interface{}{"error": err.Error()})
		c.String(http.StatusInternalServerError, "Error uploading file")
		return
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			h.logger.Warn(ctx, "cv.cleanup_failed", map[string]interface{}{"dir": dir, "error": err.Error()})
		}
	}()

	path := filepath.Join(dir, StagedName(fh.Filename))
	if err := c.SaveUploadedFile(fh, path); err != nil {
		h.observeUpload("failed", ext)
		h.logger.Error(ctx, "cv.stage_failed", map[string]interface{}{"error": err.Error()})
		c.String(http.StatusInternalServerError, "Error uploading file")
		return
	}
	h.logger.Info(ctx, "cv.uploaded", map[string]interface{}{
		"file": fh.Filename,
		"size": fh.Size,
	})

	res, err := h.cv.Process(ctx, path)
	if err != nil {
		status := StatusFor(err)
		if status == http.StatusBadRequest {
			h.observeUpload("bad_request", ext)
		} else {
			h.observeUpload("failed", ext)
		}
		h.logger.Error(ctx, "cv.process_failed", map[string]interface{}{
			"file":   fh.Filename,
			"status": status,
			"error":  err.Error(),
		})
		c.String(status, "Error processing file: "+err.Error())
		return
	}

	h.observeUpload("ok", ext)
	if h.metrics != nil {
		if res.Ingest != nil {
			h.metrics.ObserveIngest(res.Ingest.Chunks, res.Ingest.Upsert.Upserted, res.Ingest.Elapsed)
		}
		h.metrics.ObserveAgentRounds("cv_summary", res.Rounds)
	}
	c.JSON(http.StatusOK, res.Summary)
}

// RecommendCourses 接收 {"query": string}, 返回格式化的课程列表
func (h *CareerHandler) RecommendCourses(c *gin.Context) {
	ctx := c.Request.Context()

	var req struct {
		Query string `json:"query"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.observeRecommendation("bad_request")
		c.String(http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		h.observeRecommendation("bad_request")
		c.String(http.StatusBadRequest, "query is required")
		return
	}

	out, err := h.courses.Recommend(ctx, req.Query)
	if err != nil {
		h.observeRecommendation("failed")
		h.logger.Error(ctx, "courses.recommend_failed", map[string]interface{}{"error": err.Error()})
		c.String(http.StatusInternalServerError, "Error getting course recommendations: "+err.Error())
		return
	}

	h.observeRecommendation("ok")
	c.JSON(http.StatusOK, out)
}

func (h *CareerHandler) observeUpload(outcome, ext string) {
	if h.metrics != nil {
		h.metrics.ObserveUpload(outcome, ext)
	}
}

func (h *CareerHandler) observeRecommendation(outcome string) {
	if h.metrics != nil {
		h.metrics.ObserveRecommendation(outcome)
	}
}

// extLabel 指标标签只使用已知扩展名, 避免基数失控
func extLabel(name string) string {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".pdf", ".docx", ".csv":
		return ext
	default:
		return "other"
	}
}

// StagedName 返回上传文件在暂存目录中的文件名, 只保留原始文件名的最后一段
func StagedName(original string) string {
	name := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "upload" + strings.ToLower(filepath.Ext(original))
	}
	return name
}

// StatusFor 把流水线错误映射为 HTTP 状态码
func StatusFor(err error) int {
	var unsupported *types.UnsupportedFileTypeError
	switch {
	case errors.Is(err, types.ErrUploadMissing), errors.As(err, &unsupported):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
