package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"

	coreHandler "resume-insight-go/internal/handler"
	"resume-insight-go/internal/logger"
	"resume-insight-go/internal/parser"
	"resume-insight-go/internal/types"
)

// ResumeAPIHandler 简历相关HTTP接口
type ResumeAPIHandler struct {
	core *coreHandler.ResumeHandler
}

// NewResumeAPIHandler 创建HTTP接口处理器
func NewResumeAPIHandler(core *coreHandler.ResumeHandler) *ResumeAPIHandler {
	return &ResumeAPIHandler{core: core}
}

// retrieveRequest 文档检索请求体
type retrieveRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"` // 可选，<=0时使用服务端默认值
}

// Index GET / 服务自述
func (h *ResumeAPIHandler) Index(ctx context.Context, c *app.RequestContext) {
	c.JSON(http.StatusOK, utils.H{
		"message": "Resume Insight Service",
		"endpoints": []string{
			"POST /resume/upload",
			"POST /documents/retrieve",
			"GET /health",
		},
	})
}

// Health GET /health 健康检查，附带已配置可选组件的连通性
func (h *ResumeAPIHandler) Health(ctx context.Context, c *app.RequestContext) {
	resp := utils.H{"status": "ok"}
	if components := h.core.ComponentHealth(ctx); len(components) > 0 {
		resp["components"] = components
	}
	c.JSON(http.StatusOK, resp)
}

// uploadedFile 从multipart表单取出文件字段
// 浏览器未选择文件时会发送filename为空的file部件，Go的multipart解析把它归入
// 表单值而不是文件，借此与完全缺失file字段的请求区分开
func uploadedFile(c *app.RequestContext) (*multipart.FileHeader, string) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, "No file part"
	}
	files := form.File["file"]
	if len(files) == 0 {
		if _, ok := form.Value["file"]; ok {
			return nil, "No selected file"
		}
		return nil, "No file part"
	}
	if files[0].Filename == "" {
		return nil, "No selected file"
	}
	return files[0], ""
}

// UploadResume POST /resume/upload 上传并处理一份简历
// multipart表单，文件字段名为"file"
func (h *ResumeAPIHandler) UploadResume(ctx context.Context, c *app.RequestContext) {
	fileHeader, badRequest := uploadedFile(c)
	if badRequest != "" {
		c.JSON(http.StatusBadRequest, utils.H{"error": badRequest})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error().Err(err).Msg("打开上传文件失败")
		c.JSON(http.StatusInternalServerError, utils.H{"error": "Failed to read uploaded file"})
		return
	}
	defer file.Close()

	result, err := h.core.HandleResumeUpload(ctx, file, fileHeader.Size, fileHeader.Filename)
	if err != nil {
		logger.Error().Err(err).Str("filename", fileHeader.Filename).Msg("处理简历失败")

		// 模型输出反复无法解析属于上游输出问题，与内部故障区分开
		var malformed *parser.MalformedOutputError
		if errors.As(err, &malformed) {
			c.JSON(http.StatusBadGateway, utils.H{"error": "Language model returned unparseable output"})
			return
		}
		c.JSON(http.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, utils.H{
		"extracted_info": result.ExtractedInfo,
		"Inference":      result.Inference,
	})
}

// RetrieveDocuments POST /documents/retrieve 按文本检索候选人推断
func (h *ResumeAPIHandler) RetrieveDocuments(ctx context.Context, c *app.RequestContext) {
	var req retrieveRequest
	if err := c.BindJSON(&req); err != nil || req.Query == "" {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Query is required"})
		return
	}

	docs, err := h.core.HandleRetrieveDocuments(ctx, req.Query, req.TopK)
	if err != nil {
		logger.Error().Err(err).Str("query", req.Query).Msg("检索文档失败")
		c.JSON(http.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	if docs == nil {
		docs = []types.ScoredDocument{}
	}
	c.JSON(http.StatusOK, utils.H{"documents": docs})
}
