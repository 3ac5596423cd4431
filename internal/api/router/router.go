package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	apiHandler "resume-insight-go/internal/api/handler"
)

// RegisterRoutes 注册所有HTTP路由
func RegisterRoutes(h *server.Hertz, resumeAPI *apiHandler.ResumeAPIHandler) {
	h.GET("/", resumeAPI.Index)
	h.GET("/health", resumeAPI.Health)
	h.POST("/resume/upload", resumeAPI.UploadResume)
	h.POST("/documents/retrieve", resumeAPI.RetrieveDocuments)
}
