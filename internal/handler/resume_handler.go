package handler

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"resume-insight-go/internal/config"
	"resume-insight-go/internal/constants"
	"resume-insight-go/internal/logger"
	"resume-insight-go/internal/processor"
	"resume-insight-go/internal/storage"
	"resume-insight-go/internal/storage/models"
	"resume-insight-go/internal/types"
)

// 无法从简历中提取到姓名时的兜底键
const unknownCandidateName = "Unknown Name"

// UploadResult 单次上传处理的完整结果
type UploadResult struct {
	UploadUUID    string
	CandidateName string
	PointID       string
	ExtractedInfo *types.StructuredExtraction
	Inference     types.Inference
	DuplicateFile bool
}

// ResumeHandler 简历处理流水线的核心编排器
// 流程: 临时落盘 -> 文本提取 -> 四组字段提取 -> 推断生成 -> 向量入库
// MinIO归档、Redis去重标记、MySQL审计、RabbitMQ事件均为尽力而为，失败不中断主流程
type ResumeHandler struct {
	cfg     *config.Config
	storage *storage.Storage

	pdfExtractor       processor.PDFTextExtractor
	fieldExtractor     processor.ResumeFieldExtractor
	inferenceGenerator processor.ResumeInferenceGenerator
	inferenceStore     *processor.InferenceStore
}

// NewResumeHandler 创建简历处理编排器
func NewResumeHandler(
	cfg *config.Config,
	st *storage.Storage,
	pdfExtractor processor.PDFTextExtractor,
	fieldExtractor processor.ResumeFieldExtractor,
	inferenceGenerator processor.ResumeInferenceGenerator,
	inferenceStore *processor.InferenceStore,
) (*ResumeHandler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	if st == nil || st.Qdrant == nil {
		return nil, fmt.Errorf("存储管理器未初始化")
	}
	if pdfExtractor == nil || fieldExtractor == nil || inferenceGenerator == nil || inferenceStore == nil {
		return nil, fmt.Errorf("流水线组件不完整")
	}
	return &ResumeHandler{
		cfg:                cfg,
		storage:            st,
		pdfExtractor:       pdfExtractor,
		fieldExtractor:     fieldExtractor,
		inferenceGenerator: inferenceGenerator,
		inferenceStore:     inferenceStore,
	}, nil
}

// HandleResumeUpload 处理一次简历上传
// 每次上传分配独立的UUID和临时文件，处理结束即删除，避免并发请求互相覆盖
func (h *ResumeHandler) HandleResumeUpload(ctx context.Context, fileReader io.Reader, fileSize int64, originalFilename string) (*UploadResult, error) {
	uploadUUID := uuid.New().String()

	fileBytes, err := io.ReadAll(fileReader)
	if err != nil {
		return nil, processor.NewPipelineError(uploadUUID, "read_upload", processor.ErrExtractTextFailed, err)
	}
	if fileSize <= 0 {
		fileSize = int64(len(fileBytes))
	}

	md5Sum := md5.Sum(fileBytes)
	fileMD5 := hex.EncodeToString(md5Sum[:])

	// 重复文件只打标记，不拒绝处理：同一份简历允许重复上传并覆盖向量
	duplicate, md5Registered := h.markFileMD5(ctx, uploadUUID, fileMD5)

	// 流水线失败时撤销本次新登记的MD5，同一文件重试不会被误标为重复
	processed := false
	defer func() {
		if processed || !md5Registered {
			return
		}
		if err := h.storage.Redis.RemoveRawFileMD5(ctx, fileMD5); err != nil {
			logger.Warn().Err(err).Str("upload_uuid", uploadUUID).Msg("撤销文件MD5登记失败")
		}
	}()

	tempPath, err := h.writeTempFile(uploadUUID, originalFilename, fileBytes)
	if err != nil {
		return nil, processor.NewPipelineError(uploadUUID, "write_temp_file", processor.ErrExtractTextFailed, err)
	}
	defer func() {
		if rmErr := os.Remove(tempPath); rmErr != nil {
			logger.Warn().Err(rmErr).Str("path", tempPath).Msg("删除临时文件失败")
		}
	}()

	archiveKey := h.archiveOriginal(ctx, uploadUUID, originalFilename, fileBytes, fileSize)

	resumeText, err := h.pdfExtractor.ExtractFromFile(ctx, tempPath)
	if err != nil {
		return nil, processor.NewPipelineError(uploadUUID, "extract_text", processor.ErrExtractTextFailed, err)
	}

	extraction, err := h.fieldExtractor.ExtractAll(ctx, resumeText)
	if err != nil {
		return nil, processor.NewPipelineError(uploadUUID, "extract_fields", processor.ErrExtractFieldsFailed, err)
	}

	inference, err := h.inferenceGenerator.GenerateInference(ctx, extraction)
	if err != nil {
		return nil, processor.NewPipelineError(uploadUUID, "generate_inference", processor.ErrGenerateInferenceFail, err)
	}

	candidateName := extraction.PersonalInformation.Name
	if candidateName == "" {
		// 所有无名简历落到同一个键上，后到者覆盖先到者
		logger.Warn().Str("upload_uuid", uploadUUID).
			Msg("简历未提取到姓名，使用兜底键入库，可能覆盖其他无名简历")
		candidateName = unknownCandidateName
	}

	h.warnIfOverwriting(ctx, uploadUUID, candidateName)

	record := types.InferenceRecord{
		ID:   candidateName,
		Text: inference.Inference,
		Metadata: types.InferenceMetadata{
			Source:    constants.MetadataSource,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Author:    constants.MetadataAuthor,
		},
	}

	pointID, err := h.inferenceStore.Upsert(ctx, record)
	if err != nil {
		return nil, processor.NewPipelineError(uploadUUID, "upsert_inference", processor.ErrUpsertInferenceFailed, err)
	}

	result := &UploadResult{
		UploadUUID:    uploadUUID,
		CandidateName: candidateName,
		PointID:       pointID,
		ExtractedInfo: extraction,
		Inference:     inference,
		DuplicateFile: duplicate,
	}

	h.saveAuditRecord(ctx, result, originalFilename, fileMD5, archiveKey)
	h.publishProcessedEvent(ctx, result)

	processed = true
	logger.Info().
		Str("upload_uuid", uploadUUID).
		Str("candidate_name", candidateName).
		Str("point_id", pointID).
		Bool("duplicate_file", duplicate).
		Msg("简历处理完成")

	return result, nil
}

// HandleRetrieveDocuments 按自由文本检索最相似的候选人推断
func (h *ResumeHandler) HandleRetrieveDocuments(ctx context.Context, query string, topK int) ([]types.ScoredDocument, error) {
	docs, err := h.inferenceStore.RetrieveTopDocuments(ctx, query, topK)
	if err != nil {
		return nil, processor.NewPipelineError("", "retrieve_documents", processor.ErrQueryInferenceFailed, err)
	}
	return docs, nil
}

// ComponentHealth 返回已配置可选组件的连通性状态
func (h *ResumeHandler) ComponentHealth(ctx context.Context) map[string]string {
	components := map[string]string{}
	if h.storage.Redis != nil {
		if err := h.storage.Redis.Ping(ctx); err != nil {
			components["redis"] = "unavailable"
		} else {
			components["redis"] = "ok"
		}
	}
	return components
}

// writeTempFile 将上传内容写入独立的临时文件，返回文件路径
func (h *ResumeHandler) writeTempFile(uploadUUID, originalFilename string, data []byte) (string, error) {
	ext := filepath.Ext(originalFilename)
	tempPath := filepath.Join(h.cfg.Server.UploadDir, fmt.Sprintf("resume-%s%s", uploadUUID, ext))
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return "", fmt.Errorf("写入临时文件失败: %w", err)
	}
	return tempPath, nil
}

// markFileMD5 在Redis登记文件MD5
// 返回该MD5是否已存在，以及本次是否新登记成功；Redis未配置或失败时两者均为false
func (h *ResumeHandler) markFileMD5(ctx context.Context, uploadUUID, fileMD5 string) (existed bool, registered bool) {
	if h.storage.Redis == nil {
		return false, false
	}
	existed, err := h.storage.Redis.CheckAndAddRawFileMD5(ctx, fileMD5)
	if err != nil {
		logger.Warn().Err(err).Str("upload_uuid", uploadUUID).Msg("登记文件MD5失败，跳过重复标记")
		return false, false
	}
	if existed {
		logger.Info().Str("upload_uuid", uploadUUID).Str("file_md5", fileMD5).
			Msg("检测到重复文件，继续处理并覆盖已有向量")
	}
	return existed, !existed
}

// warnIfOverwriting 同名候选人再次上传会覆盖已有向量，依据审计历史提前告警
func (h *ResumeHandler) warnIfOverwriting(ctx context.Context, uploadUUID, candidateName string) {
	if h.storage.MySQL == nil {
		return
	}
	prior, err := h.storage.MySQL.ListUploadsByCandidate(ctx, candidateName)
	if err != nil {
		logger.Warn().Err(err).Str("upload_uuid", uploadUUID).Msg("查询候选人历史上传失败")
		return
	}
	if len(prior) > 0 {
		logger.Warn().
			Str("upload_uuid", uploadUUID).
			Str("candidate_name", candidateName).
			Int("prior_uploads", len(prior)).
			Msg("候选人已有历史上传，向量记录将被覆盖")
	}
}

// archiveOriginal 归档原始文件到MinIO，失败只记录警告
func (h *ResumeHandler) archiveOriginal(ctx context.Context, uploadUUID, originalFilename string, data []byte, fileSize int64) string {
	if h.storage.MinIO == nil {
		return ""
	}
	objectKey, err := h.storage.MinIO.ArchiveResumeFile(ctx, uploadUUID, originalFilename, bytes.NewReader(data), fileSize)
	if err != nil {
		logger.Warn().Err(err).Str("upload_uuid", uploadUUID).Msg("归档原始简历失败")
		return ""
	}
	return objectKey
}

// saveAuditRecord 写入MySQL审计记录，失败只记录警告
func (h *ResumeHandler) saveAuditRecord(ctx context.Context, result *UploadResult, originalFilename, fileMD5, archiveKey string) {
	if h.storage.MySQL == nil {
		return
	}

	extractedJSON, err := json.Marshal(result.ExtractedInfo)
	if err != nil {
		logger.Warn().Err(err).Str("upload_uuid", result.UploadUUID).Msg("序列化提取结果失败，跳过审计记录")
		return
	}

	upload := &models.ResumeUpload{
		UploadUUID:       result.UploadUUID,
		CandidateName:    result.CandidateName,
		OriginalFilename: originalFilename,
		FileMD5:          fileMD5,
		DuplicateFile:    result.DuplicateFile,
		ArchiveObjectKey: archiveKey,
		ExtractedInfo:    datatypes.JSON(extractedJSON),
		InferenceText:    result.Inference.Inference,
		PointID:          result.PointID,
	}
	if err := h.storage.MySQL.SaveResumeUpload(ctx, upload); err != nil {
		logger.Warn().Err(err).Str("upload_uuid", result.UploadUUID).Msg("写入上传审计记录失败")
	}
}

// publishProcessedEvent 发布处理完成事件，失败只记录警告
func (h *ResumeHandler) publishProcessedEvent(ctx context.Context, result *UploadResult) {
	if h.storage.RabbitMQ == nil {
		return
	}
	event := storage.ResumeProcessedEvent{
		UploadUUID:    result.UploadUUID,
		CandidateName: result.CandidateName,
		PointID:       result.PointID,
		ProcessedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.storage.RabbitMQ.PublishResumeProcessed(ctx, event); err != nil {
		logger.Warn().Err(err).Str("upload_uuid", result.UploadUUID).Msg("发布处理完成事件失败")
	}
}
