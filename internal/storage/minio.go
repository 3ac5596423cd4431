package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"resume-insight-go/internal/config"
)

// MinIO 对象存储，用于归档原始简历文件
type MinIO struct {
	client       *minio.Client
	resumeBucket string
	logger       *log.Logger
}

// NewMinIO 创建MinIO客户端并确保归档桶存在
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	resumeBucket := cfg.ResumeBucket
	if resumeBucket == "" {
		resumeBucket = "resume-originals"
	}

	m := &MinIO{
		client:       client,
		resumeBucket: resumeBucket,
		logger:       logger,
	}

	if err := m.ensureBucketExists(resumeBucket); err != nil {
		return nil, err
	}

	return m, nil
}

// ensureBucketExists 确保桶存在，不存在则创建
func (m *MinIO) ensureBucketExists(bucketName string) error {
	ctx := context.Background()
	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查桶 %s 是否存在失败: %w", bucketName, err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("创建桶 %s 失败: %w", bucketName, err)
		}
		m.logger.Printf("[MinIO] 已创建桶: %s", bucketName)
	}
	return nil
}

// ArchiveResumeFile 归档一份原始简历文件，返回对象键
// 对象键为 {uploadUUID}/original{ext}
func (m *MinIO) ArchiveResumeFile(ctx context.Context, uploadUUID string, originalFilename string, reader io.Reader, fileSize int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	objectName := fmt.Sprintf("%s/original%s", uploadUUID, ext)

	_, err := m.client.PutObject(ctx, m.resumeBucket, objectName, reader, fileSize, minio.PutObjectOptions{
		ContentType: contentTypeForExt(ext),
	})
	if err != nil {
		return "", fmt.Errorf("归档简历文件失败: %w", err)
	}

	m.logger.Printf("[MinIO] 已归档简历文件: %s/%s (%.2f KB)", m.resumeBucket, objectName, float64(fileSize)/1024)
	return objectName, nil
}

func contentTypeForExt(ext string) string {
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
