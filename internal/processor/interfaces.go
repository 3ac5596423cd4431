package processor

import (
	"context"

	"resume-insight-go/internal/types"
)

// TextEmbedder 文本嵌入能力
// 入库与查询必须使用同一实现，保证嵌入空间一致
type TextEmbedder interface {
	EmbedStrings(ctx context.Context, texts []string) ([][]float64, error)
}

// PDFTextExtractor 从PDF文件提取纯文本
type PDFTextExtractor interface {
	ExtractFromFile(ctx context.Context, filePath string) (string, error)
}

// ResumeFieldExtractor 四组字段的结构化提取
type ResumeFieldExtractor interface {
	ExtractAll(ctx context.Context, resumeText string) (*types.StructuredExtraction, error)
}

// ResumeInferenceGenerator 基于结构化提取生成叙述性评价
type ResumeInferenceGenerator interface {
	GenerateInference(ctx context.Context, extraction *types.StructuredExtraction) (types.Inference, error)
}
