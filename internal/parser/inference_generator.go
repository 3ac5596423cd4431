package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/cloudwego/eino/components/model"

	"resume-insight-go/internal/types"
)

const inferenceOperation = "inference"

const inferencePrompt = `You are a critical hiring manager. Based on the following extracted resume information, generate a detailed critical (positive and negative aspects) inference about the candidate's background information in the corresponding language of the candidate in JSON format:
Extracted Information:
%s
Add an inference of the candidate based on their strengths, skills, and experience.
Output format:
{
    "inference": ""
}
Analyzing the time, location, work experience, projects and awards, make a detailed deep analysis paragraph about the candidate's potential career based on the extracted information.`

// InferenceGenerator 基于聚合的结构化提取生成叙述性评价
type InferenceGenerator struct {
	extractor *FieldExtractor // 复用提取器的调用、重试与JSON修复逻辑
	logger    *log.Logger
}

// NewInferenceGenerator 创建推断生成器
func NewInferenceGenerator(llmModel model.ToolCallingChatModel, options ...FieldExtractorOption) *InferenceGenerator {
	return &InferenceGenerator{
		extractor: NewFieldExtractor(llmModel, options...),
		logger:    log.New(io.Discard, "", 0),
	}
}

// GenerateInference 将四组提取结果序列化后交给模型，返回单字段的叙述性评价
func (g *InferenceGenerator) GenerateInference(ctx context.Context, extraction *types.StructuredExtraction) (types.Inference, error) {
	var result types.Inference

	extractedJSON, err := json.Marshal(extraction)
	if err != nil {
		return result, fmt.Errorf("序列化结构化提取结果失败: %w", err)
	}

	startTime := time.Now()
	err = g.extractor.extractInto(ctx, inferenceOperation, fmt.Sprintf(inferencePrompt, string(extractedJSON)), &result)
	if err != nil {
		return result, err
	}

	g.logger.Printf("[InferenceGenerator] 推断生成完成, %d 个字符 (用时 %.2f秒)",
		len(result.Inference), time.Since(startTime).Seconds())
	return result, nil
}
