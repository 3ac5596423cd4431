package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"

	"github.com/cloudwego/eino/components/embedding"

	"resume-insight-go/internal/config"
)

// AliyunEmbedder 实现 embedding.Embedder 接口（OpenAI兼容端点）
// 入库与查询必须使用同一个实例，保证嵌入空间一致
type AliyunEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// NewAliyunEmbedder 创建新的阿里云Embedder
func NewAliyunEmbedder(apiKey string, embeddingCfg config.EmbeddingConfig) (*AliyunEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API密钥不能为空")
	}

	model := embeddingCfg.Model
	if model == "" {
		model = "text-embedding-v3"
	}
	baseURL := embeddingCfg.BaseURL
	if baseURL == "" {
		baseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/embeddings"
	}

	return &AliyunEmbedder{
		apiKey:     apiKey,
		model:      model,
		dimensions: embeddingCfg.Dimensions,
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     log.New(os.Stderr, "[AliyunEmbedder] ", log.LstdFlags),
	}, nil
}

// GetDimensions 返回嵌入器配置的维度
func (a *AliyunEmbedder) GetDimensions() int {
	return a.dimensions
}

// aliyunOpenAIEmbeddingRequest 阿里云Embedding请求结构（OpenAI兼容）
type aliyunOpenAIEmbeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	Dimensions     int      `json:"dimensions,omitempty"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

type aliyunOpenAIDataEntry struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type aliyunOpenAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// aliyunOpenAIEmbeddingResponse 阿里云Embedding响应结构（OpenAI兼容）
type aliyunOpenAIEmbeddingResponse struct {
	Object string                  `json:"object"`
	Data   []aliyunOpenAIDataEntry `json:"data"`
	Model  string                  `json:"model"`
	Error  *aliyunOpenAIError      `json:"error,omitempty"`
}

// EmbedStrings 将文本转换为向量，实现 cloudwego/eino embedding.Embedder 接口
func (a *AliyunEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	options := &embedding.Options{}
	embedding.GetCommonOptions(options, opts...)

	effectiveModel := a.model
	if options.Model != nil && *options.Model != "" {
		effectiveModel = *options.Model
	}

	reqBody := aliyunOpenAIEmbeddingRequest{
		Input:          texts,
		Model:          effectiveModel,
		EncodingFormat: "float",
	}
	if a.dimensions > 0 {
		reqBody.Dimensions = a.dimensions
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化Embedding请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建Embedding请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送Embedding请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取Embedding响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Embedding API返回错误，状态码: %d, 响应: %s", resp.StatusCode, string(respBody))
	}

	var parsed aliyunOpenAIEmbeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("解析Embedding响应失败: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("Embedding API错误: %s (code=%s)", parsed.Error.Message, parsed.Error.Code)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("Embedding响应数量(%d)与输入数量(%d)不匹配", len(parsed.Data), len(texts))
	}

	// 按Index恢复与输入一致的顺序
	sort.Slice(parsed.Data, func(i, j int) bool {
		return parsed.Data[i].Index < parsed.Data[j].Index
	})

	embeddings := make([][]float64, len(parsed.Data))
	for i, entry := range parsed.Data {
		embeddings[i] = entry.Embedding
	}

	a.logger.Printf("成功嵌入 %d 条文本, 维度=%d", len(embeddings), firstEmbeddingDim(embeddings))
	return embeddings, nil
}

func firstEmbeddingDim(embeddings [][]float64) int {
	if len(embeddings) == 0 {
		return 0
	}
	return len(embeddings[0])
}
