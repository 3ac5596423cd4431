package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	// DashScope的OpenAI兼容chat completions端点
	openAICompatibleQwenAPIURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	defaultQwenModelName       = "qwen-plus"

	// 与原流水线一致的固定采样温度，跨调用结果非确定
	defaultTemperature float32 = 0.7
)

// AliyunQwenChatModel 实现 model.ToolCallingChatModel 接口，
// 用于与阿里云通义千问模型交互（OpenAI兼容协议）。
type AliyunQwenChatModel struct {
	apiKey      string
	modelName   string
	apiURL      string
	temperature float32
	httpClient  *http.Client
}

// QwenOption 模型客户端的配置选项
type QwenOption func(*AliyunQwenChatModel)

// WithTemperature 设置采样温度
func WithTemperature(t float32) QwenOption {
	return func(m *AliyunQwenChatModel) {
		m.temperature = t
	}
}

// WithHTTPTimeout 设置HTTP客户端超时
func WithHTTPTimeout(timeout time.Duration) QwenOption {
	return func(m *AliyunQwenChatModel) {
		m.httpClient = &http.Client{Timeout: timeout}
	}
}

// NewAliyunQwenChatModel 创建一个新的 AliyunQwenChatModel 实例
func NewAliyunQwenChatModel(apiKey string, modelName string, apiURL string, opts ...QwenOption) (*AliyunQwenChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}

	mn := modelName
	if strings.TrimSpace(mn) == "" {
		mn = defaultQwenModelName
	}

	url := apiURL
	if strings.TrimSpace(url) == "" {
		url = openAICompatibleQwenAPIURL
	}

	m := &AliyunQwenChatModel{
		apiKey:      apiKey,
		modelName:   mn,
		apiURL:      url,
		temperature: defaultTemperature,
		httpClient:  &http.Client{},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// --- OpenAI兼容的请求/响应结构 ---

type openAIChatCompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"`
	Temperature float32           `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type openAIChatChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAICompletionResponse struct {
	Id      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []openAIChatChoice `json:"choices"`
	Error   *openAIError       `json:"error,omitempty"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Generate 实现 model.ChatModel 接口
func (aq *AliyunQwenChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	// 通用options在此模型中不改变行为，温度在构造时固定
	_ = options

	reqBody := openAIChatCompletionRequest{
		Model:       aq.modelName,
		Messages:    messages,
		Temperature: aq.temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化LLM请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, aq.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建LLM请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+aq.apiKey)

	resp, err := aq.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送LLM请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取LLM响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("LLM API返回错误，状态码: %d, 响应: %s", resp.StatusCode, string(respBody))
	}

	var completion openAICompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, fmt.Errorf("解析LLM响应失败: %w", err)
	}

	if completion.Error != nil {
		return nil, fmt.Errorf("LLM API错误: %s (code=%s)", completion.Error.Message, completion.Error.Code)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("LLM响应中没有choices")
	}

	choice := completion.Choices[0]
	content := ""
	if choice.Message.Content != nil {
		content = *choice.Message.Content
	}

	return &schema.Message{
		Role:    schema.RoleType(choice.Message.Role),
		Content: content,
	}, nil
}

// Stream 实现 model.ChatModel 接口，本服务不使用流式输出
func (aq *AliyunQwenChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("流式输出未实现")
}

// WithTools 实现 model.ToolCallingChatModel 接口
// 本流水线不绑定工具，仅为满足接口要求
func (aq *AliyunQwenChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if len(tools) > 0 {
		return nil, fmt.Errorf("该模型客户端不支持工具调用")
	}
	return aq, nil
}
