package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"

	"resume-insight-go/internal/types"
)

// 字段组名称，与聚合结果的键保持一致
const (
	GroupPersonalInformation = "personal_information"
	GroupEducation           = "education"
	GroupWorkExperience      = "work_experience"
	GroupProjectsAndSkills   = "projects_and_skills"
)

const extractorSystemPrompt = `You are an information extraction assistant. ` +
	`You always answer with a single valid JSON value matching the requested shape, with no surrounding commentary.`

// MalformedOutputError 表示模型输出无法解析为约定的JSON形状
// 修复重试耗尽后由提取器返回
type MalformedOutputError struct {
	Group string // 出错的字段组或操作名
	Raw   string // 模型的原始输出
	Err   error  // 底层解析错误
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("模型输出不是合法的JSON (组:%s): %v", e.Group, e.Err)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Err
}

// FieldExtractor 负责四组字段的结构化提取
// 四个操作接收完全相同的简历文本，互相独立
type FieldExtractor struct {
	llmModel          model.ToolCallingChatModel
	maxRepairAttempts int           // JSON解析失败后的重新提示次数
	callTimeout       time.Duration // 单次LLM调用超时
	logger            *log.Logger
}

// FieldExtractorOption 提取器配置选项
type FieldExtractorOption func(*FieldExtractor)

// WithMaxRepairAttempts 设置解析失败后的修复重试次数
func WithMaxRepairAttempts(n int) FieldExtractorOption {
	return func(e *FieldExtractor) {
		e.maxRepairAttempts = n
	}
}

// WithCallTimeout 设置单次LLM调用超时
func WithCallTimeout(d time.Duration) FieldExtractorOption {
	return func(e *FieldExtractor) {
		e.callTimeout = d
	}
}

// WithExtractorLogger 设置日志记录器
func WithExtractorLogger(logger *log.Logger) FieldExtractorOption {
	return func(e *FieldExtractor) {
		e.logger = logger
	}
}

// NewFieldExtractor 创建字段提取器
func NewFieldExtractor(llmModel model.ToolCallingChatModel, options ...FieldExtractorOption) *FieldExtractor {
	e := &FieldExtractor{
		llmModel:          llmModel,
		maxRepairAttempts: 2,
		callTimeout:       60 * time.Second,
		logger:            log.New(io.Discard, "", 0),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// 固定提示词模板，内嵌简历全文和目标JSON形状示例

const personalInfoPrompt = `Extract the personal information from the following resume text in JSON format:
Resume text:
%s
Personal Information:
{
    "name": "",
    "address": "",
    "email": "",
    "phone": "",
    "awards": [""]
}
"phone" is optional. "awards" lists any awards or certifications, add more entries as needed.`

const educationPrompt = `Extract the education details from the following resume text in JSON format:
Resume text:
%s
Education:
[
    {
        "school": "",
        "degree": "",
        "graduation_year": "",
        "gpa": ""
    }
]
"gpa" is optional. Add more entries as needed.`

const workExperiencePrompt = `Extract the work experience details from the following resume text in JSON format:
Resume text:
%s
Work Experience:
[
    {
        "company": "",
        "position": "",
        "duration": "",
        "skills_involved": ""
    }
]
"company" must be an eligible company name. Infer "skills_involved" from the work description. Add more entries as needed.`

const projectsAndSkillsPrompt = `Extract the project experience and skills from the following resume text in JSON format:
Resume text:
%s
Output:
{
    "Project Experience": [
        {
            "name": "",
            "duration": "",
            "role": "",
            "technologies_used": "",
            "description": "",
            "achievements": "",
            "team_size": "",
            "responsibilities": ""
        }
    ],
    "Skills": [""]
}
"Skills" lists technical skills and soft skills, inferred if possible. Add more entries as needed.`

// ExtractPersonalInfo 提取个人信息
func (e *FieldExtractor) ExtractPersonalInfo(ctx context.Context, resumeText string) (types.PersonalInfo, error) {
	var result types.PersonalInfo
	err := e.extractInto(ctx, GroupPersonalInformation, fmt.Sprintf(personalInfoPrompt, resumeText), &result)
	return result, err
}

// ExtractEducation 提取教育经历
func (e *FieldExtractor) ExtractEducation(ctx context.Context, resumeText string) ([]types.Education, error) {
	var result []types.Education
	err := e.extractInto(ctx, GroupEducation, fmt.Sprintf(educationPrompt, resumeText), &result)
	return result, err
}

// ExtractWorkExperience 提取工作经历
func (e *FieldExtractor) ExtractWorkExperience(ctx context.Context, resumeText string) ([]types.WorkExperience, error) {
	var result []types.WorkExperience
	err := e.extractInto(ctx, GroupWorkExperience, fmt.Sprintf(workExperiencePrompt, resumeText), &result)
	return result, err
}

// ExtractProjectsAndSkills 提取项目经历和技能
func (e *FieldExtractor) ExtractProjectsAndSkills(ctx context.Context, resumeText string) (types.ProjectsAndSkills, error) {
	var result types.ProjectsAndSkills
	err := e.extractInto(ctx, GroupProjectsAndSkills, fmt.Sprintf(projectsAndSkillsPrompt, resumeText), &result)
	return result, err
}

// ExtractAll 并发执行四组独立提取，聚合为StructuredExtraction
// 任一组失败则整体失败，保持原流水线"全有或全无"的语义
func (e *FieldExtractor) ExtractAll(ctx context.Context, resumeText string) (*types.StructuredExtraction, error) {
	extraction := &types.StructuredExtraction{}
	errs := make([]error, 4)

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		extraction.PersonalInformation, errs[0] = e.ExtractPersonalInfo(ctx, resumeText)
	}()
	go func() {
		defer wg.Done()
		extraction.Education, errs[1] = e.ExtractEducation(ctx, resumeText)
	}()
	go func() {
		defer wg.Done()
		extraction.WorkExperience, errs[2] = e.ExtractWorkExperience(ctx, resumeText)
	}()
	go func() {
		defer wg.Done()
		extraction.ProjectsAndSkills, errs[3] = e.ExtractProjectsAndSkills(ctx, resumeText)
	}()

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return extraction, nil
}

// extractInto 执行一次字段提取：调用LLM、截取JSON、反序列化到目标类型
// 解析失败时带着错误信息重新提示，最多 maxRepairAttempts 次
func (e *FieldExtractor) extractInto(ctx context.Context, group string, prompt string, target interface{}) error {
	userContent := prompt
	var lastErr error
	var lastRaw string

	for attempt := 0; attempt <= e.maxRepairAttempts; attempt++ {
		if attempt > 0 {
			e.logger.Printf("[FieldExtractor] 组 %s 第%d次修复重试: %v", group, attempt, lastErr)
			userContent = fmt.Sprintf("%s\n\nYour previous answer could not be parsed (%v). Respond again with only the valid JSON value.", prompt, lastErr)
		}

		response, err := e.callLLM(ctx, extractorSystemPrompt, userContent)
		if err != nil {
			// 传输层错误不属于格式问题，直接上抛
			return fmt.Errorf("提取字段组 %s 失败: %w", group, err)
		}
		lastRaw = response

		jsonStr := ExtractJSON(response)
		if jsonStr == "" {
			lastErr = fmt.Errorf("响应中未找到JSON")
			continue
		}

		if err := json.Unmarshal([]byte(jsonStr), target); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return &MalformedOutputError{Group: group, Raw: lastRaw, Err: lastErr}
}

// callLLM 调用LLM，对可重试的传输错误做指数退避
func (e *FieldExtractor) callLLM(ctx context.Context, systemContent string, userContent string) (string, error) {
	messages := []*einoschema.Message{
		{Role: "system", Content: systemContent},
		{Role: "user", Content: userContent},
	}

	maxRetries := 2
	retryDelay := 2 * time.Second

	var response *einoschema.Message
	var err error

	for retry := 0; retry <= maxRetries; retry++ {
		if retry > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("上下文已取消: %w", ctx.Err())
			case <-time.After(retryDelay):
				retryDelay *= 2
				e.logger.Printf("[FieldExtractor] 重试LLM调用 (第%d次)", retry)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		response, err = e.llmModel.Generate(callCtx, messages)
		cancel()

		if err == nil {
			break
		}

		if !isRetryableError(err) || retry >= maxRetries {
			return "", fmt.Errorf("LLM调用失败: %w", err)
		}
	}

	return response.Content, nil
}

// isRetryableError 判断错误是否应该重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host")
}

var jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*([\\[{].*?[\\]}])\\s*```")

// ExtractJSON 从模型响应中截取JSON对象或数组
// 优先匹配```json代码块，否则回退到首个括号配平的片段
func ExtractJSON(text string) string {
	if matches := jsonFenceRe.FindStringSubmatch(text); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")

	start := objStart
	open, close := byte('{'), byte('}')
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start = arrStart
		open, close = '[', ']'
	}
	if start == -1 {
		return ""
	}

	level := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case open:
			level++
		case close:
			level--
			if level == 0 {
				return strings.TrimSpace(text[start : i+1])
			}
		}
	}
	return ""
}
