package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"resume-insight-go/internal/constants"
)

// Config 应用程序配置
type Config struct {
	Aliyun struct {
		APIKey      string          `yaml:"api_key"`
		APIURL      string          `yaml:"api_url"`
		Model       string          `yaml:"model"`
		Temperature float32         `yaml:"temperature"` // 字段提取与推断统一采样温度
		Embedding   EmbeddingConfig `yaml:"embedding"`
	} `yaml:"aliyun"`

	Qdrant QdrantConfig `yaml:"qdrant"`

	// 以下组件均为可选，留空则不初始化
	MinIO    MinIOConfig    `yaml:"minio"`
	Redis    RedisConfig    `yaml:"redis"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	MySQL    MySQLConfig    `yaml:"mysql"`

	Server    ServerConfig    `yaml:"server"`
	LLMParser LLMParserConfig `yaml:"llm_parser"`
	Logger    LoggerConfig    `yaml:"logger"`
}

// EmbeddingConfig 阿里云Embedding配置（OpenAI兼容接口）
type EmbeddingConfig struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BaseURL    string `yaml:"base_url"`
}

// QdrantConfig 向量数据库配置
type QdrantConfig struct {
	Endpoint           string `yaml:"endpoint"`
	Collection         string `yaml:"collection"`
	Dimension          int    `yaml:"dimension"`
	DefaultSearchLimit int    `yaml:"default_search_limit"` // 检索接口的默认top_k
}

// MinIOConfig 对象存储配置，用于归档原始简历文件
type MinIOConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
	ResumeBucket    string `yaml:"resume_bucket"`
}

// RedisConfig Redis配置，用于原始文件MD5去重标记
type RedisConfig struct {
	Address             string `yaml:"address"`
	Password            string `yaml:"password"`
	DB                  int    `yaml:"db"`
	MD5RecordExpireDays int    `yaml:"md5_record_expire_days"`
}

// RabbitMQConfig 消息队列配置，用于发布简历处理完成事件
type RabbitMQConfig struct {
	URL                 string `yaml:"url"`
	EventsExchange      string `yaml:"events_exchange"`
	ProcessedRoutingKey string `yaml:"processed_routing_key"`
}

// MySQLConfig 关系型数据库配置，用于上传审计记录
type MySQLConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	Charset      string `yaml:"charset"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// DSN 构造MySQL连接串
func (c *MySQLConfig) DSN() string {
	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database, charset)
}

// ServerConfig HTTP服务器配置
type ServerConfig struct {
	Address   string `yaml:"address"`
	UploadDir string `yaml:"upload_dir"` // 每个请求在该目录下生成独立的临时文件
}

// LLMParserConfig LLM解析行为配置
type LLMParserConfig struct {
	MaxRepairAttempts  int `yaml:"max_repair_attempts"`  // JSON解析失败后的重新提示次数
	CallTimeoutSeconds int `yaml:"call_timeout_seconds"` // 单次LLM调用超时(秒)
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	TimeFormat   string `yaml:"time_format"`
	ReportCaller bool   `yaml:"report_caller"`
}

// LoadConfig 加载配置文件
// 查找顺序: 显式路径 -> ./config.yaml -> ./internal/config/config.yaml
// 同时加载.env.local（如果存在），DASHSCOPE_API_KEY环境变量优先于配置文件
func LoadConfig(path string) (*Config, error) {
	// .env.local不存在不是错误
	_ = godotenv.Load(".env.local")

	configPath := path
	if configPath == "" {
		for _, candidate := range []string{"config.yaml", filepath.Join("internal", "config", "config.yaml")} {
			if _, err := os.Stat(candidate); err == nil {
				configPath = candidate
				break
			}
		}
	}
	if configPath == "" {
		return nil, fmt.Errorf("未找到配置文件")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", configPath, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", configPath, err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults 填充未配置的默认值
func (c *Config) applyDefaults() {
	if c.Aliyun.Temperature == 0 {
		c.Aliyun.Temperature = 0.7
	}
	if c.Qdrant.Collection == "" {
		c.Qdrant.Collection = constants.DefaultCollectionName
	}
	if c.Qdrant.Dimension <= 0 {
		c.Qdrant.Dimension = 1024
	}
	if c.Qdrant.DefaultSearchLimit <= 0 {
		c.Qdrant.DefaultSearchLimit = constants.DefaultTopK
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = os.TempDir()
	}
	if c.LLMParser.MaxRepairAttempts <= 0 {
		c.LLMParser.MaxRepairAttempts = 2
	}
	if c.LLMParser.CallTimeoutSeconds <= 0 {
		c.LLMParser.CallTimeoutSeconds = 60
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
}

// applyEnvOverrides 环境变量覆盖配置文件
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("DASHSCOPE_API_KEY"); key != "" {
		c.Aliyun.APIKey = key
	}
	if endpoint := os.Getenv("QDRANT_ENDPOINT"); endpoint != "" {
		c.Qdrant.Endpoint = endpoint
	}
}

// Validate 校验启动必需的配置项，缺少API凭证时服务不应启动
func (c *Config) Validate() error {
	if c.Aliyun.APIKey == "" {
		return fmt.Errorf("缺少LLM API密钥: 请在配置文件中设置 aliyun.api_key 或设置环境变量 DASHSCOPE_API_KEY")
	}
	if c.Qdrant.Endpoint == "" {
		return fmt.Errorf("缺少向量数据库配置: qdrant.endpoint 不能为空")
	}
	return nil
}
