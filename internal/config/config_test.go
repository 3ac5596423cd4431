package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "")
	t.Setenv("QDRANT_ENDPOINT", "")

	path := writeTempConfig(t, `
aliyun:
  api_key: "sk-test"
qdrant:
  endpoint: "http://localhost:6333"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Aliyun.APIKey)
	assert.InDelta(t, 0.7, cfg.Aliyun.Temperature, 0.001)
	assert.Equal(t, "resume_inferences", cfg.Qdrant.Collection)
	assert.Equal(t, 1024, cfg.Qdrant.Dimension)
	assert.Equal(t, 10, cfg.Qdrant.DefaultSearchLimit)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.NotEmpty(t, cfg.Server.UploadDir)
	assert.Equal(t, 2, cfg.LLMParser.MaxRepairAttempts)
	assert.Equal(t, 60, cfg.LLMParser.CallTimeoutSeconds)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "sk-from-env")
	t.Setenv("QDRANT_ENDPOINT", "http://qdrant.internal:6333")

	path := writeTempConfig(t, `
aliyun:
  api_key: "sk-from-file"
qdrant:
  endpoint: "http://localhost:6333"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	// 环境变量优先于配置文件
	assert.Equal(t, "sk-from-env", cfg.Aliyun.APIKey)
	assert.Equal(t, "http://qdrant.internal:6333", cfg.Qdrant.Endpoint)
}

func TestLoadConfigMissingAPIKey(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "")

	path := writeTempConfig(t, `
qdrant:
  endpoint: "http://localhost:6333"
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DASHSCOPE_API_KEY")
}

func TestLoadConfigMissingQdrantEndpoint(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "")
	t.Setenv("QDRANT_ENDPOINT", "")

	path := writeTempConfig(t, `
aliyun:
  api_key: "sk-test"
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qdrant.endpoint")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	cfg := &MySQLConfig{
		Host:     "db.internal",
		Port:     3306,
		Username: "app",
		Password: "secret",
		Database: "resume_insight",
	}
	dsn := cfg.DSN()
	assert.Contains(t, dsn, "app:secret@tcp(db.internal:3306)/resume_insight")
	assert.Contains(t, dsn, "charset=utf8mb4")
	assert.Contains(t, dsn, "parseTime=True")
}
