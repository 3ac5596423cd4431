package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"

	"resume-insight-go/internal/agent"
	apiHandler "resume-insight-go/internal/api/handler"
	"resume-insight-go/internal/api/router"
	"resume-insight-go/internal/config"
	"resume-insight-go/internal/handler"
	"resume-insight-go/internal/logger"
	"resume-insight-go/internal/parser"
	"resume-insight-go/internal/processor"
	"resume-insight-go/internal/storage"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.Parse()

	// 1. 加载配置文件，缺少LLM凭证时直接退出
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置文件失败")
	}

	// 2. 初始化日志系统并接管Hertz日志
	initLogger(cfg)

	// 3. 初始化存储管理器（Qdrant必需，其余按配置）
	ctx := context.Background()
	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储管理器失败")
	}
	defer storageManager.Close()

	// 4. 组装简历处理流水线
	resumeHandler, err := initializeHandler(ctx, cfg, storageManager)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化简历处理器失败")
	}
	logger.Info().Msg("简历处理器初始化成功")

	// 5. 创建HTTP服务器并注册路由
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	router.RegisterRoutes(h, apiHandler.NewResumeAPIHandler(resumeHandler))

	logger.Info().Str("address", cfg.Server.Address).Msg("HTTP服务器启动")
	go func() {
		h.Spin()
	}()

	// 6. 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
	}
	logger.Info().Msg("优雅退出完成")
}

// initLogger 初始化zerolog并将Hertz的日志输出接到同一个记录器上
func initLogger(cfg *config.Config) {
	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	logger.Logger = logger.Logger.With().
		Str("app", "resume-insight-go").
		Logger()

	glog.SetLogger(hertzadapter.From(logger.Logger))
}

// einoEmbedderAdapter 将eino的Embedder收窄为流水线需要的最小接口
type einoEmbedderAdapter struct {
	embedder embedding.Embedder
}

func (a einoEmbedderAdapter) EmbedStrings(ctx context.Context, texts []string) ([][]float64, error) {
	return a.embedder.EmbedStrings(ctx, texts)
}

// initializeHandler 组装简历处理流水线的全部组件
func initializeHandler(ctx context.Context, cfg *config.Config, storageManager *storage.Storage) (*handler.ResumeHandler, error) {
	chatModel, err := agent.NewAliyunQwenChatModel(
		cfg.Aliyun.APIKey,
		cfg.Aliyun.Model,
		cfg.Aliyun.APIURL,
		agent.WithTemperature(cfg.Aliyun.Temperature),
	)
	if err != nil {
		return nil, err
	}

	pdfExtractor, err := parser.NewEinoPDFTextExtractor(ctx)
	if err != nil {
		return nil, err
	}

	parserOpts := []parser.FieldExtractorOption{
		parser.WithMaxRepairAttempts(cfg.LLMParser.MaxRepairAttempts),
		parser.WithCallTimeout(time.Duration(cfg.LLMParser.CallTimeoutSeconds) * time.Second),
	}
	fieldExtractor := parser.NewFieldExtractor(chatModel, parserOpts...)
	inferenceGenerator := parser.NewInferenceGenerator(chatModel, parserOpts...)

	embedder, err := parser.NewAliyunEmbedder(cfg.Aliyun.APIKey, cfg.Aliyun.Embedding)
	if err != nil {
		return nil, err
	}

	inferenceStore := processor.NewInferenceStore(
		einoEmbedderAdapter{embedder: embedder},
		storageManager.Qdrant,
		processor.WithDefaultTopK(cfg.Qdrant.DefaultSearchLimit),
		processor.WithChunker(parser.NewTextChunker(0)),
	)

	return handler.NewResumeHandler(cfg, storageManager, pdfExtractor, fieldExtractor, inferenceGenerator, inferenceStore)
}
