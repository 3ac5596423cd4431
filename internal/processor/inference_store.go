package processor

import (
	"context"
	"fmt"
	"io"
	"log"

	"resume-insight-go/internal/parser"
	"resume-insight-go/internal/storage"
	"resume-insight-go/internal/types"
)

// InferenceStore 候选人推断的文档存储门面
// 负责嵌入与向量库读写；键为候选人姓名，同名覆盖（last-write-wins）
type InferenceStore struct {
	embedder    TextEmbedder
	vectorDB    storage.VectorDatabase
	chunker     *parser.TextChunker
	defaultTopK int
	logger      *log.Logger
}

// InferenceStoreOption 存储门面配置选项
type InferenceStoreOption func(*InferenceStore)

// WithDefaultTopK 设置检索的默认top_k
func WithDefaultTopK(k int) InferenceStoreOption {
	return func(s *InferenceStore) {
		if k > 0 {
			s.defaultTopK = k
		}
	}
}

// WithChunker 设置超长文本分块器
func WithChunker(c *parser.TextChunker) InferenceStoreOption {
	return func(s *InferenceStore) {
		s.chunker = c
	}
}

// WithStoreLogger 设置日志记录器
func WithStoreLogger(logger *log.Logger) InferenceStoreOption {
	return func(s *InferenceStore) {
		s.logger = logger
	}
}

// NewInferenceStore 创建推断存储门面
func NewInferenceStore(embedder TextEmbedder, vectorDB storage.VectorDatabase, options ...InferenceStoreOption) *InferenceStore {
	s := &InferenceStore{
		embedder:    embedder,
		vectorDB:    vectorDB,
		chunker:     parser.NewTextChunker(0),
		defaultTopK: 10,
		logger:      log.New(io.Discard, "", 0),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Upsert 写入或覆盖一条推断记录，返回point ID
// 超长文本先按语言分块，各块向量均值池化为单条记录的向量
func (s *InferenceStore) Upsert(ctx context.Context, record types.InferenceRecord) (string, error) {
	if record.ID == "" {
		return "", fmt.Errorf("推断记录缺少候选人姓名")
	}

	chunks := s.chunker.Split(record.Text)
	if len(chunks) == 0 {
		return "", fmt.Errorf("推断文本为空，无法嵌入")
	}

	vectors, err := s.embedder.EmbedStrings(ctx, chunks)
	if err != nil {
		return "", fmt.Errorf("嵌入推断文本失败: %w", err)
	}
	if len(vectors) == 0 {
		return "", fmt.Errorf("嵌入结果为空")
	}

	vector := meanPool(vectors)

	payload := map[string]interface{}{
		"candidate_name": record.ID,
		"inference":      record.Text,
		"source":         record.Metadata.Source,
		"timestamp":      record.Metadata.Timestamp,
		"author":         record.Metadata.Author,
	}

	pointID, err := s.vectorDB.UpsertInferencePoint(ctx, record.ID, vector, payload)
	if err != nil {
		return "", fmt.Errorf("写入推断向量失败: %w", err)
	}

	s.logger.Printf("[InferenceStore] 已写入候选人 %q 的推断 (point=%s, chunks=%d)", record.ID, pointID, len(chunks))
	return pointID, nil
}

// Query 按自由文本检索最相似的推断记录
// topK<=0时使用默认值；结果按相似度降序，长度不超过topK
func (s *InferenceStore) Query(ctx context.Context, query string, topK int) ([]types.ScoredDocument, error) {
	if topK <= 0 {
		topK = s.defaultTopK
	}

	vectors, err := s.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("嵌入查询文本失败: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("查询嵌入结果数量异常: %d", len(vectors))
	}

	results, err := s.vectorDB.SearchInferences(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("检索推断记录失败: %w", err)
	}

	docs := make([]types.ScoredDocument, 0, len(results))
	for _, r := range results {
		docs = append(docs, scoredDocumentFromResult(r))
	}
	return docs, nil
}

// RetrieveTopDocuments 检索门面：纯透传，不做重排、过滤或去重
func (s *InferenceStore) RetrieveTopDocuments(ctx context.Context, query string, topK int) ([]types.ScoredDocument, error) {
	return s.Query(ctx, query, topK)
}

// scoredDocumentFromResult 将向量库结果转换为响应文档
func scoredDocumentFromResult(r storage.SearchResult) types.ScoredDocument {
	doc := types.ScoredDocument{
		Score:    r.Score,
		Metadata: map[string]interface{}{},
	}
	if name, ok := r.Payload["candidate_name"].(string); ok {
		doc.CandidateName = name
	}
	if inference, ok := r.Payload["inference"].(string); ok {
		doc.Inference = inference
	}
	for _, key := range []string{"source", "timestamp", "author"} {
		if v, ok := r.Payload[key]; ok {
			doc.Metadata[key] = v
		}
	}
	return doc
}

// meanPool 对多块向量按维度取均值
func meanPool(vectors [][]float64) []float64 {
	if len(vectors) == 1 {
		return vectors[0]
	}

	dim := len(vectors[0])
	pooled := make([]float64, dim)
	for _, v := range vectors {
		for i := 0; i < dim && i < len(v); i++ {
			pooled[i] += v[i]
		}
	}
	for i := range pooled {
		pooled[i] /= float64(len(vectors))
	}
	return pooled
}
