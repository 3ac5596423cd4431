package handler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-insight-go/internal/config"
	"resume-insight-go/internal/parser"
	"resume-insight-go/internal/processor"
	"resume-insight-go/internal/storage"
	"resume-insight-go/internal/types"
)

type fakePDFExtractor struct {
	text string
	err  error
}

func (f *fakePDFExtractor) ExtractFromFile(ctx context.Context, filePath string) (string, error) {
	return f.text, f.err
}

type fakeFieldExtractor struct {
	extraction *types.StructuredExtraction
	err        error
}

func (f *fakeFieldExtractor) ExtractAll(ctx context.Context, resumeText string) (*types.StructuredExtraction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.extraction, nil
}

type fakeInferenceGenerator struct {
	inference types.Inference
	err       error
}

func (f *fakeInferenceGenerator) GenerateInference(ctx context.Context, extraction *types.StructuredExtraction) (types.Inference, error) {
	return f.inference, f.err
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedStrings(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i := range texts {
		vectors[i] = []float64{1, 0, 0, 0}
	}
	return vectors, nil
}

type fakeVectorDB struct {
	payloads map[string]map[string]interface{}
}

func (f *fakeVectorDB) UpsertInferencePoint(ctx context.Context, candidateName string, vector []float64, payload map[string]interface{}) (string, error) {
	if f.payloads == nil {
		f.payloads = map[string]map[string]interface{}{}
	}
	f.payloads[candidateName] = payload
	return storage.PointIDForCandidate(candidateName), nil
}

func (f *fakeVectorDB) SearchInferences(ctx context.Context, queryVector []float64, limit int) ([]storage.SearchResult, error) {
	return nil, nil
}

func newTestHandler(t *testing.T, fields processor.ResumeFieldExtractor, db *fakeVectorDB) *ResumeHandler {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.UploadDir = t.TempDir()

	h, err := NewResumeHandler(
		cfg,
		&storage.Storage{Qdrant: &storage.Qdrant{}},
		&fakePDFExtractor{text: "Jane Doe resume text"},
		fields,
		&fakeInferenceGenerator{inference: types.Inference{Inference: "A capable engineer."}},
		processor.NewInferenceStore(fakeEmbedder{}, db),
	)
	require.NoError(t, err)
	return h
}

func TestHandleResumeUploadSuccess(t *testing.T) {
	db := &fakeVectorDB{}
	fields := &fakeFieldExtractor{extraction: &types.StructuredExtraction{
		PersonalInformation: types.PersonalInfo{Name: "Jane Doe"},
	}}
	h := newTestHandler(t, fields, db)

	result, err := h.HandleResumeUpload(context.Background(), bytes.NewReader([]byte("%PDF-1.4")), 8, "resume.pdf")
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", result.CandidateName)
	assert.Equal(t, storage.PointIDForCandidate("Jane Doe"), result.PointID)
	assert.Equal(t, "A capable engineer.", result.Inference.Inference)
	assert.NotEmpty(t, result.UploadUUID)
	assert.False(t, result.DuplicateFile)

	payload := db.payloads["Jane Doe"]
	require.NotNil(t, payload)
	assert.Equal(t, "inference", payload["source"])
	assert.Equal(t, "admin_test", payload["author"])

	// 临时文件在处理结束后删除
	entries, err := os.ReadDir(h.cfg.Server.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandleResumeUploadUnknownName(t *testing.T) {
	db := &fakeVectorDB{}
	fields := &fakeFieldExtractor{extraction: &types.StructuredExtraction{}}
	h := newTestHandler(t, fields, db)

	result, err := h.HandleResumeUpload(context.Background(), bytes.NewReader([]byte("%PDF-1.4")), 8, "resume.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Unknown Name", result.CandidateName)
}

func TestHandleResumeUploadKeepsMalformedOutputInChain(t *testing.T) {
	fields := &fakeFieldExtractor{err: &parser.MalformedOutputError{
		Group: parser.GroupEducation,
		Raw:   "no json here",
		Err:   errors.New("响应中未找到JSON"),
	}}
	h := newTestHandler(t, fields, &fakeVectorDB{})

	_, err := h.HandleResumeUpload(context.Background(), bytes.NewReader([]byte("%PDF-1.4")), 8, "resume.pdf")
	require.Error(t, err)

	// 底层的格式错误穿过流水线包装仍可被调用方识别
	var malformed *parser.MalformedOutputError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, parser.GroupEducation, malformed.Group)
	assert.ErrorIs(t, err, processor.ErrExtractFieldsFailed)
}
