package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-insight-go/internal/config"
	coreHandler "resume-insight-go/internal/handler"
	"resume-insight-go/internal/parser"
	"resume-insight-go/internal/processor"
	"resume-insight-go/internal/storage"
	"resume-insight-go/internal/types"
)

type fakePDFExtractor struct{}

func (fakePDFExtractor) ExtractFromFile(ctx context.Context, filePath string) (string, error) {
	return "Jane Doe resume text", nil
}

type fakeFieldExtractor struct {
	err error
}

func (f *fakeFieldExtractor) ExtractAll(ctx context.Context, resumeText string) (*types.StructuredExtraction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.StructuredExtraction{
		PersonalInformation: types.PersonalInfo{Name: "Jane Doe", Email: "jane@example.com"},
	}, nil
}

type fakeInferenceGenerator struct{}

func (fakeInferenceGenerator) GenerateInference(ctx context.Context, extraction *types.StructuredExtraction) (types.Inference, error) {
	return types.Inference{Inference: "A capable engineer."}, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedStrings(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i := range texts {
		vectors[i] = []float64{1, 0}
	}
	return vectors, nil
}

type fakeVectorDB struct{}

func (fakeVectorDB) UpsertInferencePoint(ctx context.Context, candidateName string, vector []float64, payload map[string]interface{}) (string, error) {
	return storage.PointIDForCandidate(candidateName), nil
}

func (fakeVectorDB) SearchInferences(ctx context.Context, queryVector []float64, limit int) ([]storage.SearchResult, error) {
	return nil, nil
}

func newTestEngine(t *testing.T, fieldErr error) *server.Hertz {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.UploadDir = t.TempDir()

	core, err := coreHandler.NewResumeHandler(
		cfg,
		&storage.Storage{Qdrant: &storage.Qdrant{}},
		fakePDFExtractor{},
		&fakeFieldExtractor{err: fieldErr},
		fakeInferenceGenerator{},
		processor.NewInferenceStore(fakeEmbedder{}, fakeVectorDB{}),
	)
	require.NoError(t, err)

	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	api := NewResumeAPIHandler(core)
	h.GET("/", api.Index)
	h.GET("/health", api.Health)
	h.POST("/resume/upload", api.UploadResume)
	h.POST("/documents/retrieve", api.RetrieveDocuments)
	return h
}

func performJSON(t *testing.T, h *server.Hertz, method, path, body string) *ut.ResponseRecorder {
	t.Helper()
	return ut.PerformRequest(h.Engine, method, path,
		&ut.Body{Body: bytes.NewBufferString(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
}

func performMultipart(t *testing.T, h *server.Hertz, build func(w *multipart.Writer)) *ut.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	build(w)
	require.NoError(t, w.Close())

	return ut.PerformRequest(h.Engine, http.MethodPost, "/resume/upload",
		&ut.Body{Body: &buf, Len: buf.Len()},
		ut.Header{Key: "Content-Type", Value: w.FormDataContentType()})
}

func decodeBody(t *testing.T, w *ut.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Result().Body(), &payload))
	return payload
}

func TestIndex(t *testing.T) {
	h := newTestEngine(t, nil)
	w := ut.PerformRequest(h.Engine, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode())
	payload := decodeBody(t, w)
	assert.Equal(t, "Resume Insight Service", payload["message"])
	assert.NotEmpty(t, payload["endpoints"])
}

func TestHealth(t *testing.T) {
	h := newTestEngine(t, nil)
	w := ut.PerformRequest(h.Engine, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode())
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

func TestUploadResumeNoFilePart(t *testing.T) {
	h := newTestEngine(t, nil)

	// 非multipart请求体
	w := performJSON(t, h, http.MethodPost, "/resume/upload", "{}")
	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode())
	assert.Equal(t, "No file part", decodeBody(t, w)["error"])

	// multipart表单但没有file字段
	w = performMultipart(t, h, func(mw *multipart.Writer) {
		require.NoError(t, mw.WriteField("other", "value"))
	})
	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode())
	assert.Equal(t, "No file part", decodeBody(t, w)["error"])
}

func TestUploadResumeNoSelectedFile(t *testing.T) {
	h := newTestEngine(t, nil)

	// 浏览器未选择文件时发送的部件: name="file"且filename为空
	w := performMultipart(t, h, func(mw *multipart.Writer) {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename=""`)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte(""))
		require.NoError(t, err)
	})

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode())
	assert.Equal(t, "No selected file", decodeBody(t, w)["error"])
}

func TestUploadResumeSuccess(t *testing.T) {
	h := newTestEngine(t, nil)

	w := performMultipart(t, h, func(mw *multipart.Writer) {
		part, err := mw.CreateFormFile("file", "resume.pdf")
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 fake"))
		require.NoError(t, err)
	})

	require.Equal(t, http.StatusOK, w.Result().StatusCode())
	payload := decodeBody(t, w)

	extracted, ok := payload["extracted_info"].(map[string]interface{})
	require.True(t, ok)
	personal, ok := extracted["personal_information"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Jane Doe", personal["name"])

	// 推断以对象形式返回，保留inference键
	inference, ok := payload["Inference"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "A capable engineer.", inference["inference"])
}

func TestUploadResumeMalformedModelOutput(t *testing.T) {
	h := newTestEngine(t, &parser.MalformedOutputError{
		Group: parser.GroupEducation,
		Raw:   "no json here",
	})

	w := performMultipart(t, h, func(mw *multipart.Writer) {
		part, err := mw.CreateFormFile("file", "resume.pdf")
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 fake"))
		require.NoError(t, err)
	})

	// 模型输出反复无法解析映射为502，而不是笼统的500
	assert.Equal(t, http.StatusBadGateway, w.Result().StatusCode())
	assert.Equal(t, "Language model returned unparseable output", decodeBody(t, w)["error"])
}

func TestRetrieveDocumentsMissingQuery(t *testing.T) {
	h := newTestEngine(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "空请求体", body: ""},
		{name: "空对象", body: "{}"},
		{name: "空查询串", body: `{"query": ""}`},
		{name: "非法JSON", body: "{not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performJSON(t, h, http.MethodPost, "/documents/retrieve", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode())
			assert.Equal(t, "Query is required", decodeBody(t, w)["error"])
		})
	}
}
