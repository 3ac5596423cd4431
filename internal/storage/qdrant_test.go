package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-insight-go/internal/config"
)

func TestPointIDForCandidateDeterministic(t *testing.T) {
	// 同一姓名总是生成同一个point ID，这是upsert覆盖语义的基础
	id1 := PointIDForCandidate("Jane Doe")
	id2 := PointIDForCandidate("Jane Doe")
	assert.Equal(t, id1, id2)

	other := PointIDForCandidate("John Roe")
	assert.NotEqual(t, id1, other)

	// 生成的是合法的UUID文本形式
	assert.Len(t, id1, 36)
}

func TestPointIDForCandidateCaseSensitive(t *testing.T) {
	// 姓名按原样作键，大小写不同视为不同候选人
	assert.NotEqual(t, PointIDForCandidate("jane doe"), PointIDForCandidate("Jane Doe"))
}

// 集成测试，需要本地Qdrant实例，通过QDRANT_TEST_ENDPOINT开启
func TestQdrantUpsertAndSearch(t *testing.T) {
	endpoint := os.Getenv("QDRANT_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("QDRANT_TEST_ENDPOINT未设置，跳过Qdrant集成测试")
	}

	cfg := &config.QdrantConfig{
		Endpoint:   endpoint,
		Collection: "resume_inferences_test",
		Dimension:  4,
	}
	q, err := NewQdrant(cfg)
	require.NoError(t, err)
	assert.Equal(t, "resume_inferences_test", q.CollectionName())

	ctx := context.Background()
	payload := map[string]interface{}{
		"candidate_name": "Jane Doe",
		"inference":      "test inference",
	}

	pointID, err := q.UpsertInferencePoint(ctx, "Jane Doe", []float64{0.1, 0.2, 0.3, 0.4}, payload)
	require.NoError(t, err)
	assert.Equal(t, PointIDForCandidate("Jane Doe"), pointID)

	// 再次写入同一候选人，集合中仍只有一条
	_, err = q.UpsertInferencePoint(ctx, "Jane Doe", []float64{0.4, 0.3, 0.2, 0.1}, payload)
	require.NoError(t, err)

	count, err := q.CountPoints(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	results, err := q.SearchInferences(ctx, []float64{0.4, 0.3, 0.2, 0.1}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, pointID, results[0].ID)
}
