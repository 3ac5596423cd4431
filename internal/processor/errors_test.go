package processor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineErrorIs(t *testing.T) {
	err := NewPipelineError("uuid-123", "extract_text", ErrExtractTextFailed, errors.New("file truncated"))

	assert.ErrorIs(t, err, ErrExtractTextFailed)
	assert.NotErrorIs(t, err, ErrUpsertInferenceFailed)
	assert.Contains(t, err.Error(), "uuid-123")
	assert.Contains(t, err.Error(), "extract_text")
	assert.Contains(t, err.Error(), "file truncated")
}

type causeError struct{ code int }

func (e *causeError) Error() string { return fmt.Sprintf("cause code %d", e.code) }

func TestPipelineErrorKeepsCauseInChain(t *testing.T) {
	cause := &causeError{code: 42}
	err := NewPipelineError("uuid-123", "extract_fields", ErrExtractFieldsFailed, cause)

	var pipelineErr *PipelineError
	assert.ErrorAs(t, err, &pipelineErr)

	// 底层错误类型穿过流水线包装仍可匹配
	var unwrapped *causeError
	require.ErrorAs(t, err, &unwrapped)
	assert.Equal(t, 42, unwrapped.code)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrExtractFieldsFailed)
}

func TestPipelineErrorWithoutCause(t *testing.T) {
	err := NewPipelineError("uuid-123", "upsert_inference", ErrUpsertInferenceFailed, nil)

	assert.ErrorIs(t, err, ErrUpsertInferenceFailed)
	assert.NotContains(t, err.Error(), "<nil>")
}
