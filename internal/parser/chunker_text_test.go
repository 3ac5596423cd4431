package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerEmptyText(t *testing.T) {
	chunker := NewTextChunker(100)
	assert.Nil(t, chunker.Split(""))
}

func TestChunkerShortTextSingleChunk(t *testing.T) {
	chunker := NewTextChunker(100)
	chunks := chunker.Split("a short inference about the candidate")
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short inference about the candidate", chunks[0])
}

func TestChunkerEnglishSplitByWords(t *testing.T) {
	chunker := NewTextChunker(20)
	text := strings.Repeat("candidate shows strong ownership ", 5)

	chunks := chunker.Split(text)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		// 块内不截断单词，长度不超过上限
		assert.LessOrEqual(t, len([]rune(chunk)), 20)
		assert.NotContains(t, chunk, "  ")
	}

	// 拼回去应该还原全部单词
	rejoined := strings.Fields(strings.Join(chunks, " "))
	assert.Equal(t, strings.Fields(text), rejoined)
}

func TestChunkerCJKSplitByRunes(t *testing.T) {
	chunker := NewTextChunker(10)
	text := strings.Repeat("候选人具备扎实的工程能力", 3)

	chunks := chunker.Split(text)
	require.Greater(t, len(chunks), 1)

	var total int
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 10)
		total += len([]rune(chunk))
	}
	assert.Equal(t, len([]rune(text)), total)
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestContainsCJK(t *testing.T) {
	assert.True(t, ContainsCJK("候选人 Jane Doe"))
	assert.False(t, ContainsCJK("Jane Doe, Software Engineer"))
	assert.False(t, ContainsCJK(""))
}

func TestChunkerDefaultLength(t *testing.T) {
	chunker := NewTextChunker(0)
	assert.Equal(t, 1000, chunker.MaxChunkLength())
}
