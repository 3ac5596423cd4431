package parser

import (
	"strings"
	"unicode"
)

// 默认的分块长度，超过该长度的推断文本在嵌入前会被切分
const defaultMaxChunkLength = 1000

// TextChunker 按语言切分文本：英文按空白分词，中日韩文本按字符切分
type TextChunker struct {
	maxChunkLength int
}

// NewTextChunker 创建文本分块器，maxChunkLength<=0 时使用默认值
func NewTextChunker(maxChunkLength int) *TextChunker {
	if maxChunkLength <= 0 {
		maxChunkLength = defaultMaxChunkLength
	}
	return &TextChunker{maxChunkLength: maxChunkLength}
}

// MaxChunkLength 返回配置的分块长度
func (c *TextChunker) MaxChunkLength() int {
	return c.maxChunkLength
}

// Split 将文本切分为不超过最大长度的块
// 空文本返回空切片；短文本返回单块原文
func (c *TextChunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	if len([]rune(text)) <= c.maxChunkLength {
		return []string{text}
	}

	if ContainsCJK(text) {
		return c.splitCJK(text)
	}
	return c.splitWords(text)
}

// ContainsCJK 判断文本中是否包含中日韩统一表意文字
func ContainsCJK(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// splitWords 英文文本按单词累积切分
func (c *TextChunker) splitWords(text string) []string {
	words := strings.Fields(text)

	var chunks []string
	var current []string
	currentLength := 0

	for _, word := range words {
		wordLen := len([]rune(word))
		if currentLength+wordLen+1 > c.maxChunkLength && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = []string{word}
			currentLength = wordLen + 1
		} else {
			current = append(current, word)
			currentLength += wordLen + 1
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// splitCJK 中日韩文本逐字符累积切分，不依赖空白
func (c *TextChunker) splitCJK(text string) []string {
	var chunks []string
	var current []rune
	currentLength := 0

	for _, r := range text {
		if currentLength+1 > c.maxChunkLength && len(current) > 0 {
			chunks = append(chunks, string(current))
			current = []rune{r}
			currentLength = 1
		} else {
			current = append(current, r)
			currentLength++
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, string(current))
	}
	return chunks
}
