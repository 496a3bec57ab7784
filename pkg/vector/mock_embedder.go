package vector

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// MockEmbedder 基于词袋哈希的确定性 Embedder, 用于测试与 dry-run。
// 相同文本得到相同向量, 共享词越多的文本余弦相似度越高。
type MockEmbedder struct {
	Dim int
}

// NewMockEmbedder 创建一个 MockEmbedder, dim 默认 64
func NewMockEmbedder(dim int) *MockEmbedder {
	if dim <= 0 {
		dim = 64
	}
	return &MockEmbedder{Dim: dim}
}

// EmbedText 实现 Embedder
func (e *MockEmbedder) EmbedText(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make([][]float32, len(texts))
	for i, t := range texts {
		result[i] = e.embed(t)
	}
	return result, nil
}

func (e *MockEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.Dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		// 空文本也给出非零向量, 避免下游把它当作无效记录
		vec[0] = 1
		return vec
	}
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(e.Dim)]++
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v * v)
	}
	inv := float32(1 / math.Sqrt(sum))
	for j := range vec {
		vec[j] *= inv
	}
	return vec
}
