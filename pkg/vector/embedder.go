package vector

import (
	"context"
	"fmt"
)

// Embedder 为文本生成向量的抽象接口。
// 返回的切片与输入一一对应, 同一会话内维度固定。
type Embedder interface {
	EmbedText(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedQuery 为单条查询文本生成向量
func EmbedQuery(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.EmbedText(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 input", len(vecs))
	}
	return vecs[0], nil
}
