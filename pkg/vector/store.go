package vector

import (
	"context"

	"github.com/wordflowlab/careerpilot/pkg/types"
)

// Query 表示一次向量检索请求。
type Query struct {
	Vector    []float32              // 查询向量
	TopK      int                    // 返回结果数量
	Namespace string                 // 逻辑命名空间, 空串为默认空间
	Filter    map[string]interface{} // 元数据等值过滤(可选)
}

// Hit 表示一次检索命中的结果。
type Hit struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"` // 越大越相关
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Text 返回命中记录中保存的原文片段
func (h Hit) Text() string {
	s, _ := h.Metadata["text"].(string)
	return s
}

// VectorStore 抽象向量存储接口。
// 上层只依赖该接口, 不关心具体实现(Pinecone/pgvector/内存)。
type VectorStore interface {
	Upsert(ctx context.Context, namespace string, records []types.UpsertRecord) error
	Query(ctx context.Context, q Query) ([]Hit, error)
	Close() error
}

// DefaultTopK 未指定 TopK 时的返回数量
const DefaultTopK = 3
