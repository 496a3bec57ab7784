package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/wordflowlab/careerpilot/pkg/loader"
	"github.com/wordflowlab/careerpilot/pkg/provider"
	"github.com/wordflowlab/careerpilot/pkg/types"
	"github.com/wordflowlab/careerpilot/pkg/vector"
)

// MaxMetadataText 写入元数据的原文最大 rune 数
const MaxMetadataText = 1000

// Toolbox 执行工具调用所需的依赖。
// Enabled 决定暴露给模型的工具子集, 未启用的工具视为不存在。
type Toolbox struct {
	Loader    *loader.Loader
	Embedder  vector.Embedder
	Store     vector.VectorStore
	Namespace string
	TopK      int

	// Roots parse_file 只允许读取这些目录下的文件
	Roots []string

	Enabled []Name
}

// Schemas 返回已启用工具的声明
func (tb *Toolbox) Schemas() []provider.ToolSchema {
	out := make([]provider.ToolSchema, 0, len(tb.Enabled))
	for _, n := range tb.Enabled {
		if s, ok := Schema(n); ok {
			out = append(out, s)
		}
	}
	return out
}

func (tb *Toolbox) enabled(name string) bool {
	for _, n := range tb.Enabled {
		if string(n) == name {
			return true
		}
	}
	return false
}

// Execute 解码并执行一次工具调用, 返回写回对话的文本结果
func (tb *Toolbox) Execute(ctx context.Context, tc types.ToolCall) (string, error) {
	if !tb.enabled(tc.Name) {
		return "", &types.ToolNotFoundError{Name: tc.Name}
	}
	call, err := Decode(tc.Name, tc.Arguments)
	if err != nil {
		return "", err
	}

	switch c := call.(type) {
	case ParseFile:
		return tb.parseFile(ctx, c)
	case QueryStore:
		return tb.queryStore(ctx, c)
	case SaveToStore:
		return tb.saveToStore(ctx, c)
	default:
		return "", &types.ToolNotFoundError{Name: tc.Name}
	}
}

func (tb *Toolbox) parseFile(ctx context.Context, c ParseFile) (string, error) {
	path, err := tb.allowedPath(c.FilePath)
	if err != nil {
		return "", err
	}
	docs, err := tb.Loader.Load(ctx, path)
	if err != nil {
		return "", err
	}
	return loader.JoinText(docs), nil
}

func (tb *Toolbox) allowedPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", &types.InvalidArgumentsError{Tool: string(ParseFileTool), Reason: err.Error()}
	}
	for _, root := range tb.Roots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(rootAbs, abs)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return abs, nil
		}
	}
	return "", fmt.Errorf("%w: %s", types.ErrPathNotAllowed, p)
}

// Match 检索结果中返回给模型的一条记录
type Match struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (tb *Toolbox) queryStore(ctx context.Context, c QueryStore) (string, error) {
	vec, err := vector.EmbedQuery(ctx, tb.Embedder, c.Query)
	if err != nil {
		return "", &types.EmbeddingFailedError{Tool: string(QueryStoreTool), Err: err}
	}
	topK := c.TopK
	if topK == 0 {
		topK = tb.TopK
	}
	if topK <= 0 {
		topK = vector.DefaultTopK
	}
	hits, err := tb.Store.Query(ctx, vector.Query{Vector: vec, TopK: topK, Namespace: tb.Namespace})
	if err != nil {
		return "", err
	}

	matches := make([]Match, len(hits))
	for i, h := range hits {
		matches[i] = Match{ID: h.ID, Score: h.Score, Metadata: h.Metadata}
	}
	data, err := json.Marshal(matches)
	if err != nil {
		return "", fmt.Errorf("marshal matches: %w", err)
	}
	return string(data), nil
}

func (tb *Toolbox) saveToStore(ctx context.Context, c SaveToStore) (string, error) {
	vec, err := vector.EmbedQuery(ctx, tb.Embedder, c.Content)
	if err != nil {
		return "", &types.EmbeddingFailedError{Tool: string(SaveToStoreTool), Err: err}
	}

	meta := make(map[string]interface{}, len(c.Metadata)+1)
	for k, v := range c.Metadata {
		meta[k] = v
	}
	meta["text"] = Truncate(c.Content, MaxMetadataText)

	rec := types.UpsertRecord{ID: uuid.NewString(), Values: vec, Metadata: meta}
	if err := tb.Store.Upsert(ctx, tb.Namespace, []types.UpsertRecord{rec}); err != nil {
		return "", &types.UpsertFailedError{Failed: []types.BatchRange{{From: 0, To: 1, Err: err}}}
	}
	return "Content saved to the vector store successfully (id " + rec.ID + ")", nil
}

// Truncate 按 rune 截断文本
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
