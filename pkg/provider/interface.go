package provider

import (
	"context"

	"github.com/wordflowlab/careerpilot/pkg/types"
)

// ToolSchema 工具Schema
type ToolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// CompleteOptions 单次请求选项
type CompleteOptions struct {
	Tools       []ToolSchema
	MaxTokens   int
	Temperature float32
	System      string
}

// TokenUsage Token使用统计
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// CompleteResponse 完整响应
type CompleteResponse struct {
	Message      types.Message
	FinishReason string
	Usage        *TokenUsage
}

// Provider 对话模型提供商接口
type Provider interface {
	// Complete 非流式对话(阻塞式,返回完整响应)
	Complete(ctx context.Context, messages []types.Message, opts *CompleteOptions) (*CompleteResponse, error)

	// Model 返回模型名
	Model() string
}
