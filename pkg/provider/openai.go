package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wordflowlab/careerpilot/pkg/retry"
	"github.com/wordflowlab/careerpilot/pkg/types"
)

// OpenAIConfig OpenAI 兼容接口配置
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Retry       retry.Policy
}

// OpenAIProvider 基于 go-openai 的 Provider 实现, 支持 function tools
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
	retry       retry.Policy
}

// NewOpenAIProvider 创建 OpenAIProvider
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	policy := cfg.Retry
	if policy == nil {
		policy = retry.None{}
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		temperature: cfg.Temperature,
		retry:       policy,
	}, nil
}

// Model 返回模型名
func (p *OpenAIProvider) Model() string { return p.model }

// Complete 发送一次对话请求
func (p *OpenAIProvider) Complete(ctx context.Context, messages []types.Message, opts *CompleteOptions) (*CompleteResponse, error) {
	if opts == nil {
		opts = &CompleteOptions{}
	}

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    toOpenAIMessages(opts.System, messages),
		Temperature: p.temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.Temperature != 0 {
		req.Temperature = opts.Temperature
	}
	for _, t := range opts.Tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}

	var resp openai.ChatCompletionResponse
	err := p.retry.Do(ctx, func(ctx context.Context) error {
		r, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			var apiErr *openai.APIError
			if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 &&
				apiErr.HTTPStatusCode != http.StatusTooManyRequests {
				return retry.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	choice := resp.Choices[0]
	msg := types.Message{
		Role:    types.RoleAssistant,
		Content: choice.Message.Content,
	}
	for _, tc := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, types.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return &CompleteResponse{
		Message:      msg,
		FinishReason: string(choice.FinishReason),
		Usage: &TokenUsage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
		},
	}, nil
}

func toOpenAIMessages(system string, messages []types.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range messages {
		om := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, om)
	}
	return out
}
