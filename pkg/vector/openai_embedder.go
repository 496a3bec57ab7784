package vector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wordflowlab/careerpilot/pkg/retry"
)

// OpenAIEmbedder 基于 OpenAI embeddings 接口的 Embedder 实现。
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	retry  retry.Policy
}

// NewOpenAIEmbedder 创建 OpenAIEmbedder。
// baseURL 为空时使用官方地址, 兼容 OpenAI 协议的服务可通过 baseURL 接入。
func NewOpenAIEmbedder(apiKey, baseURL, model string, policy retry.Policy) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required for OpenAIEmbedder")
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	if policy == nil {
		policy = retry.None{}
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		retry:  policy,
	}, nil
}

// EmbedText 调用 embeddings 接口, 结果按输入顺序返回
func (e *OpenAIEmbedder) EmbedText(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var resp openai.EmbeddingResponse
	err := e.retry.Do(ctx, func(ctx context.Context) error {
		r, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.model),
			Input: texts,
		})
		if err != nil {
			return classify(err)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}

// classify 4xx(除 429)不重试
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 && apiErr.HTTPStatusCode != http.StatusTooManyRequests {
			return retry.Permanent(err)
		}
	}
	return err
}
