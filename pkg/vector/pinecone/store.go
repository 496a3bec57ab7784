// Package pinecone 通过 REST 数据面接口访问托管的 Pinecone 索引。
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wordflowlab/careerpilot/pkg/retry"
	"github.com/wordflowlab/careerpilot/pkg/types"
	"github.com/wordflowlab/careerpilot/pkg/vector"
)

const (
	defaultControlURL = "https://api.pinecone.io"
	apiVersion        = "2024-07"
)

// Config 配置一个 Pinecone 索引连接
type Config struct {
	APIKey    string
	IndexName string

	// Host 索引的数据面地址, 为空时通过控制面 describe index 获取
	Host string

	// ControlURL 控制面地址, 默认 https://api.pinecone.io
	ControlURL string

	Timeout time.Duration
	Retry   retry.Policy
}

// Store 基于 Pinecone 的 VectorStore 实现
type Store struct {
	apiKey     string
	index      string
	controlURL string
	client     *http.Client
	retry      retry.Policy

	mu   sync.Mutex
	host string
}

// New 创建 Store。不会发起网络请求, 数据面地址在首次使用时解析。
func New(cfg Config) (*Store, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("pinecone api key is required")
	}
	if cfg.IndexName == "" && cfg.Host == "" {
		return nil, errors.New("pinecone index name or host is required")
	}
	control := strings.TrimRight(cfg.ControlURL, "/")
	if control == "" {
		control = defaultControlURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	policy := cfg.Retry
	if policy == nil {
		policy = retry.None{}
	}
	return &Store{
		apiKey:     cfg.APIKey,
		index:      cfg.IndexName,
		controlURL: control,
		client:     &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		retry:      policy,
		host:       normalizeHost(cfg.Host),
	}, nil
}

type upsertVector struct {
	ID       string                 `json:"id"`
	Values   []float32              `json:"values"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Vectors   []upsertVector `json:"vectors"`
	Namespace string         `json:"namespace,omitempty"`
}

type upsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

// Upsert 写入一个批次。批次大小由调用方控制。
func (s *Store) Upsert(ctx context.Context, namespace string, records []types.UpsertRecord) error {
	if len(records) == 0 {
		return nil
	}
	host, err := s.resolveHost(ctx)
	if err != nil {
		return err
	}

	req := upsertRequest{Namespace: namespace, Vectors: make([]upsertVector, len(records))}
	for i, r := range records {
		req.Vectors[i] = upsertVector{ID: r.ID, Values: r.Values, Metadata: r.Metadata}
	}

	var resp upsertResponse
	if err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.do(ctx, http.MethodPost, host+"/vectors/upsert", req, &resp)
	}); err != nil {
		return fmt.Errorf("pinecone upsert: %w", err)
	}
	if resp.UpsertedCount != 0 && resp.UpsertedCount != len(records) {
		return fmt.Errorf("pinecone upsert: acknowledged %d of %d records", resp.UpsertedCount, len(records))
	}
	return nil
}

type queryRequest struct {
	Vector          []float32              `json:"vector"`
	TopK            int                    `json:"topK"`
	Namespace       string                 `json:"namespace,omitempty"`
	Filter          map[string]interface{} `json:"filter,omitempty"`
	IncludeMetadata bool                   `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string                 `json:"id"`
		Score    float64                `json:"score"`
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"matches"`
}

// Query 最近邻检索, 总是带回元数据
func (s *Store) Query(ctx context.Context, q vector.Query) ([]vector.Hit, error) {
	host, err := s.resolveHost(ctx)
	if err != nil {
		return nil, err
	}
	topK := q.TopK
	if topK <= 0 {
		topK = vector.DefaultTopK
	}
	req := queryRequest{
		Vector:          q.Vector,
		TopK:            topK,
		Namespace:       q.Namespace,
		Filter:          q.Filter,
		IncludeMetadata: true,
	}

	var resp queryResponse
	if err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.do(ctx, http.MethodPost, host+"/query", req, &resp)
	}); err != nil {
		return nil, fmt.Errorf("pinecone query: %w", err)
	}

	hits := make([]vector.Hit, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		hits = append(hits, vector.Hit{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return hits, nil
}

// Close 释放空闲连接
func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// Ping 确认索引可达, 用于健康检查
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.resolveHost(ctx)
	return err
}

type describeResponse struct {
	Name string `json:"name"`
	Host string `json:"host"`
}

func (s *Store) resolveHost(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.host != "" {
		return s.host, nil
	}

	var desc describeResponse
	endpoint := s.controlURL + "/indexes/" + url.PathEscape(s.index)
	if err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.do(ctx, http.MethodGet, endpoint, nil, &desc)
	}); err != nil {
		return "", fmt.Errorf("describe pinecone index %s: %w", s.index, err)
	}
	if desc.Host == "" {
		return "", fmt.Errorf("describe pinecone index %s: empty host", s.index)
	}
	s.host = normalizeHost(desc.Host)
	return s.host, nil
}

// StatusError 非 2xx 响应
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

func (s *Store) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return retry.Permanent(fmt.Errorf("marshal request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Api-Key", s.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Pinecone-API-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Permanent(serr)
		}
		return serr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func normalizeHost(h string) string {
	h = strings.TrimRight(strings.TrimSpace(h), "/")
	if h == "" {
		return ""
	}
	if !strings.HasPrefix(h, "http://") && !strings.HasPrefix(h, "https://") {
		h = "https://" + h
	}
	return h
}
