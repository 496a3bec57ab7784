package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/wordflowlab/careerpilot/pkg/types"
)

// 必需的环境变量
const (
	EnvOpenAIKey          = "OPENAI_API_KEY"
	EnvPineconeKey        = "PINECONE_API_KEY"
	EnvPineconeIndex      = "PINECONE_INDEX_NAME"
	EnvPineconeDatasource = "PINECONE_DATASOURCE_INDEX_NAME"
	EnvPineconeIndexHost  = "PINECONE_INDEX_HOST"
	EnvPineconeSourceHost = "PINECONE_DATASOURCE_INDEX_HOST"
	EnvOpenAIBaseURL      = "OPENAI_BASE_URL"
	EnvPostgresDSN        = "CAREERPILOT_PG_DSN"
	EnvJWTSecret          = "CAREERPILOT_JWT_SECRET"
	EnvConfigPath         = "CAREERPILOT_CONFIG"
)

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	Mode         string        `yaml:"mode"` // "debug" | "release" | "test"
	UploadDir    string        `yaml:"upload_dir,omitempty"`
	MaxUploadMB  int64         `yaml:"max_upload_mb"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
}

// AuthConfig /api 路由的访问凭证, api_keys 与 jwt_secret 都为空时不鉴权
type AuthConfig struct {
	APIKeys   []string `yaml:"api_keys,omitempty"`
	JWTSecret string   `yaml:"jwt_secret,omitempty"`
	JWTIssuer string   `yaml:"jwt_issuer,omitempty"`
}

// RateLimitConfig /api 按客户端 IP 限流, requests_per_minute 为 0 时关闭
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst,omitempty"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// TracingConfig OpenTelemetry OTLP 导出配置
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Endpoint     string  `yaml:"endpoint,omitempty"` // host:port, 默认 localhost:4318
	Insecure     bool    `yaml:"insecure,omitempty"`
	SamplingRate float64 `yaml:"sampling_rate,omitempty"`
	Environment  string  `yaml:"environment,omitempty"`
}

// OpenAIConfig embedding 与对话模型配置。APIKey 只从环境变量读取。
type OpenAIConfig struct {
	APIKey         string  `yaml:"-"`
	BaseURL        string  `yaml:"base_url,omitempty"`
	EmbeddingModel string  `yaml:"embedding_model"`
	ChatModel      string  `yaml:"chat_model"`
	Temperature    float32 `yaml:"temperature"`
}

// PineconeConfig 托管向量库配置
type PineconeConfig struct {
	APIKey          string `yaml:"-"`
	ControlURL      string `yaml:"control_url"`
	CVIndex         string `yaml:"cv_index,omitempty"`
	CVIndexHost     string `yaml:"cv_index_host,omitempty"`
	DatasourceIndex string `yaml:"datasource_index,omitempty"`
	DatasourceHost  string `yaml:"datasource_index_host,omitempty"`
	Namespace       string `yaml:"namespace,omitempty"`
}

// VectorStoreConfig 选择向量库实现
type VectorStoreConfig struct {
	Kind      string `yaml:"kind"` // "pinecone" | "pgvector" | "memory"
	DSN       string `yaml:"dsn,omitempty"`
	Table     string `yaml:"table,omitempty"`
	Metric    string `yaml:"metric,omitempty"`
	Dimension int    `yaml:"dimension,omitempty"`
}

// SplitConfig 一种文档的切分参数
type SplitConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// ChunkingConfig CV 与课程数据集各自的切分参数
type ChunkingConfig struct {
	CV      SplitConfig `yaml:"cv"`
	Courses SplitConfig `yaml:"courses"`
}

// EmbeddingConfig 并发 embedding 配置
type EmbeddingConfig struct {
	Concurrency int `yaml:"concurrency"`
	Dimension   int `yaml:"dimension,omitempty"`
}

// UpsertConfig 批量写入配置
type UpsertConfig struct {
	BatchSize int    `yaml:"batch_size"`
	Policy    string `yaml:"policy"` // "abort" | "continue"
}

// RetryConfig 外部调用重试配置
type RetryConfig struct {
	MaxRetries      uint64        `yaml:"max_retries"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// AgentConfig 工具循环配置
type AgentConfig struct {
	MaxRounds  int    `yaml:"max_rounds"`
	CourseMode string `yaml:"course_mode"` // "agent" | "retrieval"
	TopK       int    `yaml:"top_k"`
}

// Config 顶层应用配置。
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Tracing     TracingConfig     `yaml:"tracing"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Pinecone    PineconeConfig    `yaml:"pinecone"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Upsert      UpsertConfig      `yaml:"upsert"`
	Retry       RetryConfig       `yaml:"retry"`
	Agent       AgentConfig       `yaml:"agent"`
}

// Default 返回所有非敏感字段的默认值
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":3000",
			Mode:         "release",
			MaxUploadMB:  20,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info"},
		OpenAI: OpenAIConfig{
			EmbeddingModel: "text-embedding-3-small",
			ChatModel:      "gpt-4o",
		},
		Pinecone: PineconeConfig{
			ControlURL: "https://api.pinecone.io",
		},
		VectorStore: VectorStoreConfig{Kind: "pinecone", Metric: "cosine"},
		Chunking: ChunkingConfig{
			CV:      SplitConfig{Size: 1000, Overlap: 200},
			Courses: SplitConfig{Size: 2000, Overlap: 400},
		},
		Embedding: EmbeddingConfig{Concurrency: 4},
		Upsert:    UpsertConfig{BatchSize: 50, Policy: "abort"},
		Retry: RetryConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     10 * time.Second,
		},
		Agent: AgentConfig{MaxRounds: 8, CourseMode: "agent", TopK: 3},
	}
}

// Load 从指定路径加载 YAML 配置, 未出现的字段保持默认值。
// path 为空时直接返回默认配置。
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return cfg, nil
}

// LookupFunc 与 os.LookupEnv 同签名, 测试时可替换
type LookupFunc func(key string) (string, bool)

// ApplyEnv 用环境变量覆盖配置中的密钥与索引名
func (c *Config) ApplyEnv(lookup LookupFunc) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.OpenAI.APIKey, EnvOpenAIKey)
	set(&c.OpenAI.BaseURL, EnvOpenAIBaseURL)
	set(&c.Pinecone.APIKey, EnvPineconeKey)
	set(&c.Pinecone.CVIndex, EnvPineconeIndex)
	set(&c.Pinecone.DatasourceIndex, EnvPineconeDatasource)
	set(&c.Pinecone.CVIndexHost, EnvPineconeIndexHost)
	set(&c.Pinecone.DatasourceHost, EnvPineconeSourceHost)
	set(&c.VectorStore.DSN, EnvPostgresDSN)
	set(&c.Server.Auth.JWTSecret, EnvJWTSecret)
}

// Validate 检查启动必需项, 一次性列出所有缺失的环境变量
func (c *Config) Validate() error {
	var missing []string
	if c.OpenAI.APIKey == "" {
		missing = append(missing, EnvOpenAIKey)
	}
	if c.VectorStore.Kind == "pinecone" || c.VectorStore.Kind == "" {
		if c.Pinecone.APIKey == "" {
			missing = append(missing, EnvPineconeKey)
		}
	}
	if c.Pinecone.CVIndex == "" {
		missing = append(missing, EnvPineconeIndex)
	}
	if c.Pinecone.DatasourceIndex == "" {
		missing = append(missing, EnvPineconeDatasource)
	}
	if len(missing) > 0 {
		return &types.ConfigurationError{Missing: missing}
	}

	switch c.VectorStore.Kind {
	case "", "pinecone", "memory":
	case "pgvector":
		if c.VectorStore.DSN == "" {
			return &types.ConfigurationError{Missing: []string{EnvPostgresDSN}, Reason: "pgvector store needs a dsn"}
		}
		if c.VectorStore.Dimension <= 0 {
			return &types.ConfigurationError{Reason: "vector_store.dimension must be > 0 for pgvector"}
		}
	default:
		return &types.ConfigurationError{Reason: fmt.Sprintf("unknown vector_store.kind %q", c.VectorStore.Kind)}
	}

	for name, sc := range map[string]SplitConfig{"cv": c.Chunking.CV, "courses": c.Chunking.Courses} {
		if sc.Size <= 0 || sc.Overlap < 0 || sc.Overlap >= sc.Size {
			return &types.ConfigurationError{Reason: fmt.Sprintf("chunking.%s: need 0 <= overlap < size", name)}
		}
	}
	if c.Server.RateLimit.RequestsPerMinute < 0 || c.Server.RateLimit.Burst < 0 {
		return &types.ConfigurationError{Reason: "server.rate_limit values must be >= 0"}
	}
	if s := c.Server.Auth.JWTSecret; s != "" && len(s) < 16 {
		return &types.ConfigurationError{Reason: "server.auth.jwt_secret must be at least 16 bytes"}
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return &types.ConfigurationError{Reason: "tracing.sampling_rate must be within [0, 1]"}
	}
	if c.Upsert.BatchSize <= 0 {
		return &types.ConfigurationError{Reason: "upsert.batch_size must be > 0"}
	}
	if c.Upsert.Policy != "abort" && c.Upsert.Policy != "continue" {
		return &types.ConfigurationError{Reason: fmt.Sprintf("unknown upsert.policy %q", c.Upsert.Policy)}
	}
	if c.Agent.CourseMode != "agent" && c.Agent.CourseMode != "retrieval" {
		return &types.ConfigurationError{Reason: fmt.Sprintf("unknown agent.course_mode %q", c.Agent.CourseMode)}
	}
	return nil
}

// FromEnvironment 读取 .env(若存在)、YAML 与进程环境变量并校验。
// 缺少必需配置时返回 *types.ConfigurationError, 调用方应拒绝启动。
func FromEnvironment(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
