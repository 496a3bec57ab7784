package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wordflowlab/careerpilot/pkg/appconfig"
	"github.com/wordflowlab/careerpilot/pkg/career"
	"github.com/wordflowlab/careerpilot/pkg/chunker"
	"github.com/wordflowlab/careerpilot/pkg/ingest"
	"github.com/wordflowlab/careerpilot/pkg/loader"
	"github.com/wordflowlab/careerpilot/pkg/logging"
	"github.com/wordflowlab/careerpilot/pkg/provider"
	"github.com/wordflowlab/careerpilot/pkg/retry"
	"github.com/wordflowlab/careerpilot/pkg/vector"
	"github.com/wordflowlab/careerpilot/pkg/vector/pgvector"
	"github.com/wordflowlab/careerpilot/pkg/vector/pinecone"
	"github.com/wordflowlab/careerpilot/server/observability"
)

// app 持有一个进程内共享的外部依赖
type app struct {
	cfg    *appconfig.Config
	logger *logging.Logger

	loader   *loader.Loader
	embedder vector.Embedder
	provider provider.Provider

	cvStore     vector.VectorStore
	cvNS        string
	courseStore vector.VectorStore
	courseNS    string

	checks  []observability.HealthCheck
	closers []func() error
}

// buildOptions 控制依赖的构造方式
type buildOptions struct {
	// DryRun 使用内存向量库与本地确定性 embedding, 不访问外部服务
	DryRun bool
}

func newApp(ctx context.Context, cfg *appconfig.Config, opts buildOptions) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logging.Default,
		loader: loader.New(),
	}

	policy := retryPolicy(cfg.Retry, a.logger)

	if opts.DryRun {
		a.embedder = vector.NewMockEmbedder(cfg.Embedding.Dimension)
	} else {
		emb, err := vector.NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.EmbeddingModel, policy)
		if err != nil {
			return nil, err
		}
		a.embedder = emb

		prov, err := provider.NewOpenAIProvider(provider.OpenAIConfig{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.ChatModel,
			Temperature: cfg.OpenAI.Temperature,
			Retry:       policy,
		})
		if err != nil {
			return nil, err
		}
		a.provider = prov
	}

	kind := cfg.VectorStore.Kind
	if opts.DryRun {
		kind = "memory"
	}
	if err := a.openStores(ctx, kind, policy); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStores(ctx context.Context, kind string, policy retry.Policy) error {
	cfg := a.cfg
	switch kind {
	case "", "pinecone":
		cv, err := pinecone.New(pinecone.Config{
			APIKey:     cfg.Pinecone.APIKey,
			IndexName:  cfg.Pinecone.CVIndex,
			Host:       cfg.Pinecone.CVIndexHost,
			ControlURL: cfg.Pinecone.ControlURL,
			Retry:      policy,
		})
		if err != nil {
			return fmt.Errorf("cv index: %w", err)
		}
		courses, err := pinecone.New(pinecone.Config{
			APIKey:     cfg.Pinecone.APIKey,
			IndexName:  cfg.Pinecone.DatasourceIndex,
			Host:       cfg.Pinecone.DatasourceHost,
			ControlURL: cfg.Pinecone.ControlURL,
			Retry:      policy,
		})
		if err != nil {
			return fmt.Errorf("datasource index: %w", err)
		}
		a.cvStore, a.courseStore = cv, courses
		a.cvNS, a.courseNS = cfg.Pinecone.Namespace, cfg.Pinecone.Namespace
		a.checks = append(a.checks,
			observability.NewFuncCheck("pinecone_cv_index", cv.Ping),
			observability.NewFuncCheck("pinecone_datasource_index", courses.Ping),
		)

	case "pgvector":
		st, err := pgvector.New(ctx, &pgvector.Config{
			DSN:       cfg.VectorStore.DSN,
			Table:     cfg.VectorStore.Table,
			Dimension: cfg.VectorStore.Dimension,
			Metric:    cfg.VectorStore.Metric,
		})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, st.Close)
		if err := st.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure pgvector schema: %w", err)
		}
		// 两个索引共用一张表, 以索引名作为 namespace 区分
		a.cvStore, a.courseStore = st, st
		a.cvNS, a.courseNS = cfg.Pinecone.CVIndex, cfg.Pinecone.DatasourceIndex
		a.checks = append(a.checks, observability.NewFuncCheck("pgvector", st.Ping))

	case "memory":
		st := vector.NewMemoryStore()
		a.cvStore, a.courseStore = st, st
		a.cvNS, a.courseNS = cfg.Pinecone.CVIndex, cfg.Pinecone.DatasourceIndex

	default:
		return fmt.Errorf("unknown vector store kind %q", kind)
	}
	return nil
}

func retryPolicy(rc appconfig.RetryConfig, logger *logging.Logger) retry.Policy {
	if rc.MaxRetries == 0 {
		return retry.None{}
	}
	p := retry.NewExponential(rc.MaxRetries, rc.InitialInterval, rc.MaxInterval)
	p.OnRetry = func(err error, wait time.Duration) {
		logger.Warn(context.Background(), "external.retry", map[string]interface{}{
			"error":   err.Error(),
			"wait_ms": wait.Milliseconds(),
		})
	}
	return p
}

func (a *app) pipeline(split appconfig.SplitConfig, store vector.VectorStore, namespace string) (*ingest.Pipeline, error) {
	sp, err := chunker.New(split.Size, split.Overlap)
	if err != nil {
		return nil, err
	}
	up := vector.NewBatchUpserter(store)
	up.Namespace = namespace
	up.BatchSize = a.cfg.Upsert.BatchSize
	up.Policy = vector.FailurePolicy(a.cfg.Upsert.Policy)
	up.Logger = a.logger

	return &ingest.Pipeline{
		Loader:      a.loader,
		Splitter:    sp,
		Embedder:    a.embedder,
		Upserter:    up,
		Concurrency: a.cfg.Embedding.Concurrency,
		Dimension:   a.cfg.Embedding.Dimension,
		Logger:      a.logger,
	}, nil
}

// coursePipeline 课程数据集导入, 写入 datasource 索引
func (a *app) coursePipeline() (*ingest.Pipeline, error) {
	return a.pipeline(a.cfg.Chunking.Courses, a.courseStore, a.courseNS)
}

func (a *app) cvService() (*career.CVService, error) {
	if a.provider == nil {
		return nil, errors.New("cv service needs a chat provider")
	}
	p, err := a.pipeline(a.cfg.Chunking.CV, a.cvStore, a.cvNS)
	if err != nil {
		return nil, err
	}
	return &career.CVService{
		Pipeline:  p,
		Provider:  a.provider,
		Embedder:  a.embedder,
		Store:     a.cvStore,
		Namespace: a.cvNS,
		MaxRounds: a.cfg.Agent.MaxRounds,
		Logger:    a.logger,
	}, nil
}

func (a *app) courseService() *career.CourseService {
	return &career.CourseService{
		Provider:  a.provider,
		Embedder:  a.embedder,
		Store:     a.courseStore,
		Namespace: a.courseNS,
		TopK:      a.cfg.Agent.TopK,
		Mode:      a.cfg.Agent.CourseMode,
		MaxRounds: a.cfg.Agent.MaxRounds,
		Logger:    a.logger,
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn(context.Background(), "app.close_failed", map[string]interface{}{"error": err.Error()})
		}
	}
	a.closers = nil
}
