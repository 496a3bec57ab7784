package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/wordflowlab/careerpilot/pkg/chunker"
	"github.com/wordflowlab/careerpilot/pkg/loader"
	"github.com/wordflowlab/careerpilot/pkg/logging"
	"github.com/wordflowlab/careerpilot/pkg/tools"
	"github.com/wordflowlab/careerpilot/pkg/types"
	"github.com/wordflowlab/careerpilot/pkg/vector"
)

// DefaultConcurrency 单个文档同时在途的 embedding 请求数
const DefaultConcurrency = 4

var tracer = otel.Tracer("github.com/wordflowlab/careerpilot/pkg/ingest")

// Pipeline 文件 → 文本 → chunk → 向量 → 分批写入
type Pipeline struct {
	Loader      *loader.Loader
	Splitter    *chunker.Splitter
	Embedder    vector.Embedder
	Upserter    *vector.BatchUpserter
	Concurrency int

	// Dimension 期望的向量维度, 0 表示以第一个向量为准
	Dimension int

	Logger *logging.Logger
}

// Result 一次导入的结果
type Result struct {
	DocumentID string
	Path       string
	Content    string
	Chunks     int
	Upsert     vector.UpsertResult
	Elapsed    time.Duration
}

func (p *Pipeline) logger() *logging.Logger {
	if p.Logger == nil {
		return logging.Default
	}
	return p.Logger
}

// IngestFile 加载并导入一个文件。
// 文件中的所有文档先用换行拼接成完整文本, 再统一切分。
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*Result, error) {
	docs, err := p.Loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	p.logger().Info(ctx, "ingest.file_loaded", map[string]interface{}{
		"path":      path,
		"documents": len(docs),
	})
	return p.IngestText(ctx, uuid.NewString(), path, loader.JoinText(docs))
}

// IngestText 导入一段已经提取好的文本
func (p *Pipeline) IngestText(ctx context.Context, docID, path, text string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "ingest.document", trace.WithAttributes(
		attribute.String("document.id", docID),
		attribute.String("file.path", path),
	))
	defer span.End()

	res, err := p.ingestText(ctx, docID, path, text)
	span.SetAttributes(
		attribute.Int("ingest.chunks", res.Chunks),
		attribute.Int("ingest.upserted", res.Upsert.Upserted),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (p *Pipeline) ingestText(ctx context.Context, docID, path, text string) (*Result, error) {
	start := time.Now()
	res := &Result{DocumentID: docID, Path: path, Content: text}

	doc := types.Document{ID: docID, Text: text, Metadata: map[string]interface{}{"source": path}}
	chunks := chunker.Collect(p.Splitter.Split(doc))
	res.Chunks = len(chunks)
	if len(chunks) == 0 {
		res.Elapsed = time.Since(start)
		return res, nil
	}

	vectors, err := p.embed(ctx, chunks)
	if err != nil {
		return res, err
	}

	records := make([]types.UpsertRecord, len(chunks))
	for i, c := range chunks {
		records[i] = types.UpsertRecord{
			ID:     RecordID(docID, c.Index),
			Values: vectors[i],
			Metadata: map[string]interface{}{
				"text":       tools.Truncate(c.Text, tools.MaxMetadataText),
				"documentId": docID,
				"filePath":   path,
				"chunkIndex": c.Index,
			},
		}
	}

	res.Upsert, err = p.Upserter.Upsert(ctx, records)
	res.Elapsed = time.Since(start)
	if err != nil {
		return res, err
	}

	p.logger().Info(ctx, "ingest.completed", map[string]interface{}{
		"document_id": docID,
		"chunks":      len(chunks),
		"upserted":    res.Upsert.Upserted,
		"elapsed_ms":  res.Elapsed.Milliseconds(),
	})
	return res, nil
}

// RecordID 生成 chunk 对应的记录 ID
func RecordID(docID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", docID, index)
}

// embed 并发生成向量, 结果按 chunk 下标写回, 保证顺序。
// 任一 chunk 失败即中止整个文档。
func (p *Pipeline) embed(ctx context.Context, chunks []types.Chunk) ([][]float32, error) {
	limit := p.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, c := range chunks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out, err := p.Embedder.EmbedText(gctx, []string{c.Text})
			if err != nil {
				return &types.EmbeddingFailedError{ChunkIndex: c.Index, Err: err}
			}
			if len(out) != 1 || len(out[0]) == 0 {
				return &types.EmbeddingFailedError{ChunkIndex: c.Index, Err: errors.New("empty embedding")}
			}
			vectors[i] = out[0]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	want := p.Dimension
	if want == 0 {
		want = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != want {
			return nil, &types.EmbeddingFailedError{
				ChunkIndex: chunks[i].Index,
				Err:        fmt.Errorf("vector dimension %d, want %d", len(v), want),
			}
		}
	}
	return vectors, nil
}
