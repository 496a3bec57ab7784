package career

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wordflowlab/careerpilot/pkg/agent"
	"github.com/wordflowlab/careerpilot/pkg/ingest"
	"github.com/wordflowlab/careerpilot/pkg/logging"
	"github.com/wordflowlab/careerpilot/pkg/provider"
	"github.com/wordflowlab/careerpilot/pkg/tools"
	"github.com/wordflowlab/careerpilot/pkg/vector"
)

// 课程推荐模式
const (
	ModeAgent     = "agent"
	ModeRetrieval = "retrieval"
)

// CVResult 简历处理结果
type CVResult struct {
	Summary string
	Ingest  *ingest.Result
	Rounds  int
}

// CVService 导入简历并生成摘要
type CVService struct {
	Pipeline  *ingest.Pipeline
	Provider  provider.Provider
	Embedder  vector.Embedder
	Store     vector.VectorStore
	Namespace string
	MaxRounds int
	Logger    *logging.Logger
}

func (s *CVService) logger() *logging.Logger {
	if s.Logger == nil {
		return logging.Default
	}
	return s.Logger
}

// Process 导入 path 指向的简历, 再让模型生成三段式摘要。
// 模型可使用 parse_file(仅限上传文件所在目录)与 save_to_store。
func (s *CVService) Process(ctx context.Context, path string) (*CVResult, error) {
	res, err := s.Pipeline.IngestFile(ctx, path)
	if err != nil {
		return nil, err
	}
	s.logger().Info(ctx, "cv.ingested", map[string]interface{}{
		"document_id": res.DocumentID,
		"chunks":      res.Chunks,
		"upserted":    res.Upsert.Upserted,
	})

	tb := &tools.Toolbox{
		Loader:    s.Pipeline.Loader,
		Embedder:  s.Embedder,
		Store:     s.Store,
		Namespace: s.Namespace,
		Roots:     []string{filepath.Dir(path)},
		Enabled:   []tools.Name{tools.ParseFileTool, tools.SaveToStoreTool},
	}
	runner := agent.New(s.Provider, tb)
	runner.MaxRounds = s.MaxRounds
	runner.Logger = s.logger()

	out, err := runner.Run(ctx, SummaryPrompt(path, res.Content))
	if err != nil {
		return nil, fmt.Errorf("summarize cv: %w", err)
	}
	s.logger().Info(ctx, "cv.summarized", map[string]interface{}{
		"document_id": res.DocumentID,
		"rounds":      out.Rounds,
	})
	return &CVResult{Summary: out.Answer, Ingest: res, Rounds: out.Rounds}, nil
}

// CourseService 根据用户画像推荐课程
type CourseService struct {
	Provider  provider.Provider
	Embedder  vector.Embedder
	Store     vector.VectorStore
	Namespace string
	TopK      int
	Mode      string
	MaxRounds int
	Logger    *logging.Logger
}

func (s *CourseService) logger() *logging.Logger {
	if s.Logger == nil {
		return logging.Default
	}
	return s.Logger
}

// Recommend 返回格式化的课程列表
func (s *CourseService) Recommend(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", errors.New("query is required")
	}
	topK := s.TopK
	if topK <= 0 {
		topK = vector.DefaultTopK
	}

	switch s.Mode {
	case ModeRetrieval:
		vec, err := vector.EmbedQuery(ctx, s.Embedder, query)
		if err != nil {
			return "", fmt.Errorf("embed query: %w", err)
		}
		hits, err := s.Store.Query(ctx, vector.Query{Vector: vec, TopK: topK, Namespace: s.Namespace})
		if err != nil {
			return "", fmt.Errorf("query courses: %w", err)
		}
		s.logger().Info(ctx, "courses.retrieved", map[string]interface{}{"hits": len(hits)})
		return FormatCourseList(hits), nil

	case ModeAgent, "":
		tb := &tools.Toolbox{
			Embedder:  s.Embedder,
			Store:     s.Store,
			Namespace: s.Namespace,
			TopK:      topK,
			Enabled:   []tools.Name{tools.QueryStoreTool},
		}
		runner := agent.New(s.Provider, tb)
		runner.MaxRounds = s.MaxRounds
		runner.Logger = s.logger()

		out, err := runner.Run(ctx, CoursePrompt(query))
		if err != nil {
			return "", fmt.Errorf("recommend courses: %w", err)
		}
		s.logger().Info(ctx, "courses.recommended", map[string]interface{}{
			"rounds":     out.Rounds,
			"tool_calls": len(out.ToolCalls),
		})
		return out.Answer, nil

	default:
		return "", fmt.Errorf("unknown course mode %q", s.Mode)
	}
}
