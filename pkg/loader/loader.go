// Package loader 根据文件扩展名选择解析器, 将 PDF/DOCX/CSV 提取为纯文本 Document。
package loader

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wordflowlab/careerpilot/pkg/types"
)

// Parser 解析一种文件格式
type Parser interface {
	Parse(ctx context.Context, path string) ([]types.Document, error)
}

// ParserFunc 函数适配器
type ParserFunc func(ctx context.Context, path string) ([]types.Document, error)

func (f ParserFunc) Parse(ctx context.Context, path string) ([]types.Document, error) {
	return f(ctx, path)
}

// Loader 扩展名到解析器的分发表
type Loader struct {
	mu      sync.RWMutex
	parsers map[string]Parser
	now     func() time.Time
}

// New 创建 Loader 并注册内置的 .pdf/.docx/.csv 解析器
func New() *Loader {
	l := &Loader{
		parsers: make(map[string]Parser),
		now:     time.Now,
	}
	l.Register(".pdf", ParserFunc(parsePDF))
	l.Register(".docx", ParserFunc(parseDOCX))
	l.Register(".csv", ParserFunc(parseCSV))
	return l
}

// Register 注册或覆盖某个扩展名的解析器, ext 需带点, 大小写不敏感
func (l *Loader) Register(ext string, p Parser) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.parsers[normalizeExt(ext)] = p
}

// Supports 判断扩展名是否受支持
func (l *Loader) Supports(path string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.parsers[normalizeExt(filepath.Ext(path))]
	return ok
}

// Extensions 返回已注册的扩展名
func (l *Loader) Extensions() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.parsers))
	for ext := range l.parsers {
		out = append(out, ext)
	}
	return out
}

// Load 解析 path 指向的文件。
// 不支持的扩展名返回 *types.UnsupportedFileTypeError, 解析失败返回 *types.ParseError。
func (l *Loader) Load(ctx context.Context, path string) ([]types.Document, error) {
	ext := normalizeExt(filepath.Ext(path))

	l.mu.RLock()
	p, ok := l.parsers[ext]
	l.mu.RUnlock()
	if !ok {
		return nil, &types.UnsupportedFileTypeError{Path: path, Ext: ext}
	}

	docs, err := p.Parse(ctx, path)
	if err != nil {
		var pe *types.ParseError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &types.ParseError{Path: path, Err: err}
	}

	created := l.now().UTC().Format(time.RFC3339)
	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = uuid.NewString()
		}
		if docs[i].Metadata == nil {
			docs[i].Metadata = make(map[string]interface{})
		}
		docs[i].Metadata["source"] = path
		docs[i].Metadata["created_at"] = created
	}
	return docs, nil
}

// JoinText 将多个文档的文本以换行连接, 作为完整内容交给切分器和模型
func JoinText(docs []types.Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Text
	}
	return strings.Join(parts, "\n")
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
