package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level 日志级别
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var levelOrder = map[Level]int{
	LevelDebug: 1,
	LevelInfo:  2,
	LevelWarn:  3,
	LevelError: 4,
}

// ParseLevel 解析配置中的级别字符串, 大小写不敏感
func ParseLevel(s string) (Level, error) {
	lv := Level(strings.ToLower(strings.TrimSpace(s)))
	if lv == "" {
		return LevelInfo, nil
	}
	if lv == "warning" {
		return LevelWarn, nil
	}
	if _, ok := levelOrder[lv]; !ok {
		return "", fmt.Errorf("unknown log level: %q", s)
	}
	return lv, nil
}

// LogRecord 一条 JSON 行日志
type LogRecord struct {
	Timestamp time.Time              `json:"ts"`
	Level     Level                  `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Transport 日志输出通道
type Transport interface {
	Name() string
	Log(ctx context.Context, rec *LogRecord) error
	Flush(ctx context.Context) error
}

// Logger 聚合多个 Transport。
// base 中的字段会合并进每条记录, 用于携带 request_id 等上下文。
type Logger struct {
	mu         sync.RWMutex
	level      Level
	transports []Transport
	base       map[string]interface{}
}

// NewLogger 创建 Logger 实例
func NewLogger(level Level, transports ...Transport) *Logger {
	return &Logger{
		level:      level,
		transports: transports,
	}
}

// SetLevel 设置日志级别
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// AddTransport 动态添加 transport
func (l *Logger) AddTransport(t Transport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transports = append(l.transports, t)
}

// With 返回携带固定字段的子 Logger, 与父 Logger 共享 transports
func (l *Logger) With(fields map[string]interface{}) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	merged := make(map[string]interface{}, len(l.base)+len(fields))
	for k, v := range l.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{
		level:      l.level,
		transports: l.transports,
		base:       merged,
	}
}

func (l *Logger) log(ctx context.Context, level Level, msg string, fields map[string]interface{}) {
	if !l.enabled(level) {
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	scoped := contextFields(ctx)
	if len(l.base) > 0 || len(scoped) > 0 {
		merged := make(map[string]interface{}, len(l.base)+len(scoped)+len(fields))
		for k, v := range l.base {
			merged[k] = v
		}
		for k, v := range scoped {
			merged[k] = v
		}
		for k, v := range fields {
			merged[k] = v
		}
		fields = merged
	}

	rec := &LogRecord{
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
		Fields:    fields,
	}
	for _, t := range l.transports {
		_ = t.Log(ctx, rec)
	}
}

type ctxKey struct{}

// ContextWith 返回携带日志字段的 ctx, 该 ctx 下写出的每条记录都会带上这些字段
func ContextWith(ctx context.Context, fields map[string]interface{}) context.Context {
	prev := contextFields(ctx)
	merged := make(map[string]interface{}, len(prev)+len(fields))
	for k, v := range prev {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, ctxKey{}, merged)
}

func contextFields(ctx context.Context) map[string]interface{} {
	if ctx == nil {
		return nil
	}
	m, _ := ctx.Value(ctxKey{}).(map[string]interface{})
	return m
}

func (l *Logger) enabled(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return levelOrder[level] >= levelOrder[l.level]
}

// Debug 记录调试日志
func (l *Logger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, LevelDebug, msg, fields)
}

// Info 记录信息日志
func (l *Logger) Info(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, LevelInfo, msg, fields)
}

// Warn 记录警告日志
func (l *Logger) Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, LevelWarn, msg, fields)
}

// Error 记录错误日志
func (l *Logger) Error(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, LevelError, msg, fields)
}

// Flush 刷新所有 transports
func (l *Logger) Flush(ctx context.Context) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, t := range l.transports {
		_ = t.Flush(ctx)
	}
}

// WriterTransport 将日志以 JSON 行写入任意 io.Writer
type WriterTransport struct {
	mu      sync.Mutex
	name    string
	encoder *json.Encoder
}

// NewWriterTransport 创建 WriterTransport
func NewWriterTransport(name string, w io.Writer) *WriterTransport {
	return &WriterTransport{
		name:    name,
		encoder: json.NewEncoder(w),
	}
}

// NewStdoutTransport 输出到 stdout
func NewStdoutTransport() *WriterTransport {
	return NewWriterTransport("stdout", os.Stdout)
}

func (t *WriterTransport) Name() string { return t.name }

func (t *WriterTransport) Log(_ context.Context, rec *LogRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.encoder.Encode(rec)
}

func (t *WriterTransport) Flush(context.Context) error { return nil }

// FileTransport 将日志以 JSON 行追加到文件
type FileTransport struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

// NewFileTransport 创建 FileTransport, path 为日志文件路径
func NewFileTransport(path string) (*FileTransport, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &FileTransport{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

func (t *FileTransport) Name() string { return "file" }

func (t *FileTransport) Log(_ context.Context, rec *LogRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.encoder.Encode(rec)
}

func (t *FileTransport) Flush(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Sync()
}

// Close 关闭底层文件
func (t *FileTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}

// Default 全局 Logger
var Default = NewLogger(LevelInfo, NewStdoutTransport())

// Setup 按配置重建 Default。file 非空时额外写入文件, 返回的 close 用于关闭文件。
func Setup(level, file string) (func() error, error) {
	lv, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	transports := []Transport{NewStdoutTransport()}
	closer := func() error { return nil }
	if file != "" {
		ft, err := NewFileTransport(file)
		if err != nil {
			return nil, err
		}
		transports = append(transports, ft)
		closer = ft.Close
	}
	Default = NewLogger(lv, transports...)
	return closer, nil
}

func Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	Default.Debug(ctx, msg, fields)
}

func Info(ctx context.Context, msg string, fields map[string]interface{}) {
	Default.Info(ctx, msg, fields)
}

func Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	Default.Warn(ctx, msg, fields)
}

func Error(ctx context.Context, msg string, fields map[string]interface{}) {
	Default.Error(ctx, msg, fields)
}

func Flush(ctx context.Context) {
	Default.Flush(ctx)
}
