package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUploadMissing 请求中没有上传文件
var ErrUploadMissing = errors.New("no file uploaded")

// ErrPathNotAllowed parse_file 的路径不在允许的目录内。
// 工具循环把它当作普通工具错误回传给模型, 不终止循环。
var ErrPathNotAllowed = errors.New("filePath is outside the upload area")

// UnsupportedFileTypeError 文件扩展名不在支持列表中
type UnsupportedFileTypeError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFileTypeError) Error() string {
	if e.Ext == "" {
		return fmt.Sprintf("unsupported file type: %s has no extension", e.Path)
	}
	return fmt.Sprintf("unsupported file type %q: %s", e.Ext, e.Path)
}

// ParseError 文件已识别但解析失败
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// EmbeddingFailedError 某个 chunk 在重试后仍无法生成向量
// Tool 非空时表示向量来自工具调用, 此时 ChunkIndex 无意义
type EmbeddingFailedError struct {
	ChunkIndex int
	Tool       string
	Err        error
}

func (e *EmbeddingFailedError) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("embedding failed in tool %s: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("embedding failed for chunk %d: %v", e.ChunkIndex, e.Err)
}

func (e *EmbeddingFailedError) Unwrap() error { return e.Err }

// InvalidRecordError 记录在发送前校验失败
type InvalidRecordError struct {
	Index  int
	ID     string
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid record #%d (id=%q): %s", e.Index, e.ID, e.Reason)
}

// BatchRange 失败批次在记录序列中的范围, [From, To)
type BatchRange struct {
	Batch int
	From  int
	To    int
	Err   error
}

// UpsertFailedError 一个或多个批次写入失败。
// Upserted 为失败前(或整个过程中)已成功写入的记录数。
type UpsertFailedError struct {
	Failed   []BatchRange
	Upserted int
}

func (e *UpsertFailedError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("batch %d [%d,%d): %v", f.Batch+1, f.From, f.To, f.Err))
	}
	return fmt.Sprintf("upsert failed after %d records: %s", e.Upserted, strings.Join(parts, "; "))
}

// Unwrap 返回第一个失败批次的原因
func (e *UpsertFailedError) Unwrap() error {
	if len(e.Failed) == 0 {
		return nil
	}
	return e.Failed[0].Err
}

// ToolNotFoundError 模型请求了未注册的工具
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return "tool not found: " + e.Name
}

// InvalidArgumentsError 工具参数无法解码或缺少必填字段
type InvalidArgumentsError struct {
	Tool   string
	Reason string
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.Tool, e.Reason)
}

// MaxRoundsExceededError 工具循环超过最大轮数仍未得到最终回答
type MaxRoundsExceededError struct {
	Rounds int
}

func (e *MaxRoundsExceededError) Error() string {
	return fmt.Sprintf("agent did not finish within %d rounds", e.Rounds)
}

// ConfigurationError 启动时必需的配置缺失或非法
type ConfigurationError struct {
	Missing []string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if len(e.Missing) > 0 {
		b.WriteString(": missing ")
		b.WriteString(strings.Join(e.Missing, ", "))
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}
