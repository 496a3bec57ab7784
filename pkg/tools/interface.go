package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/wordflowlab/careerpilot/pkg/provider"
	"github.com/wordflowlab/careerpilot/pkg/types"
)

// Name 工具名称。工具集合是封闭的, 只有下面三种。
type Name string

const (
	ParseFileTool   Name = "parse_file"
	QueryStoreTool  Name = "query_store"
	SaveToStoreTool Name = "save_to_store"
)

// Call 解码后的工具调用, 每个工具对应一个具体类型
type Call interface {
	ToolName() Name
	validate() error
}

// ParseFile 解析一个已上传的文件
type ParseFile struct {
	FilePath string `json:"filePath"`
}

func (ParseFile) ToolName() Name { return ParseFileTool }

func (c ParseFile) validate() error {
	if strings.TrimSpace(c.FilePath) == "" {
		return errors.New("filePath is required")
	}
	return nil
}

// QueryStore 在向量库中检索与 query 相关的记录
type QueryStore struct {
	Query string `json:"query"`
	TopK  int    `json:"topK,omitempty"`
}

func (QueryStore) ToolName() Name { return QueryStoreTool }

func (c QueryStore) validate() error {
	if strings.TrimSpace(c.Query) == "" {
		return errors.New("query is required")
	}
	if c.TopK < 0 || c.TopK > 20 {
		return errors.New("topK must be between 1 and 20")
	}
	return nil
}

// SaveToStore 将一段文本写入向量库
type SaveToStore struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (SaveToStore) ToolName() Name { return SaveToStoreTool }

func (c SaveToStore) validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return errors.New("content is required")
	}
	return nil
}

// Decode 按工具名严格解码参数。
// 未知工具返回 *types.ToolNotFoundError; 参数无法解码、含未知字段或缺少必填项返回 *types.InvalidArgumentsError。
func Decode(name, arguments string) (Call, error) {
	var call Call
	switch Name(name) {
	case ParseFileTool:
		var c ParseFile
		if err := strictUnmarshal(name, arguments, &c); err != nil {
			return nil, err
		}
		call = c
	case QueryStoreTool:
		var c QueryStore
		if err := strictUnmarshal(name, arguments, &c); err != nil {
			return nil, err
		}
		call = c
	case SaveToStoreTool:
		var c SaveToStore
		if err := strictUnmarshal(name, arguments, &c); err != nil {
			return nil, err
		}
		call = c
	default:
		return nil, &types.ToolNotFoundError{Name: name}
	}

	if err := call.validate(); err != nil {
		return nil, &types.InvalidArgumentsError{Tool: name, Reason: err.Error()}
	}
	return call, nil
}

func strictUnmarshal(tool, arguments string, dst interface{}) error {
	raw := strings.TrimSpace(arguments)
	if raw == "" {
		raw = "{}"
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &types.InvalidArgumentsError{Tool: tool, Reason: err.Error()}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return &types.InvalidArgumentsError{Tool: tool, Reason: "trailing data after arguments object"}
	}
	return nil
}

// Schema 返回工具声明给模型的 JSON Schema
func Schema(name Name) (provider.ToolSchema, bool) {
	s, ok := schemas[name]
	return s, ok
}

var schemas = map[Name]provider.ToolSchema{
	ParseFileTool: {
		Name:        string(ParseFileTool),
		Description: "Parse an uploaded PDF, DOCX, or CSV file and return its text",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"filePath": map[string]interface{}{"type": "string", "description": "path of the uploaded file"},
			},
			"required":             []string{"filePath"},
			"additionalProperties": false,
		},
	},
	QueryStoreTool: {
		Name:        string(QueryStoreTool),
		Description: "Query the vector store for the most relevant records",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{"type": "string", "description": "natural language search text"},
				"topK":  map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 20},
			},
			"required":             []string{"query"},
			"additionalProperties": false,
		},
	},
	SaveToStoreTool: {
		Name:        string(SaveToStoreTool),
		Description: "Save parsed content to the vector store",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"content":  map[string]interface{}{"type": "string"},
				"metadata": map[string]interface{}{"type": "object"},
			},
			"required":             []string{"content"},
			"additionalProperties": false,
		},
	},
}
