package tools

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordflowlab/careerpilot/pkg/loader"
	"github.com/wordflowlab/careerpilot/pkg/types"
	"github.com/wordflowlab/careerpilot/pkg/vector"
)

func TestDecode(t *testing.T) {
	t.Run("合法参数", func(t *testing.T) {
		call, err := Decode("query_store", `{"query":"react developer","topK":2}`)
		require.NoError(t, err)
		assert.Equal(t, QueryStore{Query: "react developer", TopK: 2}, call)
		assert.Equal(t, QueryStoreTool, call.ToolName())

		call, err = Decode("save_to_store", `{"content":"x","metadata":{"k":"v"}}`)
		require.NoError(t, err)
		assert.Equal(t, "v", call.(SaveToStore).Metadata["k"])

		call, err = Decode("parse_file", `{"filePath":"/tmp/a.pdf"}`)
		require.NoError(t, err)
		assert.Equal(t, ParseFile{FilePath: "/tmp/a.pdf"}, call)
	})

	t.Run("未知工具", func(t *testing.T) {
		_, err := Decode("delete_everything", `{}`)
		var nf *types.ToolNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "delete_everything", nf.Name)
	})

	invalid := map[string][2]string{
		"未知字段":   {"query_store", `{"query":"x","limit":3}`},
		"缺少必填项":  {"query_store", `{}`},
		"空参数":    {"parse_file", ``},
		"类型错误":   {"save_to_store", `{"content":42}`},
		"尾随数据":   {"query_store", `{"query":"x"} {"query":"y"}`},
		"topK 越界": {"query_store", `{"query":"x","topK":100}`},
		"不是 JSON": {"query_store", `query=x`},
	}
	for name, tc := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(tc[0], tc[1])
			var ia *types.InvalidArgumentsError
			require.ErrorAs(t, err, &ia)
			assert.Equal(t, tc[0], ia.Tool)
		})
	}
}

func newToolbox(t *testing.T, enabled ...Name) (*Toolbox, *vector.MemoryStore) {
	t.Helper()
	store := vector.NewMemoryStore()
	return &Toolbox{
		Loader:    loader.New(),
		Embedder:  vector.NewMockEmbedder(64),
		Store:     store,
		Namespace: "courses",
		Roots:     []string{t.TempDir()},
		Enabled:   enabled,
	}, store
}

func TestToolbox_SaveAndQuery(t *testing.T) {
	ctx := context.Background()
	tb, store := newToolbox(t, SaveToStoreTool, QueryStoreTool)

	for _, content := range []string{
		"course_title: Advanced React\nurl: https://udemy.com/react",
		"course_title: Go Microservices\nurl: https://udemy.com/go",
	} {
		out, err := tb.Execute(ctx, types.ToolCall{ID: "1", Name: "save_to_store", Arguments: mustJSON(t, SaveToStore{Content: content})})
		require.NoError(t, err)
		assert.Contains(t, out, "saved")
	}
	assert.Equal(t, 2, store.Count("courses"))

	out, err := tb.Execute(ctx, types.ToolCall{ID: "2", Name: "query_store", Arguments: `{"query":"react","topK":1}`})
	require.NoError(t, err)

	var matches []Match
	require.NoError(t, json.Unmarshal([]byte(out), &matches))
	require.Len(t, matches, 1)
	assert.Contains(t, matches[0].Metadata["text"], "Advanced React")

	schemas := tb.Schemas()
	require.Len(t, schemas, 2)
	assert.Equal(t, "save_to_store", schemas[0].Name)
}

func TestToolbox_ParseFile(t *testing.T) {
	ctx := context.Background()
	tb, _ := newToolbox(t, ParseFileTool)

	inside := filepath.Join(tb.Roots[0], "courses.csv")
	require.NoError(t, os.WriteFile(inside, []byte("title\nGo\n"), 0o644))

	out, err := tb.Execute(ctx, types.ToolCall{Name: "parse_file", Arguments: mustJSON(t, ParseFile{FilePath: inside})})
	require.NoError(t, err)
	assert.Equal(t, "title: Go", out)

	outside := filepath.Join(t.TempDir(), "secret.csv")
	require.NoError(t, os.WriteFile(outside, []byte("a\nb\n"), 0o644))
	var ia *types.InvalidArgumentsError
	for _, p := range []string{outside, filepath.Join(tb.Roots[0], "..", "x.csv"), "courses.csv"} {
		_, err = tb.Execute(ctx, types.ToolCall{Name: "parse_file", Arguments: mustJSON(t, ParseFile{FilePath: p})})
		assert.ErrorIs(t, err, types.ErrPathNotAllowed, p)
		assert.False(t, errors.As(err, &ia), "path rejection must not end the tool loop: %s", p)
	}
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedText(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("quota exceeded")
}

func TestToolbox_EmbeddingFailure(t *testing.T) {
	tb, store := newToolbox(t, QueryStoreTool, SaveToStoreTool)
	tb.Embedder = failingEmbedder{}

	cases := map[string]types.ToolCall{
		"query_store":   {Name: "query_store", Arguments: `{"query":"react"}`},
		"save_to_store": {Name: "save_to_store", Arguments: `{"content":"x"}`},
	}
	for name, call := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tb.Execute(context.Background(), call)
			var ef *types.EmbeddingFailedError
			require.ErrorAs(t, err, &ef)
			assert.Equal(t, name, ef.Tool)
			assert.Contains(t, err.Error(), "embedding failed in tool "+name)
			assert.NotContains(t, err.Error(), "chunk")
		})
	}
	assert.Equal(t, 0, store.Count(tb.Namespace))
}

func TestToolbox_DisabledTool(t *testing.T) {
	tb, _ := newToolbox(t, QueryStoreTool)
	_, err := tb.Execute(context.Background(), types.ToolCall{Name: "save_to_store", Arguments: `{"content":"x"}`})
	var nf *types.ToolNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "hi", Truncate("hi", 4))
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
