package agent

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordflowlab/careerpilot/pkg/logging"
	"github.com/wordflowlab/careerpilot/pkg/provider"
	"github.com/wordflowlab/careerpilot/pkg/types"
)

// scriptedProvider 按顺序返回预设的回复
type scriptedProvider struct {
	replies []types.Message
	err     error
	calls   int
	seen    [][]types.Message
	opts    []*provider.CompleteOptions
}

func (p *scriptedProvider) Complete(_ context.Context, messages []types.Message, opts *provider.CompleteOptions) (*provider.CompleteResponse, error) {
	p.seen = append(p.seen, append([]types.Message(nil), messages...))
	p.opts = append(p.opts, opts)
	if p.err != nil {
		return nil, p.err
	}
	if p.calls >= len(p.replies) {
		return nil, errors.New("script exhausted")
	}
	msg := p.replies[p.calls]
	p.calls++
	return &provider.CompleteResponse{Message: msg}, nil
}

func (p *scriptedProvider) Model() string { return "scripted" }

type fakeExecutor struct {
	results map[string]string
	errs    map[string]error
	calls   []types.ToolCall
}

func (e *fakeExecutor) Schemas() []provider.ToolSchema {
	return []provider.ToolSchema{{Name: "query_store"}}
}

func (e *fakeExecutor) Execute(_ context.Context, call types.ToolCall) (string, error) {
	e.calls = append(e.calls, call)
	if err, ok := e.errs[call.Name]; ok {
		return "", err
	}
	if out, ok := e.results[call.Name]; ok {
		return out, nil
	}
	return "", &types.ToolNotFoundError{Name: call.Name}
}

func toolCall(id, name, args string) types.Message {
	return types.Message{
		Role:      types.RoleAssistant,
		ToolCalls: []types.ToolCall{{ID: id, Name: name, Arguments: args}},
	}
}

func answer(text string) types.Message {
	return types.Message{Role: types.RoleAssistant, Content: text}
}

func quietRunner(p provider.Provider, exec Executor) *Runner {
	r := New(p, exec)
	r.Logger = logging.NewLogger(logging.LevelError, logging.NewWriterTransport("test", &bytes.Buffer{}))
	return r
}

func TestRunner_RunDirect(t *testing.T) {
	p := &scriptedProvider{replies: []types.Message{answer("summary")}}
	r := quietRunner(p, nil)
	r.System = "sys"

	res, err := r.RunDirect(context.Background(), "summarize")
	require.NoError(t, err)
	assert.Equal(t, "summary", res.Answer)
	assert.Equal(t, types.StateDone, res.State)
	assert.Empty(t, p.opts[0].Tools)
	assert.Equal(t, "sys", p.opts[0].System)

	t.Run("模型错误", func(t *testing.T) {
		p := &scriptedProvider{err: errors.New("503")}
		res, err := quietRunner(p, nil).RunDirect(context.Background(), "x")
		assert.ErrorContains(t, err, "503")
		assert.Equal(t, types.StateFailed, res.State)
	})
}

func TestRunner_Run(t *testing.T) {
	t.Run("工具调用后得到最终回答", func(t *testing.T) {
		p := &scriptedProvider{replies: []types.Message{
			toolCall("c1", "query_store", `{"query":"react"}`),
			answer("1. React - https://x"),
		}}
		exec := &fakeExecutor{results: map[string]string{"query_store": `[{"id":"a"}]`}}

		res, err := quietRunner(p, exec).Run(context.Background(), "recommend")
		require.NoError(t, err)
		assert.Equal(t, "1. React - https://x", res.Answer)
		assert.Equal(t, 2, res.Rounds)
		assert.Equal(t, types.StateDone, res.State)
		require.Len(t, res.ToolCalls, 1)

		second := p.seen[1]
		require.Len(t, second, 3)
		assert.Equal(t, types.RoleTool, second[2].Role)
		assert.Equal(t, "c1", second[2].ToolCallID)
		assert.Equal(t, `[{"id":"a"}]`, second[2].Content)
		assert.Len(t, p.opts[0].Tools, 1)
	})

	t.Run("没有工具请求时一轮结束", func(t *testing.T) {
		p := &scriptedProvider{replies: []types.Message{answer("done")}}
		res, err := quietRunner(p, &fakeExecutor{}).Run(context.Background(), "hi")
		require.NoError(t, err)
		assert.Equal(t, 1, res.Rounds)
	})

	t.Run("未知工具终止循环", func(t *testing.T) {
		p := &scriptedProvider{replies: []types.Message{
			toolCall("c1", "drop_tables", `{}`),
			answer("unreachable"),
		}}
		res, err := quietRunner(p, &fakeExecutor{}).Run(context.Background(), "x")
		var nf *types.ToolNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "drop_tables", nf.Name)
		assert.Equal(t, types.StateFailed, res.State)
		assert.Equal(t, 1, p.calls)
	})

	t.Run("参数非法终止循环", func(t *testing.T) {
		p := &scriptedProvider{replies: []types.Message{toolCall("c1", "query_store", `{"q":1}`)}}
		exec := &fakeExecutor{errs: map[string]error{
			"query_store": &types.InvalidArgumentsError{Tool: "query_store", Reason: "unknown field"},
		}}
		_, err := quietRunner(p, exec).Run(context.Background(), "x")
		var ia *types.InvalidArgumentsError
		assert.ErrorAs(t, err, &ia)
	})

	t.Run("工具执行错误回传给模型", func(t *testing.T) {
		p := &scriptedProvider{replies: []types.Message{
			toolCall("c1", "query_store", `{"query":"go"}`),
			answer("sorry, the store is unavailable"),
		}}
		exec := &fakeExecutor{errs: map[string]error{"query_store": errors.New("connection refused")}}
		res, err := quietRunner(p, exec).Run(context.Background(), "x")
		require.NoError(t, err)
		assert.Equal(t, "sorry, the store is unavailable", res.Answer)
		assert.Contains(t, p.seen[1][2].Content, "connection refused")
	})

	t.Run("超过最大轮数", func(t *testing.T) {
		replies := make([]types.Message, 10)
		for i := range replies {
			replies[i] = toolCall("c", "query_store", `{"query":"loop"}`)
		}
		p := &scriptedProvider{replies: replies}
		exec := &fakeExecutor{results: map[string]string{"query_store": "[]"}}
		r := quietRunner(p, exec)
		r.MaxRounds = 3

		res, err := r.Run(context.Background(), "x")
		var mr *types.MaxRoundsExceededError
		require.ErrorAs(t, err, &mr)
		assert.Equal(t, 3, mr.Rounds)
		assert.Equal(t, 3, p.calls)
		assert.Len(t, exec.calls, 3)
		assert.Equal(t, types.StateFailed, res.State)
	})

	t.Run("上下文取消", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := &scriptedProvider{replies: []types.Message{answer("x")}}
		_, err := quietRunner(p, &fakeExecutor{}).Run(ctx, "x")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, p.calls)
	})
}
