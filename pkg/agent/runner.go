package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wordflowlab/careerpilot/pkg/logging"
	"github.com/wordflowlab/careerpilot/pkg/provider"
	"github.com/wordflowlab/careerpilot/pkg/types"
)

// DefaultMaxRounds 工具循环默认最大轮数
const DefaultMaxRounds = 8

var tracer = otel.Tracer("github.com/wordflowlab/careerpilot/pkg/agent")

// Executor 执行模型请求的工具调用
type Executor interface {
	Schemas() []provider.ToolSchema
	Execute(ctx context.Context, call types.ToolCall) (string, error)
}

// Runner 驱动一次指令的执行。
// 每一轮把完整消息历史交给模型; 模型请求工具时执行并把结果追加为 tool 消息, 否则该回复即最终答案。
type Runner struct {
	Provider  provider.Provider
	Executor  Executor
	System    string
	MaxRounds int
	Logger    *logging.Logger
}

// Result 执行结果
type Result struct {
	Answer    string
	Rounds    int
	ToolCalls []types.ToolCall
	State     types.AgentState
	Messages  []types.Message
}

// New 创建 Runner
func New(p provider.Provider, exec Executor) *Runner {
	return &Runner{
		Provider:  p,
		Executor:  exec,
		MaxRounds: DefaultMaxRounds,
		Logger:    logging.Default,
	}
}

func (r *Runner) logger() *logging.Logger {
	if r.Logger == nil {
		return logging.Default
	}
	return r.Logger
}

// RunDirect 不带工具, 发送一次指令并返回文本回答
func (r *Runner) RunDirect(ctx context.Context, instruction string) (*Result, error) {
	history := []types.Message{{Role: types.RoleUser, Content: instruction}}
	resp, err := r.Provider.Complete(ctx, history, &provider.CompleteOptions{System: r.System})
	if err != nil {
		return &Result{State: types.StateFailed, Rounds: 1, Messages: history}, fmt.Errorf("model call: %w", err)
	}
	history = append(history, resp.Message)
	r.logger().Debug(ctx, "agent.direct_completed", map[string]interface{}{
		"model":         r.Provider.Model(),
		"finish_reason": resp.FinishReason,
	})
	return &Result{
		Answer:   resp.Message.Content,
		Rounds:   1,
		State:    types.StateDone,
		Messages: history,
	}, nil
}

// Run 执行有界的工具循环。
// 未知工具或参数非法时终止并返回错误; 其他工具执行错误作为 is_error 结果回传给模型。
func (r *Runner) Run(ctx context.Context, instruction string) (*Result, error) {
	if r.Executor == nil {
		return r.RunDirect(ctx, instruction)
	}
	ctx, span := tracer.Start(ctx, "agent.run", trace.WithAttributes(attribute.String("llm.model", r.Provider.Model())))
	defer span.End()

	res, err := r.run(ctx, instruction)
	span.SetAttributes(
		attribute.Int("agent.rounds", res.Rounds),
		attribute.Int("agent.tool_calls", len(res.ToolCalls)),
		attribute.String("agent.state", string(res.State)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (r *Runner) run(ctx context.Context, instruction string) (*Result, error) {
	maxRounds := r.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}

	res := &Result{
		State:    types.StateAwaitingModel,
		Messages: []types.Message{{Role: types.RoleUser, Content: instruction}},
	}
	opts := &provider.CompleteOptions{
		System: r.System,
		Tools:  r.Executor.Schemas(),
	}
	log := r.logger()

	var pending []types.ToolCall
	for {
		if err := ctx.Err(); err != nil {
			res.State = types.StateFailed
			return res, err
		}

		switch res.State {
		case types.StateAwaitingModel:
			if res.Rounds >= maxRounds {
				res.State = types.StateFailed
				log.Warn(ctx, "agent.max_rounds_exceeded", map[string]interface{}{"rounds": res.Rounds})
				return res, &types.MaxRoundsExceededError{Rounds: res.Rounds}
			}
			res.Rounds++

			resp, err := r.Provider.Complete(ctx, res.Messages, opts)
			if err != nil {
				res.State = types.StateFailed
				return res, fmt.Errorf("model call (round %d): %w", res.Rounds, err)
			}
			res.Messages = append(res.Messages, resp.Message)

			if len(resp.Message.ToolCalls) == 0 {
				res.Answer = resp.Message.Content
				res.State = types.StateDone
				continue
			}
			pending = resp.Message.ToolCalls
			res.State = types.StateExecutingTool

		case types.StateExecutingTool:
			for _, call := range pending {
				res.ToolCalls = append(res.ToolCalls, call)
				log.Info(ctx, "agent.tool_call", map[string]interface{}{
					"round": res.Rounds,
					"tool":  call.Name,
					"id":    call.ID,
				})

				out, err := r.execute(ctx, call)
				if err != nil {
					if terminal(err) {
						res.State = types.StateFailed
						log.Error(ctx, "agent.tool_rejected", map[string]interface{}{"tool": call.Name, "error": err.Error()})
						return res, err
					}
					log.Warn(ctx, "agent.tool_failed", map[string]interface{}{"tool": call.Name, "error": err.Error()})
					out = "error: " + err.Error()
				}
				res.Messages = append(res.Messages, types.Message{
					Role:       types.RoleTool,
					ToolCallID: call.ID,
					Content:    out,
				})
			}
			pending = nil
			res.State = types.StateAwaitingModel

		case types.StateDone:
			log.Info(ctx, "agent.completed", map[string]interface{}{
				"rounds":     res.Rounds,
				"tool_calls": len(res.ToolCalls),
				"answer_len": len(strings.TrimSpace(res.Answer)),
			})
			return res, nil

		default:
			return res, fmt.Errorf("agent in unexpected state %q", res.State)
		}
	}
}

func (r *Runner) execute(ctx context.Context, call types.ToolCall) (string, error) {
	ctx, span := tracer.Start(ctx, "agent.tool", trace.WithAttributes(attribute.String("tool.name", call.Name)))
	defer span.End()
	out, err := r.Executor.Execute(ctx, call)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func terminal(err error) bool {
	var nf *types.ToolNotFoundError
	var ia *types.InvalidArgumentsError
	return errors.As(err, &nf) || errors.As(err, &ia) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
