package types

// Role 定义消息角色
type Role string

const (
	// RoleUser 用户角色
	RoleUser Role = "user"

	// RoleAssistant AI助手角色
	RoleAssistant Role = "assistant"

	// RoleSystem 系统角色
	RoleSystem Role = "system"

	// RoleTool 工具角色
	RoleTool Role = "tool"
)

// Message 表示一条对话消息
type Message struct {
	// Role 消息角色
	Role Role `json:"role"`

	// Content 消息文本
	Content string `json:"content,omitempty"`

	// ToolCalls 工具调用列表（仅assistant角色）
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID 工具调用ID（仅tool角色）
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall 表示模型发起的一次工具调用
type ToolCall struct {
	// ID 工具调用的唯一标识符
	ID string `json:"id"`

	// Name 工具名称
	Name string `json:"name"`

	// Arguments 原始 JSON 参数, 由工具自行严格解码
	Arguments string `json:"arguments,omitempty"`
}

// ToolResult 表示工具执行结果
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// AgentState 工具循环的状态
type AgentState string

const (
	StateAwaitingModel AgentState = "awaiting_model"
	StateExecutingTool AgentState = "executing_tool"
	StateDone          AgentState = "done"
	StateFailed        AgentState = "failed"
)
