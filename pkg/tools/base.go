package tools

import "context"

// Tool is a callable the model can request. Parameters returns a JSON schema
// object; names listed under "required" are checked before Execute runs.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *ToolResult
}

type toolExecutionContext struct {
	agentID string
	turnID  string
}

type toolExecutionContextKey struct{}

// WithExecutionContext annotates a call context with the agent and turn the
// call belongs to.
func WithExecutionContext(ctx context.Context, agentID, turnID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, toolExecutionContextKey{}, toolExecutionContext{agentID: agentID, turnID: turnID})
}

// ExecutionContext returns the agent and turn ids set by WithExecutionContext.
func ExecutionContext(ctx context.Context) (agentID, turnID string) {
	if ctx == nil {
		return "", ""
	}
	execCtx, _ := ctx.Value(toolExecutionContextKey{}).(toolExecutionContext)
	return execCtx.agentID, execCtx.turnID
}
