package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AutoByteus/autobyteus-sub000/pkg/logger"
	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
)

// ToolRegistry holds the tools one agent may call. It is built and injected
// explicitly; there is no process-wide registry.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds tool, replacing any tool with the same name.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		logger.WarnCF("tool", "Tool re-registered", map[string]interface{}{"tool": tool.Name()})
	}
	r.tools[tool.Name()] = tool
}

func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Execute runs the named tool. It never returns nil: unknown tools, missing
// required arguments, cancelled contexts and panics all come back as error
// results so the failure is recorded against the tool call.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args map[string]interface{}) (result *ToolResult) {
	agentID, turnID := ExecutionContext(ctx)
	fields := map[string]interface{}{
		"tool":     name,
		"agent_id": agentID,
		"turn_id":  turnID,
	}
	logger.InfoCF("tool", "Tool execution started", withField(fields, "args", sanitizeToolArgs(args)))

	tool, ok := r.Get(name)
	if !ok {
		logger.ErrorCF("tool", "Tool not found", fields)
		return ErrorResult(fmt.Sprintf("tool %q not found", name)).WithError(fmt.Errorf("tool not found"))
	}
	if missing := missingRequiredArgs(tool.Parameters(), args); len(missing) > 0 {
		err := fmt.Errorf("missing required argument(s): %s", strings.Join(missing, ", "))
		logger.WarnCF("tool", "Tool arguments rejected", withField(fields, "error", err.Error()))
		return ErrorResult(err.Error()).WithError(err)
	}
	if err := ctx.Err(); err != nil {
		return ErrorResult(fmt.Sprintf("tool %q not run: %v", name, err)).WithError(err)
	}

	start := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("tool %q panicked: %v", name, recovered)
			logger.ErrorCF("tool", "Tool panicked", withField(fields, "error", err.Error()))
			result = ErrorResult(err.Error()).WithError(err)
		}
	}()
	result = tool.Execute(ctx, args)
	duration := time.Since(start).Milliseconds()

	switch {
	case result == nil:
		err := fmt.Errorf("tool %q returned nil result", name)
		logger.ErrorCF("tool", "Tool returned nil result", fields)
		return ErrorResult(err.Error()).WithError(err)
	case result.IsError:
		logger.ErrorCF("tool", "Tool execution failed",
			map[string]interface{}{
				"tool":        name,
				"turn_id":     turnID,
				"duration_ms": duration,
				"error":       result.ForLLM,
			})
	default:
		logger.InfoCF("tool", "Tool execution completed",
			map[string]interface{}{
				"tool":          name,
				"turn_id":       turnID,
				"duration_ms":   duration,
				"result_length": len(result.ForLLM),
			})
	}
	return result
}

func withField(fields map[string]interface{}, key string, value interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[key] = value
	return out
}

// missingRequiredArgs lists the schema's "required" properties absent from
// args, in schema order.
func missingRequiredArgs(schema map[string]interface{}, args map[string]interface{}) []string {
	var required []string
	switch typed := schema["required"].(type) {
	case []string:
		required = typed
	case []interface{}:
		for _, v := range typed {
			if s, ok := v.(string); ok {
				required = append(required, s)
			}
		}
	}
	var missing []string
	for _, key := range required {
		if _, ok := args[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// ToProviderDefs converts the tools to provider definitions, ordered by
// name so rendered requests are stable.
func (r *ToolRegistry) ToProviderDefs() []providers.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	definitions := make([]providers.ToolDefinition, 0, len(r.tools))
	for _, name := range r.sortedNames() {
		tool := r.tools[name]
		definitions = append(definitions, providers.ToolDefinition{
			Type: "function",
			Function: providers.ToolFunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return definitions
}

// List returns the registered tool names in sorted order.
func (r *ToolRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames()
}

func (r *ToolRegistry) sortedNames() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// GetSummaries returns one "- `name` - description" line per tool.
func (r *ToolRegistry) GetSummaries() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]string, 0, len(r.tools))
	for _, name := range r.sortedNames() {
		summaries = append(summaries, fmt.Sprintf("- `%s` - %s", name, r.tools[name].Description()))
	}
	return summaries
}

const maxLoggedArgLen = 256

var sensitiveArgKeyFragments = []string{
	"api_key", "apikey", "authorization", "auth", "bearer", "client_secret",
	"cookie", "password", "private", "secret", "session", "token",
}

// sanitizeToolArgs copies args for logging with credentials redacted and
// long strings cut. The stored raw trace keeps the original arguments.
func sanitizeToolArgs(args map[string]interface{}) map[string]interface{} {
	if args == nil {
		return nil
	}
	sanitized := make(map[string]interface{}, len(args))
	for key, value := range args {
		sanitized[key] = sanitizeArg(key, value, 0)
	}
	return sanitized
}

func sanitizeArg(key string, value interface{}, depth int) interface{} {
	if depth > 6 {
		return "<omitted>"
	}
	if isSensitiveArgKey(key) {
		return "<redacted>"
	}
	switch typed := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, v := range typed {
			out[k] = sanitizeArg(k, v, depth+1)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, item := range typed {
			out[i] = sanitizeArg(key, item, depth+1)
		}
		return out
	case string:
		if len(typed) > maxLoggedArgLen {
			return typed[:maxLoggedArgLen] + "...(truncated)"
		}
		return typed
	default:
		return value
	}
}

func isSensitiveArgKey(key string) bool {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), "-", "_"))
	for _, fragment := range sensitiveArgKeyFragments {
		if strings.Contains(normalized, fragment) {
			return true
		}
	}
	return false
}
