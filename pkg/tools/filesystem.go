package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// validatePath resolves path against workspace. With restrict set, paths
// that escape the workspace are rejected.
func validatePath(path, workspace string, restrict bool) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	absWorkspace, err := filepath.Abs(workspace)
	if err != nil {
		return "", fmt.Errorf("resolve workspace: %w", err)
	}
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(absWorkspace, resolved)
	}
	resolved = filepath.Clean(resolved)
	if !restrict {
		return resolved, nil
	}
	rel, err := filepath.Rel(absWorkspace, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("access denied: %s is outside the workspace", path)
	}
	return resolved, nil
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

// ReadFileTool returns a file's contents, truncated to maxBytes.
type ReadFileTool struct {
	workspace string
	restrict  bool
	maxBytes  int
}

func NewReadFileTool(workspace string, restrict bool, maxBytes int) *ReadFileTool {
	if maxBytes <= 0 {
		maxBytes = 64 * 1024
	}
	return &ReadFileTool{workspace: workspace, restrict: restrict, maxBytes: maxBytes}
}

func (t *ReadFileTool) Name() string { return "read_file" }
func (t *ReadFileTool) Description() string {
	return "Read the contents of a file. Relative paths resolve against the workspace."
}

func (t *ReadFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file to read",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	if err := ctx.Err(); err != nil {
		return ErrorResult(err.Error()).WithError(err)
	}
	path, err := validatePath(stringArg(args, "path"), t.workspace, t.restrict)
	if err != nil {
		return ErrorResult(err.Error()).WithError(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrorResult(fmt.Sprintf("file not found: %s", stringArg(args, "path"))).WithError(err)
		}
		return ErrorResult(fmt.Sprintf("failed to stat file: %v", err)).WithError(err)
	}
	if info.IsDir() {
		return ErrorResult(fmt.Sprintf("path is a directory: %s", stringArg(args, "path")))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ErrorResult(fmt.Sprintf("failed to read file: %v", err)).WithError(err)
	}
	content := string(data)
	if len(content) > t.maxBytes {
		content = content[:t.maxBytes] + "\n... (content truncated)"
	}
	return NewToolResult(content)
}

// ListDirTool lists one directory level.
type ListDirTool struct {
	workspace  string
	restrict   bool
	maxEntries int
}

func NewListDirTool(workspace string, restrict bool) *ListDirTool {
	return &ListDirTool{workspace: workspace, restrict: restrict, maxEntries: 1000}
}

func (t *ListDirTool) Name() string { return "list_dir" }
func (t *ListDirTool) Description() string {
	return "List the entries of a directory. Directories are suffixed with /."
}

func (t *ListDirTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory to list (default: workspace root)",
			},
		},
	}
}

func (t *ListDirTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	if err := ctx.Err(); err != nil {
		return ErrorResult(err.Error()).WithError(err)
	}
	target := stringArg(args, "path")
	if strings.TrimSpace(target) == "" {
		target = "."
	}
	path, err := validatePath(target, t.workspace, t.restrict)
	if err != nil {
		return ErrorResult(err.Error()).WithError(err)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrorResult(fmt.Sprintf("directory not found: %s", target)).WithError(err)
		}
		return ErrorResult(fmt.Sprintf("failed to read directory: %v", err)).WithError(err)
	}

	names := make([]interface{}, 0, len(entries))
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		if len(names) >= t.maxEntries {
			lines = append(lines, fmt.Sprintf("... (%d more entries)", len(entries)-len(names)))
			break
		}
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
		lines = append(lines, name)
	}
	if len(names) == 0 {
		return StructuredResult(fmt.Sprintf("Directory is empty: %s", target), names)
	}
	return StructuredResult(strings.Join(lines, "\n"), names)
}

// WriteFileTool writes or overwrites a file. It refuses to run unless writes
// are allowed.
type WriteFileTool struct {
	workspace  string
	restrict   bool
	allowWrite bool
}

func NewWriteFileTool(workspace string, restrict, allowWrite bool) *WriteFileTool {
	return &WriteFileTool{workspace: workspace, restrict: restrict, allowWrite: allowWrite}
}

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Write content to a file, creating parent directories as needed."
}

func (t *WriteFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file to write",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Content to write",
			},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	if !t.allowWrite {
		return ErrorResult("write_file is disabled (tools.allow_write is false)")
	}
	if err := ctx.Err(); err != nil {
		return ErrorResult(err.Error()).WithError(err)
	}
	path, err := validatePath(stringArg(args, "path"), t.workspace, t.restrict)
	if err != nil {
		return ErrorResult(err.Error()).WithError(err)
	}
	content, ok := args["content"].(string)
	if !ok {
		return ErrorResult("content is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ErrorResult(fmt.Sprintf("failed to create directory: %v", err)).WithError(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return ErrorResult(fmt.Sprintf("failed to write file: %v", err)).WithError(err)
	}
	return StructuredResult(
		fmt.Sprintf("Wrote %d bytes to %s", len(content), stringArg(args, "path")),
		map[string]interface{}{"path": stringArg(args, "path"), "bytes": len(content)},
	)
}

// NewFileToolRegistry registers the builtin file tools for workspace.
func NewFileToolRegistry(workspace string, restrict, allowWrite bool, maxReadBytes int) *ToolRegistry {
	registry := NewToolRegistry()
	registry.Register(NewReadFileTool(workspace, restrict, maxReadBytes))
	registry.Register(NewListDirTool(workspace, restrict))
	registry.Register(NewWriteFileTool(workspace, restrict, allowWrite))
	return registry
}
