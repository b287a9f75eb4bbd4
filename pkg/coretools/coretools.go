// Package coretools registers the built-in filesystem and shell tools
// against a toolexec.Executor. Every tool resolves paths inside the
// workspace root from its execution context and refuses to escape it.
package coretools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/harun/veda/pkg/toolexec"
)

const (
	defaultReadLimit = 200000
	maxGlobMatches   = 500
)

// errGlobLimit stops the walk once max_results matches are collected.
var errGlobLimit = errors.New("glob match limit reached")

// Options configures core tool registration.
type Options struct {
	// WorkspaceRoot is the fallback workspace when the execution
	// context carries no working directory.
	WorkspaceRoot string
}

// Register installs the built-in glob, read_file, write_file, and exec
// tools on the executor.
func Register(executor *toolexec.Executor, opts Options) error {
	if executor == nil {
		return errors.New("executor is required")
	}

	tools := []toolexec.ToolDefinition{
		globTool(opts),
		readFileTool(opts),
		writeFileTool(opts),
		execTool(opts),
	}

	for _, tool := range tools {
		if err := executor.Register(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name, err)
		}
	}
	return nil
}

func globTool(opts Options) toolexec.ToolDefinition {
	return toolexec.ToolDefinition{
		Name:        "glob",
		Description: "Find files in the workspace matching a glob pattern. Supports ** for recursive matching.",
		Parameters: []toolexec.ToolParameter{
			{Name: "pattern", Type: "string", Description: "Glob pattern, relative to the workspace root", Required: true},
			{Name: "max_results", Type: "number", Description: "Maximum matches to return (default 500)", Required: false},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			root, err := resolveWorkspaceRoot(ctx, opts)
			if err != nil {
				return nil, err
			}

			pattern, _ := params["pattern"].(string)
			pattern = strings.TrimSpace(pattern)
			if pattern == "" {
				return nil, errors.New("pattern is required")
			}
			if !doublestar.ValidatePattern(pattern) {
				return nil, fmt.Errorf("invalid pattern %q", pattern)
			}

			limit := maxGlobMatches
			if raw, ok := params["max_results"].(float64); ok && raw > 0 {
				limit = int(raw)
			}

			matches := make([]string, 0, 16)
			fsys := os.DirFS(root)
			walkErr := doublestar.GlobWalk(fsys, pattern, func(path string, d fs.DirEntry) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if d.IsDir() {
					return nil
				}
				matches = append(matches, path)
				if len(matches) >= limit {
					return errGlobLimit
				}
				return nil
			})
			if walkErr != nil && !errors.Is(walkErr, errGlobLimit) {
				return nil, fmt.Errorf("glob failed: %w", walkErr)
			}
			sort.Strings(matches)

			return map[string]interface{}{
				"pattern": pattern,
				"matches": matches,
				"count":   len(matches),
			}, nil
		},
	}
}

func readFileTool(opts Options) toolexec.ToolDefinition {
	return toolexec.ToolDefinition{
		Name:        "read_file",
		Description: "Read a file from the workspace.",
		Parameters: []toolexec.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "max_bytes", Type: "number", Description: "Maximum bytes to read (default 200000)", Required: false},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			root, err := resolveWorkspaceRoot(ctx, opts)
			if err != nil {
				return nil, err
			}
			pathValue, _ := params["path"].(string)
			target, err := resolvePathInWorkspace(root, pathValue)
			if err != nil {
				return nil, err
			}

			maxBytes := int64(defaultReadLimit)
			if raw, ok := params["max_bytes"].(float64); ok && raw > 0 {
				maxBytes = int64(raw)
			}

			data, truncated, err := readFileWithLimit(target, maxBytes)
			if err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"path":      pathValue,
				"content":   string(data),
				"truncated": truncated,
				"bytes":     len(data),
			}, nil
		},
	}
}

func writeFileTool(opts Options) toolexec.ToolDefinition {
	return toolexec.ToolDefinition{
		Name:        "write_file",
		Description: "Write content to a file in the workspace.",
		Parameters: []toolexec.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "content", Type: "string", Description: "File content", Required: true},
			{Name: "append", Type: "boolean", Description: "Append to file (default false)", Required: false},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			root, err := resolveWorkspaceRoot(ctx, opts)
			if err != nil {
				return nil, err
			}
			pathValue, _ := params["path"].(string)
			target, err := resolvePathInWorkspace(root, pathValue)
			if err != nil {
				return nil, err
			}
			content, _ := params["content"].(string)
			appendMode, _ := params["append"].(bool)

			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, err
			}

			flag := os.O_CREATE | os.O_WRONLY
			if appendMode {
				flag |= os.O_APPEND
			} else {
				flag |= os.O_TRUNC
			}
			file, err := os.OpenFile(target, flag, 0644)
			if err != nil {
				return nil, err
			}
			if _, err := file.WriteString(content); err != nil {
				file.Close()
				return nil, err
			}
			if err := file.Close(); err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"path":   pathValue,
				"bytes":  len(content),
				"append": appendMode,
			}, nil
		},
	}
}

func execTool(opts Options) toolexec.ToolDefinition {
	return toolexec.ToolDefinition{
		Name:        "exec",
		Description: "Execute a shell command in the workspace.",
		Parameters: []toolexec.ToolParameter{
			{Name: "command", Type: "string", Description: "Command to execute", Required: true},
			{Name: "args", Type: "array", Description: "Command arguments", Required: false},
			{Name: "cwd", Type: "string", Description: "Working directory (relative to workspace)", Required: false},
			{Name: "timeout", Type: "number", Description: "Timeout in seconds", Required: false},
			{Name: "env", Type: "object", Description: "Extra environment variables", Required: false},
			{Name: "stdin", Type: "string", Description: "Standard input", Required: false},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			root, err := resolveWorkspaceRoot(ctx, opts)
			if err != nil {
				return nil, err
			}

			command, _ := params["command"].(string)
			command = strings.TrimSpace(command)
			if command == "" {
				return nil, errors.New("command is required")
			}

			args := toStringSlice(params["args"])
			timeout := parseDurationSeconds(params["timeout"], 30*time.Second)
			cwd := resolveWorkspacePath(root, params["cwd"])

			toolexec.EmitProgress(ctx, toolexec.ProgressUpdate{
				Tool:    "exec",
				Message: fmt.Sprintf("running %s", command),
			})

			runCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			cmd := exec.CommandContext(runCtx, command, args...)
			cmd.Dir = cwd
			cmd.Env = append(os.Environ(), toEnvSlice(params["env"])...)
			if stdin, ok := params["stdin"].(string); ok && stdin != "" {
				cmd.Stdin = strings.NewReader(stdin)
			}

			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr

			start := time.Now()
			runErr := cmd.Run()
			duration := time.Since(start)

			exitCode := 0
			if runErr != nil {
				var exitErr *exec.ExitError
				switch {
				case errors.Is(runCtx.Err(), context.DeadlineExceeded):
					return nil, fmt.Errorf("command timed out after %s", timeout)
				case ctx.Err() != nil:
					return nil, ctx.Err()
				case errors.As(runErr, &exitErr):
					exitCode = exitErr.ExitCode()
				default:
					return nil, fmt.Errorf("command failed to start: %w", runErr)
				}
			}

			return map[string]interface{}{
				"stdout":      stdout.String(),
				"stderr":      stderr.String(),
				"exit_code":   exitCode,
				"duration_ms": duration.Milliseconds(),
			}, nil
		},
	}
}

func readFileWithLimit(path string, limit int64) ([]byte, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer file.Close()

	var buf bytes.Buffer
	if limit <= 0 {
		limit = defaultReadLimit
	}
	if _, err := io.CopyN(&buf, file, limit); err != nil && !errors.Is(err, io.EOF) {
		return nil, false, err
	}

	truncated := false
	extra := make([]byte, 1)
	if _, err := file.Read(extra); err == nil {
		truncated = true
	}
	return buf.Bytes(), truncated, nil
}

func resolveWorkspaceRoot(ctx context.Context, opts Options) (string, error) {
	if execCtx := toolexec.ExecContextFromContext(ctx); execCtx != nil && strings.TrimSpace(execCtx.WorkingDir) != "" {
		return filepath.Clean(execCtx.WorkingDir), nil
	}
	if strings.TrimSpace(opts.WorkspaceRoot) != "" {
		return filepath.Clean(opts.WorkspaceRoot), nil
	}
	return "", errors.New("workspace root is not configured")
}

func resolveWorkspacePath(workspaceRoot string, value interface{}) string {
	raw, _ := value.(string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return workspaceRoot
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(workspaceRoot, raw))
}

func resolvePathInWorkspace(workspaceRoot string, pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		return "", errors.New("path is required")
	}
	candidate := pathValue
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(workspaceRoot, candidate)
	}
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(workspaceRoot, candidate)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside workspace root", pathValue)
	}
	return candidate, nil
}

func toStringSlice(value interface{}) []string {
	raw, ok := value.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toEnvSlice(value interface{}) []string {
	raw, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, k+"="+s)
		}
	}
	sort.Strings(out)
	return out
}

func parseDurationSeconds(value interface{}, fallback time.Duration) time.Duration {
	switch v := value.(type) {
	case float64:
		if v > 0 {
			return time.Duration(v * float64(time.Second))
		}
	case int:
		if v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	return fallback
}
