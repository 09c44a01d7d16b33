// Package actions provides reference automation.Executors for the file,
// shell, and HTTP action kinds: each resolves a workflow task's parameters,
// asks the permission.Manager for authorization, captures a rollback point
// before any filesystem mutation, and performs the action within a
// workspace root it cannot escape.
package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	automation "github.com/execore/automation"
	"github.com/execore/automation/permission"
	"github.com/execore/automation/rollback"
)

// FileExecutors returns the engine's file_read, file_write, file_list,
// file_delete, and file_stat Executors, all confined to workspacePath.
func FileExecutors(workspacePath string, perm *permission.Manager, rb *rollback.Manager) map[string]automation.Executor {
	f := &fileActions{workspacePath: workspacePath, perm: perm, rb: rb}
	return map[string]automation.Executor{
		"file_read":   f.read,
		"file_write":  f.write,
		"file_list":   f.list,
		"file_delete": f.delete,
		"file_stat":   f.stat,
	}
}

type fileActions struct {
	workspacePath string
	perm          *permission.Manager
	rb            *rollback.Manager
}

func (f *fileActions) resolvePath(path string) (string, error) {
	if path == "" {
		path = "."
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths not allowed: %s", path)
	}
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("path traversal not allowed: %s", path)
	}
	resolved := filepath.Join(f.workspacePath, path)
	if !strings.HasPrefix(resolved, f.workspacePath) {
		return "", fmt.Errorf("path escapes workspace: %s", path)
	}
	return resolved, nil
}

func stringParam(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return v
}

func (f *fileActions) read(ctx context.Context, params map[string]any) (any, error) {
	resolved, err := f.resolvePath(stringParam(params, "path"))
	if err != nil {
		return nil, err
	}
	if _, err := f.perm.Decide("file_read", params); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}
	content := string(data)
	if len(content) > 8000 {
		content = content[:8000] + "\n... (truncated)"
	}
	return content, nil
}

func (f *fileActions) write(ctx context.Context, params map[string]any) (any, error) {
	resolved, err := f.resolvePath(stringParam(params, "path"))
	if err != nil {
		return nil, err
	}
	if _, err := f.perm.Decide("file_write", params); err != nil {
		return nil, err
	}
	if f.rb != nil {
		if _, err := os.Stat(resolved); err == nil {
			if _, err := f.rb.CaptureFileModify(resolved); err != nil {
				return nil, err
			}
		} else {
			if _, err := f.rb.CaptureFileCreate(resolved); err != nil {
				return nil, err
			}
		}
	}
	content := stringParam(params, "content")
	if err := os.MkdirAll(filepath.Dir(resolved), 0o750); err != nil {
		return nil, fmt.Errorf("mkdir error: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o640); err != nil {
		return nil, fmt.Errorf("write error: %w", err)
	}
	return fmt.Sprintf("written %d bytes to %s", len(content), filepath.Base(resolved)), nil
}

func (f *fileActions) list(ctx context.Context, params map[string]any) (any, error) {
	resolved, err := f.resolvePath(stringParam(params, "path"))
	if err != nil {
		return nil, err
	}
	if _, err := f.perm.Decide("file_read", params); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, fmt.Errorf("list error: %w", err)
	}
	var b strings.Builder
	for _, e := range entries {
		kind := "file"
		if e.IsDir() {
			kind = "dir"
		}
		fmt.Fprintf(&b, "%s\t%s\n", kind, e.Name())
	}
	return b.String(), nil
}

func (f *fileActions) delete(ctx context.Context, params map[string]any) (any, error) {
	resolved, err := f.resolvePath(stringParam(params, "path"))
	if err != nil {
		return nil, err
	}
	if _, err := f.perm.Decide("file_delete", params); err != nil {
		return nil, err
	}
	if f.rb != nil {
		if _, err := f.rb.CaptureFileDelete(resolved); err != nil {
			return nil, err
		}
	}
	if err := os.Remove(resolved); err != nil {
		return nil, fmt.Errorf("delete error: %w", err)
	}
	return fmt.Sprintf("deleted %s", filepath.Base(resolved)), nil
}

func (f *fileActions) stat(ctx context.Context, params map[string]any) (any, error) {
	resolved, err := f.resolvePath(stringParam(params, "path"))
	if err != nil {
		return nil, err
	}
	if _, err := f.perm.Decide("file_read", params); err != nil {
		return nil, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat error: %w", err)
	}
	kind := "file"
	if info.IsDir() {
		kind = "directory"
	}
	return map[string]any{
		"name":     info.Name(),
		"size":     info.Size(),
		"type":     kind,
		"modified": info.ModTime().UTC().Format("2006-01-02T15:04:05Z"),
	}, nil
}
