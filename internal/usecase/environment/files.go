package environment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"aihub/internal/domain"
	"aihub/internal/plugin"
)

// ListFiles returns the entry names of a directory inside the sandbox.
// Directories carry a trailing slash.
func (e *Environment) ListFiles(path string) ([]string, error) {
	return e.files.ListDir(path)
}

// ReadFile returns the content of a sandbox file.
func (e *Environment) ReadFile(name string) (string, error) {
	data, err := e.files.ReadFile(name)
	if err != nil {
		return "", err
	}
	e.SystemLogger().Debug("file read", "file", name, "size", len(data))
	return string(data), nil
}

// WriteFile writes content to a sandbox file, creating parent directories.
func (e *Environment) WriteFile(name, content string) error {
	if err := e.files.WriteFile(name, []byte(content)); err != nil {
		return err
	}
	e.SystemLogger().Info("file written", "file", name, "size", len(content))
	return nil
}

// ExecCommand runs command in the sandbox root and records the result in
// terminal.txt. Timeouts and non-zero exits are reported in the result.
func (e *Environment) ExecCommand(ctx context.Context, command string) (domain.CommandResult, error) {
	e.SystemLogger().Info("exec command", "command", command)
	res, err := e.commands.Run(ctx, command, e.box.Root())
	if err != nil {
		return res, err
	}
	if err := e.terminal.Append(
		Field{Key: "command", Value: res.Command},
		Field{Key: "stdout", Value: res.Stdout},
		Field{Key: "stderr", Value: res.Stderr},
		Field{Key: "returncode", Value: res.ReturnCode},
		Field{Key: "msg", Value: res.Msg},
	); err != nil {
		return res, domain.WrapOp("Environment.ExecCommand", err)
	}
	if res.TimedOut() {
		e.SystemLogger().Warn("command timed out", "command", command)
	}
	return res, nil
}

// ListTerminalCommands returns every recorded command result in order.
func (e *Environment) ListTerminalCommands() ([]domain.CommandResult, error) {
	lines, err := e.terminal.Lines()
	if err != nil {
		return nil, err
	}
	results := make([]domain.CommandResult, 0, len(lines))
	for i, line := range lines {
		var r domain.CommandResult
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", TerminalFile, i+1, err)
		}
		results = append(results, r)
	}
	return results, nil
}

// CreateSnapshot packs the whole sandbox into a tar.gz archive.
func (e *Environment) CreateSnapshot() ([]byte, error) {
	data, err := plugin.PackTarGz(e.box.Root())
	if err != nil {
		return nil, domain.WrapOp("Environment.CreateSnapshot", err)
	}
	return data, nil
}

// LoadSnapshot replaces the sandbox contents with the archive's. The log
// files are reopened afterwards.
func (e *Environment) LoadSnapshot(snapshot []byte) error {
	if err := e.closeLogs(); err != nil {
		e.logger.Warn("close run logs", "error", err)
	}
	if err := RestoreSnapshot(snapshot, e.box.Root()); err != nil {
		if oerr := e.openLogs(); oerr != nil {
			e.logger.Warn("reopen run logs", "error", oerr)
		}
		return err
	}
	e.mu.Lock()
	e.done = false
	e.mu.Unlock()
	return e.openLogs()
}

// SaveSnapshot archives the sandbox through a registry and returns the
// snapshot identifier.
func (e *Environment) SaveSnapshot(ctx context.Context, registry domain.RegistryClient, metadata map[string]string) (string, error) {
	data, err := e.CreateSnapshot()
	if err != nil {
		return "", err
	}
	meta := map[string]string{"agent": e.PrimaryAgent().Identifier()}
	for k, v := range metadata {
		meta[k] = v
	}
	id, err := registry.Save(ctx, data, meta)
	if err != nil {
		return "", domain.WrapOp("Environment.SaveSnapshot", err)
	}
	e.SystemLogger().Info("snapshot saved", "id", id, "size", len(data))
	return id, nil
}

// RestoreSnapshot replaces the contents of dir with snapshot. The archive
// is extracted into a staging directory first, so a corrupt snapshot
// leaves dir untouched.
func RestoreSnapshot(snapshot []byte, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	staging, err := os.MkdirTemp(filepath.Dir(filepath.Clean(dir)), ".aihub-restore-*")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := plugin.ExtractTarGz(bytes.NewReader(snapshot), staging); err != nil {
		return domain.NewSubSystemError("snapshot", "RestoreSnapshot", domain.ErrInvalidInput, err.Error())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("clear %s: %w", dir, err)
		}
	}
	restored, err := os.ReadDir(staging)
	if err != nil {
		return fmt.Errorf("read staging dir: %w", err)
	}
	for _, entry := range restored {
		if err := os.Rename(filepath.Join(staging, entry.Name()), filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("restore %s: %w", entry.Name(), err)
		}
	}
	return nil
}
