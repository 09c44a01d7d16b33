package rollback

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	automation "github.com/execore/automation"
)

// CaptureFileCreate records that path did not exist (or is about to be
// created) before the caller writes it. On rollback, the target is deleted
// if present.
func (m *Manager) CaptureFileCreate(path string) (*RollbackPoint, error) {
	p := &RollbackPoint{
		ID:         automation.NewID(),
		Kind:       OpFileCreate,
		CapturedAt: time.Now(),
		Detail:     path,
	}
	p.CanRollback = true
	p.inverse = func() error {
		err := os.Remove(path)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	m.appendToCurrent(p)
	return p, nil
}

// CaptureFileModify snapshots path's current content to a uniquely-named
// backup file before the caller overwrites it, along with a content hash.
// On rollback, the backup is restored over the target. If the snapshot
// itself fails, the point is still appended with CanRollback=false so the
// caller's mutation is never blocked by a capture failure.
func (m *Manager) CaptureFileModify(path string) (*RollbackPoint, error) {
	p := &RollbackPoint{
		ID:         automation.NewID(),
		Kind:       OpFileModify,
		CapturedAt: time.Now(),
		Detail:     path,
	}
	backupPath, hash, err := m.backupFile(p.ID, path)
	if err != nil {
		m.logger.Warn("rollback: capture file modify failed, continuing without rollback coverage", "path", path, "error", err)
		p.CanRollback = false
		m.appendToCurrent(p)
		return p, nil
	}
	p.Detail = fmt.Sprintf("%s (backup=%s sha256=%s)", path, backupPath, hash)
	p.CanRollback = true
	p.inverse = func() error {
		return restoreBackup(backupPath, path)
	}
	m.appendToCurrent(p)
	return p, nil
}

// CaptureFileDelete snapshots path's content to a backup file before the
// caller deletes it. On rollback, the backup is restored at the original
// path.
func (m *Manager) CaptureFileDelete(path string) (*RollbackPoint, error) {
	p := &RollbackPoint{
		ID:         automation.NewID(),
		Kind:       OpFileDelete,
		CapturedAt: time.Now(),
		Detail:     path,
	}
	backupPath, hash, err := m.backupFile(p.ID, path)
	if err != nil {
		m.logger.Warn("rollback: capture file delete failed, continuing without rollback coverage", "path", path, "error", err)
		p.CanRollback = false
		m.appendToCurrent(p)
		return p, nil
	}
	p.Detail = fmt.Sprintf("%s (backup=%s sha256=%s)", path, backupPath, hash)
	p.CanRollback = true
	p.inverse = func() error {
		return restoreBackup(backupPath, path)
	}
	m.appendToCurrent(p)
	return p, nil
}

// CaptureFileMove records source and destination paths before the caller
// moves a file. On rollback, destination is moved back to source if it
// still exists there.
func (m *Manager) CaptureFileMove(source, destination string) (*RollbackPoint, error) {
	p := &RollbackPoint{
		ID:          automation.NewID(),
		Kind:        OpFileMove,
		CapturedAt:  time.Now(),
		Detail:      fmt.Sprintf("%s -> %s", source, destination),
		CanRollback: true,
	}
	p.inverse = func() error {
		if _, err := os.Stat(destination); os.IsNotExist(err) {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(source), 0o750); err != nil {
			return err
		}
		return os.Rename(destination, source)
	}
	m.appendToCurrent(p)
	return p, nil
}

// ClipboardReader returns the current clipboard content. Injected so tests
// and headless environments don't depend on a real clipboard.
type ClipboardReader func() (string, error)

// ClipboardWriter sets the clipboard content.
type ClipboardWriter func(string) error

// CaptureClipboardChange records the clipboard's content at capture time
// using read, so that rollback can restore it using write.
func (m *Manager) CaptureClipboardChange(read ClipboardReader, write ClipboardWriter) (*RollbackPoint, error) {
	p := &RollbackPoint{
		ID:         automation.NewID(),
		Kind:       OpClipboard,
		CapturedAt: time.Now(),
	}
	content, err := read()
	if err != nil {
		m.logger.Warn("rollback: capture clipboard failed, continuing without rollback coverage", "error", err)
		p.CanRollback = false
		m.appendToCurrent(p)
		return p, nil
	}
	p.Detail = "clipboard snapshot"
	p.CanRollback = true
	p.inverse = func() error {
		return write(content)
	}
	m.appendToCurrent(p)
	return p, nil
}

// WindowState is the captured geometry/state of a window identified by id.
type WindowState struct {
	WindowID  string
	X, Y      int
	Width     int
	Height    int
	Minimized bool
}

// WindowRestorer restores a previously captured WindowState. Implementations
// may treat this as a no-op when restoring window geometry is unsafe (e.g.
// the window has since closed).
type WindowRestorer func(WindowState) error

// CaptureWindowOp records a window's geometry/state before an operation that
// will change it.
func (m *Manager) CaptureWindowOp(state WindowState, restore WindowRestorer) (*RollbackPoint, error) {
	p := &RollbackPoint{
		ID:          automation.NewID(),
		Kind:        OpWindow,
		CapturedAt:  time.Now(),
		Detail:      fmt.Sprintf("window %s", state.WindowID),
		CanRollback: true,
	}
	p.inverse = func() error {
		return restore(state)
	}
	m.appendToCurrent(p)
	return p, nil
}

func (m *Manager) appendToCurrent(p *RollbackPoint) {
	m.mu.Lock()
	tx := m.current
	m.mu.Unlock()
	if tx == nil {
		m.logger.Warn("rollback: capture with no open transaction, point is orphaned", "kind", p.Kind)
		return
	}
	tx.addPoint(p)
}

// backupFile copies path's current content to a uniquely-suffixed file
// under m.backupDir and returns the backup path and a hex-encoded sha256 of
// its content. Returns an error if path does not exist or cannot be read.
func (m *Manager) backupFile(pointID, path string) (string, string, error) {
	if err := os.MkdirAll(m.backupDir, 0o750); err != nil {
		return "", "", err
	}
	src, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer src.Close()

	backupPath := filepath.Join(m.backupDir, fmt.Sprintf("%s.%d.bak", pointID, time.Now().UnixNano()))
	dst, err := os.OpenFile(backupPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", "", err
	}
	defer dst.Close()

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(dst, hasher), src); err != nil {
		return "", "", err
	}
	return backupPath, hex.EncodeToString(hasher.Sum(nil)), nil
}

// restoreBackup copies backupPath's content over target, creating target's
// parent directory if needed.
func restoreBackup(backupPath, target string) error {
	src, err := os.Open(backupPath)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// PruneBackups deletes backup files under m.backupDir older than maxAge.
// Intended to be run periodically by the caller (e.g. on a ticker).
func (m *Manager) PruneBackups(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(m.backupDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(m.backupDir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
