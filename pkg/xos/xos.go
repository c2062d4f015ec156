//go:build !windows

// Package xos provides atomic file writes for build outputs.
// Readers of an output path see either the previous content or the new one,
// never a partial file.
package xos

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// WriteFile writes data to filename atomically, creating parent directories.
func WriteFile(filename string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	return renameio.WriteFile(filename, data, perm)
}

// WriteReader streams r into filename atomically, creating parent directories.
func WriteReader(filename string, r io.Reader, perm os.FileMode) error {
	p, err := NewPendingFile(filename)
	if err != nil {
		return err
	}
	defer p.Cleanup()

	if _, err := io.Copy(p, r); err != nil {
		return err
	}
	if err := p.Chmod(perm); err != nil {
		return err
	}
	return p.CloseAtomically()
}

// CopyFile copies src to dst atomically.
func CopyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return WriteReader(dst, in, perm)
}

// PendingFile is an output being written. Call CloseAtomically to publish it,
// or Cleanup to discard it. Cleanup after CloseAtomically is a no-op.
type PendingFile struct {
	tempFile *renameio.PendingFile
	path     string
}

// NewPendingFile creates a pending file next to filename.
func NewPendingFile(filename string) (*PendingFile, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, err
	}
	t, err := renameio.TempFile("", filename)
	if err != nil {
		return nil, err
	}
	return &PendingFile{tempFile: t, path: filename}, nil
}

func (p *PendingFile) Write(data []byte) (int, error) {
	return p.tempFile.Write(data)
}

// Chmod changes the file mode of the pending file.
func (p *PendingFile) Chmod(perm os.FileMode) error {
	return p.tempFile.Chmod(perm)
}

// CloseAtomically publishes the file under its target path.
func (p *PendingFile) CloseAtomically() error {
	return p.tempFile.CloseAtomicallyReplace()
}

// Cleanup discards the pending file.
func (p *PendingFile) Cleanup() {
	_ = p.tempFile.Cleanup()
}

// Path returns the target path.
func (p *PendingFile) Path() string {
	return p.path
}
