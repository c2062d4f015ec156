//go:build windows

// Package xos provides atomic file writes for build outputs.
// On Windows the target is removed before the rename, so the swap is not
// atomic across a crash but a partial file is never published.
package xos

import (
	"io"
	"os"
	"path/filepath"
)

// WriteFile writes data to filename through a temp file in the same directory.
func WriteFile(filename string, data []byte, perm os.FileMode) error {
	p, err := NewPendingFile(filename)
	if err != nil {
		return err
	}
	defer p.Cleanup()
	if _, err := p.Write(data); err != nil {
		return err
	}
	if err := p.Chmod(perm); err != nil {
		return err
	}
	return p.CloseAtomically()
}

// WriteReader streams r into filename through a temp file.
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

// CopyFile copies src to dst.
func CopyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return WriteReader(dst, in, perm)
}

// PendingFile is an output being written.
type PendingFile struct {
	tempFile *os.File
	tempName string
	path     string
	perm     os.FileMode
	done     bool
}

// NewPendingFile creates a pending file next to filename.
func NewPendingFile(filename string) (*PendingFile, error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return nil, err
	}
	return &PendingFile{tempFile: tempFile, tempName: tempFile.Name(), path: filename, perm: 0o644}, nil
}

func (p *PendingFile) Write(data []byte) (int, error) {
	return p.tempFile.Write(data)
}

// Chmod records the mode applied on publish.
func (p *PendingFile) Chmod(perm os.FileMode) error {
	p.perm = perm
	return nil
}

// CloseAtomically publishes the file under its target path.
func (p *PendingFile) CloseAtomically() error {
	if err := p.tempFile.Sync(); err != nil {
		return err
	}
	if err := p.tempFile.Close(); err != nil {
		return err
	}
	if err := os.Chmod(p.tempName, p.perm); err != nil {
		return err
	}
	if _, err := os.Stat(p.path); err == nil {
		if err := os.Remove(p.path); err != nil {
			return err
		}
	}
	if err := os.Rename(p.tempName, p.path); err != nil {
		return err
	}
	p.done = true
	return nil
}

// Cleanup discards the pending file.
func (p *PendingFile) Cleanup() {
	if p.done {
		return
	}
	p.tempFile.Close()
	os.Remove(p.tempName)
}

// Path returns the target path.
func (p *PendingFile) Path() string {
	return p.path
}
