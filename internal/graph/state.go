package graph

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/renameio/v2"
	"github.com/zeebo/blake3"
)

// Fingerprint identifies a task's inputs and output presence at one point in time.
type Fingerprint [32]byte

var stateEncMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("graph: cbor enc mode: %v", err))
	}
	stateEncMode = em
}

type stateFile struct {
	Version int               `cbor:"1,keyasint"`
	Tasks   map[string][]byte `cbor:"2,keyasint"`
}

const stateVersion = 1

// StateStore persists fingerprints of successful task runs between builds.
type StateStore struct {
	path    string
	mu      sync.Mutex
	entries map[string]Fingerprint
	dirty   bool
}

// OpenState loads the state file at path. A missing file yields an empty store.
func OpenState(path string) (*StateStore, error) {
	s := &StateStore{path: path, entries: make(map[string]Fingerprint)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task state: %w", err)
	}

	var f stateFile
	if err := cbor.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode task state %s: %w", path, err)
	}
	if f.Version != stateVersion {
		// Unknown layout: start over rather than trusting stale fingerprints.
		return s, nil
	}
	for name, raw := range f.Tasks {
		if len(raw) != len(Fingerprint{}) {
			continue
		}
		var fp Fingerprint
		copy(fp[:], raw)
		s.entries[name] = fp
	}
	return s, nil
}

// Get returns the stored fingerprint for a task.
func (s *StateStore) Get(name string) (Fingerprint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp, ok := s.entries[name]
	return fp, ok
}

// Put records the fingerprint of a successful run.
func (s *StateStore) Put(name string, fp Fingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[name]; ok && old == fp {
		return
	}
	s.entries[name] = fp
	s.dirty = true
}

// Forget drops a task's fingerprint so its next run executes.
func (s *StateStore) Forget(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		delete(s.entries, name)
		s.dirty = true
	}
}

// Save writes the store atomically if anything changed.
func (s *StateStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	f := stateFile{Version: stateVersion, Tasks: make(map[string][]byte, len(s.entries))}
	for name, fp := range s.entries {
		f.Tasks[name] = append([]byte(nil), fp[:]...)
	}
	data, err := stateEncMode.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode task state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write task state: %w", err)
	}
	s.dirty = false
	return nil
}

// fingerprint hashes the task name, every input (path, size, content) and the
// presence of every declared output.
func fingerprint(t *Task, inputs []string) (Fingerprint, error) {
	h := blake3.New()
	writeField(h, []byte(t.name))

	sorted := append([]string(nil), inputs...)
	sort.Strings(sorted)
	for _, in := range sorted {
		writeField(h, []byte(in))
		if err := hashFile(h, in); err != nil {
			return Fingerprint{}, fmt.Errorf("failed to fingerprint input %s: %w", in, err)
		}
	}

	outputs := t.DeclaredOutputs()
	sort.Strings(outputs)
	for _, out := range outputs {
		writeField(h, []byte(out))
		if _, err := os.Stat(out); err == nil {
			writeField(h, []byte{1})
		} else {
			writeField(h, []byte{0})
		}
	}

	var fp Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp, nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		writeField(w, []byte("missing"))
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(info.Size()))
	writeField(w, size[:])
	if info.IsDir() {
		return nil
	}
	_, err = io.Copy(w, f)
	return err
}

func writeField(w io.Writer, b []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	_, _ = w.Write(n[:])
	_, _ = w.Write(b)
}
