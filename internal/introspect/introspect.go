// Package introspect reads host-private state by field path.
//
// Version adapters use it to reach members the host does not export. Every
// lookup either yields a value of the expected type or a *MismatchError naming
// the host version and the member that was not found at the expected shape.
package introspect

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unsafe"
)

// ErrHostMismatch classifies failures caused by host internals changing shape.
var ErrHostMismatch = errors.New("host version mismatch")

// MismatchError describes a member missing from, or shaped differently in, the host.
type MismatchError struct {
	HostVersion string
	Type        string
	Member      string
	Path        string
	Reason      string
}

func (e *MismatchError) Error() string {
	msg := fmt.Sprintf("%s: host %s: %s has no member %q", ErrHostMismatch, e.HostVersion, e.Type, e.Member)
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: host %s: %s.%s %s", ErrHostMismatch, e.HostVersion, e.Type, e.Member, e.Reason)
	}
	if e.Path != "" && e.Path != e.Member {
		msg += fmt.Sprintf(" (path %s)", e.Path)
	}
	return msg
}

func (e *MismatchError) Unwrap() error { return ErrHostMismatch }

// Requirement is one member path a host type must expose.
type Requirement struct {
	Path string
	Type reflect.Type // nil accepts any type
}

// Expect builds a requirement that path resolves to a member of type T.
func Expect[T any](path string) Requirement {
	return Requirement{Path: path, Type: reflect.TypeFor[T]()}
}

// Verify validates every requirement against root without needing an instance.
// Pointers, maps and slices are looked through, so "storage.files" checks the
// field of a map's element type.
func Verify(version string, root reflect.Type, reqs ...Requirement) error {
	var errs []error
	for _, req := range reqs {
		if err := verify(version, root, req); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func verify(version string, root reflect.Type, req Requirement) error {
	t := root
	for _, seg := range split(req.Path) {
		for t.Kind() == reflect.Pointer || t.Kind() == reflect.Map || t.Kind() == reflect.Slice {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return &MismatchError{HostVersion: version, Type: t.String(), Member: seg, Path: req.Path, Reason: "is not a struct"}
		}
		f, ok := t.FieldByName(seg)
		if !ok {
			return &MismatchError{HostVersion: version, Type: t.String(), Member: seg, Path: req.Path}
		}
		t = f.Type
	}
	if req.Type != nil && t != req.Type {
		return &MismatchError{
			HostVersion: version,
			Type:        root.String(),
			Member:      req.Path,
			Path:        req.Path,
			Reason:      fmt.Sprintf("has type %s, expected %s", t, req.Type),
		}
	}
	return nil
}

// Value resolves path against root, reading unexported fields when needed.
func Value(version string, root any, path string) (reflect.Value, error) {
	v := reflect.ValueOf(root)
	if !v.IsValid() {
		return reflect.Value{}, &MismatchError{HostVersion: version, Type: "<nil>", Member: path, Path: path, Reason: "is nil"}
	}
	if v.Kind() != reflect.Pointer {
		// Copy into addressable storage so unexported fields can be read.
		addressable := reflect.New(v.Type()).Elem()
		addressable.Set(v)
		v = addressable
	}
	return Walk(version, v, path)
}

// Walk resolves path starting from an already reflected value, such as a map
// element or slice item obtained from an earlier lookup.
func Walk(version string, v reflect.Value, path string) (reflect.Value, error) {
	for _, seg := range split(path) {
		for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
			if v.IsNil() {
				return reflect.Value{}, &MismatchError{HostVersion: version, Type: v.Type().String(), Member: seg, Path: path, Reason: "is nil"}
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, &MismatchError{HostVersion: version, Type: v.Type().String(), Member: seg, Path: path, Reason: "is not a struct"}
		}
		f := v.FieldByName(seg)
		if !f.IsValid() {
			return reflect.Value{}, &MismatchError{HostVersion: version, Type: v.Type().String(), Member: seg, Path: path}
		}
		v = accessible(f)
	}
	return v, nil
}

// Get resolves path against root and asserts the member is a T.
func Get[T any](version string, root any, path string) (T, error) {
	v, err := Value(version, root, path)
	if err != nil {
		var zero T
		return zero, err
	}
	return as[T](version, fmt.Sprintf("%T", root), v, path)
}

// GetFrom is Get starting from a reflected value.
func GetFrom[T any](version string, v reflect.Value, path string) (T, error) {
	typ := "<invalid>"
	if v.IsValid() {
		typ = v.Type().String()
	}
	out, err := Walk(version, v, path)
	if err != nil {
		var zero T
		return zero, err
	}
	return as[T](version, typ, out, path)
}

func as[T any](version, root string, v reflect.Value, path string) (T, error) {
	var zero T
	if !v.IsValid() || !v.CanInterface() {
		return zero, &MismatchError{HostVersion: version, Type: root, Member: path, Path: path, Reason: "is not readable"}
	}
	out, ok := v.Interface().(T)
	if !ok {
		return zero, &MismatchError{
			HostVersion: version,
			Type:        root,
			Member:      path,
			Path:        path,
			Reason:      fmt.Sprintf("has type %s, expected %s", v.Type(), reflect.TypeFor[T]()),
		}
	}
	return out, nil
}

// MustGet is Get for callers whose shape was already validated by Verify.
// A mismatch at this point means the host changed underneath us, so it panics.
func MustGet[T any](version string, root any, path string) T {
	out, err := Get[T](version, root, path)
	if err != nil {
		panic(err)
	}
	return out
}

// MustGetFrom is GetFrom that panics on mismatch.
func MustGetFrom[T any](version string, v reflect.Value, path string) T {
	out, err := GetFrom[T](version, v, path)
	if err != nil {
		panic(err)
	}
	return out
}

func accessible(f reflect.Value) reflect.Value {
	if f.CanInterface() {
		return f
	}
	return reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem()
}

func split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}
