package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTaskCollision = errors.New("task already registered")
	ErrUnknownTask   = errors.New("unknown task")
	ErrInvalidGraph  = errors.New("invalid task graph")
	ErrCycle         = errors.New("cycle detected")
)

// CollisionError reports a task name registered twice.
type CollisionError struct {
	Name string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%s: %q", ErrTaskCollision, e.Name)
}

func (e *CollisionError) Unwrap() error { return ErrTaskCollision }

// GraphError wraps graph validation failures.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(path []string) error {
	msg := "cycle"
	if len(path) > 0 {
		msg = "cycle: " + strings.Join(path, " -> ")
	}
	return &GraphError{Kind: ErrCycle, Msg: msg}
}
