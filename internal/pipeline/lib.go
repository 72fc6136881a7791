package pipeline

import (
	"errors"
	"fmt"

	"github.com/mohae/deepcopy"
)

var ErrUnknownLibFunc = errors.New("unknown library function")

type LibFunc func(args ...float64) float64

// Lib exposes named helper functions to every stage of a pipeline.
type Lib map[string]LibFunc

func (l Lib) Call(name string, args ...float64) (float64, error) {
	fn, ok := l[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownLibFunc, name)
	}
	return fn(args...), nil
}

// MustCall panics on an unknown name. Stages run inside a worker that turns the
// panic into a failed reply.
func (l Lib) MustCall(name string, args ...float64) float64 {
	v, err := l.Call(name, args...)
	if err != nil {
		panic(err)
	}
	return v
}

// Cloner lets a meta type control its own copy before it crosses into a
// background worker. Types with unexported state should implement it.
type Cloner interface {
	Clone() any
}

// Meta is a convenience meta value. Clone copies nested maps and slices too.
type Meta map[string]any

func (m Meta) Clone() any {
	return deepcopy.Copy(m)
}

func (m Meta) Float(key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// CloneMeta returns a copy of meta sharing no mutable state with it. Cloner
// values copy themselves; anything else is deep-copied by reflection, which
// only sees exported struct fields.
func CloneMeta(meta any) any {
	if meta == nil {
		return nil
	}
	if c, ok := meta.(Cloner); ok {
		return c.Clone()
	}
	return deepcopy.Copy(meta)
}
