package tools

import (
	"context"
	"fmt"
	"regexp"

	"github.com/go-logr/logr"
)

var toolNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Registry is the process-wide tool catalog. It is built once at startup and
// never mutated afterwards; every accessor is safe for concurrent use.
type Registry struct {
	defs  []Definition
	index map[string]int
	log   logr.Logger
}

// NewRegistry builds a registry from the given definitions, preserving their
// order for schema export.
func NewRegistry(log logr.Logger, defs ...Definition) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(defs)), log: log}
	for _, d := range defs {
		if !toolNameRe.MatchString(d.Name) {
			return nil, fmt.Errorf("invalid tool name %q", d.Name)
		}
		if _, dup := r.index[d.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", d.Name)
		}
		if d.Func == nil {
			return nil, fmt.Errorf("tool %q has no handler", d.Name)
		}
		r.index[d.Name] = len(r.defs)
		r.defs = append(r.defs, d)
	}
	return r, nil
}

// Definitions returns the registered tools in registration order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.defs)
}

// Execute runs a tool by name and never fails the loop: unknown names,
// handler errors and handler panics all come back as error-flagged Results.
// The model chose the name, so an unknown tool is a normal outcome it must
// be told about gracefully. The Context's OnToolResult callback, when set,
// fires before Execute returns.
func (r *Registry) Execute(ctx context.Context, name, raw string, tc *Context) Result {
	var res Result
	if i, ok := r.index[name]; ok {
		res = r.run(ctx, r.defs[i], raw, tc)
	} else {
		res = Result{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}
	}
	if res.IsError {
		r.log.V(1).Info("tool returned error", "tool", name, "result", res.Content)
	}
	if tc != nil && tc.OnToolResult != nil {
		tc.OnToolResult(name, raw, res)
	}
	return res
}

func (r *Registry) run(ctx context.Context, d Definition, raw string, tc *Context) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Info("tool panicked", "tool", d.Name, "panic", fmt.Sprint(p))
			res = Result{Content: fmt.Sprintf("tool %s failed: %v", d.Name, p), IsError: true}
		}
	}()
	out, err := d.Func(ctx, raw, tc)
	if err != nil {
		return Result{Content: err.Error(), IsError: true}
	}
	return Result{Content: out}
}
