package boundary

import (
	"context"

	"github.com/substratehq/strata/pkg/errors"
	"github.com/substratehq/strata/pkg/handle"
	"github.com/substratehq/strata/pkg/logging"
)

// DefaultMaxInlineChars is the largest tool output that crosses the boundary
// verbatim. Anything bigger is spilled behind a handle.
const DefaultMaxInlineChars = 2000

// Result is what a tool invocation hands back across the boundary: either
// the inline output or the handle it was spilled behind, never both.
type Result struct {
	Inline string         `json:"inline,omitempty"`
	Handle *handle.Handle `json:"handle,omitempty"`
}

// Spilled reports whether the output went behind a handle.
func (r Result) Spilled() bool {
	return r.Handle != nil
}

// Invoker runs tools and enforces the boundary on their outputs.
type Invoker struct {
	registry  *Registry
	store     handle.Store
	maxInline int
	logger    *logging.Logger
}

// NewInvoker wires an invoker over a registry and the handle store that
// receives spilled outputs. maxInline <= 0 selects the default.
func NewInvoker(registry *Registry, store handle.Store, maxInline int) *Invoker {
	if maxInline <= 0 {
		maxInline = DefaultMaxInlineChars
	}
	return &Invoker{
		registry:  registry,
		store:     store,
		maxInline: maxInline,
		logger:    logging.GetLogger(),
	}
}

// Invoke runs the named tool. Parameters are checked for serializability
// before the tool runs; output larger than the inline limit is stored and
// returned as a flat handle.
func (inv *Invoker) Invoke(ctx context.Context, name string, params map[string]interface{}) (Result, error) {
	if err := errors.CheckContext(ctx, "tool invoke"); err != nil {
		return Result{}, err
	}
	if err := CheckSerializable(params); err != nil {
		return Result{}, err
	}

	tool, err := inv.registry.Get(name)
	if err != nil {
		return Result{}, err
	}

	output, err := tool.Execute(ctx, params)
	if err != nil {
		return Result{}, errors.WithFields(
			errors.Wrap(err, errors.Unknown, "tool execution failed"),
			errors.Fields{"tool_name": name},
		)
	}

	if len(output) <= inv.maxInline {
		return Result{Inline: output}, nil
	}

	h, err := inv.store.Put(ctx, output, handle.DTypeText)
	if err != nil {
		return Result{}, errors.Wrap(err, errors.Unknown, "failed to spill tool output")
	}
	inv.logger.Debug(ctx, "spilled %d chars of %s output behind handle %s", len(output), name, h.ID)
	return Result{Handle: &h}, nil
}
