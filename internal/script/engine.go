package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"

	"github.com/KaramelBytes/flightinsights/internal/table"
)

const (
	// OutputBinding is the global the cleaning code must assign.
	OutputBinding = "cleaned_df"
	// InputBinding is the global holding the input table.
	InputBinding = "df"

	DefaultMaxSteps = 50_000_000
	previewRows     = 20
)

func init() {
	// Generated code is Python-shaped: top-level loops, while, sets.
	resolve.AllowGlobalReassign = true
	resolve.AllowSet = true
	resolve.AllowRecursion = true
}

// ExecError reports a failure raised while running generated code.
type ExecError struct {
	Err       error
	Backtrace string
}

func (e *ExecError) Error() string { return "execute generated code: " + e.Err.Error() }
func (e *ExecError) Unwrap() error { return e.Err }

// Engine runs extracted code against a table in a Starlark interpreter.
// Scripts see only df, np and pd: no file, network or module access.
// An Engine is safe for concurrent use; each run gets its own thread.
type Engine struct {
	MaxSteps uint64
	Logger   *slog.Logger
}

// NewEngine returns an engine bounded to maxSteps interpreter steps (0 means DefaultMaxSteps).
func NewEngine(maxSteps uint64) *Engine {
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Engine{MaxSteps: maxSteps, Logger: slog.Default()}
}

// Execute runs code with the input bound to df and returns the table the
// code assigned to cleaned_df. The result is returned as-is.
func (e *Engine) Execute(ctx context.Context, code string, in *table.Table) (*table.Table, error) {
	globals, err := e.run(ctx, code, in)
	if err != nil {
		return nil, err
	}
	v, ok := globals[OutputBinding]
	if !ok {
		return nil, ErrOutputVariableMissing
	}
	out, ok := v.(*Table)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s", ErrOutputTypeMismatch, OutputBinding, v.Type())
	}
	return out.Unwrap(), nil
}

// Evaluate runs code like Execute and renders the value bound to binding as text.
func (e *Engine) Evaluate(ctx context.Context, code string, in *table.Table, binding string) (string, error) {
	globals, err := e.run(ctx, code, in)
	if err != nil {
		return "", err
	}
	v, ok := globals[binding]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrOutputVariableMissing, binding)
	}
	return Render(v), nil
}

// Render formats a script value for display; tables render as a pipe table.
func Render(v starlark.Value) string {
	switch x := v.(type) {
	case *Table:
		t := x.Unwrap()
		out := t.Preview(previewRows)
		if t.NRows() > previewRows {
			out += fmt.Sprintf("(%d of %d rows shown)\n", previewRows, t.NRows())
		}
		return out
	case starlark.String:
		return string(x)
	}
	return v.String()
}

func (e *Engine) run(ctx context.Context, code string, in *table.Table) (starlark.StringDict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := e.Logger
	if log == nil {
		log = slog.Default()
	}
	thread := &starlark.Thread{
		Name: "generated",
		Print: func(_ *starlark.Thread, msg string) {
			log.Debug("script print", "msg", msg)
		},
	}
	if e.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(e.MaxSteps)
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	predeclared := starlark.StringDict{
		InputBinding: NewTable(in),
		"np":         numpyModule,
		"pd":         pandasModule,
	}
	globals, err := starlark.ExecFile(thread, "generated.py", stripImports(code), predeclared)
	log.Debug("script executed", "steps", thread.ExecutionSteps(), "error", err)
	if err != nil {
		xe := &ExecError{Err: err}
		var ee *starlark.EvalError
		if errors.As(err, &ee) {
			xe.Backtrace = ee.Backtrace()
		}
		return nil, xe
	}
	return globals, nil
}
