package realtime

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// compileFilter compiles a subscription filter expression against the
// `event` variable. An empty expression means no filter.
func compileFilter(expr string) (cel.Program, error) {
	if expr == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("event", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter must evaluate to bool, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program creation error: %w", err)
	}
	return prg, nil
}

// evalFilter runs a compiled filter against a feed event. Evaluation errors
// (e.g. missing keys) count as no match.
func evalFilter(prg cel.Program, event map[string]any) bool {
	if prg == nil {
		return true
	}
	out, _, err := prg.Eval(map[string]any{"event": event})
	if err != nil {
		return false
	}
	match, ok := out.Value().(bool)
	return ok && match
}
