package plan

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
)

// resolveArgValue evaluates a parsed GraphQL argument value against a
// variable set. A Variable value missing from vars resolves to nil
// (spec: "Missing variables serialize as null"), never an error — that
// mirrors how the response itself would carry null.
func resolveArgValue(v *ast.Value, vars map[string]any) any {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case ast.Variable:
		val, ok := vars[v.Raw]
		if !ok {
			return nil
		}
		return val
	case ast.IntValue:
		if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return n
		}
		f, _ := strconv.ParseFloat(v.Raw, 64)
		return f
	case ast.FloatValue:
		f, _ := strconv.ParseFloat(v.Raw, 64)
		return f
	case ast.BooleanValue:
		return v.Raw == "true"
	case ast.NullValue:
		return nil
	case ast.StringValue, ast.BlockValue, ast.EnumValue:
		return v.Raw
	case ast.ListValue:
		arr := make([]any, len(v.Children))
		for i, c := range v.Children {
			arr[i] = resolveArgValue(c.Value, vars)
		}
		return arr
	case ast.ObjectValue:
		obj := make(map[string]any, len(v.Children))
		for _, c := range v.Children {
			obj[c.Name] = resolveArgValue(c.Value, vars)
		}
		return obj
	default:
		return nil
	}
}

// collectVariableNames walks a value tree and appends every referenced
// variable name into out.
func collectVariableNames(v *ast.Value, out map[string]bool) {
	if v == nil {
		return
	}
	switch v.Kind {
	case ast.Variable:
		out[v.Raw] = true
	case ast.ListValue, ast.ObjectValue:
		for _, c := range v.Children {
			collectVariableNames(c.Value, out)
		}
	}
}

// buildArgFuncs compiles the argument list of a field into the
// BuildArgs/StringifyArgs closure pair, and returns the variable names
// it references.
func buildArgFuncs(name string, args ast.ArgumentList) (build func(map[string]any) map[string]any, stringify func(map[string]any) string, varNames []string) {
	if len(args) == 0 {
		return func(map[string]any) map[string]any { return nil },
			func(map[string]any) string { return name },
			nil
	}

	varSet := make(map[string]bool)
	for _, a := range args {
		collectVariableNames(a.Value, varSet)
	}
	names := make([]string, 0, len(varSet))
	for n := range varSet {
		names = append(names, n)
	}

	build = func(vars map[string]any) map[string]any {
		out := make(map[string]any, len(args))
		for _, a := range args {
			out[a.Name] = resolveArgValue(a.Value, vars)
		}
		return out
	}

	stringify = func(vars map[string]any) string {
		resolved := build(vars)
		b, err := json.Marshal(resolved)
		if err != nil {
			panic(fmt.Sprintf("plan: field %q arguments not marshalable: %v", name, err))
		}
		return name + "(" + string(b) + ")"
	}

	return build, stringify, names
}
