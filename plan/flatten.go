package plan

import "github.com/vektah/gqlparser/v2/ast"

// fieldAccumulator merges repeated selections of the same field (under
// the same type condition) the way a spec-compliant GraphQL executor
// would, so that e.g. the same field split across two fragment spreads
// ends up as a single plan Field with combined children.
type fieldAccumulator struct {
	list  []*Field
	index map[string]int
}

func newFieldAccumulator() *fieldAccumulator {
	return &fieldAccumulator{index: make(map[string]int)}
}

func (a *fieldAccumulator) addOrMerge(f *Field) {
	key := f.TypeCondition + "\x00" + f.ResponseKey
	if i, ok := a.index[key]; ok {
		existing := a.list[i]
		existing.Children = append(existing.Children, f.Children...)
		return
	}
	a.index[key] = len(a.list)
	a.list = append(a.list, f)
}

// flattenSelectionSet walks a selection set — inlining fragment spreads
// and inline fragments — into a linear, type-conditioned list of plan
// fields, and collects the pagination argument names used by any
// @connection field encountered (direct or nested).
func flattenSelectionSet(set ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, visiting map[string]bool) ([]*Field, map[string]bool, error) {
	acc := newFieldAccumulator()
	windowArgs := make(map[string]bool)
	if err := walkSelectionSet(set, "", fragments, visiting, acc, windowArgs); err != nil {
		return nil, nil, err
	}
	return acc.list, windowArgs, nil
}

func walkSelectionSet(set ast.SelectionSet, typeCondition string, fragments map[string]*ast.FragmentDefinition, visiting map[string]bool, acc *fieldAccumulator, windowArgs map[string]bool) error {
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			if err := addFieldSelection(s, typeCondition, fragments, visiting, acc, windowArgs); err != nil {
				return err
			}

		case *ast.FragmentSpread:
			frag, ok := fragments[s.Name]
			if !ok {
				return newError(UnknownFragment, "fragment %q is spread but not defined in the document", s.Name)
			}
			if visiting[s.Name] {
				continue // fragment cycle guard: already expanding, skip
			}
			visiting[s.Name] = true
			err := walkSelectionSet(frag.SelectionSet, combineCondition(typeCondition, frag.TypeCondition), fragments, visiting, acc, windowArgs)
			delete(visiting, s.Name)
			if err != nil {
				return err
			}

		case *ast.InlineFragment:
			cond := combineCondition(typeCondition, s.TypeCondition)
			if err := walkSelectionSet(s.SelectionSet, cond, fragments, visiting, acc, windowArgs); err != nil {
				return err
			}
		}
	}
	return nil
}

func addFieldSelection(s *ast.Field, typeCondition string, fragments map[string]*ast.FragmentDefinition, visiting map[string]bool, acc *fieldAccumulator, windowArgs map[string]bool) error {
	var children []*Field
	if len(s.SelectionSet) > 0 {
		childFields, childWindowArgs, err := flattenSelectionSet(s.SelectionSet, fragments, visiting)
		if err != nil {
			return err
		}
		children = childFields
		for w := range childWindowArgs {
			windowArgs[w] = true
		}
	}

	build, stringify, varNames := buildArgFuncs(s.Name, s.Arguments)

	conn, rawDirectives, err := extractConnection(s)
	if err != nil {
		return err
	}
	if conn != nil {
		for _, pa := range conn.PageArgs {
			windowArgs[pa] = true
		}
	}

	responseKey := s.Name
	if s.Alias != "" {
		responseKey = s.Alias
	}

	acc.addOrMerge(&Field{
		ResponseKey:   responseKey,
		Name:          s.Name,
		TypeCondition: typeCondition,
		Children:      children,
		BuildArgs:     build,
		StringifyArgs: stringify,
		Connection:    conn,
		variableNames: varNames,
		rawArgs:       s.Arguments,
		rawDirectives: rawDirectives,
	})
	return nil
}

// combineCondition resolves the effective type condition when entering
// a nested fragment: the more specific (inner) condition wins when
// both are set, since this engine does not validate against a schema
// and cannot determine whether one implies the other.
func combineCondition(outer, inner string) string {
	if inner != "" {
		return inner
	}
	return outer
}

func extractConnection(f *ast.Field) (*Connection, ast.DirectiveList, error) {
	var conn *Connection
	kept := make(ast.DirectiveList, 0, len(f.Directives))

	for _, d := range f.Directives {
		if d.Name != "connection" {
			kept = append(kept, d)
			continue
		}

		key := f.Name
		if a := d.Arguments.ForName("key"); a != nil {
			if a.Value.Kind != ast.StringValue {
				return nil, nil, newError(InvalidDirective, "@connection(key:) on field %q must be a string literal", f.Name)
			}
			key = a.Value.Raw
		}

		var filters []string
		if a := d.Arguments.ForName("filters"); a != nil {
			if a.Value.Kind != ast.ListValue {
				return nil, nil, newError(InvalidDirective, "@connection(filters:) on field %q must be a list of strings", f.Name)
			}
			for _, c := range a.Value.Children {
				if c.Value.Kind != ast.StringValue {
					return nil, nil, newError(InvalidDirective, "@connection(filters:) on field %q must contain only string literals", f.Name)
				}
				filters = append(filters, c.Value.Raw)
			}
		}

		mode := ModeInfinite
		if a := d.Arguments.ForName("mode"); a != nil && a.Value.Kind == ast.StringValue && a.Value.Raw == "page" {
			mode = ModePage
		}

		conn = &Connection{
			Key:      key,
			Filters:  filters,
			PageArgs: pageArgsUsed(f.Arguments),
			Mode:     mode,
		}
	}

	return conn, kept, nil
}

func pageArgsUsed(args ast.ArgumentList) []string {
	order := [4]string{"first", "last", "after", "before"}
	present := make(map[string]bool, len(args))
	for _, a := range args {
		present[a.Name] = true
	}
	var out []string
	for _, name := range order {
		if present[name] {
			out = append(out, name)
		}
	}
	return out
}
