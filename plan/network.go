package plan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

// printNetworkQuery reprints the compiled field tree as GraphQL text,
// synthesizing __typename at every non-leaf selection and omitting the
// @connection directive (invariant per spec §3.6 #4). It operates on
// the plan's own Field tree (already flattened of fragment spreads)
// rather than the original gqlparser AST, since the plan needs a
// transformed document, not the one the server sent.
func printNetworkQuery(operation, name string, varDefs []string, root []*Field) string {
	var b strings.Builder
	b.WriteString(operation)
	if name != "" {
		b.WriteByte(' ')
		b.WriteString(name)
	}
	if len(varDefs) > 0 {
		b.WriteByte('(')
		b.WriteString(strings.Join(varDefs, ", "))
		b.WriteByte(')')
	}
	b.WriteByte(' ')
	printSelectionSet(&b, root, 0)
	return b.String()
}

// printFragmentQuery reprints a compiled named-fragment plan as a
// standalone document: the fragment itself, plus a synthetic query
// that spreads it (fragments cannot be sent alone over the wire).
func printFragmentQuery(fragmentName, typeCondition string, varDefs []string, root []*Field) string {
	var b strings.Builder
	fmt.Fprintf(&b, "fragment %s on %s ", fragmentName, typeCondition)
	printSelectionSet(&b, root, 0)
	b.WriteByte('\n')
	b.WriteString("query")
	if len(varDefs) > 0 {
		b.WriteByte('(')
		b.WriteString(strings.Join(varDefs, ", "))
		b.WriteByte(')')
	}
	fmt.Fprintf(&b, " { ...%s }", fragmentName)
	return b.String()
}

func printSelectionSet(b *strings.Builder, fields []*Field, depth int) {
	b.WriteString("{\n")
	indent := strings.Repeat("  ", depth+1)

	hasTypename := false
	for _, f := range fields {
		if f.Name == "__typename" && f.TypeCondition == "" {
			hasTypename = true
		}
	}
	if !hasTypename && len(fields) > 0 {
		fmt.Fprintf(b, "%s__typename\n", indent)
	}

	for _, f := range fields {
		printField(b, f, depth+1)
	}
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString("}\n")
}

func printField(b *strings.Builder, f *Field, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent)
	if f.ResponseKey != f.Name {
		b.WriteString(f.ResponseKey)
		b.WriteString(": ")
	}
	b.WriteString(f.Name)
	if len(f.rawArgs) > 0 {
		b.WriteByte('(')
		for i, a := range f.rawArgs {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%s: %s", a.Name, printValue(a.Value))
		}
		b.WriteByte(')')
	}
	for _, d := range f.rawDirectives {
		b.WriteByte(' ')
		b.WriteByte('@')
		b.WriteString(d.Name)
		if len(d.Arguments) > 0 {
			b.WriteByte('(')
			for i, a := range d.Arguments {
				if i > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(b, "%s: %s", a.Name, printValue(a.Value))
			}
			b.WriteByte(')')
		}
	}
	if len(f.Children) > 0 {
		b.WriteByte(' ')
		printTypeConditionedSelectionSet(b, f, depth)
	}
	b.WriteByte('\n')
}

// printTypeConditionedSelectionSet groups a field's children by
// TypeCondition: unconditional fields print directly, each distinct
// conditional group prints as an inline fragment.
func printTypeConditionedSelectionSet(b *strings.Builder, f *Field, depth int) {
	var unconditional []*Field
	grouped := map[string][]*Field{}
	var order []string
	for _, c := range f.Children {
		if c.TypeCondition == "" {
			unconditional = append(unconditional, c)
			continue
		}
		if _, ok := grouped[c.TypeCondition]; !ok {
			order = append(order, c.TypeCondition)
		}
		grouped[c.TypeCondition] = append(grouped[c.TypeCondition], c)
	}

	b.WriteString("{\n")
	indent := strings.Repeat("  ", depth+1)
	hasTypename := false
	for _, c := range unconditional {
		if c.Name == "__typename" {
			hasTypename = true
		}
	}
	if !hasTypename {
		fmt.Fprintf(b, "%s__typename\n", indent)
	}
	for _, c := range unconditional {
		printField(b, c, depth+1)
	}
	for _, cond := range order {
		fmt.Fprintf(b, "%s... on %s {\n", indent, cond)
		for _, c := range grouped[cond] {
			printField(b, c, depth+2)
		}
		fmt.Fprintf(b, "%s}\n", indent)
	}
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString("}")
}

func printValue(v *ast.Value) string {
	if v == nil {
		return "null"
	}
	switch v.Kind {
	case ast.Variable:
		return "$" + v.Raw
	case ast.IntValue, ast.FloatValue, ast.BooleanValue, ast.EnumValue:
		return v.Raw
	case ast.NullValue:
		return "null"
	case ast.StringValue, ast.BlockValue:
		return strconv.Quote(v.Raw)
	case ast.ListValue:
		parts := make([]string, len(v.Children))
		for i, c := range v.Children {
			parts[i] = printValue(c.Value)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ast.ObjectValue:
		parts := make([]string, len(v.Children))
		for i, c := range v.Children {
			parts[i] = fmt.Sprintf("%s: %s", c.Name, printValue(c.Value))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "null"
	}
}

func printVariableDefinitions(defs ast.VariableDefinitionList) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		s := fmt.Sprintf("$%s: %s", d.Variable, d.Type.String())
		if d.DefaultValue != nil {
			s += " = " + printValue(d.DefaultValue)
		}
		out[i] = s
	}
	return out
}
