package plan

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// Compiler compiles GraphQL documents into plans, memoizing by the
// document's source text plus the fragment hint so that repeated
// compilation of the same document is free.
type Compiler struct {
	nextID int64
	cache  map[string]*Plan
}

// NewCompiler returns a ready Compiler.
func NewCompiler() *Compiler {
	return &Compiler{cache: make(map[string]*Plan)}
}

// Compile parses and compiles a GraphQL document. fragmentName selects
// a named fragment to compile as a fragment plan; pass "" to compile
// the document's single operation (or, in a document with no operation,
// its single fragment).
func (c *Compiler) Compile(document string, fragmentName string) (*Plan, error) {
	cacheKey := fragmentName + "\x00" + document
	if p, ok := c.cache[cacheKey]; ok {
		return p, nil
	}

	doc, err := parser.ParseQuery(&ast.Source{Input: document, Name: "plan.graphql"})
	if err != nil {
		return nil, newError(SyntaxError, "parse error: %v", err)
	}

	p, err := c.compileDocument(doc, fragmentName)
	if err != nil {
		return nil, err
	}
	c.cache[cacheKey] = p
	return p, nil
}

func (c *Compiler) compileDocument(doc *ast.QueryDocument, fragmentName string) (*Plan, error) {
	fragmentsByName := make(map[string]*ast.FragmentDefinition, len(doc.Fragments))
	for _, f := range doc.Fragments {
		fragmentsByName[f.Name] = f
	}

	if fragmentName != "" {
		frag, ok := fragmentsByName[fragmentName]
		if !ok {
			return nil, newError(UnknownFragment, "fragment %q not found in document", fragmentName)
		}
		return c.compileFragment(frag, fragmentsByName)
	}

	if len(doc.Operations) == 0 && len(doc.Fragments) == 1 {
		return c.compileFragment(doc.Fragments[0], fragmentsByName)
	}

	if len(doc.Operations) != 1 {
		return nil, newError(AmbiguousDocument, "document must contain exactly one operation, or no operation and exactly one fragment, when no fragment name is given (found %d operations, %d fragments)", len(doc.Operations), len(doc.Fragments))
	}

	return c.compileOperation(doc.Operations[0], fragmentsByName)
}

func (c *Compiler) compileOperation(op *ast.OperationDefinition, fragments map[string]*ast.FragmentDefinition) (*Plan, error) {
	root, windowArgs, err := flattenSelectionSet(op.SelectionSet, fragments, map[string]bool{})
	if err != nil {
		return nil, err
	}

	rootTypename := rootTypenameFor(op.Operation)

	varDefs := printVariableDefinitions(op.VariableDefinitions)
	networkQuery := printNetworkQuery(string(op.Operation), op.Name, varDefs, root)

	return c.assemble(string(op.Operation), op.Name, rootTypename, root, networkQuery, varDefs, windowArgs), nil
}

func (c *Compiler) compileFragment(frag *ast.FragmentDefinition, fragments map[string]*ast.FragmentDefinition) (*Plan, error) {
	root, windowArgs, err := flattenSelectionSet(frag.SelectionSet, fragments, map[string]bool{})
	if err != nil {
		return nil, err
	}

	varDefs := printVariableDefinitions(frag.VariableDefinition)
	networkQuery := printFragmentQuery(frag.Name, frag.TypeCondition, varDefs, root)

	return c.assemble("fragment", frag.Name, frag.TypeCondition, root, networkQuery, varDefs, windowArgs), nil
}

func rootTypenameFor(op ast.Operation) string {
	switch op {
	case ast.Mutation:
		return "Mutation"
	case ast.Subscription:
		return "Subscription"
	default:
		return "Query"
	}
}

func (c *Compiler) assemble(operation, name, rootTypename string, root []*Field, networkQuery string, varDefs []string, windowArgs map[string]bool) *Plan {
	c.nextID++
	p := &Plan{
		ID:            c.nextID,
		Operation:     operation,
		OperationName: name,
		RootTypename:  rootTypename,
		Root:          root,
		NetworkQuery:  networkQuery,
		VariableDefs:  varDefs,
	}
	for _, f := range root {
		f.index()
	}

	strict := make(map[string]bool)
	canonicalVarsUsedAsWindow := make(map[string]bool)
	collectFieldVariables(root, strict, canonicalVarsUsedAsWindow)

	canonical := make(map[string]bool, len(strict))
	for v := range strict {
		if !canonicalVarsUsedAsWindow[v] {
			canonical[v] = true
		}
	}

	p.strictVars = strict
	p.canonicalVars = canonical
	p.VarMask = VarMask{Strict: keys(strict), Canonical: keys(canonical)}

	for w := range windowArgs {
		p.WindowArgs = append(p.WindowArgs, w)
	}
	return p
}

// collectFieldVariables walks the field tree collecting every variable
// name referenced anywhere (strict) and, separately, variable names
// that are bound specifically to a pagination argument on a connection
// field (so they can be excluded from the canonical mask).
func collectFieldVariables(fields []*Field, strict, windowVars map[string]bool) {
	for _, f := range fields {
		for _, v := range f.variableNames {
			strict[v] = true
		}
		if f.Connection != nil {
			for _, a := range f.rawArgs {
				if !paginationArgNames[a.Name] {
					continue
				}
				names := map[string]bool{}
				collectVariableNames(a.Value, names)
				for v := range names {
					windowVars[v] = true
				}
			}
		}
		collectFieldVariables(f.Children, strict, windowVars)
	}
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
