// Package plan compiles a GraphQL document into an immutable, linearized
// execution plan: a tree of fields with precomputed argument builders,
// connection metadata, variable masks, and a signature function, plus
// the rewritten query text actually sent over the wire.
//
// Compilation is pure — a *Plan never changes after Compile returns, and
// compiling the same document twice through the same Compiler returns
// the same *Plan instance (memoized by document text + fragment hint).
package plan

import (
	"encoding/json"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
)

// Mode selects how a connection field's pages are served back from the
// graph.
type Mode string

const (
	// ModeInfinite merges windows into one canonical edge list
	// (default).
	ModeInfinite Mode = "infinite"
	// ModePage disables canonical merging; each strict window is
	// served independently.
	ModePage Mode = "page"
)

// Connection carries the metadata the canonical layer and materialize
// need for a single @connection field.
type Connection struct {
	// Key is the canonical connection key component (defaults to the
	// field name; overridable via @connection(key: "...")).
	Key string
	// Filters is the explicit allow-list of argument names that
	// participate in the canonical key. Nil means "all non-pagination
	// arguments".
	Filters []string
	// PageArgs is the subset of {first,last,after,before} actually
	// used on this field.
	PageArgs []string
	Mode     Mode
}

// paginationArgNames is the fixed set recognized as window/pagination
// arguments (spec §4.1).
var paginationArgNames = map[string]bool{"first": true, "last": true, "after": true, "before": true}

// IsPaginationArg reports whether name is one of the fixed pagination
// arguments {first, last, after, before}.
func IsPaginationArg(name string) bool { return paginationArgNames[name] }

// Field is one node of the linearized plan tree.
type Field struct {
	// ResponseKey is the alias if present, else the field name; this is
	// the key the materialized response tree is written under.
	ResponseKey string
	// Name is the underlying GraphQL field name (e.g. for __typename
	// injection checks and directive-only fields).
	Name string
	// TypeCondition restricts this field to objects whose concrete
	// typename satisfies it (empty means unconditional).
	TypeCondition string

	Children []*Field

	// BuildArgs resolves this field's arguments against a variable
	// set, substituting null for any variable absent from vars.
	BuildArgs func(vars map[string]any) map[string]any
	// StringifyArgs renders the field key: "name" if there are no
	// arguments, else "name({...sorted json...})".
	StringifyArgs func(vars map[string]any) string

	// Connection is non-nil for fields carrying @connection.
	Connection *Connection

	variableNames []string
	childIndex    map[string][]int

	// rawArgs/rawDirectives retain the original (unresolved) syntax so
	// the network query can be reprinted with $variable references
	// intact; rawDirectives excludes @connection, which is always
	// stripped from the wire text.
	rawArgs       ast.ArgumentList
	rawDirectives ast.DirectiveList
}

// ChildFor resolves the child plan field selected for the given
// response key on an object whose concrete type is typename. When
// multiple children share a response key (conditional fragments on
// different concrete types), the first whose TypeCondition is
// unconditional or satisfied (directly, or via interfaces) wins.
func (f *Field) ChildFor(responseKey, typename string, interfaces map[string][]string) *Field {
	idxs, ok := f.childIndex[responseKey]
	if !ok {
		return nil
	}
	for _, i := range idxs {
		c := f.Children[i]
		if satisfies(c.TypeCondition, typename, interfaces) {
			return c
		}
	}
	return nil
}

// AllChildrenFor returns every child plan field registered under the
// given response key, regardless of type condition. The document
// package does not call it; normalize and materialize walk the
// Children slices directly.
func (f *Field) AllChildrenFor(responseKey string) []*Field {
	idxs := f.childIndex[responseKey]
	out := make([]*Field, len(idxs))
	for i, idx := range idxs {
		out[i] = f.Children[idx]
	}
	return out
}

func satisfies(condition, typename string, interfaces map[string][]string) bool {
	if condition == "" || condition == typename {
		return true
	}
	for _, concrete := range interfaces[condition] {
		if concrete == typename {
			return true
		}
	}
	return false
}

func (f *Field) index() {
	f.childIndex = make(map[string][]int, len(f.Children))
	for i, c := range f.Children {
		f.childIndex[c.ResponseKey] = append(f.childIndex[c.ResponseKey], i)
		c.index()
	}
}

// VarMask is the pair of variable-name subsets that affect the strict
// vs canonical signature of a plan.
type VarMask struct {
	// Strict is every variable referenced anywhere in the plan.
	Strict []string
	// Canonical is Strict minus pagination args used on connection
	// fields.
	Canonical []string
}

// Plan is the immutable, compiled representation of one GraphQL
// operation or named fragment.
type Plan struct {
	// ID is a monotonically assigned integer, stable for the lifetime
	// of the Compiler that produced it.
	ID int64

	// Operation is "query", "mutation", "subscription", or "fragment".
	Operation string

	// OperationName is the operation/fragment name as written in the
	// document, or "" for an anonymous operation.
	OperationName string
	// VariableDefs are the operation's variable declarations, printed
	// verbatim ("$id: ID!", with default if any) for NetworkQuery.
	VariableDefs []string

	RootTypename string
	Root         []*Field

	// NetworkQuery is the query text sent over the wire: __typename is
	// synthesized at every non-leaf selection and @connection
	// directives are stripped.
	NetworkQuery string

	VarMask VarMask

	// WindowArgs is the union of pagination args actually used on any
	// connection field in this plan.
	WindowArgs []string

	strictVars    map[string]bool
	canonicalVars map[string]bool
}

// MakeSignature derives the deterministic identity string for this
// plan under the given mode ("strict" or "canonical") and variable
// values: "<planId>|<mode>|<keyedVarsJson>". Only the variables in the
// mode's mask participate; everything else is ignored so that, e.g.,
// pagination-arg changes never affect a canonical signature.
func (p *Plan) MakeSignature(mode string, vars map[string]any) string {
	var mask map[string]bool
	if mode == "canonical" {
		mask = p.canonicalVars
	} else {
		mask = p.strictVars
	}
	keyed := make(map[string]any, len(mask))
	for name := range mask {
		if v, ok := vars[name]; ok {
			keyed[name] = v
		} else {
			keyed[name] = nil
		}
	}
	b, err := json.Marshal(keyed)
	if err != nil {
		// Arguments are always JSON-marshalable scalars/lists/maps
		// produced by resolveArgValue; a marshal failure here would be
		// a compiler bug, not a runtime condition to recover from.
		panic(fmt.Sprintf("plan: signature vars not marshalable: %v", err))
	}
	return fmt.Sprintf("%d|%s|%s", p.ID, mode, string(b))
}
