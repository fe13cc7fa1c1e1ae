package document

import (
	"fmt"

	"github.com/lockvoid/cachebay/canonical"
	"github.com/lockvoid/cachebay/graph"
	"github.com/lockvoid/cachebay/plan"
)

// Normalize writes a response tree into store under the plan's fields,
// rooted at rootID ("@" for queries, "@mutation.N"/"@subscription.N"
// for mutations/subscriptions, an arbitrary entity id for
// writeFragment). The whole write happens inside one graph.Store.Batch
// call so watchers observe it atomically (spec §4.4 step 7).
func Normalize(store *graph.Store, identity *Identity, fields []*plan.Field, vars map[string]any, data map[string]any, rootID string) error {
	var err error
	store.Batch(func() {
		err = normalizeSelections(store, identity, fields, vars, data, rootID, "")
	})
	return err
}

// normalizeSelections writes one record's worth of fields: for every
// key present in obj, finds the matching plan field (filtering by the
// object's own concrete typename for conditional fragments) and writes
// its normalized value onto recordID.
func normalizeSelections(store *graph.Store, identity *Identity, fields []*plan.Field, vars map[string]any, obj map[string]any, recordID string, path string) error {
	typename, _ := obj["__typename"].(string)

	patch := graph.Record{}
	if typename != "" {
		patch["__typename"] = typename
	}
	for responseKey, raw := range obj {
		if responseKey == "__typename" {
			continue
		}
		child := childFieldFor(fields, responseKey, typename, identity.Interfaces)
		if child == nil {
			// Data present with no corresponding plan selection (e.g. a
			// server sending extra fields); nothing to normalize.
			continue
		}

		fieldKey := child.StringifyArgs(vars)
		childPath := path + "." + responseKey

		if child.Connection != nil {
			obj, ok := raw.(map[string]any)
			if !ok {
				return &Error{Kind: ShapeMismatch, Path: childPath, Message: "connection field is not an object"}
			}
			if err := normalizeConnection(store, identity, child, vars, obj, recordID, fieldKey, childPath); err != nil {
				return err
			}
			continue
		}

		val, err := normalizeValue(store, identity, child, vars, raw, recordID, fieldKey, childPath)
		if err != nil {
			return err
		}
		patch[fieldKey] = val
	}

	store.PutRecord(recordID, patch)
	return nil
}

// childFieldFor finds the plan field selected for responseKey on an
// object of the given concrete typename, searching every field sharing
// that response key (distinct type-conditioned variants) for the one
// whose condition is satisfied.
func childFieldFor(fields []*plan.Field, responseKey, typename string, interfaces map[string][]string) *plan.Field {
	for _, f := range fields {
		if f.ResponseKey != responseKey {
			continue
		}
		if satisfiesCondition(f.TypeCondition, typename, interfaces) {
			return f
		}
	}
	return nil
}

func satisfiesCondition(condition, typename string, interfaces map[string][]string) bool {
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

// normalizeValue normalizes one non-connection field's raw response
// value: nil passes through as a valid null (spec §4.4 step 6), scalars
// pass through unchanged, object values recurse into an entity or
// embedded record, list values recurse per element into a LinkList (or
// pass through as a plain scalar list when the field has no
// sub-selection).
func normalizeValue(store *graph.Store, identity *Identity, field *plan.Field, vars map[string]any, raw any, parentID, fieldKey, path string) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil

	case map[string]any:
		if len(field.Children) == 0 {
			return v, nil
		}
		ref, err := normalizeObjectNode(store, identity, field.Children, vars, v, parentID+"."+fieldKey, path)
		if err != nil {
			return nil, err
		}
		return graph.Link{Ref: ref}, nil

	case []any:
		if len(field.Children) == 0 {
			return v, nil
		}
		refs := make([]string, len(v))
		for i, elem := range v {
			obj, ok := elem.(map[string]any)
			if !ok {
				return nil, &Error{Kind: ShapeMismatch, Path: path, Message: "list element is not an object"}
			}
			ref, err := normalizeObjectNode(store, identity, field.Children, vars, obj, fmt.Sprintf("%s.%s.%d", parentID, fieldKey, i), path)
			if err != nil {
				return nil, err
			}
			refs[i] = ref
		}
		return graph.LinkList{Refs: refs}, nil

	default:
		return v, nil
	}
}

// normalizeObjectNode resolves obj's entity id (or, when not keyable,
// uses embedID as its synthetic record id), recurses into its own
// sub-selections, and returns the id the caller should link to.
func normalizeObjectNode(store *graph.Store, identity *Identity, children []*plan.Field, vars map[string]any, obj map[string]any, embedID, path string) (string, error) {
	_, entityID, keyable, err := identity.resolve(obj)
	if err != nil {
		if e, ok := err.(*Error); ok {
			e.Path = path
		}
		return "", err
	}

	recordID := embedID
	if keyable {
		recordID = entityID
	}

	if err := normalizeSelections(store, identity, children, vars, obj, recordID, path); err != nil {
		return "", err
	}
	return recordID, nil
}

// normalizeConnection resolves a @connection field's edges/pageInfo and
// hands the normalized page to the canonical layer (spec §4.4 step 5).
func normalizeConnection(store *graph.Store, identity *Identity, field *plan.Field, vars map[string]any, obj map[string]any, ownerID, strictFieldKey, path string) error {
	edgesField := childFieldFor(field.Children, "edges", "", nil)
	pageInfoField := childFieldFor(field.Children, "pageInfo", "", nil)

	var nodeField *plan.Field
	if edgesField != nil {
		nodeField = childFieldFor(edgesField.Children, "node", "", nil)
	}

	edgesRaw, _ := obj["edges"].([]any)
	canonEdges := make([]canonical.Edge, 0, len(edgesRaw))
	for i, er := range edgesRaw {
		emap, ok := er.(map[string]any)
		if !ok {
			return &Error{Kind: ShapeMismatch, Path: path, Message: "edge is not an object"}
		}
		cursor, _ := emap["cursor"].(string)

		var nodeID string
		if nodeField != nil {
			if nodeObj, ok := emap["node"].(map[string]any); ok {
				id, err := normalizeObjectNode(store, identity, nodeField.Children, vars, nodeObj,
					fmt.Sprintf("%s.%s.edges.%d.node", ownerID, strictFieldKey, i), path+fmt.Sprintf(".edges.%d.node", i))
				if err != nil {
					return err
				}
				nodeID = id
			}
		}

		scalars := map[string]any{}
		for k, v := range emap {
			if k != "cursor" && k != "node" {
				scalars[k] = v
			}
		}
		canonEdges = append(canonEdges, canonical.Edge{NodeID: nodeID, Cursor: cursor, Scalars: scalars})
	}

	var pi canonical.PageInfo
	if pageInfoField != nil {
		if raw, ok := obj["pageInfo"].(map[string]any); ok {
			pi = extractPageInfo(raw)
		}
	}

	fullArgs := field.BuildArgs(vars)
	filterArgs := filterArgsFor(field.Connection, fullArgs)

	scalars := map[string]any{}
	for k, v := range obj {
		if k != "edges" && k != "pageInfo" && k != "__typename" {
			scalars[k] = v
		}
	}

	canonical.Merge(store, canonical.Page{
		OwnerID:    ownerID,
		FieldName:  field.Connection.Key,
		FullArgs:   fullArgs,
		FilterArgs: filterArgs,
		After:      stringArg(fullArgs, "after"),
		Before:     stringArg(fullArgs, "before"),
		Edges:      canonEdges,
		PageInfo:   pi,
		Scalars:    scalars,
		Mode:       field.Connection.Mode,
	})
	return nil
}

func extractPageInfo(obj map[string]any) canonical.PageInfo {
	var pi canonical.PageInfo
	if v, ok := obj["startCursor"].(string); ok {
		pi.StartCursor = &v
	}
	if v, ok := obj["endCursor"].(string); ok {
		pi.EndCursor = &v
	}
	if v, ok := obj["hasNextPage"].(bool); ok {
		pi.HasNextPage = &v
	}
	if v, ok := obj["hasPreviousPage"].(bool); ok {
		pi.HasPreviousPage = &v
	}
	return pi
}

// filterArgsFor derives the canonical key's filter arguments: the
// explicit allow-list from @connection(filters: [...]) if given, else
// every non-pagination argument.
func filterArgsFor(conn *plan.Connection, fullArgs map[string]any) map[string]any {
	out := map[string]any{}
	if len(conn.Filters) > 0 {
		for _, name := range conn.Filters {
			if v, ok := fullArgs[name]; ok {
				out[name] = v
			}
		}
		return out
	}
	for name, v := range fullArgs {
		if !plan.IsPaginationArg(name) {
			out[name] = v
		}
	}
	return out
}

func stringArg(args map[string]any, name string) *string {
	v, ok := args[name]
	if !ok || v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}
