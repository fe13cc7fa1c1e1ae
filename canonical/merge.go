package canonical

import (
	"github.com/lockvoid/cachebay/graph"
	"github.com/lockvoid/cachebay/plan"
)

// Edge is one normalized connection edge: the entity id its "node"
// field was already normalized to, its cursor, and any additional
// scalar fields carried on the edge itself.
type Edge struct {
	NodeID  string
	Cursor  string
	Scalars map[string]any
}

// PageInfo is the subset of Relay's PageInfo the merge algorithm
// consults. Nil pointer fields mean "not present in this response" and
// leave the corresponding canonical field untouched.
type PageInfo struct {
	StartCursor     *string
	EndCursor       *string
	HasNextPage     *bool
	HasPreviousPage *bool
}

// Page is one normalized response page ready to be merged into the
// canonical connection view. The caller (normalize) has already walked
// "node" sub-objects into entity ids before building this value.
type Page struct {
	OwnerID    string
	FieldName  string // Connection.Key
	FullArgs   map[string]any
	FilterArgs map[string]any
	After      *string
	Before     *string
	Edges      []Edge
	PageInfo   PageInfo
	// Scalars are connection-level fields stored inline (e.g.
	// totalCount), written onto both the strict and canonical records.
	Scalars map[string]any
	Mode    plan.Mode
}

type canonicalEdge struct {
	id      string
	nodeID  string
	cursor  string
	scalars map[string]any
}

// Merge writes the strict window record verbatim, then folds it into
// the canonical record per spec §4.3. It never returns an error: every
// input is already normalized data, so there is nothing left to
// reject.
func Merge(store *graph.Store, p Page) {
	writeStrict(store, p)

	if p.Mode == plan.ModePage {
		return
	}

	canonicalID := Key(p.OwnerID, p.FieldName, p.FilterArgs)
	current := readCanonicalEdges(store, canonicalID)

	newOrder, action, insertionAtTail, insertionAtHead, ok := computeMerge(current, p)
	if !ok {
		// Unknown cursor boundary against a non-empty canonical: leave
		// canonical untouched, the page is only visible via its strict
		// window (spec §4.3 step 3, "orphan" case; Open Question #1).
		return
	}

	writeCanonicalEdges(store, canonicalID, newOrder)
	writeCanonicalPageInfo(store, canonicalID, current, newOrder, p, action, insertionAtTail, insertionAtHead)

	rec := graph.Record{
		"edges":    graph.LinkList{Refs: edgeIDs(newOrder)},
		"pageInfo": graph.Link{Ref: PageInfoID(canonicalID)},
	}
	for k, v := range p.Scalars {
		rec[k] = v
	}
	store.PutRecord(canonicalID, rec)
}

func writeStrict(store *graph.Store, p Page) {
	strictID := StrictID(p.OwnerID, p.FieldName, p.FullArgs)
	strictKey := StrictFieldKey(p.FieldName, p.FullArgs)

	store.PutRecord(p.OwnerID, graph.Record{strictKey: graph.Link{Ref: strictID}})

	edgeIDs := make([]string, len(p.Edges))
	for i, e := range p.Edges {
		id := EdgeID(strictID, i)
		rec := graph.Record{"cursor": e.Cursor, "node": graph.Link{Ref: e.NodeID}}
		for k, v := range e.Scalars {
			rec[k] = v
		}
		store.PutRecord(id, rec)
		edgeIDs[i] = id
	}

	pageInfoID := PageInfoID(strictID)
	store.PutRecord(pageInfoID, pageInfoRecord(p.PageInfo))

	rec := graph.Record{
		"edges":    graph.LinkList{Refs: edgeIDs},
		"pageInfo": graph.Link{Ref: pageInfoID},
	}
	for k, v := range p.Scalars {
		rec[k] = v
	}
	store.PutRecord(strictID, rec)
}

func pageInfoRecord(pi PageInfo) graph.Record {
	rec := graph.Record{}
	if pi.StartCursor != nil {
		rec["startCursor"] = *pi.StartCursor
	} else {
		rec["startCursor"] = nil
	}
	if pi.EndCursor != nil {
		rec["endCursor"] = *pi.EndCursor
	} else {
		rec["endCursor"] = nil
	}
	if pi.HasNextPage != nil {
		rec["hasNextPage"] = *pi.HasNextPage
	} else {
		rec["hasNextPage"] = false
	}
	if pi.HasPreviousPage != nil {
		rec["hasPreviousPage"] = *pi.HasPreviousPage
	} else {
		rec["hasPreviousPage"] = false
	}
	return rec
}

func readCanonicalEdges(store *graph.Store, canonicalID string) []canonicalEdge {
	rec, _, ok := store.GetRecord(canonicalID)
	if !ok {
		return nil
	}
	links, _ := rec["edges"].(graph.LinkList)
	out := make([]canonicalEdge, 0, len(links.Refs))
	for _, id := range links.Refs {
		erec, _, ok := store.GetRecord(id)
		if !ok {
			continue
		}
		nodeID := ""
		if l, ok := erec["node"].(graph.Link); ok {
			nodeID = l.Ref
		}
		cursor, _ := erec["cursor"].(string)
		scalars := map[string]any{}
		for k, v := range erec {
			if k != "node" && k != "cursor" {
				scalars[k] = v
			}
		}
		out = append(out, canonicalEdge{id: id, nodeID: nodeID, cursor: cursor, scalars: scalars})
	}
	return out
}

// computeMerge implements the canonical ordering rules of spec §4.3
// step 3. It returns the new canonical edge order, a descriptive
// action, whether the merge point was the existing tail (pure append)
// or head (pure prepend), and false if the page must be orphaned.
func computeMerge(current []canonicalEdge, p Page) (order []canonicalEdge, action string, atTail, atHead bool, ok bool) {
	incoming := newEdges(p.Edges)

	isInteriorRefetch := p.After != nil || p.Before != nil
	if len(current) == 0 || !isInteriorRefetch {
		return dedupSelf(incoming), "replace", true, true, true
	}

	if p.After != nil {
		idx := findCursor(current, *p.After)
		if idx < 0 {
			return nil, "", false, false, false
		}
		head := current[:idx+1]
		tail := current[idx+1:]
		merged := mergeTail(head, tail, incoming)
		return merged, "append", idx == len(current)-1, false, true
	}

	idx := findCursor(current, *p.Before)
	if idx < 0 {
		return nil, "", false, false, false
	}
	head := current[:idx]
	tail := current[idx:]
	merged := mergeHead(head, tail, incoming)
	return merged, "prepend", false, idx == 0, true
}

func newEdges(es []Edge) []canonicalEdge {
	out := make([]canonicalEdge, len(es))
	for i, e := range es {
		out[i] = canonicalEdge{nodeID: e.NodeID, cursor: e.Cursor, scalars: e.Scalars}
	}
	return out
}

func dedupSelf(es []canonicalEdge) []canonicalEdge {
	seen := map[string]bool{}
	out := make([]canonicalEdge, 0, len(es))
	for _, e := range es {
		if seen[e.nodeID] {
			continue
		}
		seen[e.nodeID] = true
		out = append(out, e)
	}
	return out
}

func findCursor(edges []canonicalEdge, cursor string) int {
	for i, e := range edges {
		if e.cursor == cursor {
			return i
		}
	}
	return -1
}

func containsNode(edges []canonicalEdge, nodeID string) bool {
	for _, e := range edges {
		if e.nodeID == nodeID {
			return true
		}
	}
	return false
}

// mergeTail folds incoming edges onto the canonical tail following an
// `after` cursor match: edges whose node already exists in the tail are
// rewritten in place (cursor/scalars updated); brand-new edges are
// appended at the boundary; edges that already exist earlier (in head)
// are dropped to preserve the no-duplicate invariant.
func mergeTail(head, tail []canonicalEdge, incoming []canonicalEdge) []canonicalEdge {
	tailByNode := make(map[string]int, len(tail))
	for i, e := range tail {
		tailByNode[e.nodeID] = i
	}

	var appended []canonicalEdge
	for _, e := range incoming {
		if i, ok := tailByNode[e.nodeID]; ok {
			tail[i].cursor = e.cursor
			tail[i].scalars = e.scalars
			continue
		}
		if containsNode(head, e.nodeID) {
			continue
		}
		appended = append(appended, e)
	}

	out := make([]canonicalEdge, 0, len(head)+len(tail)+len(appended))
	out = append(out, head...)
	out = append(out, appended...)
	out = append(out, tail...)
	return out
}

// mergeHead is the mirror of mergeTail for a `before` cursor match:
// incoming edges are prepended ahead of the matched head segment.
func mergeHead(head, tail []canonicalEdge, incoming []canonicalEdge) []canonicalEdge {
	headByNode := make(map[string]int, len(head))
	for i, e := range head {
		headByNode[e.nodeID] = i
	}

	var prepended []canonicalEdge
	for _, e := range incoming {
		if i, ok := headByNode[e.nodeID]; ok {
			head[i].cursor = e.cursor
			head[i].scalars = e.scalars
			continue
		}
		if containsNode(tail, e.nodeID) {
			continue
		}
		prepended = append(prepended, e)
	}

	out := make([]canonicalEdge, 0, len(head)+len(tail)+len(prepended))
	out = append(out, head...)
	out = append(out, prepended...)
	out = append(out, tail...)
	return out
}

func edgeIDs(order []canonicalEdge) []string {
	ids := make([]string, len(order))
	for i, e := range order {
		ids[i] = e.id
	}
	return ids
}

func writeCanonicalEdges(store *graph.Store, canonicalID string, order []canonicalEdge) {
	for i := range order {
		order[i].id = EdgeID(canonicalID, i)
		rec := graph.Record{"cursor": order[i].cursor, "node": graph.Link{Ref: order[i].nodeID}}
		for k, v := range order[i].scalars {
			rec[k] = v
		}
		store.PutRecord(order[i].id, rec)
	}
}

func writeCanonicalPageInfo(store *graph.Store, canonicalID string, prior []canonicalEdge, order []canonicalEdge, p Page, action string, atTail, atHead bool) {
	pageInfoID := PageInfoID(canonicalID)
	existing, _, hasExisting := store.GetRecord(pageInfoID)

	rec := graph.Record{}
	if len(order) > 0 {
		rec["startCursor"] = order[0].cursor
		rec["endCursor"] = order[len(order)-1].cursor
	} else {
		rec["startCursor"] = nil
		rec["endCursor"] = nil
	}

	switch action {
	case "replace":
		rec["hasNextPage"] = boolOr(p.PageInfo.HasNextPage, false)
		rec["hasPreviousPage"] = boolOr(p.PageInfo.HasPreviousPage, false)
	default:
		rec["hasNextPage"] = preserveOrSet(hasExisting, existing, "hasNextPage", atTail, p.PageInfo.HasNextPage)
		rec["hasPreviousPage"] = preserveOrSet(hasExisting, existing, "hasPreviousPage", atHead, p.PageInfo.HasPreviousPage)
	}

	store.PutRecord(pageInfoID, rec)
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func preserveOrSet(hasExisting bool, existing graph.Record, field string, boundaryMatched bool, incoming *bool) bool {
	if boundaryMatched && incoming != nil {
		return *incoming
	}
	if hasExisting {
		if v, ok := existing[field].(bool); ok {
			return v
		}
	}
	return false
}
