package document

import (
	"fmt"

	"github.com/lockvoid/cachebay/canonical"
	"github.com/lockvoid/cachebay/graph"
	"github.com/lockvoid/cachebay/plan"
)

// Options configures one Materialize call (spec §4.5 input).
type Options struct {
	// Canonical selects whether connection fields prefer the canonical
	// (merged) record over the strict (exact window) record. Defaults
	// to true at the call site; ModePage connections always read
	// strict regardless.
	Canonical bool
	// Fingerprint, when true, annotates every object with a __version
	// computed from its record version and child versions; lists carry
	// no __version of their own and fold into their parent's.
	Fingerprint bool
	// Force bypasses the result cache.
	Force bool
}

// Result is materialize's output (spec §4.5).
type Result struct {
	Data map[string]any
	// Source is "canonical" or "strict" for the layer that satisfied
	// the plan, or "none" when neither did (Data may then still hold a
	// partial tree).
	Source string

	OkCanonical bool
	OkStrict    bool

	StrictSignature    string
	CanonicalSignature string

	// Dependencies is the set of record ids read while producing Data;
	// any touch to one of these ids invalidates this result in the
	// ResultCache.
	Dependencies map[string]struct{}

	Hot bool
}

// Materialize reconstructs a response tree for fields rooted at rootID
// from store, consulting cache (if non-nil) for the result cache
// described in spec §4.5 step 3.
//
// The composite cache key is (plan signature under the strict mask,
// Canonical, Fingerprint, rootID) — the strict mask already carries
// every variable the plan observes, so it subsumes "variables mask"
// from the spec's key description.
func Materialize(store *graph.Store, identity *Identity, p *plan.Plan, vars map[string]any, rootID string, opts Options, cache *ResultCache) Result {
	key := fmt.Sprintf("%s|c=%v|f=%v|root=%s", p.MakeSignature("strict", vars), opts.Canonical, opts.Fingerprint, rootID)

	if !opts.Force && cache != nil {
		if r, ok := cache.get(key); ok {
			r.Hot = true
			return r
		}
	}

	strictSig := p.MakeSignature("strict", vars)
	canonicalSig := p.MakeSignature("canonical", vars)

	deps := map[string]struct{}{}
	okStrict := true
	okCanonical := true

	data, _, exists := materializeNode(store, identity, p.Root, vars, rootID, deps, opts.Canonical, opts.Fingerprint, &okStrict, &okCanonical)

	result := Result{
		StrictSignature:    strictSig,
		CanonicalSignature: canonicalSig,
		Dependencies:       deps,
	}

	if !exists {
		result.Source = "none"
		result.OkStrict = false
		result.OkCanonical = false
	} else {
		result.Data = data
		result.OkStrict = okStrict
		result.OkCanonical = okCanonical
		switch {
		case opts.Canonical && okCanonical:
			result.Source = "canonical"
		case okStrict:
			result.Source = "strict"
		default:
			result.Source = "none"
		}
	}

	if cache != nil {
		cache.put(key, result)
	}
	return result
}

// materializeNode reconstructs the object at recordID shaped by fields,
// returning its data, a fingerprint version aggregating every field
// read (own record version folded with every child's), and whether the
// record exists at all.
func materializeNode(store *graph.Store, identity *Identity, fields []*plan.Field, vars map[string]any, recordID string, deps map[string]struct{}, preferCanonical, fingerprint bool, okStrict, okCanonical *bool) (map[string]any, int64, bool) {
	deps[recordID] = struct{}{}
	rec, ver, ok := store.GetRecord(recordID)
	if !ok {
		*okStrict = false
		*okCanonical = false
		return nil, 0, false
	}

	typename, _ := rec["__typename"].(string)
	data := map[string]any{}
	if typename != "" {
		data["__typename"] = typename
	}

	var childVersions []int64
	for _, f := range fields {
		if !identity.satisfies(f.TypeCondition, typename) {
			continue
		}

		if f.Connection != nil {
			val, v, exists := materializeConnection(store, identity, f, vars, recordID, deps, preferCanonical, fingerprint, okStrict, okCanonical)
			data[f.ResponseKey] = val
			if exists {
				childVersions = append(childVersions, v)
			}
			continue
		}

		fieldKey := f.StringifyArgs(vars)
		raw, present := rec[fieldKey]
		if !present {
			*okStrict = false
			*okCanonical = false
			data[f.ResponseKey] = nil
			continue
		}

		val, v := materializeFieldValue(store, identity, f, vars, raw, deps, preferCanonical, fingerprint, okStrict, okCanonical)
		data[f.ResponseKey] = val
		childVersions = append(childVersions, v)
	}

	version := ver
	if fingerprint {
		version = rollingHash(ver, childVersions)
		data["__version"] = version
	}
	return data, version, true
}

func materializeFieldValue(store *graph.Store, identity *Identity, field *plan.Field, vars map[string]any, raw any, deps map[string]struct{}, preferCanonical, fingerprint bool, okStrict, okCanonical *bool) (any, int64) {
	switch v := raw.(type) {
	case nil:
		return nil, 0

	case graph.Link:
		sub, ver, exists := materializeNode(store, identity, field.Children, vars, v.Ref, deps, preferCanonical, fingerprint, okStrict, okCanonical)
		if !exists {
			return nil, 0
		}
		return sub, ver

	case graph.LinkList:
		// Go's []any cannot itself carry a "__version" key the way a
		// JS array could; the aggregated hash still folds into the
		// parent object's own __version, which is what equality checks
		// (spec §4.7 step 3) actually compare.
		items := make([]any, 0, len(v.Refs))
		var hash int64
		for _, ref := range v.Refs {
			sub, ver, exists := materializeNode(store, identity, field.Children, vars, ref, deps, preferCanonical, fingerprint, okStrict, okCanonical)
			if !exists {
				continue
			}
			items = append(items, sub)
			hash = hash*1000003 + ver + 1
		}
		return items, hash

	default:
		return v, 0
	}
}

// materializeConnection resolves a @connection field against whichever
// record (canonical or strict) the call prefers. A canonical-preferring
// read falls back to the strict record when the canonical one is
// absent; a strict read never falls back to canonical. ok.canonical/ok.strict are
// driven here from plain existence of each record; this is a
// deliberate simplification of the "contiguous slice of canonical"
// check spec §4.3 describes — see DESIGN.md.
func materializeConnection(store *graph.Store, identity *Identity, field *plan.Field, vars map[string]any, ownerID string, deps map[string]struct{}, preferCanonical, fingerprint bool, okStrict, okCanonical *bool) (any, int64, bool) {
	fullArgs := field.BuildArgs(vars)
	filterArgs := filterArgsFor(field.Connection, fullArgs)

	canonicalID := canonical.Key(ownerID, field.Connection.Key, filterArgs)
	strictID := canonical.StrictID(ownerID, field.Connection.Key, fullArgs)

	_, _, canExists := store.GetRecord(canonicalID)
	_, _, strExists := store.GetRecord(strictID)

	usesCanonical := preferCanonical && field.Connection.Mode != plan.ModePage

	if usesCanonical {
		if !canExists {
			*okCanonical = false
		}
		if !strExists {
			*okStrict = false
		}
		if canExists {
			data, ver, _ := materializeNode(store, identity, field.Children, vars, canonicalID, deps, preferCanonical, fingerprint, okStrict, okCanonical)
			return data, ver, true
		}
		if strExists {
			data, ver, _ := materializeNode(store, identity, field.Children, vars, strictID, deps, preferCanonical, fingerprint, okStrict, okCanonical)
			return data, ver, true
		}
		return nil, 0, false
	}

	if !strExists {
		*okStrict = false
	}
	if !canExists {
		*okCanonical = false
	}
	if strExists {
		data, ver, _ := materializeNode(store, identity, field.Children, vars, strictID, deps, preferCanonical, fingerprint, okStrict, okCanonical)
		return data, ver, true
	}
	return nil, 0, false
}

// rollingHash folds own (the record's own version) with every child
// version into a single 64-bit fingerprint. Not a cryptographic hash —
// it is only ever compared for equality within one process (spec
// design note, "Avoid cryptographic hashes").
func rollingHash(own int64, children []int64) int64 {
	h := uint64(own) + 1
	for _, c := range children {
		h = h*1000003 + uint64(c) + 1
	}
	return int64(h)
}
