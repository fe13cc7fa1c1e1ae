package graph

// Link is a pointer from one record's field to another record by id.
type Link struct {
	Ref string
}

// LinkList is an ordered list of entity ids, used for list-of-object
// fields and canonical connection edge lists.
type LinkList struct {
	Refs []string
}

// Record is a flat field-key -> value mapping. Values are one of:
// scalar, scalar list, Link, LinkList, or a nested map[string]any /
// []any value for embedded JSON-typed fields.
type Record map[string]any

// Clone returns a shallow copy of the record, safe to hand to an
// optimistic overlay without aliasing the base map.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// equal reports whether two field values are deeply equal for the
// purposes of version bumping. It special-cases the value kinds the
// graph actually stores rather than falling back purely to
// reflect.DeepEqual, since Link/LinkList are plain structs holding
// strings/slices and compare cheaply.
func equal(a, b any) bool {
	switch av := a.(type) {
	case Link:
		bv, ok := b.(Link)
		return ok && av.Ref == bv.Ref
	case LinkList:
		bv, ok := b.(LinkList)
		if !ok || len(av.Refs) != len(bv.Refs) {
			return false
		}
		for i := range av.Refs {
			if av.Refs[i] != bv.Refs[i] {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, ok := bv[k]
			if !ok || !equal(v, other) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// merge writes patch's fields over base in place, field-by-field
// (last-write-wins at the field level, never a whole-object replace,
// per spec invariant 6). It returns the set of field keys whose value
// actually changed.
func merge(base Record, patch Record) (changed []string) {
	for k, v := range patch {
		if existing, ok := base[k]; ok && equal(existing, v) {
			continue
		}
		base[k] = v
		changed = append(changed, k)
	}
	return changed
}
