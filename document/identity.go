// Package document implements normalize (response tree -> graph writes)
// and materialize (plan + variables + graph -> response tree), the two
// halves that turn a compiled plan into cache reads and writes (spec
// §4.4, §4.5).
package document

import "fmt"

// KeyFunc computes an entity's primary key from its selected fields.
// The second return reports whether the object is keyable at all; a
// false return means the object should be stored embedded rather than
// as a standalone entity.
type KeyFunc func(obj map[string]any) (string, bool)

// Identity resolves entity ids for a concrete __typename, mirroring
// spec §4.4 step 3 ("has a key function for __typename, or is
// Node-like with id").
type Identity struct {
	Keys       map[string]KeyFunc
	Interfaces map[string][]string
}

// NewIdentity returns an Identity with no per-type key functions; every
// object with a non-nil "id" field falls back to the default Node-like
// rule.
func NewIdentity() *Identity {
	return &Identity{Keys: map[string]KeyFunc{}, Interfaces: map[string][]string{}}
}

// resolve determines whether obj is keyable and, if so, its entity id
// ("Typename:key"). typename is read from obj["__typename"]; its
// absence is only an error when the object would otherwise have been
// keyable via the default id-based rule (spec §4.4: "missing
// __typename where an entity is expected").
func (id *Identity) resolve(obj map[string]any) (typename string, entityID string, keyable bool, err error) {
	typename, hasTypename := obj["__typename"].(string)

	if hasTypename {
		if kf, ok := id.Keys[typename]; ok {
			key, ok := kf(obj)
			if !ok {
				return typename, "", false, nil
			}
			return typename, typename + ":" + key, true, nil
		}
	}

	idVal, hasID := obj["id"]
	if !hasID || idVal == nil {
		return typename, "", false, nil
	}
	if !hasTypename {
		return "", "", false, &Error{Kind: MissingTypename, Message: "object has an id field but no __typename"}
	}
	return typename, typename + ":" + fmt.Sprint(idVal), true, nil
}

// Identify returns the entity id obj would be stored under, and
// whether it is keyable at all. It never errors: an object that would
// normalize-error (an id with no __typename) simply reports not
// keyable, since this is a pure "what id would this become" query, not
// a write.
func (id *Identity) Identify(obj map[string]any) (string, bool) {
	_, entityID, keyable, err := id.resolve(obj)
	if err != nil {
		return "", false
	}
	return entityID, keyable
}

func (id *Identity) satisfies(condition, typename string) bool {
	if condition == "" || condition == typename {
		return true
	}
	for _, concrete := range id.Interfaces[condition] {
		if concrete == typename {
			return true
		}
	}
	return false
}
