// Package canonical implements the canonical connection merge algorithm:
// folding successive Relay-style connection pages into one
// pagination-independent edge list per (owner, field, filter-args)
// while keeping each exact window available verbatim as a "strict"
// record. This is the algorithmic heart of the cache (spec §4.3).
package canonical

import (
	"encoding/json"
	"fmt"
)

// Key computes the canonical connection record id:
// "@connection.<ownerId>.<fieldName>({filterArgsOnly})".
func Key(ownerID, fieldName string, filterArgs map[string]any) string {
	return fmt.Sprintf("@connection.%s.%s(%s)", ownerID, fieldName, sortedJSON(filterArgs))
}

// PageInfoID returns the pageInfo record id for a canonical key.
func PageInfoID(canonicalID string) string { return canonicalID + ".pageInfo" }

// EdgeID returns the edge record id for a canonical key at a given
// position.
func EdgeID(canonicalID string, index int) string {
	return fmt.Sprintf("%s.edges.%d", canonicalID, index)
}

// StrictID returns the embedded record id for an exact connection
// window: "<ownerId>.<fieldName>({fullArgsJson})", the same synthetic
// id scheme normalize uses for any embedded object (spec §4.4.3).
func StrictID(ownerID, fieldName string, fullArgs map[string]any) string {
	return ownerID + "." + StrictFieldKey(fieldName, fullArgs)
}

// StrictFieldKey is the field key a strict connection window is stored
// under on its owner record.
func StrictFieldKey(fieldName string, fullArgs map[string]any) string {
	if len(fullArgs) == 0 {
		return fieldName
	}
	return fmt.Sprintf("%s(%s)", fieldName, sortedJSON(fullArgs))
}

func sortedJSON(args map[string]any) string {
	if args == nil {
		args = map[string]any{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		panic(fmt.Sprintf("canonical: connection arguments not marshalable: %v", err))
	}
	return string(b)
}
