package document

import "fmt"

// Kind classifies a normalize-time failure.
type Kind int

const (
	// MissingTypename is returned when an object that would otherwise
	// be keyable (it has an "id") carries no "__typename".
	MissingTypename Kind = iota
	// ShapeMismatch is returned when the response shape disagrees with
	// the plan: a scalar where an object was expected, or vice versa.
	ShapeMismatch
)

func (k Kind) String() string {
	switch k {
	case MissingTypename:
		return "missing_typename"
	case ShapeMismatch:
		return "shape_mismatch"
	default:
		return "unknown"
	}
}

// Error is the error type normalize returns; Path is the dotted
// response-key path at which the failure occurred, best-effort.
type Error struct {
	Kind    Kind
	Path    string
	Message string
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("document: %s at %s: %s", e.Kind, e.Path, e.Message)
	}
	return fmt.Sprintf("document: %s: %s", e.Kind, e.Message)
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, k Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == k
}
