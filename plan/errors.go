package plan

import "fmt"

// ErrorKind distinguishes the ways a document can fail to compile.
type ErrorKind int

const (
	// SyntaxError is returned when the document text itself fails to
	// parse as GraphQL.
	SyntaxError ErrorKind = iota
	// AmbiguousDocument is returned when no fragment name is given and
	// a document contains neither a single operation nor (with no
	// operation) exactly one named fragment.
	AmbiguousDocument
	// InvalidDirective is returned for malformed @connection directive
	// arguments (wrong argument type, etc).
	InvalidDirective
	// UnknownFragment is returned when a requested fragment name, or a
	// spread fragment referenced inside the document, does not exist.
	UnknownFragment
)

func (k ErrorKind) String() string {
	switch k {
	case SyntaxError:
		return "SyntaxError"
	case AmbiguousDocument:
		return "AmbiguousDocument"
	case InvalidDirective:
		return "InvalidDirective"
	case UnknownFragment:
		return "UnknownFragment"
	default:
		return "Unknown"
	}
}

// Error is returned by Compile when a document cannot be turned into a
// plan. Compile never returns any other error type.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("plan: %s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	pe, ok := err.(*Error)
	return ok && pe.Kind == kind
}
