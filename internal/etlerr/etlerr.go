// Package etlerr defines the error taxonomy shared by the extract, transform,
// load, and pipeline packages.
//
// Every fatal error leaving a stage is an *Error tagged with a Kind. Callers
// classify with KindOf (or errors.As) instead of matching on message text:
//
//	if etlerr.KindOf(err) == etlerr.KindSchema { ... }
//
// Row-level anomalies are not errors; see schema.Warning.
package etlerr

import (
	"errors"
	"fmt"
)

// Kind classifies a fatal error.
type Kind int

const (
	// KindUnknown is reported for errors that carry no classification.
	KindUnknown Kind = iota
	// KindValidation marks a malformed run request.
	KindValidation
	// KindFormat marks an unsupported or unreadable input container.
	KindFormat
	// KindSchema marks missing required columns or an incompatible target table.
	KindSchema
	// KindReconciliation marks input that yields no usable account key.
	KindReconciliation
	// KindConnection marks a backend that cannot be reached or dropped the session.
	KindConnection
	// KindIntegrity marks a constraint violation reported by the backend.
	KindIntegrity
	// KindCritical marks an unexpected fault, including recovered panics.
	KindCritical
)

var kindNames = map[Kind]string{
	KindUnknown:        "UnknownError",
	KindValidation:     "ValidationError",
	KindFormat:         "FormatError",
	KindSchema:         "SchemaError",
	KindReconciliation: "ReconciliationError",
	KindConnection:     "ConnectionError",
	KindIntegrity:      "IntegrityError",
	KindCritical:       "CriticalError",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText renders the kind name so results serialize readably.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Error is a kind-tagged error. Op names the operation that failed, e.g.
// "extract balances" or "sqlite: commit".
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := "<nil>"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a tagged error from a format string.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap tags err with kind. A nil err yields nil. An err that is already
// tagged keeps its original kind so the innermost classification wins.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		if op == "" {
			return err
		}
		return &Error{Kind: tagged.Kind, Op: op, Err: err}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindUnknown when there is none.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
