package domain

import "fmt"

// ValidationKind names the reason a record or request body was rejected.
type ValidationKind string

const (
	KindNotAnObject    ValidationKind = "not-an-object"
	KindMissingID      ValidationKind = "missing-id"
	KindMissingLabel   ValidationKind = "missing-label-type"
	KindMissingChecked ValidationKind = "missing-checked-type"

	KindInvalidJSON  ValidationKind = "invalid-json"
	KindInvalidBody  ValidationKind = "invalid-body"
	KindInvalidTitle ValidationKind = "invalid-title"
	KindInvalidItems ValidationKind = "invalid-items"
)

// ValidationError describes why a request body or an item was rejected.
type ValidationError struct {
	Kind ValidationKind
	// Index is the position of the offending item, -1 for body level errors.
	Index  int
	ItemID string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Index < 0 {
		return fmt.Sprintf("invalid request: %s", e.Kind)
	}
	if e.ItemID != "" {
		return fmt.Sprintf("invalid item %d (%s): %s", e.Index, e.ItemID, e.Kind)
	}
	return fmt.Sprintf("invalid item %d: %s", e.Index, e.Kind)
}

// IsItemError reports whether the error concerns a single item rather than
// the request envelope.
func (e *ValidationError) IsItemError() bool {
	switch e.Kind {
	case KindNotAnObject, KindMissingID, KindMissingLabel, KindMissingChecked:
		return true
	}
	return false
}

func bodyError(kind ValidationKind) *ValidationError {
	return &ValidationError{Kind: kind, Index: -1}
}
