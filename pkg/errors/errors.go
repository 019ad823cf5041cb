// Package errors defines the storage-engine error kinds used throughout
// Slate, following the teacher's wrapped-error-with-kind convention.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a SlateError per the engine's error handling design.
type Kind int

const (
	// KindStore indicates the underlying KV store failed. The transaction
	// should be aborted.
	KindStore Kind = iota
	// KindCollectionNotFound indicates a name not present in the catalog.
	KindCollectionNotFound
	// KindDuplicateKey indicates put_nx was called against a live id.
	KindDuplicateKey
	// KindInvalidDocument indicates a missing or unsupported _id.
	KindInvalidDocument
	// KindInvalidKey indicates a malformed encoded key was encountered on read.
	KindInvalidKey
	// KindInvalidQuery indicates a malformed filter or mutation document.
	KindInvalidQuery
	// KindSerialization indicates a BSON encode/decode failure.
	KindSerialization
)

func (k Kind) String() string {
	switch k {
	case KindStore:
		return "StoreError"
	case KindCollectionNotFound:
		return "CollectionNotFound"
	case KindDuplicateKey:
		return "DuplicateKey"
	case KindInvalidDocument:
		return "InvalidDocument"
	case KindInvalidKey:
		return "InvalidKey"
	case KindInvalidQuery:
		return "InvalidQuery"
	case KindSerialization:
		return "Serialization"
	default:
		return "Unknown"
	}
}

// SlateError is the concrete error type returned across package boundaries.
// It carries a Kind for errors.Is-style dispatch plus an optional wrapped
// cause for diagnostics.
type SlateError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *SlateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SlateError) Unwrap() error { return e.Err }

// Is allows errors.Is(err, KindX) style checks via a sentinel wrapper; callers
// typically compare with errors.As and inspect Kind directly.
func (e *SlateError) Is(target error) bool {
	other, ok := target.(*SlateError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func new_(kind Kind, message string, err error) *SlateError {
	return &SlateError{Kind: kind, Message: message, Err: err}
}

func Store(message string, err error) *SlateError {
	return new_(KindStore, message, err)
}

func CollectionNotFound(name string) *SlateError {
	return new_(KindCollectionNotFound, fmt.Sprintf("collection %q not found", name), nil)
}

func DuplicateKey(id string) *SlateError {
	return new_(KindDuplicateKey, fmt.Sprintf("duplicate key %q", id), nil)
}

func InvalidDocument(message string) *SlateError {
	return new_(KindInvalidDocument, message, nil)
}

func InvalidKey(message string) *SlateError {
	return new_(KindInvalidKey, message, nil)
}

func InvalidQuery(message string) *SlateError {
	return new_(KindInvalidQuery, message, nil)
}

func Serialization(message string, err error) *SlateError {
	return new_(KindSerialization, message, err)
}

// KindOf extracts the Kind from err, walking Unwrap chains. Returns
// (KindStore, false) if err does not wrap a *SlateError.
func KindOf(err error) (Kind, bool) {
	var se *SlateError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return KindStore, false
}
