package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDocument indicates a document question was asked before any document was indexed.
	ErrNoDocument = errors.New("no document indexed")

	// ErrNoRelevantContent indicates retrieval found nothing to ground an answer on.
	ErrNoRelevantContent = errors.New("no relevant content found in the document for this question")

	// ErrModelLoad indicates the embedding model could not be initialized.
	ErrModelLoad = errors.New("embedding model failed to load")

	// ErrUnsupportedDocument indicates the document type cannot be extracted.
	ErrUnsupportedDocument = errors.New("unsupported document type")

	// ErrEmptyDocument indicates extraction produced no text.
	ErrEmptyDocument = errors.New("document contains no extractable text")
)

// IndexErrorKind classifies vector index failures.
type IndexErrorKind int

const (
	// KindTransient covers backend failures that may succeed on retry.
	KindTransient IndexErrorKind = iota
	// KindNotFound means the collection (or item) does not exist.
	KindNotFound
	// KindAlreadyExists means the collection (or item id) is already present.
	KindAlreadyExists
	// KindInvalid means the request itself was malformed, e.g. a dimension mismatch.
	KindInvalid
)

func (k IndexErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	case KindInvalid:
		return "invalid"
	default:
		return "transient"
	}
}

// IndexError is returned by vector index backends.
type IndexError struct {
	Kind       IndexErrorKind
	Collection string
	Err        error
}

func (e *IndexError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("collection %q: %s", e.Collection, e.Kind)
	}
	return fmt.Sprintf("collection %q: %s: %v", e.Collection, e.Kind, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// NewIndexError builds an IndexError of the given kind.
func NewIndexError(kind IndexErrorKind, collection string, err error) *IndexError {
	return &IndexError{Kind: kind, Collection: collection, Err: err}
}

// IsNotFound reports whether err is an IndexError of kind NotFound.
func IsNotFound(err error) bool { return isKind(err, KindNotFound) }

// IsAlreadyExists reports whether err is an IndexError of kind AlreadyExists.
func IsAlreadyExists(err error) bool { return isKind(err, KindAlreadyExists) }

// IsTransient reports whether err is an IndexError of kind Transient.
func IsTransient(err error) bool { return isKind(err, KindTransient) }

func isKind(err error, kind IndexErrorKind) bool {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Kind == kind
	}
	return false
}
