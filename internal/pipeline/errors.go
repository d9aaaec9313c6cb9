package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies a document failure.
type Kind string

const (
	// KindUnsupported is a file type the pipeline does not handle.
	KindUnsupported Kind = "unsupported_document"
	// KindUnreadable is a missing, corrupt or undecodable document.
	KindUnreadable Kind = "unreadable_document"
	// KindRecognition is an OCR failure that aborted the document.
	KindRecognition Kind = "recognition_failed"
	// KindExport is a failure writing results.
	KindExport Kind = "export_failed"
)

// DocumentError is the error result for one document.
type DocumentError struct {
	Kind     Kind
	Document string
	Detail   string
	Err      error
}

func (e *DocumentError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Document)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DocumentError) Unwrap() error { return e.Err }

// MarshalJSON encodes the error as {kind, document, detail}.
func (e *DocumentError) MarshalJSON() ([]byte, error) {
	detail := e.Detail
	if e.Err != nil {
		if detail != "" {
			detail += ": "
		}
		detail += e.Err.Error()
	}
	return json.Marshal(struct {
		Kind     Kind   `json:"kind"`
		Document string `json:"document"`
		Detail   string `json:"detail,omitempty"`
	}{e.Kind, e.Document, detail})
}

func newError(kind Kind, document, detail string, err error) *DocumentError {
	return &DocumentError{Kind: kind, Document: document, Detail: detail, Err: err}
}

// AsDocumentError returns the DocumentError in err's chain, if any.
func AsDocumentError(err error) (*DocumentError, bool) {
	var de *DocumentError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsCancelled reports whether err comes from a cancelled or expired context.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
