package docs

import (
	"errors"
	"strings"
)

// Error attaches document context to a per-document failure. The cause comes
// first, followed by the document context:
//
//	open 2025/12_OF_2025_ACME.docx: no such file (kind=offer path=2025/12_OF_2025_ACME.docx)
//
// Use [errors.As] to extract the fields and [errors.Is] to test the cause.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

// Error formats as "<cause> (kind=X path=Y)".
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}

	var parts []string

	if e.Kind.Valid() {
		parts = append(parts, "kind="+e.Kind.String())
	}

	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}

	if len(parts) == 0 {
		return cause
	}

	suffix := "(" + strings.Join(parts, " ") + ")"
	if cause == "" {
		return suffix
	}

	return cause + " " + suffix
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// WithContext wraps err with document context. Existing context on an
// already wrapped error is preserved and only missing fields are filled.
func WithContext(err error, kind Kind, path string) error {
	if err == nil {
		return nil
	}

	existing := &Error{}
	if errors.As(err, &existing) {
		if !existing.Kind.Valid() {
			existing.Kind = kind
		}

		if existing.Path == "" {
			existing.Path = path
		}

		return err
	}

	return &Error{Kind: kind, Path: path, Err: err}
}
