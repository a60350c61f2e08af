package mal

import "fmt"

// InvalidEntityError reports a natural key that is empty or that the site
// says does not exist. Permissive parsing never suppresses it.
type InvalidEntityError struct {
	Kind Kind
	Key  string
}

func (e *InvalidEntityError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Kind, e.Key)
}

// MalformedPageError reports a page whose overall structure is
// unrecognizable, such as a missing top-level container. It aborts the
// current group load but leaves previously loaded attributes intact.
type MalformedPageError struct {
	URL    string
	Reason string
}

func (e *MalformedPageError) Error() string {
	if e.URL == "" {
		return "malformed page: " + e.Reason
	}
	return fmt.Sprintf("malformed page %s: %s", e.URL, e.Reason)
}

// FieldError reports that one field's fragment did not match its expected
// shape. In permissive mode (the default) the parser drops the field and
// continues; in strict mode the error aborts the whole group load.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("parse field %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }
