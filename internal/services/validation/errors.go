package validation

import (
	"sort"
	"strings"
)

// FormField collects errors that do not belong to a single field.
const FormField = "__all__"

// Errors maps a field name to its messages, in the order they were found.
type Errors map[string][]string

// Add records a message for field.
func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Empty reports whether no message was recorded.
func (e Errors) Empty() bool { return len(e) == 0 }

// Messages returns every message, form-level first, then by field name.
func (e Errors) Messages() []string {
	fields := make([]string, 0, len(e))
	for f := range e {
		if f != FormField {
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)

	out := append([]string(nil), e[FormField]...)
	for _, f := range fields {
		out = append(out, e[f]...)
	}
	return out
}

func (e Errors) Error() string {
	return strings.Join(e.Messages(), " ")
}

// OrNil returns nil for an empty set so callers can return it as an error.
func (e Errors) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

// Merge appends every message of other.
func (e Errors) Merge(other Errors) {
	for field, msgs := range other {
		for _, m := range msgs {
			e.Add(field, m)
		}
	}
}
