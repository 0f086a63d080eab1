package gridloader

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by a SourceError whose source cannot be opened.
var ErrNotFound = errors.New("grid source not found")

// SourceError reports a file or URL that cannot be opened.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("Can not find or open file %s. %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNotFound) match any SourceError.
func (e *SourceError) Is(target error) bool { return target == ErrNotFound }

// ArgumentError reports an invalid argument such as an empty grid name.
type ArgumentError struct {
	Argument string
	Value    interface{}
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("Invalid type for argument %s -%v-", e.Argument, e.Value)
}

// DateError reports an unparsable validity date.
type DateError struct {
	Value string
	Err   error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("Invalid dates. Can not parse %q: %v", e.Value, e.Err)
}

func (e *DateError) Unwrap() error { return e.Err }

// ParamError reports an invalid entry of a parameter file.
type ParamError struct {
	File    string
	Message string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s\nCheck %s", e.Message, e.File)
}

// TimeAxisError reports a time variable that cannot be used to derive a lead time.
type TimeAxisError struct {
	Variable string
	Reason   string
}

func (e *TimeAxisError) Error() string {
	return fmt.Sprintf("Invalid time variable %s. %s", e.Variable, e.Reason)
}
