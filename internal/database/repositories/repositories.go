// Package repositories provides data access layer implementations.
package repositories

import (
	"errors"

	"gorm.io/gorm"
)

// Outcome tells whether a get-or-create call inserted a row.
type Outcome int

const (
	Created Outcome = iota + 1
	Existing
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Existing:
		return "existing"
	}
	return "unknown"
}

// UpsertResult is returned by get-or-create methods.
type UpsertResult struct {
	Outcome Outcome
}

// Created reports whether the row was inserted by this call.
func (r UpsertResult) Created() bool { return r.Outcome == Created }

// ErrMarginInUse is returned when deleting a margin still referenced by a station.
var ErrMarginInUse = errors.New("margin is used by at least one station")

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func collectIDs[T any](items []T, id func(T) string) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, id(it))
	}
	return ids
}
