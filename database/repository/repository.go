// Package repository holds the error values shared by the MongoDB repositories
// so services can tell a missing document from a failed guard.
package repository

import "errors"

// ErrNotFound is returned when no document matches the lookup key.
var ErrNotFound = errors.New("document not found")

// ErrConditionFailed is returned when a conditional update matched nothing:
// the document exists but its current state does not satisfy the guard.
var ErrConditionFailed = errors.New("update precondition failed")
