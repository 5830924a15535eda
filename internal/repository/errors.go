// Package repository contains the MySQL data access layer.  This file
// defines sentinel errors reused across repositories so higher layers
// can distinguish failure scenarios without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.  Handlers
// translate this into an HTTP 404 or, on auth paths, into the
// appropriate authentication error.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert or update violates the
// unique email constraint.  Handlers translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")
