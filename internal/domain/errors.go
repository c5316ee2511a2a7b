package domain

import "errors"

// Errors that cross the catalog core boundary. Cache failures never do; they
// are absorbed inside the cacheaside package.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrSearchInputInvalid = errors.New("invalid search input")
)
