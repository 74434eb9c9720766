// Package storage holds errors shared by the persistence gateway
// implementations.
package storage

import "errors"

var ErrNotFound = errors.New("not found")
