package repo

import "errors"

// ErrNotFound is returned when an account, transaction, tag or chart id
// does not resolve. Callers surface it instead of silently no-opping.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when adopting an account whose id already
// exists and force was not requested.
var ErrConflict = errors.New("account id already exists")
