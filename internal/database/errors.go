package database

import "errors"

// ErrNotFound reports that a referenced row does not exist. Repositories
// return it (possibly wrapped) instead of leaking sql.ErrNoRows; callers
// check it with errors.Is.
var ErrNotFound = errors.New("not found")
