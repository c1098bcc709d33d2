package filesystem

import (
	"errors"
	"fmt"
)

var (
	// ErrNotADirectory is returned when a directory operation targets a file.
	ErrNotADirectory = errors.New("not a directory")

	// ErrNotAFile is returned when a file operation targets a directory.
	ErrNotAFile = errors.New("not a file")

	// ErrFileExists is returned when creating a directory where a file exists.
	ErrFileExists = errors.New("file exists")

	// ErrCannotWriteDirectory is returned when creating a file where a
	// directory exists.
	ErrCannotWriteDirectory = errors.New("cannot write to directory")

	// ErrAccessDenied is returned when creating a file whose parent is
	// missing or is not a directory.
	ErrAccessDenied = errors.New("access denied")

	// ErrEntryDeleted is returned when writing to an entry after deletion.
	ErrEntryDeleted = errors.New("file has been deleted")
)

// Operation names used in PathError.
const (
	OpChildren    = "children"
	OpSetChildren = "setchildren"
	OpRead        = "read"
	OpWrite       = "write"
	OpMkdir       = "mkdir"
	OpCreate      = "create"
	OpDelete      = "delete"
)

// PathError records a failed operation on a virtual path. Err is one of the
// sentinel errors above or a wrapped backend failure.
type PathError struct {
	Op   string
	Path string
	Err  error
}

// Error formats the error as "/<path>: <reason>".
func (e *PathError) Error() string {
	return fmt.Sprintf("/%s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

func newPathError(op, path string, err error) *PathError {
	return &PathError{Op: op, Path: path, Err: err}
}
