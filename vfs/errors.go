package vfs

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Every operation returns one of these sentinels wrapped
// in an [*OpError]; use errors.Is to classify.
var (
	ErrInvalidName        = errors.New("invalid name")
	ErrNotFound           = errors.New("no such file or directory")
	ErrNotADirectory      = errors.New("not a directory")
	ErrNotAFile           = errors.New("not a file")
	ErrAlreadyExists      = errors.New("already exists")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrBrokenLink         = errors.New("broken symbolic link")
	ErrSymlinkLoop        = errors.New("too many levels of symbolic links")
	ErrIsRoot             = errors.New("cannot remove root directory")
	ErrParentNotFound     = errors.New("parent directory not found")
	ErrParentNotDirectory = errors.New("parent is not a directory")
)

// OpError records a failed filesystem operation, the path that triggered it
// and the underlying failure kind.
type OpError struct {
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// opErr wraps err for op/path unless it is nil or already an *OpError.
func opErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}
	return &OpError{Op: op, Path: path, Err: err}
}
