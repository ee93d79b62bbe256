package raster

import (
	"errors"
	"fmt"
)

var (
	ErrNoBand = errors.New("raster has no readable band")
	ErrShape  = errors.New("grid shape does not match reference profile")
)

// IOError reports a failure to open, create or write the raster at Path.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("raster %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
