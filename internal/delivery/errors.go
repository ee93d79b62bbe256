package delivery

import "fmt"

// DuplicateOutputError reports a scene whose output path is already taken by
// another scene of the same run, typically a product present both as a
// directory and as an archive.
type DuplicateOutputError struct {
	Output string
	Root   string
	First  string
}

func (e *DuplicateOutputError) Error() string {
	return fmt.Sprintf("output %s already produced by scene at %s (skipped %s)", e.Output, e.First, e.Root)
}
