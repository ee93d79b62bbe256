package sentinel

import (
	"errors"
	"fmt"
)

var (
	ErrNotZip      = errors.New("not a zip archive")
	ErrUnsafeEntry = errors.New("entry escapes extraction directory")
)

// ArchiveError reports an unreadable, corrupt or unsafe product archive.
type ArchiveError struct {
	Archive string
	Entry   string
	Err     error
}

func (e *ArchiveError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("archive %s: entry %s: %v", e.Archive, e.Entry, e.Err)
	}
	return fmt.Sprintf("archive %s: %v", e.Archive, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// BandNotFoundError reports that no file under Root matches the naming
// convention for Band at Resolution.
type BandNotFoundError struct {
	Band       string
	Resolution string
	Root       string
	Pattern    string
}

func (e *BandNotFoundError) Error() string {
	return fmt.Sprintf("band %s at resolution %s not found under %s (pattern %s)", e.Band, e.Resolution, e.Root, e.Pattern)
}
