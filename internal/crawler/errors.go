package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection means no usable session to the mail store could be
	// established.
	ErrConnection = errors.New("connection to mail store failed")

	ErrFolderList = errors.New("listing folder failed")
	ErrFolderOpen = errors.New("opening folder failed")

	// ErrFolderNotFound is returned by SeekTo when the target folder no
	// longer exists.
	ErrFolderNotFound = errors.New("folder not found")

	ErrMessageFetch      = errors.New("fetching message failed")
	ErrContentExtraction = errors.New("extracting message content failed")

	// ErrUnsupportedMutation is returned when crawl state is updated in a
	// way the cursor does not allow.
	ErrUnsupportedMutation = errors.New("unsupported crawl state mutation")

	errNoSuchFolder = errors.New("not listed by the server")
)

// FolderError is a traversal failure tied to one folder. It matches both
// its Kind and the underlying store error with errors.Is.
type FolderError struct {
	Kind error
	Path string
	Err  error
}

func (e *FolderError) Error() string {
	return fmt.Sprintf("%v: %q: %v", e.Kind, e.Path, e.Err)
}

func (e *FolderError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
