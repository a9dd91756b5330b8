package mailbox

import (
	"context"

	"github.com/emersion/go-imap"
)

// Session is one authenticated connection to a mail store. It is not safe
// for concurrent use and at most one folder is open at a time.
type Session interface {
	// List returns the direct children of parent in server order.
	List(parent Folder) ([]Folder, error)

	// Open opens path read-only, closing any previously open folder.
	Open(path string) (Status, error)

	// CloseFolder closes the open folder, if any.
	CloseFolder() error

	// FetchRange fetches headers for sequence numbers from..to inclusive.
	FetchRange(from, to uint32) ([]*Message, error)

	// Search runs a UID SEARCH in the open folder.
	Search(criteria *imap.SearchCriteria) ([]uint32, error)

	// FetchUIDs fetches headers for the given UIDs.
	FetchUIDs(uids []uint32) ([]*Message, error)

	// FetchBody returns the full raw message without setting \Seen.
	FetchBody(uid uint32) ([]byte, error)

	// Noop checks the connection is still usable.
	Noop() error

	// Logout ends the session and releases the connection.
	Logout() error
}

// Dialer opens new sessions. Every call yields a fresh connection.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}
