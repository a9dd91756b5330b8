package crawler

import (
	"fmt"
	"log/slog"

	"github.com/sematext/imap-email-extractor/internal/filter"
	"github.com/sematext/imap-email-extractor/internal/mailbox"
)

// DefaultBatchSize is the number of messages fetched per window.
const DefaultBatchSize = 200

// Mode tells how a Reader selects messages.
type Mode int

const (
	// Paginated walks every message in windows of sequence numbers.
	Paginated Mode = iota
	// Searched reads the result of a server-side search.
	Searched
)

func (m Mode) String() string {
	if m == Searched {
		return "searched"
	}
	return "paginated"
}

// Reader hands out the messages of one open folder in ascending order
// while keeping at most one batch of headers in memory.
type Reader struct {
	session   mailbox.Session
	folder    *OpenFolder
	predicate *filter.Predicate
	batchSize uint32
	log       *slog.Logger

	batch      []*mailbox.Message
	pos        int
	batchIndex int
	next       uint32 // first sequence number of the next window
	searched   bool
}

// NewReader reads folder through session. A nil predicate pages through
// all messages; otherwise the predicate's search result is read as a
// single batch.
func NewReader(session mailbox.Session, folder *OpenFolder, predicate *filter.Predicate, batchSize int, logger *slog.Logger) *Reader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		session:    session,
		folder:     folder,
		predicate:  predicate,
		batchSize:  uint32(batchSize),
		log:        logger,
		batchIndex: -1,
		next:       1,
	}
}

func (r *Reader) Folder() string {
	return r.folder.Path
}

func (r *Reader) Mode() Mode {
	if r.predicate == nil {
		return Paginated
	}
	return Searched
}

// BatchIndex is the zero-based index of the current batch, -1 before the
// first fetch.
func (r *Reader) BatchIndex() int {
	return r.batchIndex
}

// HasNext reports whether Next will return a message, fetching the next
// batch from the server when the current one is used up. Fetch errors are
// returned as is; the reader does not retry.
func (r *Reader) HasNext() (bool, error) {
	if r.pos < len(r.batch) {
		return true, nil
	}
	if r.Mode() == Searched {
		return r.search()
	}
	return r.page()
}

// Next returns the next buffered message, or nil when HasNext has not
// reported one.
func (r *Reader) Next() *mailbox.Message {
	if r.pos >= len(r.batch) {
		return nil
	}
	m := r.batch[r.pos]
	r.pos++
	return m
}

func (r *Reader) page() (bool, error) {
	total := r.folder.Status.Messages
	for r.next <= total {
		from := r.next
		to := total
		if to-from >= r.batchSize {
			to = from + r.batchSize - 1
		}

		r.release()
		msgs, err := r.session.FetchRange(from, to)
		if err != nil {
			return false, fmt.Errorf("%w: %q messages %d:%d: %w", ErrMessageFetch, r.folder.Path, from, to, err)
		}
		r.next = to + 1
		r.load(msgs)

		r.log.Debug("Fetched batch", "folder", r.folder.Path, "batch", r.batchIndex, "from", from, "to", to, "count", len(msgs))
		if len(msgs) > 0 {
			return true, nil
		}
	}
	r.release()
	return false, nil
}

func (r *Reader) search() (bool, error) {
	if r.searched {
		r.release()
		return false, nil
	}
	r.searched = true

	uids, err := r.session.Search(r.predicate.Criteria())
	if err != nil {
		return false, fmt.Errorf("%w: %q search: %w", ErrMessageFetch, r.folder.Path, err)
	}
	if len(uids) == 0 {
		r.log.Debug("Search matched nothing", "folder", r.folder.Path)
		return false, nil
	}

	msgs, err := r.session.FetchUIDs(uids)
	if err != nil {
		return false, fmt.Errorf("%w: %q %d searched messages: %w", ErrMessageFetch, r.folder.Path, len(uids), err)
	}

	kept := msgs[:0]
	for _, m := range msgs {
		if r.predicate.Match(m) {
			kept = append(kept, m)
		}
	}
	r.load(kept)

	r.log.Debug("Fetched search result", "folder", r.folder.Path, "found", len(uids), "kept", len(kept))
	return len(kept) > 0, nil
}

func (r *Reader) load(msgs []*mailbox.Message) {
	for _, m := range msgs {
		m.UIDValidity = r.folder.Status.UIDValidity
	}
	r.batch = msgs
	r.pos = 0
	r.batchIndex++
}

// release drops the current batch, invalidating its messages.
func (r *Reader) release() {
	for _, m := range r.batch {
		m.Invalidate()
	}
	r.batch = nil
	r.pos = 0
}
