// Package crawler walks a mail store folder by folder, classifies every
// message and recovers from dropped connections by resuming where it left
// off.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sematext/imap-email-extractor/internal/classify"
	"github.com/sematext/imap-email-extractor/internal/content"
	"github.com/sematext/imap-email-extractor/internal/filter"
	"github.com/sematext/imap-email-extractor/internal/mailbox"
	"github.com/sematext/imap-email-extractor/internal/output"
)

const (
	DefaultMaxRetries     = 3
	DefaultMaxReconnects  = 5
	DefaultReconnectDelay = 10 * time.Second

	maxReconnectDelay = 5 * time.Minute
)

// Options configures a Crawler. Dialer, Keywords and Sink are required.
type Options struct {
	Dialer       mailbox.Dialer
	Policy       *FolderPolicy
	Predicate    *filter.Predicate
	Materializer *content.Materializer
	Keywords     classify.KeywordSet
	Sink         output.Sink

	BatchSize int

	// MaxRetries is how often one message may fail before it is skipped.
	MaxRetries int

	// MaxReconnects is how many consecutive failed dials end the run.
	MaxReconnects int

	// ReconnectDelay is multiplied by the attempt number between dials.
	ReconnectDelay time.Duration

	Logger *slog.Logger
}

// Stats counts what a run did.
type Stats struct {
	Folders    int
	Seen       int
	Classified int
	Dropped    int
	Skipped    int
	Emitted    int
	Reconnects int
}

// Counters lists the stats in report order.
func (s Stats) Counters() []output.Counter {
	return []output.Counter{
		{Name: "folders", Value: s.Folders},
		{Name: "seen", Value: s.Seen},
		{Name: "classified", Value: s.Classified},
		{Name: "dropped", Value: s.Dropped},
		{Name: "skipped", Value: s.Skipped},
		{Name: "records", Value: s.Emitted},
		{Name: "reconnects", Value: s.Reconnects},
	}
}

// Crawler drives one crawl at a time.
type Crawler struct {
	opts Options
	log  *slog.Logger
}

// New validates opts and fills in defaults. Zero retry limits are kept:
// MaxRetries 0 skips a failing message at once and MaxReconnects 0 ends
// the run when the connection is lost.
func New(opts Options) (*Crawler, error) {
	if opts.Dialer == nil {
		return nil, errors.New("crawler needs a dialer")
	}
	if opts.Sink == nil {
		return nil, errors.New("crawler needs an output sink")
	}
	if len(opts.Keywords.A()) == 0 || len(opts.Keywords.B()) == 0 {
		return nil, errors.New("crawler needs keywords for both categories")
	}
	if opts.Materializer == nil {
		opts.Materializer = content.NewMaterializer(nil)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.MaxReconnects < 0 {
		opts.MaxReconnects = DefaultMaxReconnects
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Crawler{opts: opts, log: opts.Logger}, nil
}

// Run crawls the whole store once. It returns ErrConnection when the store
// cannot be reached and the context's error when ctx ends first. Failures of single messages or
// folders are logged and recovered from.
func (c *Crawler) Run(ctx context.Context) (Stats, error) {
	r := &run{Crawler: c}
	defer r.shutdown()

	err := r.loop(ctx)

	c.log.Info("Crawl finished",
		"folders", r.stats.Folders,
		"seen", r.stats.Seen,
		"classified", r.stats.Classified,
		"dropped", r.stats.Dropped,
		"skipped", r.stats.Skipped,
		"records", r.stats.Emitted,
		"reconnects", r.stats.Reconnects,
		"error", err,
	)
	return r.stats, err
}

type state int

const (
	stateDisconnected state = iota
	stateConnected
	stateTraversing
	stateReading
	stateSuccess
	stateFailed
	stateRecovering
	stateDone
)

func (s state) String() string {
	switch s {
	case stateDisconnected:
		return "disconnected"
	case stateConnected:
		return "connected"
	case stateTraversing:
		return "traversing"
	case stateReading:
		return "reading"
	case stateSuccess:
		return "success"
	case stateFailed:
		return "failed"
	case stateRecovering:
		return "recovering"
	case stateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// run is the state of one Run call.
type run struct {
	*Crawler

	state     state
	session   mailbox.Session
	traverser *Traverser
	reader    *Reader
	cursor    Cursor
	stats     Stats

	// retries counts failures in the cursor's folder.
	retries int

	// failPath and failCount track traversal failures of one folder.
	failPath  string
	failCount int

	current *mailbox.Message
	failure error

	// seek is the folder to return to after reconnecting; empty means
	// continue with the folders not yet visited.
	seek string
}

func (r *run) loop(ctx context.Context) error {
	for r.state != stateDone {
		if err := ctx.Err(); err != nil {
			r.log.Info("Crawl cancelled", "state", r.state.String(), "cursor", r.cursor.String())
			return err
		}

		var err error
		switch r.state {
		case stateDisconnected:
			err = r.connect(ctx)
		case stateConnected:
			r.traverser = NewTraverser(r.session, r.opts.Policy, r.log)
			r.state = stateTraversing
		case stateTraversing:
			r.nextFolder()
		case stateReading:
			err = r.read(ctx)
		case stateSuccess:
			err = r.advance()
		case stateFailed:
			err = r.handleFailure()
		case stateRecovering:
			err = r.reestablish(ctx)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *run) connect(ctx context.Context) error {
	r.log.Info("Connecting to mail store")
	session, err := r.opts.Dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	r.session = session
	r.state = stateConnected
	return nil
}

func (r *run) nextFolder() {
	folder, err := r.traverser.Next()
	if err != nil {
		r.fail(nil, err)
		return
	}
	if folder == nil {
		r.log.Info("No more folders to crawl")
		r.state = stateDone
		return
	}

	r.reader = NewReader(r.session, folder, r.opts.Predicate, r.opts.BatchSize, r.log)
	r.state = stateReading

	if r.cursor.Enter(folder.Path) {
		r.retries = 0
		r.stats.Folders++
		r.log.Info("Reading folder", "folder", folder.Path, "messages", folder.Status.Messages, "mode", r.reader.Mode().String())
		return
	}
	r.resume(folder)
}

// resume positions the fresh reader right after the cursor's last message.
// The folder is read from the start when that message cannot be found.
func (r *run) resume(folder *OpenFolder) {
	last, ok := r.cursor.Last()
	switch {
	case !ok:
		r.log.Info("Resuming folder from the start", "folder", folder.Path)
		return
	case last.UIDValidity != folder.Status.UIDValidity:
		r.log.Warn("Folder UIDVALIDITY changed, reading it again", "folder", folder.Path, "last", last.String(), "uidvalidity", folder.Status.UIDValidity)
		r.cursor.Restart()
		return
	}

	for {
		ok, err := r.reader.HasNext()
		if err != nil {
			r.fail(nil, err)
			return
		}
		if !ok {
			break
		}
		if m := r.reader.Next(); m.ID() == last {
			r.log.Info("Resuming folder", "cursor", r.cursor.String())
			return
		}
	}

	r.log.Warn("Last handled message is gone, reading folder again", "cursor", r.cursor.String())
	r.cursor.Restart()
	r.reader = NewReader(r.session, folder, r.opts.Predicate, r.opts.BatchSize, r.log)
}

func (r *run) read(ctx context.Context) error {
	ok, err := r.reader.HasNext()
	if err != nil {
		r.fail(nil, err)
		return nil
	}
	if !ok {
		r.state = stateTraversing
		return nil
	}

	m := r.reader.Next()
	if err := r.process(ctx, m); err != nil {
		r.fail(m, err)
		return nil
	}
	r.current = m
	r.state = stateSuccess
	return nil
}

// process classifies one message and emits its records. Messages matching
// neither category are dropped.
func (r *run) process(ctx context.Context, m *mailbox.Message) error {
	r.stats.Seen++
	folder := r.reader.Folder()

	raw, err := r.session.FetchBody(m.UID)
	if err != nil {
		return fmt.Errorf("%w: %s in %q: %w", ErrMessageFetch, m.ID(), folder, err)
	}

	doc, body, err := r.opts.Materializer.MaterializeRaw(raw)
	if err != nil {
		return fmt.Errorf("%w: %s in %q: %w", ErrContentExtraction, m.ID(), folder, err)
	}
	for _, w := range doc.Warnings {
		r.log.Debug("Content decoding problem", "folder", folder, "uid", m.UID, "warning", w)
	}

	result := classify.Count(doc.Subject+" "+body, r.opts.Keywords)
	category := result.Decide()
	if category == classify.None {
		r.stats.Dropped++
		r.log.Debug("Message matches no category", "folder", folder, "uid", m.UID)
		return nil
	}
	r.stats.Classified++

	records := output.Records(m, folder, r.opts.Keywords.Name(category))
	if err := r.opts.Sink.Emit(ctx, records); err != nil {
		return fmt.Errorf("failed to emit records of %s in %q: %w", m.ID(), folder, err)
	}
	r.stats.Emitted += len(records)

	r.log.Debug("Message classified",
		"folder", folder,
		"uid", m.UID,
		"category", r.opts.Keywords.Name(category),
		"count_a", result.CountA,
		"count_b", result.CountB,
		"records", len(records),
	)
	return nil
}

func (r *run) advance() error {
	if err := r.cursor.Advance(r.reader.Folder(), r.current); err != nil {
		return err
	}
	r.current = nil
	r.state = stateReading
	return nil
}

func (r *run) fail(m *mailbox.Message, err error) {
	r.current = m
	r.failure = err
	r.state = stateFailed
}

func (r *run) handleFailure() error {
	var fe *FolderError
	if errors.As(r.failure, &fe) {
		r.handleFolderFailure(fe)
		return nil
	}

	r.retries++
	if r.retries <= r.opts.MaxRetries {
		r.log.Warn("Reading failed, reconnecting", "cursor", r.cursor.String(), "retry", r.retries, "error", r.failure)
		r.seek = r.cursor.Folder()
		r.state = stateRecovering
		return nil
	}

	if r.current == nil {
		// nothing to step over, the reader itself is broken
		r.log.Error("Giving up on folder", "folder", r.cursor.Folder(), "retries", r.retries, "error", r.failure)
		r.reader = nil
		r.continueAfterSkip("")
		return nil
	}

	r.log.Error("Skipping message", "folder", r.cursor.Folder(), "uid", r.current.UID, "message_id", r.current.MessageID, "retries", r.retries, "error", r.failure)
	r.stats.Skipped++
	if err := r.cursor.Advance(r.reader.Folder(), r.current); err != nil {
		return err
	}
	r.current = nil
	r.continueAfterSkip(r.cursor.Folder())
	return nil
}

// continueAfterSkip carries on with the same session when it still
// answers, or reconnects and returns to seek otherwise.
func (r *run) continueAfterSkip(seek string) {
	if err := r.session.Noop(); err != nil {
		r.log.Warn("Session lost while skipping", "error", err)
		r.seek = seek
		r.state = stateRecovering
		return
	}
	if r.reader != nil {
		r.state = stateReading
		return
	}
	r.state = stateTraversing
}

func (r *run) handleFolderFailure(fe *FolderError) {
	if err := r.session.Noop(); err == nil {
		r.log.Warn("Skipping folder", "folder", fe.Path, "error", fe)
		r.state = stateTraversing
		return
	}

	if fe.Path != r.failPath {
		r.failPath = fe.Path
		r.failCount = 0
	}
	r.failCount++

	r.seek = ""
	if r.failCount <= r.opts.MaxRetries {
		r.log.Warn("Folder failed and session lost, reconnecting", "folder", fe.Path, "retry", r.failCount, "error", fe)
		r.seek = fe.Path
	} else {
		r.log.Error("Giving up on folder", "folder", fe.Path, "retries", r.failCount, "error", fe)
	}
	r.state = stateRecovering
}

// reestablish replaces the session and rebuilds the traversal, either seeking
// back to r.seek or continuing with the folders left before the failure.
func (r *run) reestablish(ctx context.Context) error {
	snapshot := r.traverser.Remaining()
	r.reader = nil
	r.current = nil

	if err := r.reconnect(ctx); err != nil {
		return err
	}

	r.traverser = nil
	if r.seek != "" {
		t := NewTraverser(r.session, r.opts.Policy, r.log)
		if err := t.SeekTo(r.seek); err != nil {
			r.log.Warn("Failed to return to folder, continuing with remaining folders", "folder", r.seek, "error", err)
		} else {
			r.traverser = t
		}
	}
	if r.traverser == nil {
		r.traverser = NewTraverserFrom(r.session, r.opts.Policy, snapshot, r.log)
	}

	r.seek = ""
	r.state = stateTraversing
	return nil
}

// reconnect logs out the current session and dials a new one, waiting
// attempt × ReconnectDelay between tries.
func (r *run) reconnect(ctx context.Context) error {
	if r.session != nil {
		if err := r.session.Logout(); err != nil {
			r.log.Debug("Logout of failed session", "error", err)
		}
		r.session = nil
	}
	if r.opts.MaxReconnects == 0 {
		return fmt.Errorf("%w: connection lost and reconnecting is disabled", ErrConnection)
	}

	for attempt := 1; ; attempt++ {
		r.log.Info("Reconnecting to mail store", "attempt", attempt)
		session, err := r.opts.Dialer.Dial(ctx)
		if err == nil {
			r.session = session
			r.stats.Reconnects++
			return nil
		}

		r.log.Error("Failed to reconnect", "attempt", attempt, "error", err)
		if attempt >= r.opts.MaxReconnects {
			return fmt.Errorf("%w: giving up after %d attempts: %w", ErrConnection, attempt, err)
		}

		delay := time.Duration(attempt) * r.opts.ReconnectDelay
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (r *run) shutdown() {
	if r.traverser != nil && r.session != nil {
		r.traverser.Close()
	}
	if r.session != nil {
		if err := r.session.Logout(); err != nil {
			r.log.Warn("Failed to log out", "error", err)
		}
		r.session = nil
	}
}
