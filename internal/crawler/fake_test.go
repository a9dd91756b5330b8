package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"

	"github.com/sematext/imap-email-extractor/internal/mailbox"
	"github.com/sematext/imap-email-extractor/internal/output"
)

var errDead = errors.New("connection reset by peer")

type fakeMessage struct {
	uid     uint32
	from    string
	to      []string
	subject string
	body    string
	date    time.Time
	hit     bool // returned by Search
}

func (m fakeMessage) raw() []byte {
	return []byte("Subject: " + m.subject + "\r\nContent-Type: text/plain\r\n\r\n" + m.body + "\r\n")
}

type fakeFolder struct {
	path        string
	noselect    bool
	uidValidity uint32
	messages    []fakeMessage
}

// fakeStore is an in-memory mail store shared by every session dialed from
// it, so injected failures survive reconnects.
type fakeStore struct {
	mu sync.Mutex

	delim   string
	folders []*fakeFolder

	dials    int
	dialErrs int // fail the next dialErrs dials

	failBody map[uint32]int
	failList map[string]int
	failOpen map[string]int
	killOn   map[string]bool // failures that also drop the session

	onDial func(n int)

	opened   []string
	sessions []*fakeSession
}

func newStore(folders ...*fakeFolder) *fakeStore {
	return &fakeStore{
		delim:    "/",
		folders:  folders,
		failBody: map[uint32]int{},
		failList: map[string]int{},
		failOpen: map[string]int{},
		killOn:   map[string]bool{},
	}
}

func folder(path string, msgs ...fakeMessage) *fakeFolder {
	return &fakeFolder{path: path, uidValidity: 1, messages: msgs}
}

func (s *fakeStore) Dial(context.Context) (mailbox.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dialErrs > 0 {
		s.dialErrs--
		return nil, errors.New("dial tcp: connection refused")
	}
	s.dials++
	if s.onDial != nil {
		s.onDial(s.dials)
	}

	sess := &fakeSession{store: s}
	s.sessions = append(s.sessions, sess)
	return sess, nil
}

func (s *fakeStore) lookup(path string) *fakeFolder {
	for _, f := range s.folders {
		if f.path == path {
			return f
		}
	}
	return nil
}

func (s *fakeStore) hasChildren(path string) bool {
	for _, f := range s.folders {
		if strings.HasPrefix(f.path, path+s.delim) {
			return true
		}
	}
	return false
}

func (s *fakeStore) consume(m map[string]int, key string) bool {
	if m[key] > 0 {
		m[key]--
		return true
	}
	return false
}

type fakeSession struct {
	store     *fakeStore
	open      *fakeFolder
	dead      bool
	loggedOut bool
	ranges    [][2]uint32
	err       error // first invariant violation seen by this session
}

func (s *fakeSession) violate(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	if s.err == nil {
		s.err = err
	}
	return err
}

func (s *fakeSession) alive() error {
	if s.loggedOut {
		return s.violate("session used after logout")
	}
	if s.dead {
		return errDead
	}
	return nil
}

func (s *fakeSession) failure(kind string) error {
	if s.store.killOn[kind] {
		s.dead = true
	}
	return fmt.Errorf("%s: %w", kind, errDead)
}

func (s *fakeSession) List(parent mailbox.Folder) ([]mailbox.Folder, error) {
	if err := s.alive(); err != nil {
		return nil, err
	}
	if s.store.consume(s.store.failList, parent.Path) {
		return nil, s.failure("list")
	}

	var out []mailbox.Folder
	for _, f := range s.store.folders {
		name := f.path
		if parent.Path != "" {
			if !strings.HasPrefix(f.path, parent.Path+s.store.delim) {
				continue
			}
			name = strings.TrimPrefix(f.path, parent.Path+s.store.delim)
		}
		if strings.Contains(name, s.store.delim) {
			continue
		}
		out = append(out, mailbox.Folder{
			Path:          f.path,
			Delimiter:     s.store.delim,
			HoldsMessages: !f.noselect,
			HoldsChildren: s.store.hasChildren(f.path),
		})
	}
	return out, nil
}

func (s *fakeSession) Open(path string) (mailbox.Status, error) {
	if err := s.alive(); err != nil {
		return mailbox.Status{}, err
	}
	if s.open != nil {
		return mailbox.Status{}, s.violate("open %q while %q is still open", path, s.open.path)
	}
	if s.store.consume(s.store.failOpen, path) {
		return mailbox.Status{}, s.failure("open")
	}
	f := s.store.lookup(path)
	if f == nil || f.noselect {
		return mailbox.Status{}, fmt.Errorf("no such mailbox %q", path)
	}
	s.open = f
	s.store.opened = append(s.store.opened, path)
	return mailbox.Status{Messages: uint32(len(f.messages)), UIDValidity: f.uidValidity}, nil
}

func (s *fakeSession) CloseFolder() error {
	if err := s.alive(); err != nil {
		return err
	}
	s.open = nil
	return nil
}

func (s *fakeSession) header(seq int, m fakeMessage) *mailbox.Message {
	return &mailbox.Message{
		SeqNum:       uint32(seq),
		UID:          m.uid,
		MessageID:    fmt.Sprintf("<%d@%s>", m.uid, s.open.path),
		Subject:      m.subject,
		From:         []string{m.from},
		To:           m.to,
		InternalDate: m.date,
	}
}

func (s *fakeSession) FetchRange(from, to uint32) ([]*mailbox.Message, error) {
	if err := s.alive(); err != nil {
		return nil, err
	}
	if s.open == nil {
		return nil, s.violate("fetch without open folder")
	}
	s.ranges = append(s.ranges, [2]uint32{from, to})

	var out []*mailbox.Message
	for seq := from; seq <= to && int(seq) <= len(s.open.messages); seq++ {
		out = append(out, s.header(int(seq), s.open.messages[seq-1]))
	}
	return out, nil
}

func (s *fakeSession) Search(*imap.SearchCriteria) ([]uint32, error) {
	if err := s.alive(); err != nil {
		return nil, err
	}
	var uids []uint32
	for _, m := range s.open.messages {
		if m.hit {
			uids = append(uids, m.uid)
		}
	}
	return uids, nil
}

func (s *fakeSession) FetchUIDs(uids []uint32) ([]*mailbox.Message, error) {
	if err := s.alive(); err != nil {
		return nil, err
	}
	want := map[uint32]bool{}
	for _, u := range uids {
		want[u] = true
	}
	var out []*mailbox.Message
	for i, m := range s.open.messages {
		if want[m.uid] {
			out = append(out, s.header(i+1, m))
		}
	}
	return out, nil
}

func (s *fakeSession) FetchBody(uid uint32) ([]byte, error) {
	if err := s.alive(); err != nil {
		return nil, err
	}
	if s.store.failBody[uid] > 0 {
		s.store.failBody[uid]--
		return nil, s.failure("body")
	}
	for _, m := range s.open.messages {
		if m.uid == uid {
			return m.raw(), nil
		}
	}
	return nil, fmt.Errorf("no message with uid %d", uid)
}

func (s *fakeSession) Noop() error {
	return s.alive()
}

func (s *fakeSession) Logout() error {
	s.loggedOut = true
	s.open = nil
	return nil
}

// memorySink keeps emitted records in order. The first failures calls to
// Emit return err.
type memorySink struct {
	records  []output.Record
	err      error
	failures int
	calls    int
}

func (m *memorySink) Emit(_ context.Context, records []output.Record) error {
	m.calls++
	if m.calls <= m.failures {
		return m.err
	}
	m.records = append(m.records, records...)
	return nil
}

func (m *memorySink) Close() error { return nil }

// senders returns the From addresses in emit order.
func (m *memorySink) senders() []string {
	var out []string
	for _, r := range m.records {
		if r.Direction == output.From {
			out = append(out, r.Address)
		}
	}
	return out
}
