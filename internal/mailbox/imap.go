package mailbox

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// imapSession implements Session on top of a go-imap client.
type imapSession struct {
	c    *client.Client
	open string
	log  *slog.Logger
}

var headerItems = []imap.FetchItem{
	imap.FetchEnvelope,
	imap.FetchUid,
	imap.FetchInternalDate,
	imap.FetchRFC822Size,
}

func (s *imapSession) List(parent Folder) ([]Folder, error) {
	pattern := "%"
	if parent.Path != "" {
		if parent.Delimiter == "" {
			// flat namespace, nothing can live below a named folder
			return nil, nil
		}
		pattern = parent.Path + parent.Delimiter + "%"
	}

	mailboxes := make(chan *imap.MailboxInfo, 32)
	done := make(chan error, 1)
	go func() {
		done <- s.c.List("", pattern, mailboxes)
	}()

	var folders []Folder
	for info := range mailboxes {
		if info.Name == parent.Path {
			continue
		}
		folders = append(folders, folderFromInfo(info))
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to list children of %q: %w", parent.Path, err)
	}

	s.log.Debug("Listed folders", "parent", parent.Path, "count", len(folders))
	return folders, nil
}

func (s *imapSession) Open(path string) (Status, error) {
	// EXAMINE: the crawl never needs write access
	status, err := s.c.Select(path, true)
	if err != nil {
		s.open = ""
		return Status{}, fmt.Errorf("failed to examine %q: %w", path, err)
	}
	s.open = path

	return Status{Messages: status.Messages, UIDValidity: status.UidValidity}, nil
}

func (s *imapSession) CloseFolder() error {
	if s.open == "" {
		return nil
	}
	path := s.open
	s.open = ""

	if err := s.c.Close(); err != nil {
		return fmt.Errorf("failed to close %q: %w", path, err)
	}
	return nil
}

func (s *imapSession) FetchRange(from, to uint32) ([]*Message, error) {
	if to < from {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddRange(from, to)

	messages := make(chan *imap.Message, to-from+1)
	if err := s.c.Fetch(seqset, headerItems, messages); err != nil {
		return nil, fmt.Errorf("failed to fetch messages %d:%d: %w", from, to, err)
	}

	return collect(messages), nil
}

func (s *imapSession) Search(criteria *imap.SearchCriteria) ([]uint32, error) {
	uids, err := s.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	return uids, nil
}

func (s *imapSession) FetchUIDs(uids []uint32) ([]*Message, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	messages := make(chan *imap.Message, len(uids))
	if err := s.c.UidFetch(seqset, headerItems, messages); err != nil {
		return nil, fmt.Errorf("failed to fetch %d messages by uid: %w", len(uids), err)
	}

	return collect(messages), nil
}

func (s *imapSession) FetchBody(uid uint32) ([]byte, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	// Peek so the crawl leaves \Seen untouched
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	if err := s.c.UidFetch(seqset, items, messages); err != nil {
		return nil, fmt.Errorf("failed to fetch body of uid %d: %w", uid, err)
	}

	msg := <-messages
	if msg == nil {
		return nil, fmt.Errorf("message uid %d not found", uid)
	}

	body := msg.GetBody(section)
	if body == nil {
		for _, literal := range msg.Body {
			body = literal
			break
		}
	}
	if body == nil {
		return nil, fmt.Errorf("no body returned for uid %d", uid)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body of uid %d: %w", uid, err)
	}
	return raw, nil
}

func (s *imapSession) Noop() error {
	return s.c.Noop()
}

func (s *imapSession) Logout() error {
	s.open = ""
	if err := s.c.Logout(); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	s.log.Info("Logged out from IMAP server")
	return nil
}

func folderFromInfo(info *imap.MailboxInfo) Folder {
	f := Folder{
		Path:          info.Name,
		Delimiter:     info.Delimiter,
		HoldsMessages: true,
		HoldsChildren: true,
	}
	for _, attr := range info.Attributes {
		switch {
		case strings.EqualFold(attr, imap.NoSelectAttr):
			f.HoldsMessages = false
		case strings.EqualFold(attr, imap.HasNoChildrenAttr), strings.EqualFold(attr, imap.NoInferiorsAttr):
			f.HoldsChildren = false
		}
	}
	return f
}

func collect(messages chan *imap.Message) []*Message {
	var out []*Message
	for msg := range messages {
		out = append(out, messageFromIMAP(msg))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeqNum < out[j].SeqNum })
	return out
}

func messageFromIMAP(msg *imap.Message) *Message {
	m := &Message{
		SeqNum:       msg.SeqNum,
		UID:          msg.Uid,
		InternalDate: msg.InternalDate,
		Size:         msg.Size,
	}
	if env := msg.Envelope; env != nil {
		m.MessageID = env.MessageId
		m.Subject = env.Subject
		m.Date = env.Date
		m.From = addresses(env.From)
		m.To = addresses(env.To)
		m.Cc = addresses(env.Cc)
		m.Bcc = addresses(env.Bcc)
	}
	return m
}

func addresses(list []*imap.Address) []string {
	var out []string
	for _, addr := range list {
		// group start/end markers carry no host
		if addr == nil || addr.MailboxName == "" || addr.HostName == "" {
			continue
		}
		out = append(out, addr.Address())
	}
	return out
}
