package mailbox

import (
	"fmt"
	"time"
)

// Folder is a node of the mail store's folder tree.
type Folder struct {
	Path          string
	Delimiter     string
	HoldsMessages bool
	HoldsChildren bool
}

// Root is the store's default folder. It only holds children.
var Root = Folder{Path: "", HoldsChildren: true}

// IsAncestorOf reports whether path lies somewhere below f.
func (f Folder) IsAncestorOf(path string) bool {
	if f.Path == "" {
		return path != ""
	}
	if f.Delimiter == "" {
		return false
	}
	prefix := f.Path + f.Delimiter
	return len(path) > len(prefix) && path[:len(prefix)] == prefix
}

// Status is what the server reports when a folder is opened.
type Status struct {
	Messages    uint32
	UIDValidity uint32
}

// ID identifies a message across sessions. UIDs are only comparable while
// the folder's UIDVALIDITY is unchanged.
type ID struct {
	UIDValidity uint32
	UID         uint32
}

func (id ID) String() string {
	return fmt.Sprintf("%d:%d", id.UIDValidity, id.UID)
}

// Message holds the header data fetched for one message. The body is
// fetched separately and on demand.
type Message struct {
	SeqNum       uint32
	UID          uint32
	UIDValidity  uint32
	MessageID    string
	Subject      string
	From         []string
	To           []string
	Cc           []string
	Bcc          []string
	Date         time.Time // sent date from the envelope
	InternalDate time.Time // received date
	Size         uint32

	invalidated bool
}

// ID returns the resume identifier of the message.
func (m *Message) ID() ID {
	return ID{UIDValidity: m.UIDValidity, UID: m.UID}
}

// EffectiveDate is the received date, falling back to the sent date.
func (m *Message) EffectiveDate() time.Time {
	if !m.InternalDate.IsZero() {
		return m.InternalDate
	}
	return m.Date
}

// Recipients returns To, Cc and Bcc addresses in that order.
func (m *Message) Recipients() []string {
	all := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	all = append(all, m.To...)
	all = append(all, m.Cc...)
	return append(all, m.Bcc...)
}

// Invalidate drops the cached header data. Identifiers are kept.
func (m *Message) Invalidate() {
	m.MessageID = ""
	m.Subject = ""
	m.From = nil
	m.To = nil
	m.Cc = nil
	m.Bcc = nil
	m.invalidated = true
}

// Invalidated reports whether Invalidate was called.
func (m *Message) Invalidated() bool {
	return m.invalidated
}
