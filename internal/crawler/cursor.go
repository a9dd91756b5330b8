package crawler

import (
	"fmt"

	"github.com/sematext/imap-email-extractor/internal/mailbox"
)

// Cursor records how far the crawl got: the folder being read and the last
// message handled in it.
type Cursor struct {
	folder    string
	last      mailbox.ID
	messageID string
	set       bool
}

func (c *Cursor) Folder() string {
	return c.folder
}

// Last returns the identifier of the last handled message in the cursor's
// folder. ok is false when nothing was handled there yet.
func (c *Cursor) Last() (id mailbox.ID, ok bool) {
	return c.last, c.set
}

// Enter moves the cursor to folder and reports whether it changed. The
// last message is kept when folder is the cursor's folder already, which
// is the case when a folder is reopened after a failure.
func (c *Cursor) Enter(folder string) bool {
	if c.set && c.folder == folder {
		return false
	}
	changed := c.folder != folder
	c.folder = folder
	c.Restart()
	return changed
}

// Restart forgets the last message so the folder is read from the start.
func (c *Cursor) Restart() {
	c.last = mailbox.ID{}
	c.messageID = ""
	c.set = false
}

// Advance records m as handled. Messages must belong to the cursor's
// folder and arrive in ascending UID order within one UIDVALIDITY.
func (c *Cursor) Advance(folder string, m *mailbox.Message) error {
	if folder != c.folder {
		return fmt.Errorf("%w: message %s belongs to %q, cursor is in %q", ErrUnsupportedMutation, m.ID(), folder, c.folder)
	}
	id := m.ID()
	if c.set && id.UIDValidity == c.last.UIDValidity && id.UID <= c.last.UID {
		return fmt.Errorf("%w: message %s in %q is not after %s", ErrUnsupportedMutation, id, folder, c.last)
	}
	c.last = id
	c.messageID = m.MessageID
	c.set = true
	return nil
}

func (c *Cursor) String() string {
	if !c.set {
		return fmt.Sprintf("%s@start", c.folder)
	}
	if c.messageID != "" {
		return fmt.Sprintf("%s@%s(%s)", c.folder, c.last, c.messageID)
	}
	return fmt.Sprintf("%s@%s", c.folder, c.last)
}
