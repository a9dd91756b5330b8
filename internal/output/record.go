// Package output turns classified messages into per-address records and
// writes them out.
package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/sematext/imap-email-extractor/internal/mailbox"
)

// DateLayout is how record dates are written.
const DateLayout = "2006-01-02"

// Direction tells whether an address sent or received the message.
type Direction string

const (
	From Direction = "from"
	To   Direction = "to"
)

// Record ties one address of a classified message to its category.
type Record struct {
	Direction Direction
	Address   string
	Category  string
	Folder    string
	Date      time.Time
}

// String renders the record as "from <address> <category> <folder> at <date>".
func (r Record) String() string {
	return fmt.Sprintf("%s %s %s %s at %s", r.Direction, r.Address, r.Category, r.Folder, r.Date.Format(DateLayout))
}

// Records builds one record per sender and one per To, Cc and Bcc
// recipient of m. Addresses are lower-cased; empty ones are skipped.
func Records(m *mailbox.Message, folder, category string) []Record {
	date := m.EffectiveDate()
	recipients := m.Recipients()

	out := make([]Record, 0, len(m.From)+len(recipients))
	add := func(dir Direction, addrs []string) {
		for _, a := range addrs {
			a = strings.ToLower(strings.TrimSpace(a))
			if a == "" {
				continue
			}
			out = append(out, Record{Direction: dir, Address: a, Category: category, Folder: folder, Date: date})
		}
	}
	add(From, m.From)
	add(To, recipients)
	return out
}
