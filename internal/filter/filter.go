// Package filter builds the server-side search used to pre-select messages.
package filter

import (
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-imap"

	"github.com/sematext/imap-email-extractor/internal/mailbox"
)

const progressEvery = 500

// Predicate is a search the server evaluates, plus the client-side date
// check that makes up for servers comparing dates without a time of day.
type Predicate struct {
	criteria *imap.SearchCriteria
	since    time.Time

	matched int
	seen    int
	log     *slog.Logger
}

// Build returns nil when neither a date nor any keyword is given, meaning
// messages should be paged through instead of searched.
//
// Keywords of both categories are ORed together, each one matched against
// the subject and the body separately. A date restricts the result to
// messages received on or after it.
func Build(since time.Time, a, b []string, logger *slog.Logger) *Predicate {
	var terms []*imap.SearchCriteria
	for _, kw := range append(append([]string(nil), a...), b...) {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}

		subject := imap.NewSearchCriteria()
		subject.Header.Add("Subject", kw)
		body := imap.NewSearchCriteria()
		body.Body = []string{kw}

		terms = append(terms, subject, body)
	}

	if since.IsZero() && len(terms) == 0 {
		return nil
	}

	criteria := imap.NewSearchCriteria()
	if len(terms) > 0 {
		criteria = anyOf(terms)
	}
	if !since.IsZero() {
		// fields of one criteria are ANDed by the server
		criteria.Since = since
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Predicate{criteria: criteria, since: since, log: logger}
}

// anyOf folds terms into a balanced tree of binary ORs.
func anyOf(terms []*imap.SearchCriteria) *imap.SearchCriteria {
	if len(terms) == 1 {
		return terms[0]
	}
	mid := len(terms) / 2

	c := imap.NewSearchCriteria()
	c.Or = [][2]*imap.SearchCriteria{{anyOf(terms[:mid]), anyOf(terms[mid:])}}
	return c
}

// Criteria is the search sent to the server.
func (p *Predicate) Criteria() *imap.SearchCriteria {
	return p.criteria
}

// Since returns the date threshold, zero when none was given.
func (p *Predicate) Since() time.Time {
	return p.since
}

// Match re-checks a message the server reported as matching. Only the date
// condition is verified here; keyword counts are the classifier's job.
func (p *Predicate) Match(m *mailbox.Message) bool {
	p.seen++

	ok := p.since.IsZero() || !m.EffectiveDate().Before(p.since)
	if ok {
		p.matched++
	}

	if p.seen%progressEvery == 0 {
		p.log.Info("Search filter progress", "matched", p.matched, "seen", p.seen)
	}
	return ok
}

// Progress returns how many messages matched out of those checked so far.
func (p *Predicate) Progress() (matched, seen int) {
	return p.matched, p.seen
}
