package filter

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sematext/imap-email-extractor/internal/mailbox"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// leaves flattens the OR tree into its subject and body terms.
func leaves(c *imap.SearchCriteria) (subjects, bodies []string) {
	if len(c.Or) > 0 {
		for _, pair := range c.Or {
			for _, side := range pair {
				s, b := leaves(side)
				subjects = append(subjects, s...)
				bodies = append(bodies, b...)
			}
		}
		return subjects, bodies
	}
	subjects = append(subjects, c.Header.Values("Subject")...)
	bodies = append(bodies, c.Body...)
	return subjects, bodies
}

func TestBuildAbsent(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Build(time.Time{}, nil, nil, discardLogger()))
	assert.Nil(t, Build(time.Time{}, []string{" "}, []string{""}, discardLogger()))
}

func TestBuildSinceOnly(t *testing.T) {
	t.Parallel()

	since := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	p := Build(since, nil, nil, discardLogger())
	require.NotNil(t, p)

	assert.Equal(t, since, p.Criteria().Since)
	assert.Empty(t, p.Criteria().Or)
	assert.Equal(t, since, p.Since())
}

func TestBuildKeywordsOnly(t *testing.T) {
	t.Parallel()

	p := Build(time.Time{}, []string{"solr", "lucene"}, []string{"elasticsearch"}, discardLogger())
	require.NotNil(t, p)

	c := p.Criteria()
	assert.True(t, c.Since.IsZero())
	require.Len(t, c.Or, 1)

	subjects, bodies := leaves(c)
	assert.ElementsMatch(t, []string{"solr", "lucene", "elasticsearch"}, subjects)
	assert.ElementsMatch(t, []string{"solr", "lucene", "elasticsearch"}, bodies)
}

func TestBuildCombinesWithAnd(t *testing.T) {
	t.Parallel()

	since := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	p := Build(since, []string{"solr"}, []string{"elasticsearch"}, discardLogger())
	require.NotNil(t, p)

	c := p.Criteria()
	assert.Equal(t, since, c.Since)
	require.Len(t, c.Or, 1)

	subjects, bodies := leaves(c)
	assert.ElementsMatch(t, []string{"solr", "elasticsearch"}, subjects)
	assert.ElementsMatch(t, []string{"solr", "elasticsearch"}, bodies)
}

func TestMatchReverifiesDate(t *testing.T) {
	t.Parallel()

	since := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	p := Build(since, nil, nil, discardLogger())
	require.NotNil(t, p)

	// same day, earlier hour: a date-only server comparison lets it through
	early := &mailbox.Message{InternalDate: since.Add(-time.Hour)}
	late := &mailbox.Message{InternalDate: since.Add(time.Hour)}
	exact := &mailbox.Message{InternalDate: since}
	sentOnly := &mailbox.Message{Date: since.Add(time.Minute)}

	assert.False(t, p.Match(early))
	assert.True(t, p.Match(late))
	assert.True(t, p.Match(exact))
	assert.True(t, p.Match(sentOnly))

	matched, seen := p.Progress()
	assert.Equal(t, 3, matched)
	assert.Equal(t, 4, seen)
}

func TestMatchWithoutDateAcceptsAll(t *testing.T) {
	t.Parallel()

	p := Build(time.Time{}, []string{"solr"}, []string{"es"}, discardLogger())
	require.NotNil(t, p)
	assert.True(t, p.Match(&mailbox.Message{}))
}
