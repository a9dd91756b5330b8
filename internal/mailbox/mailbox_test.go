package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolderIsAncestorOf(t *testing.T) {
	t.Parallel()

	work := Folder{Path: "Work", Delimiter: "/"}

	assert.True(t, Root.IsAncestorOf("INBOX"))
	assert.False(t, Root.IsAncestorOf(""))
	assert.True(t, work.IsAncestorOf("Work/Clients"))
	assert.True(t, work.IsAncestorOf("Work/Clients/Acme"))
	assert.False(t, work.IsAncestorOf("Work"))
	assert.False(t, work.IsAncestorOf("Workshop/Notes"))
	assert.False(t, Folder{Path: "Work"}.IsAncestorOf("Work/Clients"))
}

func TestFolderFromInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		attrs        []string
		wantMessages bool
		wantChildren bool
	}{
		{name: "plain", attrs: nil, wantMessages: true, wantChildren: true},
		{name: "noselect", attrs: []string{`\NoSelect`}, wantMessages: false, wantChildren: true},
		{name: "leaf", attrs: []string{imap.HasNoChildrenAttr}, wantMessages: true, wantChildren: false},
		{name: "noinferiors", attrs: []string{imap.NoInferiorsAttr}, wantMessages: true, wantChildren: false},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := folderFromInfo(&imap.MailboxInfo{Name: "A/B", Delimiter: "/", Attributes: tc.attrs})
			assert.Equal(t, "A/B", f.Path)
			assert.Equal(t, "/", f.Delimiter)
			assert.Equal(t, tc.wantMessages, f.HoldsMessages)
			assert.Equal(t, tc.wantChildren, f.HoldsChildren)
		})
	}
}

func TestMessageFromIMAP(t *testing.T) {
	t.Parallel()

	sent := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := &imap.Message{
		SeqNum: 4,
		Uid:    42,
		Envelope: &imap.Envelope{
			Date:      sent,
			Subject:   "Solr vs ES",
			MessageId: "<abc@example.com>",
			From:      []*imap.Address{{MailboxName: "alice", HostName: "example.com"}},
			To:        []*imap.Address{{MailboxName: "bob", HostName: "example.com"}, nil},
			Cc:        []*imap.Address{{MailboxName: "carol", HostName: "example.com"}},
		},
	}

	m := messageFromIMAP(msg)
	assert.Equal(t, uint32(42), m.UID)
	assert.Equal(t, []string{"alice@example.com"}, m.From)
	assert.Equal(t, []string{"bob@example.com", "carol@example.com"}, m.Recipients())
	assert.Equal(t, sent, m.EffectiveDate())

	received := sent.Add(time.Hour)
	m.InternalDate = received
	assert.Equal(t, received, m.EffectiveDate())
}

func TestMessageInvalidateKeepsIdentity(t *testing.T) {
	t.Parallel()

	m := &Message{UID: 7, UIDValidity: 3, Subject: "hello", From: []string{"a@b.c"}}
	m.Invalidate()

	assert.True(t, m.Invalidated())
	assert.Empty(t, m.Subject)
	assert.Nil(t, m.From)
	assert.Equal(t, ID{UIDValidity: 3, UID: 7}, m.ID())
}

func TestOAuth2TokenSource(t *testing.T) {
	t.Parallel()

	assert.Nil(t, OAuth2{}.TokenSource(context.Background()))

	ts := OAuth2{AccessToken: "secret"}.TokenSource(context.Background())
	require.NotNil(t, ts)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "secret", tok.AccessToken)
}
