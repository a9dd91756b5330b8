package cmd

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sematext/imap-email-extractor/internal/config"
)

func TestAskSetupDefaults(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"",
		"imap.example.com",
		"",
		"",
		"crawler@example.com",
		"secret",
		"n",
		"INBOX.*, Sent",
		"Trash",
		"2013-01-31",
		"",
		"solr, lucene",
		"",
		"elasticsearch",
		"records.db",
	}, "\n") + "\n"

	var out bytes.Buffer
	s := askSetup(bufio.NewReader(strings.NewReader(input)), &out)

	assert.Equal(t, "imaps", s.Protocol)
	assert.Equal(t, "imap.example.com", s.Server)
	assert.False(t, s.UseKeyring)
	assert.Equal(t, []string{"INBOX.*", "Sent"}, s.Include)
	assert.Equal(t, "Solr", s.NameA)
	assert.Equal(t, []string{"solr", "lucene"}, s.KeywordsA)
	assert.Equal(t, "ES", s.NameB)
	assert.Contains(t, out.String(), "--- CATEGORIES ---")
}

func TestRenderConfigLoadsAndValidates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    setup
	}{
		{
			name: "password",
			s: setup{
				Protocol: "imaps", Server: "imap.example.com", Username: "crawler@example.com", Password: "p: #1",
				Include: []string{"INBOX.*"}, Exclude: []string{"[Gmail]/Spam"}, Since: "2013-01-31",
				NameA: "Solr", KeywordsA: []string{"solr"}, NameB: "ES", KeywordsB: []string{"elasticsearch"},
				SQLitePath: "out/records.db",
			},
		},
		{
			name: "keyring",
			s: setup{
				Protocol: "imap", Server: "localhost", Port: "1143", Security: "starttls",
				Username: "crawler", UseKeyring: true,
				NameA: "Solr", NameB: "ES",
			},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			v := viper.New()
			config.SetDefaults(v)
			v.SetConfigType("yaml")
			require.NoError(t, v.ReadConfig(strings.NewReader(renderConfig(tc.s))))

			cfg, err := config.Load(v)
			require.NoError(t, err)
			require.NoError(t, config.NewValidator(cfg).Validate())

			assert.Equal(t, tc.s.Server, cfg.IMAP.Server)
			assert.Equal(t, tc.s.Username, cfg.IMAP.Username)
			if tc.s.UseKeyring {
				assert.Equal(t, keyringKey, cfg.IMAP.KeyringKey)
				assert.Empty(t, cfg.IMAP.Password)
				assert.Equal(t, 1143, cfg.IMAP.Port)
				assert.Equal(t, []string{"solr"}, cfg.Classify.A.Keywords, "default keywords apply")
			} else {
				assert.Equal(t, tc.s.Password, cfg.IMAP.Password)
				assert.Equal(t, tc.s.Exclude, cfg.Crawl.Exclude)
				assert.Equal(t, tc.s.SQLitePath, cfg.Output.SQLite.Path)
			}
		})
	}
}
