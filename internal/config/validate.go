package config

import (
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"

	"github.com/sematext/imap-email-extractor/internal/classify"
	"github.com/sematext/imap-email-extractor/internal/crawler"
)

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

type Validator struct {
	cfg      *Config
	problems []string
}

func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// Validate checks the whole configuration and returns a *ValidationError
// when anything is wrong.
func (v *Validator) Validate() error {
	v.problems = nil

	v.validateIMAP()
	v.validateCrawl()
	v.validateClassify()
	v.validateOutput()

	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}

func (v *Validator) addError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	v.problems = append(v.problems, msg)
	slog.Debug("Config validation error", "error", msg)
}

var (
	protocols    = []string{"imap", "imaps"}
	securityKind = []string{"ssl", "tls", "starttls", "none"}
)

func (v *Validator) validateIMAP() {
	c := v.cfg.IMAP

	if !slices.Contains(protocols, c.Protocol) {
		v.addError("IMAP protocol must be one of: %s", strings.Join(protocols, ", "))
	}
	if c.Server == "" {
		v.addError("IMAP server is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		v.addError("IMAP port must be between 1 and 65535")
	}
	if !slices.Contains(securityKind, c.Security) {
		v.addError("IMAP security must be one of: %s", strings.Join(securityKind, ", "))
	}
	if c.Username == "" {
		v.addError("IMAP username is required")
	}

	oauth := c.OAuth2
	if c.Password == "" && c.KeyringKey == "" && oauth.AccessToken == "" && oauth.RefreshToken == "" {
		v.addError("IMAP password, keyring_key or oauth2 token is required")
	}
	if oauth.RefreshToken != "" && (oauth.ClientID == "" || oauth.TokenURL == "") {
		v.addError("IMAP oauth2 refresh_token needs client_id and token_url")
	}

	if c.Timeouts.Connect < 0 || c.Timeouts.Read < 0 {
		v.addError("IMAP timeouts must not be negative")
	}
}

func (v *Validator) validateCrawl() {
	c := v.cfg.Crawl

	if _, err := c.SinceDate(); err != nil {
		v.addError("%v", err)
	}
	if c.BatchSize <= 0 {
		v.addError("Crawl batch_size must be positive")
	}
	if c.MaxRetries < 0 || c.MaxReconnects < 0 || c.ReconnectDelay < 0 {
		v.addError("Crawl retry settings must not be negative")
	}
	if _, err := crawler.NewFolderPolicy(c.Include, c.Exclude); err != nil {
		v.addError("Crawl folder patterns: %v", err)
	}
}

func (v *Validator) validateClassify() {
	a, b := v.cfg.Classify.A, v.cfg.Classify.B

	if a.Name == "" || b.Name == "" {
		v.addError("Both classification categories need a name")
	} else if strings.EqualFold(a.Name, b.Name) {
		v.addError("Classification category names must differ")
	}

	if _, err := classify.NewKeywordSet(a.Name, a.Keywords, b.Name, b.Keywords); err != nil {
		v.addError("Classification keywords: %v", err)
	}
}

func (v *Validator) validateOutput() {
	o := v.cfg.Output

	if !o.Text && o.SQLite.Path == "" && !o.Report.Enabled {
		v.addError("At least one output (text, sqlite or report) must be enabled")
	}
	if !o.Report.Enabled {
		return
	}

	r := o.Report
	if r.Server == "" {
		v.addError("Report SMTP server is required")
	}
	if r.Port <= 0 || r.Port > 65535 {
		v.addError("Report SMTP port must be between 1 and 65535")
	}
	if !slices.Contains(securityKind, strings.ToLower(r.Security)) {
		v.addError("Report SMTP security must be one of: %s", strings.Join(securityKind, ", "))
	}
	if r.From == "" && r.Username == "" {
		v.addError("Report sender (from or username) is required")
	}
	if len(r.To) == 0 {
		v.addError("At least one report recipient is required")
	}
	for _, to := range r.To {
		if _, err := mail.ParseAddress(to); err != nil {
			v.addError("Invalid email format in report recipient: %s", to)
		}
	}
}
