package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"golang.org/x/oauth2"
)

const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultReadTimeout    = 60 * time.Second
)

// DialConfig holds everything needed to open an IMAP session.
type DialConfig struct {
	Server   string
	Port     int
	Security string // ssl, starttls or none
	Username string
	Password string

	// TokenSource switches authentication to OAUTHBEARER when set.
	TokenSource oauth2.TokenSource

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// IMAPDialer opens go-imap backed sessions.
type IMAPDialer struct {
	cfg DialConfig
	log *slog.Logger
}

// NewDialer returns a Dialer for cfg. Zero timeouts fall back to the defaults.
func NewDialer(cfg DialConfig, logger *slog.Logger) *IMAPDialer {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IMAPDialer{cfg: cfg, log: logger}
}

// Dial connects, upgrades to TLS as configured and authenticates.
func (d *IMAPDialer) Dial(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	address := net.JoinHostPort(d.cfg.Server, strconv.Itoa(d.cfg.Port))
	dialer := &net.Dialer{Timeout: d.cfg.ConnectTimeout}
	tlsConfig := &tls.Config{
		ServerName: d.cfg.Server, // ensures correct certificate validation
	}

	var (
		c   *client.Client
		err error
	)
	switch strings.ToLower(d.cfg.Security) {
	case "ssl", "tls", "":
		c, err = client.DialWithDialerTLS(dialer, address, tlsConfig)
	default:
		c, err = client.DialWithDialer(dialer, address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server %s: %w", address, err)
	}

	c.Timeout = d.cfg.ReadTimeout

	if strings.EqualFold(d.cfg.Security, "starttls") {
		if err := c.StartTLS(tlsConfig); err != nil {
			_ = c.Logout()
			return nil, fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if err := d.authenticate(c); err != nil {
		_ = c.Logout() // clean up if login fails
		return nil, err
	}

	d.log.Info("Connected to mailbox", "server", d.cfg.Server, "user", d.cfg.Username)
	return &imapSession{c: c, log: d.log}, nil
}

func (d *IMAPDialer) authenticate(c *client.Client) error {
	if d.cfg.TokenSource == nil {
		if err := c.Login(d.cfg.Username, d.cfg.Password); err != nil {
			return fmt.Errorf("failed to login: %w", err)
		}
		return nil
	}

	// the token source refreshes expired tokens, so every reconnect gets a valid one
	token, err := d.cfg.TokenSource.Token()
	if err != nil {
		return fmt.Errorf("failed to obtain oauth2 token: %w", err)
	}

	auth := sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
		Username: d.cfg.Username,
		Token:    token.AccessToken,
		Host:     d.cfg.Server,
		Port:     d.cfg.Port,
	})
	if err := c.Authenticate(auth); err != nil {
		return fmt.Errorf("failed to authenticate with oauth2 token: %w", err)
	}
	return nil
}

var _ Dialer = (*IMAPDialer)(nil)
