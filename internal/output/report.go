package output

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	gomail "gopkg.in/gomail.v2"
)

// ReportConfig holds the SMTP settings used to mail the run summary.
type ReportConfig struct {
	Server   string
	Port     int
	Security string // ssl, starttls or none
	Username string
	Password string
	From     string
	To       []string
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Counter is one named number shown in the summary.
type Counter struct {
	Name  string
	Value int
}

// Summary describes a finished run.
type Summary struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Counters []Counter
	Err      error
}

// Report is a Sink that tallies records per category and mails a summary
// once the run is over.
type Report struct {
	cfg    ReportConfig
	sender mailSender
	log    *slog.Logger

	records   map[string]int
	addresses map[string]map[string]struct{}
}

// NewReport prepares a report sent through the configured SMTP server.
func NewReport(cfg ReportConfig, logger *slog.Logger) *Report {
	dialer := gomail.NewDialer(cfg.Server, cfg.Port, cfg.Username, cfg.Password)
	switch strings.ToLower(cfg.Security) {
	case "ssl", "tls":
		dialer.SSL = true
	case "starttls":
		dialer.TLSConfig = &tls.Config{ServerName: cfg.Server}
	}
	return newReport(cfg, dialer, logger)
}

func newReport(cfg ReportConfig, sender mailSender, logger *slog.Logger) *Report {
	if logger == nil {
		logger = slog.Default()
	}
	return &Report{
		cfg:       cfg,
		sender:    sender,
		log:       logger,
		records:   make(map[string]int),
		addresses: make(map[string]map[string]struct{}),
	}
}

func (r *Report) Emit(_ context.Context, records []Record) error {
	for _, rec := range records {
		r.records[rec.Category]++
		seen := r.addresses[rec.Category]
		if seen == nil {
			seen = make(map[string]struct{})
			r.addresses[rec.Category] = seen
		}
		seen[rec.Address] = struct{}{}
	}
	return nil
}

func (r *Report) Close() error {
	return nil
}

// Send mails the summary to the configured recipients.
func (r *Report) Send(s Summary) error {
	if len(r.cfg.To) == 0 {
		return fmt.Errorf("no report recipients configured")
	}

	from := r.cfg.From
	if from == "" {
		from = r.cfg.Username
	}

	status := "completed"
	if s.Err != nil {
		status = "failed"
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", r.cfg.To...)
	msg.SetHeader("Subject", fmt.Sprintf("[imap-email-extractor] run %s %s", s.RunID, status))
	msg.SetBody("text/plain", r.body(s))

	if err := r.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}

	r.log.Info("Sent run report", "run_id", s.RunID, "recipients", len(r.cfg.To))
	return nil
}

func (r *Report) body(s Summary) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Run:      %s\n", s.RunID)
	fmt.Fprintf(&sb, "Started:  %s\n", s.Started.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Finished: %s (%s)\n", s.Finished.Format(time.RFC3339), s.Finished.Sub(s.Started).Round(time.Second))
	if s.Err != nil {
		fmt.Fprintf(&sb, "Error:    %v\n", s.Err)
	}

	sb.WriteString("\n")
	for _, c := range s.Counters {
		fmt.Fprintf(&sb, "%-12s %d\n", c.Name+":", c.Value)
	}

	categories := make([]string, 0, len(r.records))
	for c := range r.records {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	sb.WriteString("\nRecords per category:\n")
	if len(categories) == 0 {
		sb.WriteString("  none\n")
	}
	for _, c := range categories {
		fmt.Fprintf(&sb, "  %s: %d records, %d addresses\n", c, r.records[c], len(r.addresses[c]))
	}

	return sb.String()
}
