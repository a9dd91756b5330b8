package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sematext/imap-email-extractor/internal/classify"
	"github.com/sematext/imap-email-extractor/internal/config"
	"github.com/sematext/imap-email-extractor/internal/content"
	"github.com/sematext/imap-email-extractor/internal/crawler"
	"github.com/sematext/imap-email-extractor/internal/credential"
	"github.com/sematext/imap-email-extractor/internal/filter"
	"github.com/sematext/imap-email-extractor/internal/mailbox"
	"github.com/sematext/imap-email-extractor/internal/output"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the mailbox once and emit one record per address of every classified message",
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return bindFlags(cmd.Flags(), map[string]string{
			"include":    "crawl.include",
			"exclude":    "crawl.exclude",
			"since":      "crawl.since",
			"batch-size": "crawl.batch_size",
			"search":     "crawl.search",
		})
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runCrawl(ctx, cfg, cmd.OutOrStdout())
	},
}

func init() {
	addFolderFlags(crawlCmd.Flags())
	crawlCmd.Flags().String("since", "", "Only read messages received on or after this date (YYYY-MM-DD)")
	crawlCmd.Flags().Int("batch-size", crawler.DefaultBatchSize, "Messages fetched per batch when paging through a folder")
	crawlCmd.Flags().Bool("search", true, "Let the server search for the keywords instead of reading every message")
}

func addFolderFlags(flags *pflag.FlagSet) {
	flags.String("include", "", "Comma-separated regular expressions of folders to read")
	flags.String("exclude", "", "Comma-separated regular expressions of folders to skip")
}

// bindFlags binds the flags of the running command only, since several
// commands share keys.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind %s flag: %w", name, err)
		}
	}
	return nil
}

func runCrawl(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	runID := uuid.New()
	logger := slog.Default().With("run_id", runID.String())
	logger.Info("Starting crawl", "server", cfg.IMAP.Server, "user", cfg.IMAP.Username)

	dialer, err := newDialer(ctx, cfg.IMAP, logger)
	if err != nil {
		return err
	}
	policy, err := crawler.NewFolderPolicy(cfg.Crawl.Include, cfg.Crawl.Exclude)
	if err != nil {
		return err
	}
	keywords, err := classify.NewKeywordSet(cfg.Classify.A.Name, cfg.Classify.A.Keywords, cfg.Classify.B.Name, cfg.Classify.B.Keywords)
	if err != nil {
		return err
	}
	since, err := cfg.Crawl.SinceDate()
	if err != nil {
		return err
	}

	var predicate *filter.Predicate
	if cfg.Crawl.Search {
		predicate = filter.Build(since, keywords.A(), keywords.B(), logger)
	} else {
		predicate = filter.Build(since, nil, nil, logger)
	}

	sinks, report, err := openSinks(ctx, cfg.Output, runID, stdout, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Error("Failed to close outputs", "error", err)
		}
	}()

	opts := crawlerOptions(cfg.Crawl)
	opts.Dialer = dialer
	opts.Policy = policy
	opts.Predicate = predicate
	opts.Materializer = content.NewMaterializer(nil)
	opts.Keywords = keywords
	opts.Sink = sinks
	opts.Logger = logger

	c, err := crawler.New(opts)
	if err != nil {
		return err
	}

	started := time.Now()
	stats, runErr := c.Run(ctx)

	if report != nil {
		summary := output.Summary{
			RunID:    runID.String(),
			Started:  started,
			Finished: time.Now(),
			Counters: stats.Counters(),
			Err:      runErr,
		}
		if err := report.Send(summary); err != nil {
			logger.Error("Failed to send run report", "error", err)
		}
	}

	if errors.Is(runErr, context.Canceled) {
		logger.Info("Crawl interrupted")
		return nil
	}
	return runErr
}

// crawlerOptions carries the batch and retry settings over unchanged; a
// zero limit in the config means no retries.
func crawlerOptions(cfg config.CrawlConfig) crawler.Options {
	return crawler.Options{
		BatchSize:      cfg.BatchSize,
		MaxRetries:     cfg.MaxRetries,
		MaxReconnects:  cfg.MaxReconnects,
		ReconnectDelay: cfg.ReconnectDelay,
	}
}

func openSinks(ctx context.Context, cfg config.OutputConfig, runID uuid.UUID, stdout io.Writer, logger *slog.Logger) (output.Multi, *output.Report, error) {
	var sinks output.Multi
	if cfg.Text {
		sinks = append(sinks, output.NewTextSink(stdout))
	}

	if cfg.SQLite.Path != "" {
		store, err := output.NewSQLiteSink(ctx, cfg.SQLite.Path, runID)
		if err != nil {
			_ = sinks.Close()
			return nil, nil, err
		}
		logger.Info("Storing records", "path", cfg.SQLite.Path)
		sinks = append(sinks, store)
	}

	var report *output.Report
	if cfg.Report.Enabled {
		report = output.NewReport(output.ReportConfig{
			Server:   cfg.Report.Server,
			Port:     cfg.Report.Port,
			Security: cfg.Report.Security,
			Username: cfg.Report.Username,
			Password: cfg.Report.Password,
			From:     cfg.Report.From,
			To:       cfg.Report.To,
		}, logger)
		sinks = append(sinks, report)
	}

	return sinks, report, nil
}

// newDialer resolves the IMAP credentials. A password missing from the
// config is read from the system keyring.
func newDialer(ctx context.Context, cfg config.IMAPConfig, logger *slog.Logger) (*mailbox.IMAPDialer, error) {
	oauth := mailbox.OAuth2{
		AccessToken:  cfg.OAuth2.AccessToken,
		ClientID:     cfg.OAuth2.ClientID,
		ClientSecret: cfg.OAuth2.ClientSecret,
		RefreshToken: cfg.OAuth2.RefreshToken,
		TokenURL:     cfg.OAuth2.TokenURL,
	}

	password := cfg.Password
	if password == "" && cfg.KeyringKey != "" && !oauth.Enabled() {
		var err error
		password, err = credential.Get(cfg.KeyringKey)
		if err != nil {
			return nil, fmt.Errorf("IMAP password: %w", err)
		}
	}

	return mailbox.NewDialer(mailbox.DialConfig{
		Server:         cfg.Server,
		Port:           cfg.Port,
		Security:       cfg.Security,
		Username:       cfg.Username,
		Password:       password,
		TokenSource:    oauth.TokenSource(ctx),
		ConnectTimeout: cfg.Timeouts.Connect,
		ReadTimeout:    cfg.Timeouts.Read,
	}, logger), nil
}
