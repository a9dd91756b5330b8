package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sematext/imap-email-extractor/internal/crawler"
)

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List the folders a crawl would read, with their message counts",
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return bindFlags(cmd.Flags(), map[string]string{
			"include": "crawl.include",
			"exclude": "crawl.exclude",
		})
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		dialer, err := newDialer(ctx, cfg.IMAP, nil)
		if err != nil {
			return err
		}
		policy, err := crawler.NewFolderPolicy(cfg.Crawl.Include, cfg.Crawl.Exclude)
		if err != nil {
			return err
		}

		session, err := dialer.Dial(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", crawler.ErrConnection, err)
		}
		defer func() { _ = session.Logout() }()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FOLDER\tMESSAGES\tUIDVALIDITY")

		t := crawler.NewTraverser(session, policy, nil)
		defer t.Close()
		for ctx.Err() == nil {
			f, err := t.Next()
			if err != nil {
				fmt.Fprintf(w, "%v\t-\t-\n", err)
				continue
			}
			if f == nil {
				break
			}
			fmt.Fprintf(w, "%s\t%d\t%d\n", f.Path, f.Status.Messages, f.Status.UIDValidity)
		}
		return w.Flush()
	},
}

func init() {
	addFolderFlags(foldersCmd.Flags())
}
