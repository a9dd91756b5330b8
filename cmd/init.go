package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sematext/imap-email-extractor/internal/credential"
)

const keyringKey = "imap"

// setup holds the answers given to the init prompts.
type setup struct {
	Protocol   string
	Server     string
	Port       string
	Security   string
	Username   string
	Password   string
	UseKeyring bool

	Include []string
	Exclude []string
	Since   string

	NameA     string
	KeywordsA []string
	NameB     string
	KeywordsB []string

	SQLitePath string
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively generate a config.yaml file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		configFile := "config.yaml"
		force, _ := cmd.Flags().GetBool("force")

		if _, err := os.Stat(configFile); err == nil && !force {
			fmt.Fprintln(cmd.OutOrStdout(), "config.yaml already exists. Use --force to overwrite.")
			return nil
		}

		s := askSetup(bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout())

		if s.UseKeyring {
			if err := credential.Set(keyringKey, s.Password); err != nil {
				return fmt.Errorf("failed to store password in keyring: %w", err)
			}
			s.Password = ""
		}

		if err := os.WriteFile(configFile, []byte(renderConfig(s)), 0o600); err != nil {
			return fmt.Errorf("failed to write config.yaml: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "\n✅ config.yaml created successfully.")
		return nil
	},
}

func init() {
	initCmd.Flags().Bool("force", false, "Overwrite an existing config.yaml")
}

func askSetup(r *bufio.Reader, w io.Writer) setup {
	var s setup

	fmt.Fprintln(w, "Let's set up your config.yaml!")

	fmt.Fprintln(w, "\n--- IMAP ---")
	s.Protocol = orDefault(prompt(r, w, "Protocol (imaps/imap) [imaps]: "), "imaps")
	s.Server = prompt(r, w, "IMAP server (e.g. imap.gmail.com): ")
	s.Port = prompt(r, w, "IMAP port (empty for the protocol default): ")
	s.Security = prompt(r, w, "IMAP security (ssl/starttls/none, empty for the protocol default): ")
	s.Username = prompt(r, w, "IMAP username: ")
	s.Password = prompt(r, w, "IMAP password: ")
	s.UseKeyring = strings.HasPrefix(strings.ToLower(prompt(r, w, "Store the password in the system keyring? (y/N): ")), "y")

	fmt.Fprintln(w, "\n--- FOLDERS ---")
	s.Include = promptMulti(r, w, "Folders to include, as regular expressions (comma-separated, empty for all): ")
	s.Exclude = promptMulti(r, w, "Folders to exclude, as regular expressions (comma-separated): ")
	s.Since = prompt(r, w, "Only messages since (YYYY-MM-DD, empty for all): ")

	fmt.Fprintln(w, "\n--- CATEGORIES ---")
	s.NameA = orDefault(prompt(r, w, "First category name [Solr]: "), "Solr")
	s.KeywordsA = promptMulti(r, w, "First category keywords (comma-separated): ")
	s.NameB = orDefault(prompt(r, w, "Second category name [ES]: "), "ES")
	s.KeywordsB = promptMulti(r, w, "Second category keywords (comma-separated): ")

	fmt.Fprintln(w, "\n--- OUTPUT ---")
	s.SQLitePath = prompt(r, w, "SQLite file to store records in (empty for none): ")

	return s
}

func renderConfig(s setup) string {
	var sb strings.Builder

	sb.WriteString("imap:\n")
	fmt.Fprintf(&sb, "  protocol: %s\n", s.Protocol)
	fmt.Fprintf(&sb, "  server: %s\n", s.Server)
	if s.Port != "" {
		fmt.Fprintf(&sb, "  port: %s\n", s.Port)
	}
	if s.Security != "" {
		fmt.Fprintf(&sb, "  security: %s\n", s.Security)
	}
	fmt.Fprintf(&sb, "  username: %q\n", s.Username)
	if s.UseKeyring {
		fmt.Fprintf(&sb, "  keyring_key: %s\n", keyringKey)
	} else {
		fmt.Fprintf(&sb, "  password: %q\n", s.Password)
	}

	sb.WriteString("\ncrawl:\n")
	writeList(&sb, "include", s.Include)
	writeList(&sb, "exclude", s.Exclude)
	if s.Since != "" {
		fmt.Fprintf(&sb, "  since: %q\n", s.Since)
	}

	sb.WriteString("\nclassify:\n")
	for _, c := range []struct {
		key      string
		name     string
		keywords []string
	}{{"a", s.NameA, s.KeywordsA}, {"b", s.NameB, s.KeywordsB}} {
		fmt.Fprintf(&sb, "  %s:\n", c.key)
		fmt.Fprintf(&sb, "    name: %s\n", c.name)
		if len(c.keywords) > 0 {
			sb.WriteString("    keywords:\n")
			sb.WriteString(yamlList("      - ", c.keywords))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\noutput:\n  text: true\n")
	if s.SQLitePath != "" {
		fmt.Fprintf(&sb, "  sqlite:\n    path: %q\n", s.SQLitePath)
	}

	return sb.String()
}

func writeList(sb *strings.Builder, key string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(sb, "  %s:\n", key)
	sb.WriteString(yamlList("    - ", values))
	sb.WriteString("\n")
}

func prompt(r *bufio.Reader, w io.Writer, label string) string {
	fmt.Fprint(w, label)
	text, _ := r.ReadString('\n')
	return strings.TrimSpace(text)
}

func promptMulti(r *bufio.Reader, w io.Writer, label string) []string {
	raw := prompt(r, w, label)
	parts := strings.Split(raw, ",")
	var cleaned []string
	for _, s := range parts {
		s = strings.TrimSpace(s)
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

// yamlList quotes each value, since folder patterns may contain YAML
// indicators.
func yamlList(prefix string, values []string) string {
	var lines []string
	for _, v := range values {
		lines = append(lines, fmt.Sprintf("%s%q", prefix, v))
	}
	return strings.Join(lines, "\n")
}
