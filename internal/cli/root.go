package cli

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Nano112/db-clone-tool/internal/config"
	"github.com/Nano112/db-clone-tool/internal/log"
	"github.com/Nano112/db-clone-tool/internal/postgres"
	"github.com/Nano112/db-clone-tool/internal/tui"
)

// Options holds values of global CLI flags.
// All subcommands read from here after flag parsing.
type Options struct {
	Profile      string
	ProfilesFile string
	Debug        bool
	Verbose      bool
}

var opts = &Options{}

// RootCmd is the main entry point invoked from cmd/dbclone. A bare invocation
// starts the interactive UI; automation uses the subcommands.
var RootCmd = &cobra.Command{
	Use:   "dbclone",
	Short: "Clone a PostgreSQL database via pg_dump/pg_restore",
	Long: `dbclone copies one PostgreSQL database into another: pg_dump from the
source, pg_restore into the target, sequence realignment and a final
verification. Connections come from PROD_DB_*/DB_* environment variables,
an .env file or a saved profile.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Setup(opts.Debug, opts.Verbose)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// the TUI owns the terminal, so slog moves to a file for the session
		logPath := filepath.Join(os.TempDir(), "dbclone.log")
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			defer func() { _ = f.Close() }()
			log.SetupWriter(f, opts.Debug, opts.Verbose)
		}

		settings, err := loadSettings()
		if err != nil {
			return err
		}
		return tui.Run(cmd.Context(), settings)
	},
}

// Execute parses flags and runs the root command.
func Execute() error { return RootCmd.Execute() }

func init() {
	pf := RootCmd.PersistentFlags()
	pf.StringVar(&opts.Profile, "profile", "", "Named pair from the profiles file")
	pf.StringVar(&opts.ProfilesFile, "profiles-file", "", "Profiles file path (default ~/.config/dbclone/profiles.yaml)")
	pf.BoolVar(&opts.Debug, "debug", false, "Enable debug trace output")
	pf.BoolVar(&opts.Verbose, "verbose", false, "Verbose output")

	RootCmd.AddCommand(cloneCmd, checkCmd, profilesCmd)
}

// loadSettings builds the run configuration in layers: .env discovery, then
// the environment, then the optional profile for whatever is still empty,
// then defaults.
func loadSettings() (*config.Settings, error) {
	loaded, err := config.LoadEnvFile()
	if err != nil {
		return nil, err
	}
	if loaded != "" {
		slog.Debug("env file loaded", "path", loaded)
	}

	s := config.FromEnv()

	if opts.Profile != "" {
		path := opts.ProfilesFile
		if path == "" {
			if path, err = config.DefaultProfilesPath(); err != nil {
				return nil, err
			}
		}
		pf, err := config.LoadProfiles(path)
		if err != nil {
			return nil, fmt.Errorf("profiles: %w", err)
		}
		pair, err := pf.Lookup(opts.Profile)
		if err != nil {
			return nil, err
		}
		s.Apply(pair)
		slog.Debug("profile applied", "name", opts.Profile, "path", path)
	}

	s.Normalize()
	return &s, nil
}

// promptMissingPasswords asks for a password when an endpoint is complete
// except for it. Endpoints missing more than the password fall through to
// Validate, which names the first absent field.
func promptMissingPasswords(s *config.Settings) error {
	for _, ep := range []struct {
		name string
		p    *postgres.Profile
	}{
		{"source", &s.Source},
		{"target", &s.Target},
	} {
		if ep.p.Password != "" || ep.p.Host == "" || ep.p.Database == "" || ep.p.Username == "" {
			continue
		}
		pw, err := readPassword(fmt.Sprintf("%s password (%s): ", ep.name, ep.p.Redacted()))
		if err != nil {
			return err
		}
		ep.p.Password = pw
	}
	return nil
}

// readPassword reads without echo on a terminal and falls back to a plain
// line read when stdin is a pipe.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
