package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nano112/db-clone-tool/internal/postgres"
	"github.com/Nano112/db-clone-tool/internal/sshtunnel"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test connectivity to the source and target databases",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		if err := promptMissingPasswords(settings); err != nil {
			return err
		}
		if err := settings.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		source := settings.Source
		if settings.SSH.Enabled() {
			tun, port, err := sshtunnel.Open(ctx, settings.SSH.TunnelConfig(), source.Addr())
			if err != nil {
				return fmt.Errorf("ssh tunnel: %w", err)
			}
			defer func() { _ = tun.Close() }()
			source.Host = "127.0.0.1"
			source.Port = port
		}

		okSrc := checkEndpoint(ctx, "source", source)
		okTgt := checkEndpoint(ctx, "target", settings.Target)
		if !okSrc || !okTgt {
			return fmt.Errorf("connection check failed")
		}
		return nil
	},
}

// checkEndpoint prints one line per endpoint with server version and
// database size.
func checkEndpoint(ctx context.Context, role string, p postgres.Profile) bool {
	conn, err := postgres.Connect(ctx, p)
	if err != nil {
		fmt.Printf("✗ %s %s: %v\n", role, p.Redacted(), err)
		return false
	}
	defer func() { _ = conn.Close(ctx) }()

	version, err := postgres.ServerVersion(ctx, conn)
	if err != nil {
		fmt.Printf("✗ %s %s: %v\n", role, p.Redacted(), err)
		return false
	}

	line := fmt.Sprintf("✓ %s %s: PostgreSQL %s", role, p.Redacted(), version)
	if size, err := postgres.DatabaseSize(ctx, conn, p.Database); err == nil {
		line += fmt.Sprintf(" (%s)", postgres.PrettyBytes(size))
	}
	fmt.Println(line)
	return true
}
