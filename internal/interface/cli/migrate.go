package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alem-hub/xp-observer/internal/infrastructure/persistence/postgres"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the storage schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer b.close()

			out := cmd.OutOrStdout()

			if b.postgres == nil {
				_, err := fmt.Fprintf(out, "sqlite schema is up to date (%s)\n", rootOpts.SQLitePath)
				return err
			}

			migrator := postgres.NewMigrator(b.postgres)

			if status {
				migrations, err := migrator.Status(cmd.Context())
				if err != nil {
					return err
				}
				for _, m := range migrations {
					state := "pending"
					if m.IsApplied {
						state = "applied " + m.AppliedAt.Format("2006-01-02 15:04:05")
					}
					if _, err := fmt.Fprintf(out, "%03d %-24s %s\n", m.Version, m.Name, state); err != nil {
						return err
					}
				}
				return nil
			}

			n, err := migrator.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "applied %d migration(s)\n", n)
			return err
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "list migrations instead of applying them")

	return cmd
}
