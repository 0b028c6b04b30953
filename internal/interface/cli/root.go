// Package cli implements xpctl, the operator tool of the XP observer.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	SQLitePath  string
	DatabaseURL string
	Verbose     bool
	Format      string // "json" | "text"

	// Site and plugin settings used to build the observer.
	PluginContext int
	GuestID       int64
	Admins        []int64
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for xpctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "xpctl",
		Short: "Operate the block_xp event observer",
		Long: `xpctl runs the block_xp observer handlers by hand.

It applies the storage schema, purges the data of a deleted course, explains
which events would earn experience points, and publishes test events to the
host event channel.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.SQLitePath, "sqlite", "", "use the SQLite store at `PATH` instead of PostgreSQL")
	flags.StringVar(&opts.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.IntVar(&opts.PluginContext, "context-setting", 50, "plugin context level (10 site-wide, 50 per course)")
	flags.Int64Var(&opts.GuestID, "guest-id", 1, "site guest user id")
	flags.Int64SliceVar(&opts.Admins, "admins", []int64{2}, "site administrator user ids")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewPurgeCourseCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewPublishCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
