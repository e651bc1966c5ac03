// Package cli provides the docgallery command-line interface.
package cli

import (
	"log/slog"

	"github.com/dgallion1/docgallery/internal/config"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

type app struct {
	cfg config.Config
	log *slog.Logger
}

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "docgallery",
		Short: "Build documentation sites with source includes and example galleries",
		Long: `docgallery builds Markdown documentation into HTML.

Besides the standard raw, only, image and figure directives it provides
includenodoc, which includes a source file minus its leading docstring, and
galleryitem, which renders a thumbnail entry for an example script.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.LoadWithFlags(cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg

			level := slog.LevelInfo
			if v, _ := cmd.Flags().GetBool("verbose"); v {
				level = slog.LevelDebug
			}
			a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./"+config.FileName+")")
	pf.String("source-dir", "", "documentation source root")
	pf.String("output-dir", "", "HTML output root")
	pf.StringSlice("tags", nil, "tags enabled for the only directive")
	pf.Int("worker-count", 0, "documents built in parallel")
	pf.BoolP("verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newBuildCommand(a))
	rootCmd.AddCommand(newWatchCommand(a))
	rootCmd.AddCommand(newStripCommand(a))
	rootCmd.AddCommand(newIntroCommand(a))
	rootCmd.AddCommand(newThumbCommand(a))
	return rootCmd
}
