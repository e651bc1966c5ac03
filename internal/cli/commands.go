package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgallion1/docgallery/internal/build"
	"github.com/dgallion1/docgallery/internal/gallery"
	"github.com/dgallion1/docgallery/internal/source"
	"github.com/spf13/cobra"
)

func newBuildCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "build [docs...]",
		Short: "Build documents into HTML",
		Long: `Build the named documents, or every document under the source root
when none are given. A failing document is reported and the rest still build.`,
		Example: `  # Build the whole site
  docgallery build

  # Rebuild two pages into a custom output dir
  docgallery build index.md guide/usage.md --output-dir site`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := build.NewBuilder(a.cfg, a.log)
			if err != nil {
				return err
			}
			summary, err := b.BuildAll(cmd.Context(), args, nil)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "built %d document(s) into %s\n", len(summary.Built), b.OutputDir())
			for _, f := range summary.Failed {
				fmt.Fprintf(cmd.ErrOrStderr(), "FAILED %s\n", f.Error)
			}
			return err
		},
	}
}

func newWatchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Build the site and rebuild on change",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := build.NewBuilder(a.cfg, a.log)
			if err != nil {
				return err
			}
			debounce, _ := cmd.Flags().GetDuration("debounce")
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a.log.Info("watching", "source_dir", b.SourceDir(), "output_dir", b.OutputDir())
			return build.NewWatcher(b, debounce).Run(ctx)
		},
	}
	cmd.Flags().Duration("debounce", build.DefaultDebounce, "quiet period before rebuilding")
	return cmd
}

func newStripCommand(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "strip <file>",
		Short: "Print a source file without its leading docstring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := source.ReadFile(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), source.StripDocstring(text))
			return err
		},
	}
}

func newIntroCommand(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "intro <example>",
		Short: "Print the gallery intro extracted from an example script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			intro, err := gallery.New().ExtractIntro(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), intro)
			return err
		},
	}
}

func newThumbCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thumb <src> <dst>",
		Short: "Rescale an image into a gallery thumbnail",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			width, _ := cmd.Flags().GetInt("width")
			height, _ := cmd.Flags().GetInt("height")
			if width <= 0 {
				width = a.cfg.ThumbWidth
			}
			if height <= 0 {
				height = a.cfg.ThumbHeight
			}
			if err := gallery.New().RescaleImage(args[0], args[1], width, height); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d)\n", args[1], width, height)
			return nil
		},
	}
	cmd.Flags().Int("width", 0, "thumbnail width (default thumb_width)")
	cmd.Flags().Int("height", 0, "thumbnail height (default thumb_height)")
	return cmd
}
