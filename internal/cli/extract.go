package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/meigma/tarball"
	"github.com/meigma/tarball/internal/config"
	"github.com/meigma/tarball/internal/pb"
)

var extractConfig = config.NewExtract()

// extractCmd represents the tarball command for extract.
var extractCmd = &cobra.Command{
	Use:               "extract <archive> [--directory <dir>]",
	Short:             "Extract an archive into a directory",
	Args:              cobra.ExactArgs(1),
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtract(cmd.Context(), cmd.ErrOrStderr(), args[0])
	},
}

func init() {
	flags := extractCmd.Flags()
	flags.StringVarP(&extractConfig.Dir, "directory", "C", extractConfig.Dir, "directory to extract into")
	flags.StringVar(&extractConfig.Compression, "compression", extractConfig.Compression, "none, gzip, or zstd (default: detected)")
	flags.IntVar(&extractConfig.Workers, "workers", extractConfig.Workers, "entries restored concurrently, 0 for GOMAXPROCS")
}

// runExtract extracts archive into the configured directory.
func runExtract(ctx context.Context, stderr io.Writer, archive string) error {
	if err := extractConfig.Validate(); err != nil {
		return err
	}
	opts, err := extractConfig.Options()
	if err != nil {
		return err
	}

	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	name := filepath.Base(archive)
	bar := pb.NewProgressBar(stderr, rootConfig.NoProgress)
	defer bar.Stop()
	r := bar.Add("Extracting", name, info.Size(), f)

	opts = append(opts,
		tarball.UntarWithLogger(logger),
		tarball.UntarWithTotalSize(uint64(info.Size())), //nolint:gosec // file sizes are non-negative
	)
	if err := tarball.UntarReader(ctx, r, extractConfig.Dir, opts...); err != nil {
		bar.Abort(name)
		return err
	}
	bar.Complete(name, fmt.Sprintf("Extracted %s", name))
	return nil
}
