package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/spf13/cobra"

	"github.com/meigma/tarball"
	"github.com/meigma/tarball/internal/config"
	"github.com/meigma/tarball/internal/pb"
)

var createConfig = config.NewCreate()

// createCmd represents the tarball command for create.
var createCmd = &cobra.Command{
	Use:               "create <dir> --output <archive>",
	Short:             "Archive a directory tree",
	Long:              "Archive a directory tree and print the OCI descriptor of the result.",
	Args:              cobra.ExactArgs(1),
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCreate(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0])
	},
}

func init() {
	flags := createCmd.Flags()
	flags.StringVarP(&createConfig.Output, "output", "o", createConfig.Output, "archive file to write")
	flags.StringVar(&createConfig.Compression, "compression", createConfig.Compression, "none, gzip, or zstd (default: from the output extension)")
	flags.IntVar(&createConfig.Level, "level", createConfig.Level, "compression level, 0 for the codec default")
	flags.BoolVar(&createConfig.NoOwnerNames, "no-owner-names", createConfig.NoOwnerNames, "do not record user and group names")
}

// runCreate archives src into the configured output.
func runCreate(ctx context.Context, stdout, stderr io.Writer, src string) (err error) {
	if err := createConfig.Validate(); err != nil {
		return err
	}
	codec, err := createConfig.Codec()
	if err != nil {
		return err
	}

	tarOpts := []tarball.TarOption{tarball.TarWithLogger(logger)}
	if createConfig.NoOwnerNames {
		tarOpts = append(tarOpts, tarball.TarWithoutOwnerNames())
	}
	t, err := tarball.Tar(ctx, src, tarOpts...)
	if err != nil {
		return err
	}

	name := filepath.Base(createConfig.Output)
	bar := pb.NewProgressBar(stderr, rootConfig.NoProgress)
	defer bar.Stop()
	set := bar.Track("Archiving", name, t.Size())

	rc, err := t.Stream(ctx,
		tarball.StreamWithCompression(codec),
		tarball.StreamWithLevel(createConfig.Level),
		tarball.StreamWithProgress(func(e tarball.ProgressEvent) {
			set(int64(e.BytesDone)) //nolint:gosec // bounded by the archive size
		}),
	)
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.Create(createConfig.Output)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	digester := digest.Canonical.Digester()
	n, err := io.Copy(io.MultiWriter(f, digester.Hash()), rc)
	if err != nil {
		bar.Abort(name)
		return fmt.Errorf("write %s: %w", createConfig.Output, err)
	}
	bar.Complete(name, fmt.Sprintf("Archived %s", name))

	desc := v1.Descriptor{
		MediaType: codec.MediaType(),
		Digest:    digester.Digest(),
		Size:      n,
		Annotations: map[string]string{
			v1.AnnotationTitle: name,
		},
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(desc)
}
