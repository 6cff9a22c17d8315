package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	humanize "github.com/dustin/go-humanize"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"

	"github.com/meigma/tarball"
	"github.com/meigma/tarball/internal/config"
)

var listConfig = config.NewList()

// listCmd represents the tarball command for list.
var listCmd = &cobra.Command{
	Use:               "list <archive>",
	Aliases:           []string{"ls"},
	Short:             "List the entries of an archive",
	Args:              cobra.ExactArgs(1),
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}

func init() {
	flags := listCmd.Flags()
	flags.BoolVar(&listConfig.Tree, "tree", listConfig.Tree, "print entries as a tree")
	flags.BoolVar(&listConfig.Digest, "digest", listConfig.Digest, "print the sha256 digest of each body")
	flags.StringVar(&listConfig.Compression, "compression", listConfig.Compression, "none, gzip, or zstd (default: detected)")
}

// runList prints the entries of archive.
func runList(ctx context.Context, stdout io.Writer, archive string) error {
	if err := listConfig.Validate(); err != nil {
		return err
	}
	opts, err := listConfig.Options()
	if err != nil {
		return err
	}

	t, err := tarball.LoadFile(ctx, archive, append(opts, tarball.LoadWithLogger(logger))...)
	if err != nil {
		return err
	}

	if listConfig.Tree {
		return printTree(stdout, t.TreeView())
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 4, ' ', 0)
	header := "MODE\tOWNER\tSIZE\tMODIFIED\tPATH"
	if listConfig.Digest {
		header += "\tDIGEST"
	}
	fmt.Fprintln(tw, header)

	for e := range t.Entries() {
		owner := e.Owner
		if owner == "" {
			owner = fmt.Sprint(e.UID)
		}
		line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s",
			modeString(e), owner, humanize.IBytes(uint64(e.Size)), //nolint:gosec // sizes are non-negative
			e.ModTime.UTC().Format("2006-01-02 15:04"), displayPath(e))
		if listConfig.Digest {
			d, err := bodyDigest(t, e)
			if err != nil {
				return err
			}
			line += "\t" + d
		}
		fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}

// bodyDigest returns the digest of a regular file body, or "-".
func bodyDigest(t *tarball.Tarball, e tarball.Entry) (string, error) {
	if e.Kind != tarball.KindFile && e.Kind != tarball.KindContiguousFile {
		return "-", nil
	}
	r, err := t.Retrieve(e.RelativePath).Stream()
	if err != nil {
		return "", err
	}
	d, err := digest.Canonical.FromReader(r)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", e.RelativePath, err)
	}
	return d.String(), nil
}

// modeString renders the kind and permission bits like ls -l.
func modeString(e tarball.Entry) string {
	var kind byte
	switch e.Kind {
	case tarball.KindDirectory:
		kind = 'd'
	case tarball.KindSymlink:
		kind = 'l'
	case tarball.KindLink:
		kind = 'h'
	case tarball.KindCharDevice:
		kind = 'c'
	case tarball.KindBlockDevice:
		kind = 'b'
	case tarball.KindFIFO:
		kind = 'p'
	default:
		kind = '-'
	}
	return string(kind) + e.Mode.Perm().String()[1:]
}

func displayPath(e tarball.Entry) string {
	switch {
	case e.IsDir():
		return e.RelativePath + "/"
	case e.LinkName != "":
		return e.RelativePath + " -> " + e.LinkName
	default:
		return e.RelativePath
	}
}

func printTree(w io.Writer, root *tarball.Tree) error {
	var err error
	root.Walk(func(n *tarball.Tree, depth int) bool {
		if depth == 0 {
			_, err = fmt.Fprintln(w, ".")
			return err == nil
		}
		name := n.Name
		if n.IsDir() {
			name += "/"
		}
		_, err = fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), name)
		return err == nil
	})
	return err
}
