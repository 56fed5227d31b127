package app

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/heda-org/heda-gitops/internal/proposal"
)

func newHashCmd() *cobra.Command {
	hashCmd := &cobra.Command{
		Use:   "hash <dir>",
		Short: "Print the proposal hash of a directory",
		Long: `Print the proposal hash of a local directory, the same hash a publication of
that tree is identified by, together with the files that contribute to it.
Anything inside a .git directory is ignored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quiet, err := cmd.Flags().GetBool("quiet")
			if err != nil {
				return err
			}
			return runHash(cmd.OutOrStdout(), args[0], quiet)
		},
	}
	hashCmd.Flags().BoolP("quiet", "q", false, "Print only the hash")
	return hashCmd
}

func runHash(out io.Writer, root string, quiet bool) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	proposalHash, err := proposal.HashDir(root)
	if err != nil {
		return err
	}
	if quiet {
		_, err = fmt.Fprintln(out, proposalHash)
		return err
	}

	paths, err := proposal.ListFiles(root)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(paths))
	for _, rel := range paths {
		size, digest, err := fileDigest(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return err
		}
		rows = append(rows, []string{rel, strconv.FormatInt(size, 10), digest})
	}

	table := tablewriter.NewWriter(out)
	table.Header("Path", "Bytes", "SHA-256")
	if err := table.Bulk(rows); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "Proposal hash: %s (%d files)\n", proposalHash, len(paths))
	return err
}

func fileDigest(path string) (int64, string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return 0, "", err
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return n, hex.EncodeToString(h.Sum(nil))[:12], nil
}
