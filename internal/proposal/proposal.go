// Package proposal computes the content fingerprint and branch name of an
// experiment proposal.
//
// The proposal hash is a SHA-256 digest over every file of a working tree,
// visited in lexicographic order of their slash-separated relative paths.
// For each file the path bytes are written first, then the file content.
// The hash is the first ShortHashLength hex characters of the digest, so
// two trees with the same files produce the same hash whatever order the
// files were written or discovered in.
package proposal

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	// ShortHashLength is the number of hex characters kept from the digest
	ShortHashLength = 8

	// BranchPrefix is the namespace of publication branches
	BranchPrefix = "publish/"

	// branchTimeLayout renders a UTC timestamp as YYYYMMDDTHHMMSS
	branchTimeLayout = "20060102T150405"

	vcsDir = ".git"
)

// ErrInvalidPath is returned for upload paths that are empty, absolute,
// escape the working tree or point into version-control metadata
var ErrInvalidPath = errors.New("invalid file path")

// File is one entry of an in-memory file set
type File struct {
	Path    string
	Content []byte
}

// Hasher accumulates files into a proposal digest. Files must be added in
// sorted path order; HashFiles and HashDir take care of that.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns an empty Hasher
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Add writes a path and then its content into the digest
func (p *Hasher) Add(relPath string, content io.Reader) error {
	if _, err := io.WriteString(p.h, relPath); err != nil {
		return err
	}
	if _, err := io.Copy(p.h, content); err != nil {
		return fmt.Errorf("failed to hash %s: %w", relPath, err)
	}
	return nil
}

// Sum returns the full hex digest
func (p *Hasher) Sum() string {
	return hex.EncodeToString(p.h.Sum(nil))
}

// Short returns the proposal hash
func (p *Hasher) Short() string {
	return p.Sum()[:ShortHashLength]
}

// HashFiles computes the proposal hash of an in-memory file set.
// Paths are normalized with CleanPath first.
func HashFiles(files []File) (string, error) {
	sorted := make([]File, 0, len(files))
	for _, f := range files {
		clean, err := CleanPath(f.Path)
		if err != nil {
			return "", err
		}
		sorted = append(sorted, File{Path: clean, Content: f.Content})
	}
	slices.SortFunc(sorted, func(a, b File) int { return strings.Compare(a.Path, b.Path) })

	h := NewHasher()
	for _, f := range sorted {
		if err := h.Add(f.Path, bytes.NewReader(f.Content)); err != nil {
			return "", err
		}
	}
	return h.Short(), nil
}

// HashDir computes the proposal hash of the files ListFiles reports under root
func HashDir(root string) (string, error) {
	paths, err := ListFiles(root)
	if err != nil {
		return "", err
	}

	h := NewHasher()
	for _, rel := range paths {
		if err := hashFile(h, root, rel); err != nil {
			return "", err
		}
	}
	return h.Short(), nil
}

func hashFile(h *Hasher, root, rel string) error {
	f, err := os.Open(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", rel, err)
	}
	defer func() {
		_ = f.Close()
	}()
	return h.Add(rel, f)
}

// ListFiles returns the sorted slash-separated relative paths of the regular
// files under root, and of symlinks to regular files, excluding
// version-control metadata
func ListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if d.Name() == vcsDir && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() && !linksToRegularFile(p, d) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if hasVCSComponent(rel) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files under %s: %w", root, err)
	}
	slices.Sort(paths)
	return paths, nil
}

// linksToRegularFile reports whether d is a symlink to a regular file. Such
// links are hashed with their target's content, as `cat` in CI reads them.
func linksToRegularFile(p string, d fs.DirEntry) bool {
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func hasVCSComponent(rel string) bool {
	return slices.Contains(strings.Split(rel, "/"), vcsDir)
}

// CleanPath normalizes an uploaded relative path to slash form and rejects
// paths that would land outside the working tree or inside .git
func CleanPath(name string) (string, error) {
	slashed := strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")
	if slashed == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidPath)
	}
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(slashed) {
		return "", fmt.Errorf("%w: %q is absolute", ErrInvalidPath, name)
	}

	clean := path.Clean(slashed)
	if clean == "." || !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", fmt.Errorf("%w: %q escapes the repository", ErrInvalidPath, name)
	}
	if hasVCSComponent(clean) {
		return "", fmt.Errorf("%w: %q points into version-control metadata", ErrInvalidPath, name)
	}
	return clean, nil
}

// BranchName returns publish/<UTC YYYYMMDDTHHMMSS>-<hash>
func BranchName(now time.Time, proposalHash string) string {
	return BranchPrefix + now.UTC().Format(branchTimeLayout) + "-" + proposalHash
}
