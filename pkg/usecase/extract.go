package usecase

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/policyfetch/pkg/domain/model"
	"github.com/m-mizutani/policyfetch/pkg/domain/types"
)

// ExtractBundle writes the gzip-compressed tar payload to dir/bundle.tar.gz once,
// then unpacks it into dir. Entries resolving outside of dir are rejected.
// The temporary archive file is removed when extraction ends.
func ExtractBundle(ctx context.Context, data []byte, dir string) (*model.ExtractResult, error) {
	logger := ctxlog.From(ctx)

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve target directory", goerr.V("dir", dir), goerr.T(types.ErrTagExtract))
	}
	if info, err := os.Stat(root); err != nil {
		return nil, goerr.Wrap(err, "target directory is not accessible", goerr.V("dir", root), goerr.T(types.ErrTagExtract))
	} else if !info.IsDir() {
		return nil, goerr.New("target path is not a directory", goerr.V("dir", root), goerr.T(types.ErrTagExtract))
	}

	// Real path of root is needed to detect escapes through existing symlinks
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve target directory", goerr.V("dir", root), goerr.T(types.ErrTagExtract))
	}

	archivePath := filepath.Join(root, model.BundleFileName)
	if err := os.WriteFile(archivePath, data, 0600); err != nil {
		return nil, goerr.Wrap(err, "failed to write bundle archive", goerr.V("path", archivePath), goerr.T(types.ErrTagExtract))
	}
	defer func() {
		if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove bundle archive", "path", archivePath, "error", err)
		}
	}()

	logger.Debug("Wrote bundle archive", "path", archivePath, "size_bytes", len(data))

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open bundle archive", goerr.V("path", archivePath), goerr.T(types.ErrTagExtract))
	}
	defer func() {
		_ = f.Close()
	}()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decompress bundle archive", goerr.V("path", archivePath), goerr.T(types.ErrTagExtract))
	}
	defer func() {
		_ = gz.Close()
	}()

	x := &extractor{root: root, realRoot: realRoot}
	result := &model.ExtractResult{Dir: root}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read bundle archive", goerr.V("path", archivePath), goerr.T(types.ErrTagExtract))
		}

		name, written, err := x.extractEntry(ctx, hdr, tr)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to extract entry", goerr.V("entry", hdr.Name), goerr.T(types.ErrTagExtract))
		}
		if name == "" {
			continue
		}

		result.Files = append(result.Files, name)
		result.Size += written
	}

	if err := x.verifyLinks(); err != nil {
		return nil, goerr.Wrap(err, "bundle leaves a symlink outside target directory", goerr.V("dir", root), goerr.T(types.ErrTagExtract))
	}

	return result, nil
}

type extractor struct {
	root     string
	realRoot string
}

// extractEntry writes one archive entry. It returns the slash-separated relative
// name of the entry, or an empty name if the entry was skipped.
func (x *extractor) extractEntry(ctx context.Context, hdr *tar.Header, r io.Reader) (string, int64, error) {
	rel, err := x.entryPath(hdr.Name)
	if err != nil {
		return "", 0, err
	}
	if rel == "." {
		return "", 0, nil
	}
	target := filepath.Join(x.root, rel)

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := x.mkdirAll(target); err != nil {
			return "", 0, err
		}
		return filepath.ToSlash(rel), 0, nil

	case tar.TypeReg:
		if err := x.mkdirAll(filepath.Dir(target)); err != nil {
			return "", 0, err
		}
		if err := removeSymlink(target); err != nil {
			return "", 0, err
		}
		written, err := writeFile(target, r, hdr.FileInfo().Mode().Perm())
		if err != nil {
			return "", 0, err
		}
		return filepath.ToSlash(rel), written, nil

	case tar.TypeSymlink:
		if err := x.mkdirAll(filepath.Dir(target)); err != nil {
			return "", 0, err
		}
		if err := x.checkLinkTarget(target, hdr.Linkname); err != nil {
			return "", 0, err
		}
		if err := os.RemoveAll(target); err != nil {
			return "", 0, goerr.Wrap(err, "failed to replace existing entry", goerr.V("path", target))
		}
		if err := os.Symlink(hdr.Linkname, target); err != nil {
			return "", 0, goerr.Wrap(err, "failed to create symlink", goerr.V("path", target))
		}
		return filepath.ToSlash(rel), 0, nil

	default:
		ctxlog.From(ctx).Debug("Skipping unsupported archive entry",
			"entry", hdr.Name,
			"type", string(hdr.Typeflag),
		)
		return "", 0, nil
	}
}

// entryPath returns the cleaned path of an entry relative to root
func (x *extractor) entryPath(name string) (string, error) {
	if name == "" {
		return "", goerr.New("empty entry name")
	}
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return "", goerr.New("absolute entry path is not allowed", goerr.V("name", name))
	}

	rel := filepath.Clean(filepath.FromSlash(name))
	if !isLocal(rel) {
		return "", goerr.New("entry path escapes target directory", goerr.V("name", name))
	}
	if rel == model.BundleFileName {
		return "", goerr.New("entry conflicts with bundle archive file", goerr.V("name", name))
	}

	return rel, nil
}

// mkdirAll creates dir and checks that it really lives under root, following existing symlinks
func (x *extractor) mkdirAll(dir string) error {
	if err := x.checkReal(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return goerr.Wrap(err, "failed to create directory", goerr.V("path", dir))
	}
	return x.checkReal(dir)
}

// checkReal resolves the existing part of path and verifies it is inside realRoot
func (x *extractor) checkReal(path string) error {
	existing := path
	var rest []string
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			resolved = filepath.Join(append([]string{resolved}, rest...)...)
			if !within(x.realRoot, resolved) {
				return goerr.New("path escapes target directory through a symlink", goerr.V("path", path))
			}
			return nil
		}
		if !os.IsNotExist(err) {
			return goerr.Wrap(err, "failed to resolve path", goerr.V("path", path))
		}

		parent := filepath.Dir(existing)
		if parent == existing {
			return goerr.Wrap(err, "failed to resolve path", goerr.V("path", path))
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}
}

// checkLinkTarget verifies that a symlink placed at link pointing to linkname stays inside root.
// The target is walked one component at a time against the current tree, so links created
// by earlier entries are followed instead of being folded away lexically.
func (x *extractor) checkLinkTarget(link, linkname string) error {
	if linkname == "" || filepath.IsAbs(linkname) || strings.HasPrefix(linkname, "/") {
		return goerr.New("symlink target must be a relative path", goerr.V("link", link), goerr.V("target", linkname))
	}

	current, err := filepath.EvalSymlinks(filepath.Dir(link))
	if err != nil {
		return goerr.Wrap(err, "failed to resolve symlink parent", goerr.V("link", link))
	}

	parts := strings.Split(filepath.ToSlash(linkname), "/")
	for i, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			current = filepath.Dir(current)
		default:
			next := filepath.Join(current, part)
			resolved, err := filepath.EvalSymlinks(next)
			switch {
			case err == nil:
				current = resolved
			case os.IsNotExist(err):
				// A missing component may become a symlink later, so nothing may climb above it
				if slices.Contains(parts[i+1:], "..") {
					return goerr.New("symlink target climbs above a missing path", goerr.V("link", link), goerr.V("target", linkname))
				}
				current = next
			default:
				return goerr.Wrap(err, "failed to resolve symlink target", goerr.V("link", link), goerr.V("target", linkname))
			}
		}

		if !within(x.realRoot, current) {
			return goerr.New("symlink target escapes target directory", goerr.V("link", link), goerr.V("target", linkname))
		}
	}
	return nil
}

// verifyLinks re-checks every relative symlink under root once all entries are written.
// Replacing a directory or link can change where an already checked link points.
func (x *extractor) verifyLinks() error {
	return filepath.WalkDir(x.realRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		linkname, err := os.Readlink(path)
		if err != nil {
			return goerr.Wrap(err, "failed to read symlink", goerr.V("path", path))
		}
		if filepath.IsAbs(linkname) {
			return nil
		}

		if err := x.checkLinkTarget(path, linkname); err != nil {
			if rmErr := os.Remove(path); rmErr != nil {
				return goerr.Wrap(rmErr, "failed to remove escaping symlink", goerr.V("path", path))
			}
			return err
		}
		return nil
	})
}

func removeSymlink(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return goerr.Wrap(err, "failed to stat path", goerr.V("path", path))
	}
	if info.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(path); err != nil {
			return goerr.Wrap(err, "failed to remove symlink", goerr.V("path", path))
		}
	}
	return nil
}

func writeFile(path string, r io.Reader, perm os.FileMode) (int64, error) {
	if perm == 0 {
		perm = 0644
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to create file", goerr.V("path", path))
	}

	written, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		return 0, goerr.Wrap(err, "failed to write file", goerr.V("path", path))
	}
	if err := f.Close(); err != nil {
		return 0, goerr.Wrap(err, "failed to close file", goerr.V("path", path))
	}

	// OpenFile does not change the mode of an existing file
	if err := os.Chmod(path, perm); err != nil {
		return 0, goerr.Wrap(err, "failed to set file mode", goerr.V("path", path))
	}

	return written, nil
}

// isLocal reports whether a cleaned relative path stays below its base
func isLocal(rel string) bool {
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || isLocal(rel)
}
