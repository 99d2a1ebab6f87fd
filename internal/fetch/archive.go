// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fetch

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/odoo-agent/internal/outcome"
)

var (
	// ErrUnsupportedFormat is returned for archives that are neither zip nor tar.gz.
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	// ErrMalformed wraps every archive decoding failure.
	ErrMalformed = errors.New("malformed archive")
	// ErrUnsafePath is returned for entries that would escape the extraction directory.
	ErrUnsafePath = errors.New("archive entry escapes extraction directory")
)

func malformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformed, err)
}

func classify(err error) outcome.Kind {
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return outcome.KindUnsupportedFormat
	case errors.Is(err, ErrMalformed), errors.Is(err, ErrUnsafePath):
		return outcome.KindMalformedArchive
	default:
		return outcome.KindUnexpected
	}
}

// Extract unpacks a .zip or .tar.gz archive into dest, creating dest if needed.
func Extract(archive, dest string) error {
	lower := strings.ToLower(archive)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		if err := os.MkdirAll(dest, 0755); err != nil {
			return err
		}
		return extractZip(archive, dest)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		if err := os.MkdirAll(dest, 0755); err != nil {
			return err
		}
		return extractTarGz(archive, dest)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(archive))
	}
}

func within(root, path string) bool {
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}

// safeJoin joins name onto root and refuses results outside root. The
// check is lexical; checkResolved covers symlinks already on disk.
func safeJoin(root, name string) (string, error) {
	target := filepath.Join(root, name)
	if !within(root, target) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

// checkResolved follows symlinks on the nearest existing ancestor of path
// (path itself included) and refuses results outside base.
func checkResolved(base, path string) error {
	p := path
	for {
		if _, err := os.Lstat(p); err == nil {
			break
		}
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}

	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnsafePath, path, err)
	}
	if !within(base, resolved) {
		return fmt.Errorf("%w: %s resolves to %s", ErrUnsafePath, path, resolved)
	}
	return nil
}

// realRoot resolves dest after it has been created.
func realRoot(dest string) (string, error) {
	root, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return "", err
	}
	return filepath.Clean(root), nil
}

// prepareParent creates target's directory once it is known to resolve
// inside base.
func prepareParent(base, target string) error {
	dir := filepath.Dir(target)
	if err := checkResolved(base, dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// extractZip extracts a zip file to the destination directory
func extractZip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return malformed(err)
	}
	defer r.Close()

	root := filepath.Clean(dest)
	base, err := realRoot(root)
	if err != nil {
		return err
	}
	for _, f := range r.File {
		target, err := safeJoin(root, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := prepareParent(base, target); err != nil {
				return err
			}
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := prepareParent(base, target); err != nil {
			return err
		}
		if err := writeZipEntry(f, target); err != nil {
			return err
		}
	}

	return nil
}

func writeZipEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return malformed(err)
	}
	defer rc.Close()

	return writeFile(target, rc, f.Mode().Perm())
}

// extractTarGz extracts a tar.gz file to the destination directory
func extractTarGz(src, dest string) error {
	file, err := os.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return malformed(err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	root := filepath.Clean(dest)
	base, err := realRoot(root)
	if err != nil {
		return err
	}

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return malformed(err)
		}

		target, err := safeJoin(root, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := prepareParent(base, target); err != nil {
				return err
			}
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			if err := checkResolved(base, target); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := prepareParent(base, target); err != nil {
				return err
			}
			if err := writeFile(target, tr, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(header.Linkname) {
				return fmt.Errorf("%w: %s -> %s", ErrUnsafePath, header.Name, header.Linkname)
			}
			if _, err := safeJoin(root, filepath.Join(filepath.Dir(header.Name), header.Linkname)); err != nil {
				return err
			}
			if err := prepareParent(base, target); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return err
			}
			// A link through an earlier link can pass the lexical check.
			if resolved, err := filepath.EvalSymlinks(target); err == nil && !within(base, resolved) {
				os.Remove(target)
				return fmt.Errorf("%w: %s -> %s resolves to %s", ErrUnsafePath, header.Name, header.Linkname, resolved)
			}
		default:
			// Hard links, devices and pax headers are not needed for a source tree.
		}
	}

	return nil
}

// writeFile replaces any symlink at target rather than writing through it.
func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if perm == 0 {
		perm = 0644
	}
	if fi, err := os.Lstat(target); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return err
		}
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return malformed(err)
	}
	return out.Close()
}
