package plugin

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// maxFileSize bounds a single extracted archive entry.
const maxFileSize = 100 << 20

// PackTarGz archives every regular file and directory under root. Entry
// names are slash-separated and relative to root.
func PackTarGz(root string) ([]byte, error) {
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("tar header %s: %w", rel, err)
		}
		header.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("write header %s: %w", rel, err)
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("close gzip: %w", err)
	}
	return buf.Bytes(), nil
}

// ExtractTarGz extracts a .tar.gz stream into destDir. Entries that would
// land outside destDir are rejected.
func ExtractTarGz(r io.Reader, destDir string) error {
	return walkTarGz(r, func(name string, header *tar.Header, body io.Reader) error {
		target, err := safeJoin(destDir, name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("mkdir parent %s: %w", target, err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode)&0o755|0o600)
			if err != nil {
				return fmt.Errorf("create %s: %w", target, err)
			}
			if _, err := io.Copy(f, io.LimitReader(body, maxFileSize)); err != nil {
				f.Close()
				return fmt.Errorf("write %s: %w", target, err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", target, err)
			}
		}
		return nil
	})
}

// ReadTarGz returns the regular files of a .tar.gz archive keyed by their
// slash-separated relative names.
func ReadTarGz(r io.Reader) (map[string][]byte, error) {
	files := map[string][]byte{}
	err := walkTarGz(r, func(name string, header *tar.Header, body io.Reader) error {
		rel, err := entryName(name)
		if err != nil {
			return err
		}
		if header.Typeflag != tar.TypeReg {
			return nil
		}
		data, err := io.ReadAll(io.LimitReader(body, maxFileSize))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		files[filepath.ToSlash(rel)] = data
		return nil
	})
	return files, err
}

func walkTarGz(r io.Reader, fn func(name string, header *tar.Header, body io.Reader) error) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tar next: %w", err)
		}
		if err := fn(header.Name, header, tr); err != nil {
			return err
		}
	}
}

func safeJoin(destDir, name string) (string, error) {
	rel, err := entryName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(destDir, rel), nil
}

// entryName cleans an archive entry name and rejects absolute names and
// names that climb out of the archive root.
func entryName(name string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path traversal detected: %s", name)
	}
	return rel, nil
}
