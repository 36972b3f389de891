// Package archive extracts downloaded corpus archives (.zip and .tar.gz)
// into a directory tree.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Extract unpacks src into destDir, dispatching on the archive suffix.
func Extract(src, destDir string) error {
	switch {
	case strings.HasSuffix(src, ".zip"):
		return ExtractZip(src, destDir)
	case strings.HasSuffix(src, ".tar.gz"), strings.HasSuffix(src, ".tgz"):
		return ExtractTarGz(src, destDir)
	default:
		return fmt.Errorf("unsupported archive format: %s", filepath.Base(src))
	}
}

// ExtractZip unpacks a zip archive into destDir.
func ExtractZip(src, destDir string) error {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", src, err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		target, err := secureJoin(destDir, file.Name)
		if err != nil {
			return err
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", filepath.Dir(target), err)
		}
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("open archive entry %s: %w", file.Name, err)
		}
		err = writeEntry(target, rc, file.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// ExtractTarGz unpacks a gzip-compressed tarball into destDir.
func ExtractTarGz(src, destDir string) error {
	file, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", src, err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("open gzip stream %s: %w", src, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive %s: %w", src, err)
		}

		target, err := secureJoin(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", filepath.Dir(target), err)
			}
			if err := writeEntry(target, tr, header.FileInfo().Mode()); err != nil {
				return err
			}
		default:
			// Symlinks and specials are not part of the corpora we stage.
			continue
		}
	}
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	return out.Close()
}

// secureJoin rejects entries that would escape destDir.
func secureJoin(destDir, name string) (string, error) {
	target := filepath.Join(destDir, name)
	if target != destDir && !strings.HasPrefix(target, destDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", name)
	}
	return target, nil
}
