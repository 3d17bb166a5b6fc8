// Package archive compresses single files into archives and expands archives
// into directory trees. The container format is chosen by file suffix.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	ErrIllegalPath       = errors.New("archive entry escapes destination")
)

// Format is an archive file suffix
type Format string

const (
	FormatZip    Format = ".zip"
	FormatJar    Format = ".jar"
	FormatTarGz  Format = ".tar.gz"
	FormatTgz    Format = ".tgz"
	FormatTarZst Format = ".tar.zst"
)

var formats = []Format{FormatZip, FormatJar, FormatTarGz, FormatTgz, FormatTarZst}

// Formats returns the supported suffixes
func Formats() []Format {
	out := make([]Format, len(formats))
	copy(out, formats)
	return out
}

// FormatOf returns the format matching the suffix of name. When several
// suffixes match, the longest wins.
func FormatOf(name string) (Format, bool) {
	lower := strings.ToLower(name)
	var best Format
	for _, f := range formats {
		if strings.HasSuffix(lower, string(f)) && len(f) > len(best) {
			best = f
		}
	}
	return best, best != ""
}

// ParseFormat validates a configured format name such as "zip" or ".tar.zst"
func ParseFormat(s string) (Format, error) {
	if s != "" && !strings.HasPrefix(s, ".") {
		s = "." + s
	}
	for _, f := range formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

func (f Format) isZip() bool {
	return f == FormatZip || f == FormatJar
}

// Compress writes a single-entry archive at dst holding the bytes of src
// under its base name. The format follows the suffix of dst.
func Compress(src, dst string) error {
	format, ok := FormatOf(dst)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(dst))
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() {
		_ = in.Close()
	}()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("source %s is a directory", src)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	if err := Write(out, format, info.Name(), in, info.Size()); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("failed to close archive: %w", err)
	}

	return nil
}

// Write streams a single-entry archive of the given format to w. size is the
// exact number of bytes r yields; tar formats need it up front.
func Write(w io.Writer, format Format, entryName string, r io.Reader, size int64) error {
	entryName = path.Clean(filepath.ToSlash(entryName))

	switch {
	case format.isZip():
		zw := zip.NewWriter(w)
		ew, err := zw.Create(entryName)
		if err != nil {
			return fmt.Errorf("failed to create zip entry: %w", err)
		}
		if _, err := io.Copy(ew, r); err != nil {
			return fmt.Errorf("failed to write zip entry: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to finish zip: %w", err)
		}
		return nil

	case format == FormatTarGz || format == FormatTgz:
		gw := gzip.NewWriter(w)
		if err := writeTar(gw, entryName, r, size); err != nil {
			_ = gw.Close()
			return err
		}
		if err := gw.Close(); err != nil {
			return fmt.Errorf("failed to finish gzip stream: %w", err)
		}
		return nil

	case format == FormatTarZst:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		if err := writeTar(zw, entryName, r, size); err != nil {
			_ = zw.Close()
			return err
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to finish zstd stream: %w", err)
		}
		return nil
	}

	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func writeTar(w io.Writer, entryName string, r io.Reader, size int64) error {
	tw := tar.NewWriter(w)
	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     entryName,
		Mode:     0644,
		Size:     size,
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}
	if _, err := io.Copy(tw, r); err != nil {
		return fmt.Errorf("failed to write tar entry: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish tar: %w", err)
	}
	return nil
}

// Decompress expands the archive src into dstDir, creating dstDir and any
// intermediate directories. Entries are written in archive order.
func Decompress(src, dstDir string) error {
	format, ok := FormatOf(src)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(src))
	}

	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}

	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	if format.isZip() {
		return decompressZip(src, dstDir)
	}

	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	switch format {
	case FormatTarGz, FormatTgz:
		gr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to read gzip stream: %w", err)
		}
		defer func() {
			_ = gr.Close()
		}()
		return extractTar(gr, dstDir)
	case FormatTarZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to read zstd stream: %w", err)
		}
		defer zr.Close()
		return extractTar(zr, dstDir)
	}

	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func decompressZip(src, dstDir string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer func() {
		_ = zr.Close()
	}()

	for _, entry := range zr.File {
		target, err := entryPath(dstDir, entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("failed to open zip entry %s: %w", entry.Name, err)
		}
		err = writeEntry(target, rc)
		_ = rc.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

func extractTar(r io.Reader, dstDir string) error {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar header: %w", err)
		}

		target, err := entryPath(dstDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr); err != nil {
				return err
			}
		}
	}
}

// entryPath resolves an archive entry name below dstDir
func entryPath(dstDir, name string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if clean == "." {
		return dstDir, nil
	}
	if clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
		return "", fmt.Errorf("%w: %s", ErrIllegalPath, name)
	}
	return filepath.Join(dstDir, filepath.FromSlash(clean)), nil
}

func writeEntry(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create parent directories: %w", err)
	}

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}

	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write %s: %w", target, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", target, err)
	}
	return nil
}

// Entries lists the entry names of an archive in archive order
func Entries(src string) ([]string, error) {
	format, ok := FormatOf(src)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(src))
	}

	if format.isZip() {
		zr, err := zip.OpenReader(src)
		if err != nil {
			return nil, fmt.Errorf("failed to open zip: %w", err)
		}
		defer func() {
			_ = zr.Close()
		}()

		names := make([]string, 0, len(zr.File))
		for _, entry := range zr.File {
			names = append(names, entry.Name)
		}
		return names, nil
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var r io.Reader
	if format == FormatTarZst {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	} else {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read gzip stream: %w", err)
		}
		defer func() {
			_ = gr.Close()
		}()
		r = gr
	}

	var names []string
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar header: %w", err)
		}
		names = append(names, header.Name)
	}
	return names, nil
}

// Supported returns the supported suffixes joined for display
func Supported() string {
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
