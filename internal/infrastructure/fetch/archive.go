package fetch

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/khanhnv2901/webapp-tripwire/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/webapp-tripwire/internal/shared/errors"
)

// entryFunc receives each regular file of an archive with its cleaned,
// slash-separated name.
type entryFunc func(name string, r io.Reader) error

func walkArchive(name string, data []byte, fn entryFunc) error {
	switch {
	case strings.HasSuffix(name, ".zip"):
		return walkZip(data, fn)
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return walkTarGz(data, fn)
	}
	return fmt.Errorf("%w: %s", sharedErrors.ErrUnsupportedArchive, name)
}

func walkZip(data []byte, fn entryFunc) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrUnsupportedArchive, err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !f.Mode().IsRegular() {
			continue
		}
		name, ok := cleanEntryName(f.Name)
		if !ok {
			continue
		}
		if f.UncompressedSize64 > constants.MaxArchiveEntryBytes {
			return fmt.Errorf("%w: %s", sharedErrors.ErrArchiveTooLarge, f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Name, err)
		}
		err = fn(name, limitEntry(rc, f.Name))
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func walkTarGz(data []byte, fn entryFunc) error {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrUnsupportedArchive, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", sharedErrors.ErrUnsupportedArchive, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name, ok := cleanEntryName(hdr.Name)
		if !ok {
			continue
		}
		if hdr.Size > constants.MaxArchiveEntryBytes {
			return fmt.Errorf("%w: %s", sharedErrors.ErrArchiveTooLarge, hdr.Name)
		}
		if err := fn(name, limitEntry(tr, hdr.Name)); err != nil {
			return err
		}
	}
}

// cleanEntryName rejects absolute names and names that climb out of the archive.
func cleanEntryName(name string) (string, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(name, "/") {
		return "", false
	}
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}

// limitEntry guards against headers that understate an entry's size.
func limitEntry(r io.Reader, name string) io.Reader {
	return &entryLimiter{r: io.LimitReader(r, constants.MaxArchiveEntryBytes+1), name: name}
}

type entryLimiter struct {
	r    io.Reader
	n    int64
	name string
}

func (l *entryLimiter) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > constants.MaxArchiveEntryBytes {
		return n, fmt.Errorf("%w: %s", sharedErrors.ErrArchiveTooLarge, l.name)
	}
	return n, err
}

// stripTopDir removes the leading directory component, if any.
func stripTopDir(name string) (string, bool) {
	_, rest, ok := strings.Cut(name, "/")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}
