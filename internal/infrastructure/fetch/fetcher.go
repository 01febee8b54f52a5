// Package fetch builds reference digest sets from vendor release archives.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/khanhnv2901/webapp-tripwire/internal/domain/integrity"
	"github.com/khanhnv2901/webapp-tripwire/internal/scanner"
	"github.com/khanhnv2901/webapp-tripwire/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/webapp-tripwire/internal/shared/errors"
)

// ArchiveFetcher downloads a release archive, unpacks it in memory and
// hashes every file it ships.
type ArchiveFetcher struct {
	client    *http.Client
	endpoints Endpoints
	userAgent string
	hasher    *scanner.Hasher
	logger    *zap.SugaredLogger
}

// Option configures an ArchiveFetcher.
type Option func(*ArchiveFetcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *ArchiveFetcher) { f.client = c }
}

// WithEndpoints replaces the vendor download locations.
func WithEndpoints(e Endpoints) Option {
	return func(f *ArchiveFetcher) { f.endpoints = e }
}

// WithUserAgent sets the User-Agent header sent with downloads.
func WithUserAgent(ua string) Option {
	return func(f *ArchiveFetcher) { f.userAgent = ua }
}

// NewArchiveFetcher creates a fetcher for the official mirrors.
func NewArchiveFetcher(logger *zap.SugaredLogger, opts ...Option) *ArchiveFetcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	f := &ArchiveFetcher{
		client:    &http.Client{},
		endpoints: DefaultEndpoints,
		userAgent: "webapp-tripwire",
		hasher:    scanner.NewHasher(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the reference set for application at version. A missing
// archive (HTTP 404) is reported as ErrReferenceUnavailable.
func (f *ArchiveFetcher) Fetch(ctx context.Context, application, version string) (*integrity.ReferenceDigestSet, error) {
	src, err := f.endpoints.sourceFor(application, version)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := f.download(ctx, src.url)
	if err != nil {
		return nil, err
	}
	f.logger.Debugw("Downloaded archive", "url", src.url, "bytes", len(data), "duration", time.Since(start).Round(time.Millisecond))

	files, err := f.digest(src, data)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", application, version, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s contains no files", sharedErrors.ErrUnsupportedArchive, src.url)
	}
	if src.finish != nil {
		src.finish(files)
	}
	return integrity.NewReferenceDigestSet(application, version, files), nil
}

func (f *ArchiveFetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s not found", sharedErrors.ErrReferenceUnavailable, url)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(resp.Body, constants.MaxArchiveBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	if n > constants.MaxArchiveBytes {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrArchiveTooLarge, url)
	}
	return buf.Bytes(), nil
}

func (f *ArchiveFetcher) digest(src source, data []byte) (map[string]integrity.Digest, error) {
	ignored := make(map[string]struct{}, len(src.ignoreFiles))
	for _, name := range src.ignoreFiles {
		ignored[name] = struct{}{}
	}

	files := make(map[string]integrity.Digest)
	err := walkArchive(src.url, data, func(name string, r io.Reader) error {
		rel := name
		if src.stripTopDir {
			var ok bool
			if rel, ok = stripTopDir(name); !ok {
				return nil
			}
		}
		if vcsPath(rel) {
			return nil
		}
		if _, skip := ignored[path.Base(rel)]; skip {
			return nil
		}
		if src.skip != nil && src.skip(rel) {
			return nil
		}

		sum, err := f.hasher.Reader(r)
		if err != nil {
			return fmt.Errorf("hash %s: %w", name, err)
		}
		files[rel] = integrity.Single(sum)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func vcsPath(rel string) bool {
	for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
		switch path.Base(dir) {
		case ".git", ".svn":
			return true
		}
	}
	return false
}
