// Package reference resolves reference digest sets for the scan engine,
// fetching and persisting them on a cache miss.
package reference

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/khanhnv2901/webapp-tripwire/internal/domain/integrity"
	sharedErrors "github.com/khanhnv2901/webapp-tripwire/internal/shared/errors"
)

// Fetcher builds a reference digest set from the vendor's release archive.
type Fetcher interface {
	Fetch(ctx context.Context, application, version string) (*integrity.ReferenceDigestSet, error)
}

type cacheKey struct {
	application string
	version     string
}

// Store is the process-wide reference checksum store. It is safe for
// concurrent use; at most one fetch per (application, version) runs at a time.
type Store struct {
	repo    integrity.Repository
	fetcher Fetcher
	logger  *zap.SugaredLogger

	mu    sync.RWMutex
	cache map[cacheKey]*integrity.ReferenceDigestSet
	group singleflight.Group
}

var _ integrity.Store = (*Store)(nil)

// NewStore creates a Store. A nil fetcher disables fetching on a miss.
func NewStore(repo integrity.Repository, fetcher Fetcher, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{
		repo:    repo,
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[cacheKey]*integrity.ReferenceDigestSet),
	}
}

// Resolve returns the cached or persisted set, or ErrReferenceUnavailable.
func (s *Store) Resolve(ctx context.Context, application, version string) (*integrity.ReferenceDigestSet, error) {
	key := cacheKey{application, version}

	s.mu.RLock()
	set, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return set, nil
	}

	set, err := s.repo.Find(ctx, application, version)
	if err != nil {
		return nil, err
	}

	s.store(key, set)
	return set, nil
}

// InvalidateAndRefetch drops any cached copy, fetches the set again and
// persists it. Concurrent calls for the same key share one fetch.
func (s *Store) InvalidateAndRefetch(ctx context.Context, application, version string) error {
	return s.fetch(ctx, application, version, true)
}

// fetch runs the fetcher for one key. Without force, a set persisted by a
// fetch that finished while this caller was waiting is reused.
func (s *Store) fetch(ctx context.Context, application, version string, force bool) error {
	if s.fetcher == nil {
		return fmt.Errorf("%w: %s %s (fetching disabled)", sharedErrors.ErrReferenceUnavailable, application, version)
	}
	key := cacheKey{application, version}

	if force {
		s.mu.Lock()
		delete(s.cache, key)
		s.mu.Unlock()
	}

	flight := application + "\x00" + version
	if force {
		flight += "\x00force"
	}
	ch := s.group.DoChan(flight, func() (any, error) {
		if !force {
			if set, err := s.repo.Find(ctx, application, version); err == nil {
				s.store(key, set)
				return set, nil
			}
		}

		s.logger.Infow("Fetching reference checksums", "application", application, "version", version)
		start := time.Now()

		set, err := s.fetcher.Fetch(ctx, application, version)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Save(ctx, set); err != nil {
			return nil, fmt.Errorf("failed to persist checksums: %w", err)
		}
		s.store(key, set)

		s.logger.Infow("Reference checksums stored",
			"application", application,
			"version", version,
			"files", set.Len(),
			"duration", time.Since(start).Round(time.Millisecond))
		return set, nil
	})

	select {
	case res := <-ch:
		return timeoutError(res.Err, application, version)
	case <-ctx.Done():
		return timeoutError(ctx.Err(), application, version)
	}
}

func (s *Store) store(key cacheKey, set *integrity.ReferenceDigestSet) {
	s.mu.Lock()
	s.cache[key] = set
	s.mu.Unlock()
}

// ResolveOrFetch resolves the set and, on a miss, refetches it under
// timeout and resolves exactly once more. A zero timeout means no limit.
func (s *Store) ResolveOrFetch(ctx context.Context, application, version string, timeout time.Duration) (*integrity.ReferenceDigestSet, error) {
	set, err := s.Resolve(ctx, application, version)
	if err == nil || !errors.Is(err, sharedErrors.ErrReferenceUnavailable) || s.fetcher == nil {
		return set, err
	}

	fetchCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := s.fetch(fetchCtx, application, version, false); err != nil {
		return nil, err
	}
	return s.Resolve(ctx, application, version)
}

// Versions lists the versions of application that are persisted or held
// in memory, sorted and without duplicates.
func (s *Store) Versions(ctx context.Context, application string) ([]string, error) {
	stored, err := s.repo.Versions(ctx, application)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(stored))
	versions := make([]string, 0, len(stored))
	for _, v := range stored {
		if _, dup := seen[v]; !dup {
			seen[v] = struct{}{}
			versions = append(versions, v)
		}
	}

	s.mu.RLock()
	for k := range s.cache {
		if _, dup := seen[k.version]; k.application == application && !dup {
			seen[k.version] = struct{}{}
			versions = append(versions, k.version)
		}
	}
	s.mu.RUnlock()

	sort.Strings(versions)
	return versions, nil
}

func timeoutError(err error, application, version string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s %s", sharedErrors.ErrFetchTimeout, application, version)
	}
	return err
}
