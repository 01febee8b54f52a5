package whitelist

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/khanhnv2901/webapp-tripwire/internal/domain/whitelist"
)

// Service provides application-level whitelist operations
type Service struct {
	repo   whitelist.Repository
	logger *zap.SugaredLogger
}

// NewService creates a new whitelist service
func NewService(repo whitelist.Repository, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Open loads the whitelist of one install root for the duration of a scan.
func (s *Service) Open(ctx context.Context, root string) (*Session, error) {
	wl, err := s.repo.Load(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to load whitelist for %s: %w", root, err)
	}
	return &Session{repo: s.repo, wl: wl, logger: s.logger}, nil
}

// RemoveMatching un-whitelists every entry containing substr across all
// persisted whitelists and returns the removed paths. Only whitelists that
// changed are rewritten.
func (s *Service) RemoveMatching(ctx context.Context, substr string) ([]string, error) {
	all, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list whitelists: %w", err)
	}

	var removed []string
	for _, wl := range all {
		paths := wl.RemoveMatching(substr)
		if len(paths) == 0 {
			continue
		}
		if err := s.repo.Save(ctx, wl); err != nil {
			return removed, fmt.Errorf("failed to save whitelist for %s: %w", wl.Root(), err)
		}
		for _, p := range paths {
			s.logger.Infow("Removed from whitelist", "file", p)
		}
		removed = append(removed, paths...)
	}
	return removed, nil
}

// List returns every persisted whitelist.
func (s *Service) List(ctx context.Context) ([]*whitelist.Whitelist, error) {
	all, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list whitelists: %w", err)
	}
	return all, nil
}

// Session is the whitelist of one install root owned by one scan. Every
// mutation is written through before it returns.
type Session struct {
	repo   whitelist.Repository
	logger *zap.SugaredLogger

	mu sync.Mutex
	wl *whitelist.Whitelist
}

// Root returns the install root the session belongs to.
func (s *Session) Root() string {
	return s.wl.Root()
}

// Lookup returns the accepted digest for path.
func (s *Session) Lookup(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wl.Lookup(path)
}

// Add accepts path at digest and persists the whole whitelist.
func (s *Session) Add(ctx context.Context, path, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wl.Add(path, digest); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, s.wl); err != nil {
		return fmt.Errorf("failed to save whitelist: %w", err)
	}
	return nil
}

// RemoveMatching drops entries containing substr from this root's whitelist.
// Nothing is written when nothing matched.
func (s *Session) RemoveMatching(ctx context.Context, substr string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.wl.RemoveMatching(substr)
	if len(removed) == 0 {
		return nil, nil
	}
	if err := s.repo.Save(ctx, s.wl); err != nil {
		return nil, fmt.Errorf("failed to save whitelist: %w", err)
	}
	for _, p := range removed {
		s.logger.Debugw("Removed from whitelist", "file", p)
	}
	return removed, nil
}

// Len returns the number of entries.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wl.Len()
}
