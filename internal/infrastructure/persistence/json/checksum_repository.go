package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/khanhnv2901/webapp-tripwire/internal/domain/integrity"
	"github.com/khanhnv2901/webapp-tripwire/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/webapp-tripwire/internal/shared/errors"
	"github.com/khanhnv2901/webapp-tripwire/internal/shared/security"
)

// checksumDTO is the on-disk form of a reference digest set
type checksumDTO struct {
	Application string                      `json:"application"`
	Version     string                      `json:"version"`
	Files       map[string]integrity.Digest `json:"files"`
}

// ChecksumRepository stores reference digest sets as
// <dir>/<application>/<version>.json.
type ChecksumRepository struct {
	dir string
	mu  sync.RWMutex
}

// NewChecksumRepository creates a JSON-based reference checksum repository
func NewChecksumRepository(dataDir string) (*ChecksumRepository, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	dir := filepath.Join(dataDir, "checksums")
	if err := os.MkdirAll(dir, constants.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create checksum directory: %w", err)
	}

	return &ChecksumRepository{dir: dir}, nil
}

// Save persists a reference digest set, replacing any earlier copy
func (r *ChecksumRepository) Save(ctx context.Context, set *integrity.ReferenceDigestSet) error {
	filePath, err := r.pathFor(set.Application(), set.Version())
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dto := checksumDTO{
		Application: set.Application(),
		Version:     set.Version(),
		Files:       set.Files(),
	}
	if err := writeJSONAtomic(filePath, dto); err != nil {
		return fmt.Errorf("%w: %s %s: %v", sharedErrors.ErrSerializationFailed, set.Application(), set.Version(), err)
	}
	return nil
}

// Find loads the reference digest set for application and version
func (r *ChecksumRepository) Find(ctx context.Context, application, version string) (*integrity.ReferenceDigestSet, error) {
	filePath, err := r.pathFor(application, version)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s %s", sharedErrors.ErrReferenceUnavailable, application, version)
		}
		return nil, fmt.Errorf("failed to read checksums: %w", err)
	}

	var dto checksumDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", sharedErrors.ErrDeserializationFailed, filePath, err)
	}
	return integrity.NewReferenceDigestSet(application, version, dto.Files), nil
}

// Versions lists the stored versions of application
func (r *ChecksumRepository) Versions(ctx context.Context, application string) ([]string, error) {
	if err := validateKey(application); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(r.dir, application))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list checksums: %w", err)
	}

	var versions []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		versions = append(versions, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(versions)
	return versions, nil
}

// Applications lists every application key with stored checksums
func (r *ChecksumRepository) Applications(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list checksums: %w", err)
	}

	var apps []string
	for _, e := range entries {
		if e.IsDir() {
			apps = append(apps, e.Name())
		}
	}
	sort.Strings(apps)
	return apps, nil
}

func (r *ChecksumRepository) pathFor(application, version string) (string, error) {
	if err := validateKey(application); err != nil {
		return "", err
	}
	if err := validateKey(version); err != nil {
		return "", err
	}
	return security.ResolveWithin(r.dir, application, version+".json")
}

func validateKey(name string) error {
	if err := security.ValidateSegment(name); err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrInvalidReferenceKey, err)
	}
	return nil
}
