package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/khanhnv2901/webapp-tripwire/internal/domain/whitelist"
	"github.com/khanhnv2901/webapp-tripwire/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/webapp-tripwire/internal/shared/errors"
)

// whitelistDTO is the data transfer object for JSON serialization
type whitelistDTO struct {
	Root    string            `json:"root"`
	Entries map[string]string `json:"entries"`
}

// WhitelistRepository implements the whitelist.Repository interface with
// one JSON file per install root, named after a hash of the root path.
type WhitelistRepository struct {
	dir string
	mu  sync.RWMutex
}

// NewWhitelistRepository creates a new JSON-based whitelist repository
func NewWhitelistRepository(dataDir string) (*WhitelistRepository, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	dir := filepath.Join(dataDir, "whitelists")
	if err := os.MkdirAll(dir, constants.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create whitelist directory: %w", err)
	}

	return &WhitelistRepository{dir: dir}, nil
}

// Load returns the whitelist for root. An absent or empty file is an empty whitelist.
func (r *WhitelistRepository) Load(ctx context.Context, root string) (*whitelist.Whitelist, error) {
	root = filepath.Clean(root)

	r.mu.RLock()
	defer r.mu.RUnlock()

	dto, err := r.loadFromFile(r.fileFor(root))
	if err != nil {
		return nil, err
	}
	if dto == nil {
		return whitelist.New(root)
	}
	if dto.Root != root {
		return nil, fmt.Errorf("%w: whitelist file for %s belongs to %s", sharedErrors.ErrDeserializationFailed, root, dto.Root)
	}
	return whitelist.Reconstruct(dto.Root, dto.Entries), nil
}

// Save rewrites the whole whitelist file atomically
func (r *WhitelistRepository) Save(ctx context.Context, wl *whitelist.Whitelist) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dto := whitelistDTO{Root: wl.Root(), Entries: wl.Entries()}
	if err := writeJSONAtomic(r.fileFor(wl.Root()), dto); err != nil {
		return fmt.Errorf("%w: whitelist for %s: %v", sharedErrors.ErrSerializationFailed, wl.Root(), err)
	}
	return nil
}

// FindAll retrieves every persisted whitelist, ordered by root
func (r *WhitelistRepository) FindAll(ctx context.Context) ([]*whitelist.Whitelist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list whitelists: %w", err)
	}

	var result []*whitelist.Whitelist
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		dto, err := r.loadFromFile(filepath.Join(r.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if dto == nil || dto.Root == "" {
			continue
		}
		result = append(result, whitelist.Reconstruct(dto.Root, dto.Entries))
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Root() < result[j].Root() })
	return result, nil
}

// Helper methods

func (r *WhitelistRepository) fileFor(root string) string {
	name := strconv.FormatUint(xxhash.Sum64String(root), 16) + ".json"
	return filepath.Join(r.dir, name)
}

// loadFromFile returns nil without error when the file is absent or blank.
func (r *WhitelistRepository) loadFromFile(filePath string) (*whitelistDTO, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read whitelist: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	var dto whitelistDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", sharedErrors.ErrDeserializationFailed, filePath, err)
	}
	return &dto, nil
}
