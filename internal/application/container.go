package application

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/khanhnv2901/webapp-tripwire/internal/application/reference"
	"github.com/khanhnv2901/webapp-tripwire/internal/application/tripwire"
	whitelistapp "github.com/khanhnv2901/webapp-tripwire/internal/application/whitelist"
	"github.com/khanhnv2901/webapp-tripwire/internal/infrastructure/fetch"
	"github.com/khanhnv2901/webapp-tripwire/internal/infrastructure/inventory"
	"github.com/khanhnv2901/webapp-tripwire/internal/infrastructure/persistence/json"
	"github.com/khanhnv2901/webapp-tripwire/internal/scanner"
)

// Config selects the collaborators wired into a Container.
type Config struct {
	Logger *zap.SugaredLogger
	// DisableFetch leaves the reference store without a fetcher, so only
	// stored checksums are used.
	DisableFetch bool
	WPCLI        string
	FetchOptions []fetch.Option
}

// Container holds all application services and repositories
// This is a simple dependency injection container
type Container struct {
	// Repositories
	ChecksumRepo  *json.ChecksumRepository
	WhitelistRepo *json.WhitelistRepository

	// Services
	References *reference.Store
	Whitelists *whitelistapp.Service
	Tripwire   *tripwire.Service
	Engine     *scanner.Engine
}

// NewContainer creates a new application service container
func NewContainer(dataDir string, cfg Config) (*Container, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	// Initialize repositories
	checksumRepo, err := json.NewChecksumRepository(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create checksum repository: %w", err)
	}

	whitelistRepo, err := json.NewWhitelistRepository(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create whitelist repository: %w", err)
	}

	// Initialize services
	var fetcher reference.Fetcher
	if !cfg.DisableFetch {
		fetcher = fetch.NewArchiveFetcher(logger, cfg.FetchOptions...)
	}
	references := reference.NewStore(checksumRepo, fetcher, logger)
	whitelists := whitelistapp.NewService(whitelistRepo, logger)
	engine := scanner.NewEngine(logger)
	wpcli := inventory.NewWPCLI(cfg.WPCLI, logger)

	return &Container{
		ChecksumRepo:  checksumRepo,
		WhitelistRepo: whitelistRepo,
		References:    references,
		Whitelists:    whitelists,
		Tripwire:      tripwire.NewService(engine, references, whitelists, wpcli, logger),
		Engine:        engine,
	}, nil
}
