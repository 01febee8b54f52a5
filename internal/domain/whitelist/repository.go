package whitelist

import "context"

// Repository defines the interface for whitelist persistence
type Repository interface {
	// Load returns the whitelist for root, or an empty one when none is stored
	Load(ctx context.Context, root string) (*Whitelist, error)

	// Save rewrites the whole persisted whitelist
	Save(ctx context.Context, wl *Whitelist) error

	// FindAll returns every persisted whitelist
	FindAll(ctx context.Context) ([]*Whitelist, error)
}
