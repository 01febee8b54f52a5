package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// DefaultFetchTimeout bounds a single reference archive download.
	DefaultFetchTimeout = 5 * time.Minute
	// MaxArchiveBytes caps how much of a vendor archive we are willing to buffer.
	MaxArchiveBytes = 256 << 20
	// MaxArchiveEntryBytes caps a single unpacked archive member.
	MaxArchiveEntryBytes = 64 << 20
)

const (
	// MinWPCLIVersion is the oldest WordPress core wp-cli can inventory.
	MinWPCLIVersion = "3.5.2"
)
