package errors

import "errors"

// Domain errors
var (
	// Detection errors
	ErrUnknownApplication = errors.New("unknown application")

	// Reference checksum errors
	ErrReferenceUnavailable = errors.New("reference checksums unavailable")
	ErrFetchTimeout         = errors.New("reference fetch timed out")
	ErrInvalidReferenceKey  = errors.New("invalid reference key")
	ErrArchiveTooLarge      = errors.New("reference archive exceeds size limit")
	ErrUnsupportedArchive   = errors.New("unsupported reference archive")

	// Scan errors
	ErrUnreadable          = errors.New("cannot read file")
	ErrDirectoryUnlistable = errors.New("cannot list directory")

	// Whitelist errors
	ErrEmptyWhitelistRoot    = errors.New("whitelist root cannot be empty")
	ErrRelativeWhitelistPath = errors.New("whitelist path must be absolute")

	// Inventory errors
	ErrInventoryFormat  = errors.New("unexpected addon inventory output")
	ErrUnknownAddonKind = errors.New("unknown addon kind")
	ErrAddonScanTooOld  = errors.New("wp-cli plugin and theme scans require a newer WordPress")
	ErrNotWordPress     = errors.New("addon scans need a WordPress install")

	// Repository errors
	ErrSerializationFailed   = errors.New("serialization failed")
	ErrDeserializationFailed = errors.New("deserialization failed")

	// Validation errors
	ErrConflictingFlags = errors.New("conflicting whitelist options given")
	ErrNoTargets        = errors.New("you must specify a path to inspect")
)
