// Package constants centralizes configuration defaults shared across the CLI.
//
// File permissions, fetch limits, and the minimum WordPress version for
// addon inventories live here so cmd/ and internal/ reference one value
// without introducing import cycles.
package constants
