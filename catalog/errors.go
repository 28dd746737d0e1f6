package catalog

import "errors"

var (
	// ErrSymbolNotFound indicates the symbol has no version to read.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrVersionNotFound indicates the symbol exists but not at the
	// requested point in time.
	ErrVersionNotFound = errors.New("version not found")

	// ErrSnapshotNotFound indicates an unknown snapshot name.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotExists indicates a snapshot name is already taken.
	ErrSnapshotExists = errors.New("snapshot already exists")

	// ErrInvalidTimePoint indicates a time point that cannot be parsed.
	ErrInvalidTimePoint = errors.New("invalid time point")

	// ErrClosed indicates use of a closed library.
	ErrClosed = errors.New("library closed")
)

// IsNotFound reports whether err means there is nothing to read at the
// requested point in time.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSymbolNotFound) ||
		errors.Is(err, ErrVersionNotFound) ||
		errors.Is(err, ErrSnapshotNotFound)
}
