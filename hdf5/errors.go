// Package hdf5 reads and writes HDF5 files.
package hdf5

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fennelab/hdf5/internal/binary"
	"github.com/fennelab/hdf5/internal/btree"
	"github.com/fennelab/hdf5/internal/filter"
	"github.com/fennelab/hdf5/internal/object"
	"github.com/fennelab/hdf5/internal/superblock"
)

// Common errors
var (
	// ErrInvalidFormat reports that a file is not an HDF5 file or carries a
	// superblock version this library does not understand.
	ErrInvalidFormat = errors.New("invalid HDF5 file")

	// ErrCorruptFile reports a failed structural checksum: the superblock or
	// object header checksum, or a fletcher32 chunk checksum.
	ErrCorruptFile = errors.New("corrupt HDF5 file")

	// ErrUnsupportedFeature reports a file construct or write plan outside
	// the supported subset, such as an external link target, an unknown
	// filter, or a B-tree larger than a single node.
	ErrUnsupportedFeature = errors.New("unsupported HDF5 feature")

	// ErrOutOfBounds reports an offset or size that points past the end of
	// the file.
	ErrOutOfBounds = binary.ErrOutOfBounds

	// ErrCircularLink matches any *CircularLinkError via errors.Is.
	ErrCircularLink = errors.New("circular link")

	ErrNotFound    = errors.New("object not found")
	ErrNotDataset  = errors.New("object is not a dataset")
	ErrNotGroup    = errors.New("object is not a group")
	ErrInvalidPath = errors.New("invalid path")
	ErrClosed      = errors.New("file is closed")
)

// MaxLinkDepth is the maximum number of soft links followed in a single
// path resolution. A chain longer than this is treated as circular.
const MaxLinkDepth = 100

// CircularLinkError reports a soft-link cycle. Chain holds the link targets
// in the order they were visited; the final entry repeats an earlier one.
type CircularLinkError struct {
	Chain []string
}

func (e *CircularLinkError) Error() string {
	return "circular link: " + strings.Join(e.Chain, " -> ")
}

// Is reports a match against ErrCircularLink so callers can test with
// errors.Is without knowing the concrete type.
func (e *CircularLinkError) Is(target error) bool {
	return target == ErrCircularLink
}

// classify maps internal sentinel errors onto the public taxonomy. Errors
// that already belong to the taxonomy, and operating system errors, pass
// through unchanged.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, superblock.ErrChecksumMismatch),
		errors.Is(err, object.ErrChecksumMismatch),
		errors.Is(err, filter.ErrChecksumMismatch):
		return fmt.Errorf("%w: %v", ErrCorruptFile, err)
	case errors.Is(err, superblock.ErrNotHDF5),
		errors.Is(err, superblock.ErrUnsupportedVersion),
		errors.Is(err, superblock.ErrInvalidSuperblock):
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	case errors.Is(err, object.ErrUnsupportedVersion),
		errors.Is(err, btree.ErrTreeTooLarge),
		errors.Is(err, filter.ErrUnknownFilter):
		return fmt.Errorf("%w: %v", ErrUnsupportedFeature, err)
	}
	return err
}
