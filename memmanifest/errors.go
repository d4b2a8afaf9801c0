package memmanifest

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/bobg/scm/mpath"
)

var (
	// ErrNotTree is returned when a tree operation is applied to a blob or conflict.
	ErrNotTree = errors.New("not a tree")

	// ErrSaved is returned when a Root is used after a successful Save.
	ErrSaved = errors.New("manifest already saved")

	// ErrUnresolvedConflict is matched by *ConflictError.
	ErrUnresolvedConflict = errors.New("unresolved conflict")

	// ErrRootPath is returned when an operation needs a non-empty path.
	ErrRootPath = errors.New("operation not valid at the root")

	// ErrForeignEntry is returned when combining entries from different Roots.
	ErrForeignEntry = errors.New("entry belongs to a different manifest")
)

// ConflictError reports a conflict at Path.
type ConflictError struct {
	Path mpath.Path
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unresolved conflict at %q", e.Path.String())
}

func (e *ConflictError) Is(target error) bool { return target == ErrUnresolvedConflict }
