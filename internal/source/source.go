// Package source defines where input tables come from and where processed
// files go. A Lister yields named raw files from a backend (local folder or a
// remote document library); a Mover relocates a file to the imported or
// broken area of the same backend.
package source

import "context"

// File is one named raw table. A backend that fails to read a particular
// file reports it here via Err instead of failing the whole listing; an
// unreadable file is quarantined, never a batch abort.
type File struct {
	Name    string
	Content []byte
	Err     error
}

// Destination names the two processed-file areas.
type Destination string

const (
	// DestImported receives files whose every row was accepted.
	DestImported Destination = "imported"
	// DestBroken receives unreadable files and files with rejected rows.
	DestBroken Destination = "broken"
)

// Lister yields the batch of input files, in a stable order.
type Lister interface {
	List(ctx context.Context) ([]File, error)
}

// Mover relocates a named input file to dest within the same backend.
type Mover interface {
	Move(ctx context.Context, name string, dest Destination) error
}
