// Package export defines the monthly archive model: one workbook per
// calendar month, holding an Inward and an Outward table. Adapters live
// in the xlsx and memory subpackages.
package export

import (
	"context"
	"errors"
	"io"

	"dcledger/internal/core"
)

// ErrCorruptArchive marks a workbook that exists but cannot be read. It
// is deliberately distinct from an absent archive or sheet, which reads
// report as an empty table.
var ErrCorruptArchive = errors.New("corrupt archive")

// Ports for archive adapters.
type (
	// Projector appends one display-formatted row to the correct
	// direction table of the correct monthly archive, creating the
	// archive or table as needed. The sibling table must survive every
	// write intact.
	Projector interface {
		Project(ctx context.Context, r Row) error
	}

	Lister interface {
		ListArchives(ctx context.Context) ([]ArchiveID, error)
	}

	// TableReader reads one direction table back out of an archive.
	// Absent archives and absent tables yield an empty slice, not an
	// error.
	TableReader interface {
		ReadTable(ctx context.Context, id ArchiveID, dir core.Direction) ([]Row, error)
	}

	// WorkbookOpener streams a whole archive for download.
	WorkbookOpener interface {
		OpenArchive(ctx context.Context, id ArchiveID) (io.ReadCloser, error)
	}

	// Store is the full archive surface the application wires up.
	Store interface {
		Projector
		Lister
		TableReader
		WorkbookOpener
	}
)
