// Package memory keeps monthly archives in process memory. It backs
// tests and the dev export backend.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/xuri/excelize/v2"

	"dcledger/internal/core"
	"dcledger/internal/export"
)

type archive struct {
	inward  []export.Row
	outward []export.Row
}

type Store struct {
	mu       sync.Mutex
	archives map[export.ArchiveID]*archive
}

func New() *Store {
	return &Store{archives: make(map[export.ArchiveID]*archive)}
}

func (s *Store) Project(_ context.Context, r export.Row) error {
	if !r.Direction.Valid() {
		return core.ErrInvalidDirection
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.Archive()
	a, ok := s.archives[id]
	if !ok {
		a = &archive{}
		s.archives[id] = a
	}
	if r.Direction == core.Inward {
		a.inward = append(a.inward, r)
	} else {
		a.outward = append(a.outward, r)
	}
	return nil
}

func (s *Store) ListArchives(_ context.Context) ([]export.ArchiveID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]export.ArchiveID, 0, len(s.archives))
	for id := range s.archives {
		ids = append(ids, id)
	}
	export.SortArchives(ids)
	return ids, nil
}

func (s *Store) ReadTable(_ context.Context, id export.ArchiveID, dir core.Direction) ([]export.Row, error) {
	if !dir.Valid() {
		return nil, core.ErrInvalidDirection
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.archives[id]
	if !ok {
		return nil, nil
	}
	if dir == core.Inward {
		return append([]export.Row(nil), a.inward...), nil
	}
	return append([]export.Row(nil), a.outward...), nil
}

// OpenArchive renders the archive as a workbook on the fly so downloads
// behave the same as with the xlsx backend.
func (s *Store) OpenArchive(ctx context.Context, id export.ArchiveID) (io.ReadCloser, error) {
	s.mu.Lock()
	a, ok := s.archives[id]
	var inward, outward []export.Row
	if ok {
		inward = append([]export.Row(nil), a.inward...)
		outward = append([]export.Row(nil), a.outward...)
	}
	s.mu.Unlock()

	if !ok {
		return nil, core.ErrNotFound
	}

	f := excelize.NewFile()
	defer f.Close()

	for _, t := range []struct {
		dir  core.Direction
		rows []export.Row
	}{
		{core.Inward, inward},
		{core.Outward, outward},
	} {
		if len(t.rows) == 0 {
			continue
		}
		sheet := export.SheetName(t.dir)
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
		}
		header := export.Header(t.dir)
		cells := make([]any, len(header))
		for i, h := range header {
			cells[i] = h
		}
		if err := f.SetSheetRow(sheet, "A1", &cells); err != nil {
			return nil, fmt.Errorf("write %s header: %w", sheet, err)
		}
		for i, row := range t.rows {
			axis, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return nil, fmt.Errorf("row coordinate: %w", err)
			}
			rc := row.Cells()
			if err := f.SetSheetRow(sheet, axis, &rc); err != nil {
				return nil, fmt.Errorf("write %s row: %w", sheet, err)
			}
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render archive %s: %w", id, err)
	}
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}
