// Package xlsx stores monthly archives as Excel workbooks, one file per
// month, with an Inward and an Outward sheet.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"dcledger/internal/core"
	"dcledger/internal/export"
)

// Store writes workbooks under a fixed export directory handed to the
// constructor. Every projection rewrites the whole workbook, so writes
// are serialized per archive and land via temp-file-and-rename: a crash
// mid-write never leaves a truncated archive behind.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[export.ArchiveID]*sync.Mutex
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &Store{
		dir:   dir,
		locks: make(map[export.ArchiveID]*sync.Mutex),
	}, nil
}

func (s *Store) path(id export.ArchiveID) string {
	return filepath.Join(s.dir, id.String()+".xlsx")
}

// lockFor returns the one mutex guarding a monthly archive.
func (s *Store) lockFor(id export.ArchiveID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Project appends one row to its direction sheet. The sibling sheet is
// carried through the rewrite untouched.
func (s *Store) Project(ctx context.Context, r export.Row) error {
	if !r.Direction.Valid() {
		return core.ErrInvalidDirection
	}
	id := r.Archive()

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	path := s.path(id)
	f, created, err := s.open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sheet := export.SheetName(r.Direction)
	if err := ensureSheet(f, r.Direction); err != nil {
		return err
	}
	if created {
		// excelize seeds new workbooks with a default sheet.
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("drop default sheet: %w", err)
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("count %s rows: %w", sheet, err)
	}
	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return fmt.Errorf("row coordinate: %w", err)
	}
	cells := r.Cells()
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("append %s row: %w", sheet, err)
	}

	if err := s.saveAtomic(f, id); err != nil {
		return err
	}

	slog.DebugContext(ctx, "Projected movement into archive",
		"archive", id.String(),
		"sheet", sheet,
		"entry_date", r.EntryDate.String())
	return nil
}

// open loads an existing workbook or starts a new one. A workbook that
// exists but cannot be parsed is corrupt, never "absent".
func (s *Store) open(path string) (f *excelize.File, created bool, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			return excelize.NewFile(), true, nil
		}
		return nil, false, fmt.Errorf("stat archive: %w", statErr)
	}

	f, err = excelize.OpenFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", export.ErrCorruptArchive, filepath.Base(path), err)
	}
	return f, false, nil
}

func ensureSheet(f *excelize.File, dir core.Direction) error {
	sheet := export.SheetName(dir)
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return fmt.Errorf("sheet index: %w", err)
	}
	if idx != -1 {
		return nil
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	header := export.Header(dir)
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &cells); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	return nil
}

// saveAtomic writes the workbook to a temp file in the export directory
// and renames it over the archive.
func (s *Store) saveAtomic(f *excelize.File, id export.ArchiveID) error {
	tmp, err := os.CreateTemp(s.dir, "."+id.String()+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	tmpName := tmp.Name()

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write archive %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp archive: %w", err)
	}
	if err := os.Rename(tmpName, s.path(id)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace archive %s: %w", id, err)
	}
	return nil
}

// ListArchives returns the monthly archives present on disk, ordered by
// year then month.
func (s *Store) ListArchives(ctx context.Context) ([]export.ArchiveID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read export directory: %w", err)
	}

	var ids []export.ArchiveID
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".xlsx") {
			continue
		}
		id, err := export.ParseArchiveID(strings.TrimSuffix(name, ".xlsx"))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	export.SortArchives(ids)
	return ids, nil
}

// ReadTable reads one direction sheet back. A missing archive or sheet
// is an empty table; an unreadable workbook is ErrCorruptArchive.
func (s *Store) ReadTable(ctx context.Context, id export.ArchiveID, dir core.Direction) ([]export.Row, error) {
	if !dir.Valid() {
		return nil, core.ErrInvalidDirection
	}

	path := s.path(id)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", export.ErrCorruptArchive, filepath.Base(path), err)
	}
	defer f.Close()

	sheet := export.SheetName(dir)
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, fmt.Errorf("sheet index: %w", err)
	}
	if idx == -1 {
		return nil, nil
	}

	lines, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", export.ErrCorruptArchive, filepath.Base(path), err)
	}

	var rows []export.Row
	for i, line := range lines {
		if i == 0 {
			continue // header
		}
		row, err := export.ParseCells(dir, line)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: %v", export.ErrCorruptArchive, sheet, i+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// OpenArchive streams the workbook file for download.
func (s *Store) OpenArchive(ctx context.Context, id export.ArchiveID) (io.ReadCloser, error) {
	f, err := os.Open(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", id, err)
	}
	return f, nil
}
