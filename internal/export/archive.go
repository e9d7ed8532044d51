package export

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"dcledger/internal/core"
)

// ArchiveID names one monthly archive. Membership is fixed by the
// movement's entry date at append time and never migrates.
type ArchiveID struct {
	Year  int
	Month int
}

// ArchiveFor derives the archive a movement belongs to.
func ArchiveFor(d core.Date) ArchiveID {
	return ArchiveID{Year: d.Year(), Month: d.Month()}
}

// String renders the canonical archive name, e.g. "2025-08".
func (a ArchiveID) String() string {
	return fmt.Sprintf("%04d-%02d", a.Year, a.Month)
}

// ParseArchiveID parses a "YYYY-MM" archive name.
func ParseArchiveID(s string) (ArchiveID, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "-", 2)
	if len(parts) != 2 {
		return ArchiveID{}, fmt.Errorf("malformed archive id %q", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 1 {
		return ArchiveID{}, fmt.Errorf("malformed archive id %q", s)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return ArchiveID{}, fmt.Errorf("malformed archive id %q", s)
	}
	return ArchiveID{Year: year, Month: month}, nil
}

// SortArchives orders ids by year, then month.
func SortArchives(ids []ArchiveID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Year != ids[j].Year {
			return ids[i].Year < ids[j].Year
		}
		return ids[i].Month < ids[j].Month
	})
}
