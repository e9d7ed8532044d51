package export

import (
	"fmt"

	"github.com/shopspring/decimal"

	"dcledger/internal/core"
)

// Row is one display-formatted archive line: resolved names, not raw
// ids. Rate and Amount are meaningful for Inward rows only, DCUniqueNo
// for Outward rows only.
type Row struct {
	Direction    core.Direction
	EntryDate    core.Date
	CustomerName string
	CustomerGST  string
	ItemName     string
	HSNCode      string
	DCNoCust     string
	DCUniqueNo   string
	Qty          decimal.Decimal
	Rate         decimal.Decimal
	Amount       decimal.Decimal
}

// Archive returns the monthly archive this row lands in.
func (r Row) Archive() ArchiveID {
	return ArchiveFor(r.EntryDate)
}

// SheetName is the table name inside the workbook for a direction.
func SheetName(dir core.Direction) string {
	return string(dir)
}

// Header returns the fixed column header for a direction table.
func Header(dir core.Direction) []string {
	if dir == core.Inward {
		return []string{"entry_date", "customer_name", "customer_gst", "item_name", "hsn_code", "dc_no_cust", "qty", "rate", "amt"}
	}
	return []string{"entry_date", "customer_name", "customer_gst", "item_name", "hsn_code", "dc_no_cust", "dc_unique_no_noncust", "qty"}
}

// Cells flattens a row into the column order of its direction table.
func (r Row) Cells() []any {
	if r.Direction == core.Inward {
		return []any{
			r.EntryDate.String(), r.CustomerName, r.CustomerGST, r.ItemName, r.HSNCode,
			r.DCNoCust, r.Qty.String(), r.Rate.String(), r.Amount.String(),
		}
	}
	return []any{
		r.EntryDate.String(), r.CustomerName, r.CustomerGST, r.ItemName, r.HSNCode,
		r.DCNoCust, r.DCUniqueNo, r.Qty.String(),
	}
}

// ParseCells rebuilds a Row from a sheet line. Short lines are padded:
// spreadsheet readers drop trailing empty cells.
func ParseCells(dir core.Direction, cells []string) (Row, error) {
	want := len(Header(dir))
	if len(cells) < want {
		padded := make([]string, want)
		copy(padded, cells)
		cells = padded
	}

	date, err := core.ParseDate(cells[0])
	if err != nil {
		return Row{}, fmt.Errorf("archive row: bad entry date %q", cells[0])
	}

	r := Row{
		Direction:    dir,
		EntryDate:    date,
		CustomerName: cells[1],
		CustomerGST:  cells[2],
		ItemName:     cells[3],
		HSNCode:      cells[4],
		DCNoCust:     cells[5],
	}

	if dir == core.Inward {
		if r.Qty, err = parseDecimalCell(cells[6]); err != nil {
			return Row{}, fmt.Errorf("archive row: bad qty %q", cells[6])
		}
		if r.Rate, err = parseDecimalCell(cells[7]); err != nil {
			return Row{}, fmt.Errorf("archive row: bad rate %q", cells[7])
		}
		if r.Amount, err = parseDecimalCell(cells[8]); err != nil {
			return Row{}, fmt.Errorf("archive row: bad amount %q", cells[8])
		}
		return r, nil
	}

	r.DCUniqueNo = cells[6]
	if r.Qty, err = parseDecimalCell(cells[7]); err != nil {
		return Row{}, fmt.Errorf("archive row: bad qty %q", cells[7])
	}
	return r, nil
}

func parseDecimalCell(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
