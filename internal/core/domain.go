package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Inward  Direction = "Inward"
	Outward Direction = "Outward"
)

type (
	// Direction distinguishes material received from a customer (Inward)
	// from material returned or dispatched back (Outward).
	Direction string

	Date struct {
		time.Time
	}

	// Movement is a single journal record. Rate and Amount are set for
	// Inward records only; DCUniqueNo for Outward records only.
	Movement struct {
		ID          int64
		Direction   Direction
		EntryDate   Date
		CustomerID  int64
		ItemID      int64
		DCNoCust    string
		Qty         decimal.Decimal
		Rate        decimal.Decimal
		Amount      decimal.Decimal
		DCUniqueNo  string
		ExportState ExportState
	}

	// InwardEntry is the input for recording a receipt of material.
	InwardEntry struct {
		EntryDate  Date
		CustomerID int64
		ItemID     int64
		DCNoCust   string
		Qty        decimal.Decimal
		Rate       decimal.Decimal
	}

	// OutwardEntry is the input for recording a return/dispatch.
	OutwardEntry struct {
		EntryDate  Date
		CustomerID int64
		ItemID     int64
		DCNoCust   string
		DCUniqueNo string
		Qty        decimal.Decimal
	}

	Customer struct {
		ID      int64
		Name    string
		GSTNo   string
		Address string
		Mobile  string
		Email   string
	}

	Item struct {
		ID       int64
		Name     string
		HSNCode  string
		Material string
	}
)

// ExportState tracks whether a journal row has been projected into its
// monthly archive yet.
type ExportState string

const (
	ExportPending ExportState = "pending"
	Exported      ExportState = "exported"
	ExportFailed  ExportState = "error"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUnknownCustomer  = errors.New("unknown customer")
	ErrUnknownItem      = errors.New("unknown item")
	ErrNegativeQty      = errors.New("negative quantity")
	ErrNegativeRate     = errors.New("negative rate")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrEmptyName        = errors.New("empty name")
)

func (d Direction) Valid() bool {
	return d == Inward || d == Outward
}

// ParseDirection accepts the wire form of a direction, case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inward":
		return Inward, nil
	case "outward":
		return Outward, nil
	}
	return "", ErrInvalidDirection
}

// NewDate creates a Date from year, month, day at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String returns the date in YYYY-MM-DD form.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// Year returns the calendar year.
func (d Date) Year() int {
	return d.Time.Year()
}

// Month returns the calendar month as an int.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// DCKey normalizes a customer DC reference into its reconciliation key.
// Keys are case-sensitive trimmed strings; an empty key marks the
// movement as untracked rather than fully pending.
func DCKey(s string) string {
	return strings.TrimSpace(s)
}

func (e InwardEntry) Validate() error {
	if err := e.EntryDate.Validate(); err != nil {
		return err
	}
	if e.Qty.IsNegative() {
		return ErrNegativeQty
	}
	if e.Rate.IsNegative() {
		return ErrNegativeRate
	}
	return nil
}

// Amount derives the inward line amount. It is computed once at append
// time and never recomputed afterwards.
func (e InwardEntry) Amount() decimal.Decimal {
	return e.Qty.Mul(e.Rate)
}

func (e OutwardEntry) Validate() error {
	if err := e.EntryDate.Validate(); err != nil {
		return err
	}
	if e.Qty.IsNegative() {
		return ErrNegativeQty
	}
	return nil
}

func (c Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (i Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return ErrEmptyName
	}
	return nil
}
