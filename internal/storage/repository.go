package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"dcledger/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the movement journal and the master directory,
// backed by a single SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Filter narrows journal queries. Zero fields are ignored; both set means
// both must match.
type Filter struct {
	CustomerID int64
	ItemID     int64
}

// AppendInward inserts a receipt record inside a single transaction,
// deriving the line amount from qty and rate. The amount is never
// recomputed after this point.
func (r *SQLiteRepository) AppendInward(ctx context.Context, e core.InwardEntry) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	if err := resolveRefs(ctx, tx, e.CustomerID, e.ItemID); err != nil {
		return 0, err
	}

	amount := e.Amount()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO inward (entry_date, customer_id, item_id, dc_no_cust, qty, rate, amt, export_state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EntryDate.String(), e.CustomerID, e.ItemID, e.DCNoCust,
		e.Qty.String(), e.Rate.String(), amount.String(), string(core.ExportPending),
	)
	if err != nil {
		return 0, fmt.Errorf("insert inward: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("inward insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit inward: %w", err)
	}

	slog.InfoContext(ctx, "Inward movement recorded",
		"id", id,
		"customer_id", e.CustomerID,
		"item_id", e.ItemID,
		"dc_no_cust", e.DCNoCust,
		"qty", e.Qty.String(),
		"amt", amount.String())

	return id, nil
}

// AppendOutward inserts a dispatch record inside a single transaction.
func (r *SQLiteRepository) AppendOutward(ctx context.Context, e core.OutwardEntry) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	if err := resolveRefs(ctx, tx, e.CustomerID, e.ItemID); err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO outward (entry_date, customer_id, item_id, dc_no_cust, dc_unique_no_noncust, qty, export_state)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.EntryDate.String(), e.CustomerID, e.ItemID, e.DCNoCust, e.DCUniqueNo,
		e.Qty.String(), string(core.ExportPending),
	)
	if err != nil {
		return 0, fmt.Errorf("insert outward: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("outward insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outward: %w", err)
	}

	slog.InfoContext(ctx, "Outward movement recorded",
		"id", id,
		"customer_id", e.CustomerID,
		"item_id", e.ItemID,
		"dc_no_cust", e.DCNoCust,
		"dc_unique_no", e.DCUniqueNo,
		"qty", e.Qty.String())

	return id, nil
}

func resolveRefs(ctx context.Context, tx *sql.Tx, customerID, itemID int64) error {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM customers WHERE id = ?`, customerID).Scan(&n); err != nil {
		return fmt.Errorf("resolve customer: %w", err)
	}
	if n == 0 {
		return core.ErrUnknownCustomer
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM items WHERE id = ?`, itemID).Scan(&n); err != nil {
		return fmt.Errorf("resolve item: %w", err)
	}
	if n == 0 {
		return core.ErrUnknownItem
	}
	return nil
}

// DeleteMovement removes a journal record by identity. Rows already
// projected into a monthly archive stay there; archives are snapshots,
// not live views.
func (r *SQLiteRepository) DeleteMovement(ctx context.Context, dir core.Direction, id int64) error {
	table, err := tableFor(dir)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s movement: %w", dir, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s movement: %w", dir, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Movement deleted", "direction", dir, "id", id)
	return nil
}

// GetMovement loads a single record by direction and id.
func (r *SQLiteRepository) GetMovement(ctx context.Context, dir core.Direction, id int64) (core.Movement, error) {
	table, err := tableFor(dir)
	if err != nil {
		return core.Movement{}, err
	}

	rows, err := r.queryMovements(ctx, dir, `SELECT `+columnsFor(table)+` FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return core.Movement{}, err
	}
	if len(rows) == 0 {
		return core.Movement{}, core.ErrNotFound
	}
	return rows[0], nil
}

// ListInward returns receipt records matching the filter, newest entry
// date first, ties broken by id descending.
func (r *SQLiteRepository) ListInward(ctx context.Context, f Filter) ([]core.Movement, error) {
	where, args := f.clause()
	q := `SELECT ` + columnsFor("inward") + ` FROM inward` + where + ` ORDER BY entry_date DESC, id DESC`
	return r.queryMovements(ctx, core.Inward, q, args...)
}

// ListOutward returns dispatch records matching the filter, newest first.
func (r *SQLiteRepository) ListOutward(ctx context.Context, f Filter) ([]core.Movement, error) {
	where, args := f.clause()
	q := `SELECT ` + columnsFor("outward") + ` FROM outward` + where + ` ORDER BY entry_date DESC, id DESC`
	return r.queryMovements(ctx, core.Outward, q, args...)
}

// AllMovements returns every journal record in both directions. It feeds
// reconciliation and must never be narrowed by a display filter.
func (r *SQLiteRepository) AllMovements(ctx context.Context) ([]core.Movement, error) {
	inward, err := r.ListInward(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	outward, err := r.ListOutward(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	return append(inward, outward...), nil
}

func (f Filter) clause() (string, []any) {
	where := ""
	var args []any
	if f.CustomerID != 0 {
		where = ` WHERE customer_id = ?`
		args = append(args, f.CustomerID)
	}
	if f.ItemID != 0 {
		if where == "" {
			where = ` WHERE item_id = ?`
		} else {
			where += ` AND item_id = ?`
		}
		args = append(args, f.ItemID)
	}
	return where, args
}

func tableFor(dir core.Direction) (string, error) {
	switch dir {
	case core.Inward:
		return "inward", nil
	case core.Outward:
		return "outward", nil
	}
	return "", core.ErrInvalidDirection
}

func columnsFor(table string) string {
	if table == "inward" {
		return `id, entry_date, customer_id, item_id, dc_no_cust, qty, rate, amt, '', export_state`
	}
	return `id, entry_date, customer_id, item_id, dc_no_cust, qty, '0', '0', dc_unique_no_noncust, export_state`
}

func (r *SQLiteRepository) queryMovements(ctx context.Context, dir core.Direction, q string, args ...any) ([]core.Movement, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s movements: %w", dir, err)
	}
	defer rows.Close()

	var out []core.Movement
	for rows.Next() {
		var (
			m                      core.Movement
			entryDate              string
			qty, rate, amt, unique string
			state                  string
		)
		if err := rows.Scan(&m.ID, &entryDate, &m.CustomerID, &m.ItemID, &m.DCNoCust,
			&qty, &rate, &amt, &unique, &state); err != nil {
			return nil, fmt.Errorf("scan %s movement: %w", dir, err)
		}

		m.Direction = dir
		m.DCUniqueNo = unique
		m.ExportState = core.ExportState(state)
		if m.EntryDate, err = core.ParseDate(entryDate); err != nil {
			return nil, fmt.Errorf("movement %d: bad entry date %q", m.ID, entryDate)
		}
		if m.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("movement %d: bad qty %q", m.ID, qty)
		}
		if m.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("movement %d: bad rate %q", m.ID, rate)
		}
		if m.Amount, err = decimal.NewFromString(amt); err != nil {
			return nil, fmt.Errorf("movement %d: bad amount %q", m.ID, amt)
		}
		if dir == core.Outward {
			m.Rate = decimal.Zero
			m.Amount = decimal.Zero
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s movements: %w", dir, err)
	}
	return out, nil
}

// MarkExported records a successful archive projection.
func (r *SQLiteRepository) MarkExported(ctx context.Context, dir core.Direction, id int64) error {
	return r.setExportState(ctx, dir, id, core.Exported)
}

// MarkExportError flags a journal row whose archive write failed, so the
// divergence is visible and retryable instead of silently swallowed.
func (r *SQLiteRepository) MarkExportError(ctx context.Context, dir core.Direction, id int64) error {
	return r.setExportState(ctx, dir, id, core.ExportFailed)
}

func (r *SQLiteRepository) setExportState(ctx context.Context, dir core.Direction, id int64, state core.ExportState) error {
	table, err := tableFor(dir)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE `+table+` SET export_state = ? WHERE id = ?`, string(state), id)
	if err != nil {
		return fmt.Errorf("set export state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set export state: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ListUnexported returns rows still waiting for (or having failed) their
// archive projection, oldest first, across both directions.
func (r *SQLiteRepository) ListUnexported(ctx context.Context, limit int) ([]core.Movement, error) {
	states := []string{string(core.ExportPending), string(core.ExportFailed)}
	return r.listByExportState(ctx, states, limit)
}

// ListExportFailures returns only rows whose archive write failed after a
// successful journal commit.
func (r *SQLiteRepository) ListExportFailures(ctx context.Context) ([]core.Movement, error) {
	return r.listByExportState(ctx, []string{string(core.ExportFailed)}, 0)
}

func (r *SQLiteRepository) listByExportState(ctx context.Context, states []string, limit int) ([]core.Movement, error) {
	var out []core.Movement
	for _, dir := range []core.Direction{core.Inward, core.Outward} {
		table, _ := tableFor(dir)
		q := `SELECT ` + columnsFor(table) + ` FROM ` + table + ` WHERE export_state IN (?` +
			repeatPlaceholder(len(states)-1) + `) ORDER BY id ASC`
		args := make([]any, 0, len(states)+1)
		for _, s := range states {
			args = append(args, s)
		}
		if limit > 0 {
			q += ` LIMIT ?`
			args = append(args, limit)
		}
		rows, err := r.queryMovements(ctx, dir, q, args...)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func repeatPlaceholder(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += ", ?"
	}
	return s
}
