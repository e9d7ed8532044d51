package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dcledger/internal/core"
)

// Master directory access. The journal core only ever reads from these
// tables; create/delete exist for the presentation boundary.

func (r *SQLiteRepository) CreateCustomer(ctx context.Context, c core.Customer) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (name, gst_no, address, mobile, email)
		VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.GSTNo, c.Address, c.Mobile, c.Email)
	if err != nil {
		return 0, fmt.Errorf("insert customer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("customer insert id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) ResolveCustomer(ctx context.Context, id int64) (core.Customer, error) {
	var c core.Customer
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, gst_no, address, mobile, email FROM customers WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.GSTNo, &c.Address, &c.Mobile, &c.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Customer{}, core.ErrNotFound
	}
	if err != nil {
		return core.Customer{}, fmt.Errorf("resolve customer %d: %w", id, err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCustomers(ctx context.Context) ([]core.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, gst_no, address, mobile, email FROM customers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []core.Customer
	for rows.Next() {
		var c core.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.GSTNo, &c.Address, &c.Mobile, &c.Email); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteCustomer(ctx context.Context, id int64) error {
	return r.deleteMaster(ctx, "customers", id)
}

func (r *SQLiteRepository) CreateItem(ctx context.Context, i core.Item) (int64, error) {
	if err := i.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO items (name, hsn_code, material) VALUES (?, ?, ?)`,
		i.Name, i.HSNCode, i.Material)
	if err != nil {
		return 0, fmt.Errorf("insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("item insert id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) ResolveItem(ctx context.Context, id int64) (core.Item, error) {
	var i core.Item
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, hsn_code, material FROM items WHERE id = ?`, id).
		Scan(&i.ID, &i.Name, &i.HSNCode, &i.Material)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Item{}, core.ErrNotFound
	}
	if err != nil {
		return core.Item{}, fmt.Errorf("resolve item %d: %w", id, err)
	}
	return i, nil
}

func (r *SQLiteRepository) ListItems(ctx context.Context) ([]core.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, hsn_code, material FROM items ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var out []core.Item
	for rows.Next() {
		var i core.Item
		if err := rows.Scan(&i.ID, &i.Name, &i.HSNCode, &i.Material); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteItem(ctx context.Context, id int64) error {
	return r.deleteMaster(ctx, "items", id)
}

func (r *SQLiteRepository) deleteMaster(ctx context.Context, table string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
