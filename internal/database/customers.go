// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tomtom215/portico/internal/database/query"
	"github.com/tomtom215/portico/internal/models"
)

const customerColumns = `id, name, org_number, email, phone, address, postal_code, city, country, notes, created_at, updated_at`

func scanCustomer(r rowScanner) (*models.Customer, error) {
	var c models.Customer
	if err := r.Scan(&c.ID, &c.Name, &c.OrgNumber, &c.Email, &c.Phone, &c.Address,
		&c.PostalCode, &c.City, &c.Country, &c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// CreateCustomer inserts c and fills ID and timestamps.
func (db *DB) CreateCustomer(ctx context.Context, c *models.Customer) error {
	return db.createCustomer(ctx, db.conn, c)
}

func (db *DB) createCustomer(ctx context.Context, q querier, c *models.Customer) error {
	now := db.now()
	c.CreatedAt, c.UpdatedAt = now, now
	id, err := db.insert(ctx, q, "customers",
		`INSERT INTO customers (name, org_number, email, phone, address, postal_code, city, country, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.OrgNumber, c.Email, c.Phone, c.Address, c.PostalCode, c.City, c.Country, c.Notes, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	c.ID = id
	return nil
}

// GetCustomer returns a customer with its contacts.
func (db *DB) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	c, err := scanCustomer(db.queryRow(ctx, db.conn, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if c.Contacts, err = db.ListContacts(ctx, id); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCustomers searches by name, org number and city.
func (db *DB) ListCustomers(ctx context.Context, opts models.ListOptions) (*models.Page[models.Customer], error) {
	limit, offset := clampPage(opts.Limit, opts.Offset, db.pageDefault(), db.pageMax())
	where, args := query.NewWhereBuilder().
		AddSearch(opts.Search, "LOWER(name)", "LOWER(org_number)", "LOWER(city)").
		BuildWithPrefix()

	page := &models.Page[models.Customer]{Items: []models.Customer{}, Limit: limit, Offset: offset}
	if err := db.queryRow(ctx, db.conn, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&page.Total); err != nil {
		return nil, err
	}
	rows, err := db.query(ctx, db.conn, "customers",
		`SELECT `+customerColumns+` FROM customers`+where+` ORDER BY LOWER(name), id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, *c)
	}
	return page, rows.Err()
}

// UpdateCustomer overwrites the editable fields of c.
func (db *DB) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	return db.updateCustomer(ctx, db.conn, c)
}

func (db *DB) updateCustomer(ctx context.Context, q querier, c *models.Customer) error {
	c.UpdatedAt = db.now()
	return db.execOne(ctx, q, "customers", ErrNotFound,
		`UPDATE customers SET name = ?, org_number = ?, email = ?, phone = ?, address = ?, postal_code = ?,
		 city = ?, country = ?, notes = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.OrgNumber, c.Email, c.Phone, c.Address, c.PostalCode, c.City, c.Country, c.Notes, c.UpdatedAt, c.ID)
}

// DeleteCustomer removes a customer and its contacts. Customers with quotes
// cannot be deleted.
func (db *DB) DeleteCustomer(ctx context.Context, id int64) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		var quotes int
		if err := db.queryRow(ctx, tx, `SELECT COUNT(*) FROM quotes WHERE customer_id = ?`, id).Scan(&quotes); err != nil {
			return err
		}
		if quotes > 0 {
			return fmt.Errorf("%w: customer has %d quotes", ErrConflict, quotes)
		}
		if _, err := db.exec(ctx, tx, "customer_contacts", `DELETE FROM customer_contacts WHERE customer_id = ?`, id); err != nil {
			return err
		}
		return db.execOne(ctx, tx, "customers", ErrNotFound, `DELETE FROM customers WHERE id = ?`, id)
	})
}

const contactColumns = `id, customer_id, name, email, phone, title, created_at`

func scanContact(r rowScanner) (*models.Contact, error) {
	var c models.Contact
	if err := r.Scan(&c.ID, &c.CustomerID, &c.Name, &c.Email, &c.Phone, &c.Title, &c.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ListContacts returns the contacts of one customer.
func (db *DB) ListContacts(ctx context.Context, customerID int64) ([]models.Contact, error) {
	return db.listContacts(ctx, db.conn, customerID)
}

func (db *DB) listContacts(ctx context.Context, q querier, customerID int64) ([]models.Contact, error) {
	rows, err := db.query(ctx, q, "customer_contacts",
		`SELECT `+contactColumns+` FROM customer_contacts WHERE customer_id = ? ORDER BY LOWER(name), id`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetContact returns one contact of a customer.
func (db *DB) GetContact(ctx context.Context, customerID, id int64) (*models.Contact, error) {
	return scanContact(db.queryRow(ctx, db.conn,
		`SELECT `+contactColumns+` FROM customer_contacts WHERE id = ? AND customer_id = ?`, id, customerID))
}

// CreateContact adds a contact to an existing customer.
func (db *DB) CreateContact(ctx context.Context, c *models.Contact) error {
	return db.createContact(ctx, db.conn, c)
}

func (db *DB) createContact(ctx context.Context, q querier, c *models.Contact) error {
	var exists int
	if err := db.queryRow(ctx, q, `SELECT COUNT(*) FROM customers WHERE id = ?`, c.CustomerID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	c.CreatedAt = db.now()
	id, err := db.insert(ctx, q, "customer_contacts",
		`INSERT INTO customer_contacts (customer_id, name, email, phone, title, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.CustomerID, c.Name, c.Email, c.Phone, c.Title, c.CreatedAt)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

// UpdateContact overwrites a contact's fields.
func (db *DB) UpdateContact(ctx context.Context, c *models.Contact) error {
	return db.execOne(ctx, db.conn, "customer_contacts", ErrNotFound,
		`UPDATE customer_contacts SET name = ?, email = ?, phone = ?, title = ? WHERE id = ? AND customer_id = ?`,
		c.Name, c.Email, c.Phone, c.Title, c.ID, c.CustomerID)
}

// DeleteContact removes a contact and detaches it from quotes.
func (db *DB) DeleteContact(ctx context.Context, customerID, id int64) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := db.exec(ctx, tx, "quotes", `UPDATE quotes SET contact_id = NULL WHERE contact_id = ?`, id); err != nil {
			return err
		}
		return db.execOne(ctx, tx, "customer_contacts", ErrNotFound,
			`DELETE FROM customer_contacts WHERE id = ? AND customer_id = ?`, id, customerID)
	})
}

// UpsertImportedCustomer matches an imported row to an existing customer by
// org number, else by case-insensitive name, and updates or creates it. A
// non-nil contact is added unless one with the same name already exists.
// Empty imported fields never overwrite stored values.
func (db *DB) UpsertImportedCustomer(ctx context.Context, c *models.Customer, contact *models.Contact) (created bool, err error) {
	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		existing, err := db.findCustomerForImport(ctx, tx, c)
		if err != nil {
			return err
		}
		if existing == nil {
			if err := db.createCustomer(ctx, tx, c); err != nil {
				return err
			}
			created = true
		} else {
			mergeCustomer(existing, c)
			if err := db.updateCustomer(ctx, tx, existing); err != nil {
				return err
			}
			*c = *existing
		}

		if contact == nil || strings.TrimSpace(contact.Name) == "" {
			return nil
		}
		contacts, err := db.listContacts(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		for _, existing := range contacts {
			if strings.EqualFold(existing.Name, contact.Name) {
				return nil
			}
		}
		contact.CustomerID = c.ID
		return db.createContact(ctx, tx, contact)
	})
	return created, err
}

func (db *DB) findCustomerForImport(ctx context.Context, q querier, c *models.Customer) (*models.Customer, error) {
	var row *sql.Row
	if org := strings.TrimSpace(c.OrgNumber); org != "" {
		row = db.queryRow(ctx, q, `SELECT `+customerColumns+` FROM customers WHERE org_number = ? ORDER BY id LIMIT 1`, org)
	} else {
		row = db.queryRow(ctx, q, `SELECT `+customerColumns+` FROM customers WHERE LOWER(name) = LOWER(?) ORDER BY id LIMIT 1`, c.Name)
	}
	existing, err := scanCustomer(row)
	if isNotFound(err) {
		return nil, nil
	}
	return existing, err
}

func mergeCustomer(dst, src *models.Customer) {
	set := func(d *string, s string) {
		if s = strings.TrimSpace(s); s != "" {
			*d = s
		}
	}
	set(&dst.Name, src.Name)
	set(&dst.OrgNumber, src.OrgNumber)
	set(&dst.Email, src.Email)
	set(&dst.Phone, src.Phone)
	set(&dst.Address, src.Address)
	set(&dst.PostalCode, src.PostalCode)
	set(&dst.City, src.City)
	set(&dst.Country, src.Country)
	set(&dst.Notes, src.Notes)
}
