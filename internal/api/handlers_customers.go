// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package api

import (
	"net/http"
	"path/filepath"

	"github.com/tomtom215/portico/internal/audit"
	"github.com/tomtom215/portico/internal/models"
	"github.com/tomtom215/portico/internal/spreadsheet"
)

// ListCustomers returns customers matching ?q= by name, org number or city.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	page, err := h.db.ListCustomers(r.Context(), opts)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writePage(w, page)
}

// CreateCustomer adds a customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if !bind(w, r, &req) {
		return
	}
	c := req.model()
	if err := h.db.CreateCustomer(r.Context(), c); err != nil {
		handleError(w, r, err)
		return
	}
	writeCreated(w, c)
}

// GetCustomer returns a customer with its contacts.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.db.GetCustomer(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, c)
}

// UpdateCustomer replaces a customer's fields.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req customerRequest
	if !bind(w, r, &req) {
		return
	}
	c := req.model()
	c.ID = id
	if err := h.db.UpdateCustomer(r.Context(), c); err != nil {
		handleError(w, r, err)
		return
	}
	updated, err := h.db.GetCustomer(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, updated)
}

// DeleteCustomer removes a customer that has no quotes.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.db.DeleteCustomer(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	writeNoContent(w)
}

// ListContacts returns a customer's contacts.
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.db.GetCustomer(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	contacts, err := h.db.ListContacts(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeList(w, contacts)
}

// CreateContact adds a contact person to a customer.
func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req contactRequest
	if !bind(w, r, &req) {
		return
	}
	c := &models.Contact{CustomerID: id, Name: req.Name, Email: req.Email, Phone: req.Phone, Title: req.Title}
	if err := h.db.CreateContact(r.Context(), c); err != nil {
		handleError(w, r, err)
		return
	}
	writeCreated(w, c)
}

// UpdateContact replaces a contact's fields.
func (h *Handler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	contactID, ok := pathID(w, r, "contactID")
	if !ok {
		return
	}
	var req contactRequest
	if !bind(w, r, &req) {
		return
	}
	c := &models.Contact{ID: contactID, CustomerID: customerID, Name: req.Name, Email: req.Email, Phone: req.Phone, Title: req.Title}
	if err := h.db.UpdateContact(r.Context(), c); err != nil {
		handleError(w, r, err)
		return
	}
	updated, err := h.db.GetContact(r.Context(), customerID, contactID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeSuccess(w, updated)
}

// DeleteContact removes a contact. Quotes referencing it keep their data.
func (h *Handler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	contactID, ok := pathID(w, r, "contactID")
	if !ok {
		return
	}
	if err := h.db.DeleteContact(r.Context(), customerID, contactID); err != nil {
		handleError(w, r, err)
		return
	}
	writeNoContent(w)
}

// ImportCustomers upserts customers from an uploaded .xlsx, .xls or .csv
// workbook and reports per-row failures.
func (h *Handler) ImportCustomers(w http.ResponseWriter, r *http.Request) {
	file, header, ok := h.formFile(w, r, "file")
	if !ok {
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	res, err := spreadsheet.ImportCustomers(r.Context(), h.db, name, file)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.EventTypeDataImport, actor(claimsFrom(r)),
		&audit.Target{Type: "customers", ID: name}, "import", "Imported customers from spreadsheet",
		map[string]any{"created": res.Created, "updated": res.Updated, "skipped": res.Skipped, "errors": len(res.Errors)})
	writeSuccess(w, res)
}
