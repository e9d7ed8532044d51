package http

import (
	"context"
	"net/http"

	"dcledger/internal/core"
)

type customerRequest struct {
	Name    string `json:"name"`
	GSTNo   string `json:"gst_no"`
	Address string `json:"address"`
	Mobile  string `json:"mobile"`
	Email   string `json:"email"`
}

type itemRequest struct {
	Name     string `json:"name"`
	HSNCode  string `json:"hsn_code"`
	Material string `json:"material"`
}

type customerJSON struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	GSTNo   string `json:"gst_no"`
	Address string `json:"address"`
	Mobile  string `json:"mobile"`
	Email   string `json:"email"`
}

type itemJSON struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	HSNCode  string `json:"hsn_code"`
	Material string `json:"material"`
}

func (s *Server) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		customers, err := s.masters.ListCustomers(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		out := make([]customerJSON, 0, len(customers))
		for _, c := range customers {
			out = append(out, customerJSON{
				ID: c.ID, Name: c.Name, GSTNo: c.GSTNo,
				Address: c.Address, Mobile: c.Mobile, Email: c.Email,
			})
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var req customerRequest
		if !decodeBody(w, r, &req) {
			return
		}
		id, err := s.masters.CreateCustomer(r.Context(), core.Customer{
			Name:    sanitizeInput(req.Name),
			GSTNo:   sanitizeInput(req.GSTNo),
			Address: sanitizeInput(req.Address),
			Mobile:  sanitizeInput(req.Mobile),
			Email:   sanitizeInput(req.Email),
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, createResponse{ID: id})

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleCustomerByID(w http.ResponseWriter, r *http.Request) {
	s.deleteMaster(w, r, "/api/customers/", s.masters.DeleteCustomer)
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.masters.ListItems(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		out := make([]itemJSON, 0, len(items))
		for _, i := range items {
			out = append(out, itemJSON{ID: i.ID, Name: i.Name, HSNCode: i.HSNCode, Material: i.Material})
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var req itemRequest
		if !decodeBody(w, r, &req) {
			return
		}
		id, err := s.masters.CreateItem(r.Context(), core.Item{
			Name:     sanitizeInput(req.Name),
			HSNCode:  sanitizeInput(req.HSNCode),
			Material: sanitizeInput(req.Material),
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, createResponse{ID: id})

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleItemByID(w http.ResponseWriter, r *http.Request) {
	s.deleteMaster(w, r, "/api/items/", s.masters.DeleteItem)
}

func (s *Server) deleteMaster(w http.ResponseWriter, r *http.Request, prefix string, del func(ctx context.Context, id int64) error) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodDelete)
		return
	}

	parts := pathTail(r, prefix)
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := parseID(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := del(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
