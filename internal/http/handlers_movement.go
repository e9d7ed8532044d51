package http

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"dcledger/internal/core"
	"dcledger/internal/services"
)

type inwardRequest struct {
	EntryDate  string          `json:"entry_date"`
	CustomerID int64           `json:"customer_id"`
	ItemID     int64           `json:"item_id"`
	DCNoCust   string          `json:"dc_no_cust"`
	Qty        decimal.Decimal `json:"qty"`
	Rate       decimal.Decimal `json:"rate"`
}

type outwardRequest struct {
	EntryDate  string          `json:"entry_date"`
	CustomerID int64           `json:"customer_id"`
	ItemID     int64           `json:"item_id"`
	DCNoCust   string          `json:"dc_no_cust"`
	DCUniqueNo string          `json:"dc_unique_no_noncust"`
	Qty        decimal.Decimal `json:"qty"`
}

type createResponse struct {
	ID          int64  `json:"id"`
	ExportState string `json:"export_state,omitempty"`
	ExportError string `json:"export_error,omitempty"`
}

type movementJSON struct {
	ID          int64           `json:"id"`
	Direction   string          `json:"direction"`
	EntryDate   string          `json:"entry_date"`
	CustomerID  int64           `json:"customer_id"`
	ItemID      int64           `json:"item_id"`
	DCNoCust    string          `json:"dc_no_cust"`
	Qty         decimal.Decimal `json:"qty"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amt"`
	DCUniqueNo  string          `json:"dc_unique_no_noncust,omitempty"`
	ExportState string          `json:"export_state"`
}

func toMovementJSON(m core.Movement) movementJSON {
	return movementJSON{
		ID:          m.ID,
		Direction:   string(m.Direction),
		EntryDate:   m.EntryDate.String(),
		CustomerID:  m.CustomerID,
		ItemID:      m.ItemID,
		DCNoCust:    m.DCNoCust,
		Qty:         m.Qty,
		Rate:        m.Rate,
		Amount:      m.Amount,
		DCUniqueNo:  m.DCUniqueNo,
		ExportState: string(m.ExportState),
	}
}

func (s *Server) handleInward(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listMovements(w, r, core.Inward)
	case http.MethodPost:
		s.createInward(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleOutward(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listMovements(w, r, core.Outward)
	case http.MethodPost:
		s.createOutward(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) listMovements(w http.ResponseWriter, r *http.Request, dir core.Direction) {
	movements, err := s.ledger.ListMovements(r.Context(), dir, parseFilter(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]movementJSON, 0, len(movements))
	for _, m := range movements {
		out = append(out, toMovementJSON(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createInward(w http.ResponseWriter, r *http.Request) {
	var req inwardRequest
	if !decodeBody(w, r, &req) {
		return
	}

	date, err := core.ParseDate(req.EntryDate)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	id, err := s.ledger.RecordInward(r.Context(), core.InwardEntry{
		EntryDate:  date,
		CustomerID: req.CustomerID,
		ItemID:     req.ItemID,
		DCNoCust:   sanitizeInput(req.DCNoCust),
		Qty:        req.Qty,
		Rate:       req.Rate,
	})
	writeCreateResult(w, r, id, err)
}

func (s *Server) createOutward(w http.ResponseWriter, r *http.Request) {
	var req outwardRequest
	if !decodeBody(w, r, &req) {
		return
	}

	date, err := core.ParseDate(req.EntryDate)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	id, err := s.ledger.RecordOutward(r.Context(), core.OutwardEntry{
		EntryDate:  date,
		CustomerID: req.CustomerID,
		ItemID:     req.ItemID,
		DCNoCust:   sanitizeInput(req.DCNoCust),
		DCUniqueNo: sanitizeInput(req.DCUniqueNo),
		Qty:        req.Qty,
	})
	writeCreateResult(w, r, id, err)
}

// writeCreateResult reports a committed journal row. An archive export
// failure still answers 201: the row exists, its archive write will be
// retried, and the divergence is spelled out in the body.
func writeCreateResult(w http.ResponseWriter, r *http.Request, id int64, err error) {
	if err != nil {
		var exportErr *services.ExportError
		if errors.As(err, &exportErr) {
			writeJSON(w, http.StatusCreated, createResponse{
				ID:          id,
				ExportState: string(core.ExportFailed),
				ExportError: exportErr.Error(),
			})
			return
		}
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{ID: id})
}

type movementsJSON struct {
	Inward  []movementJSON `json:"inward"`
	Outward []movementJSON `json:"outward"`
}

// handleMovements serves the filtered journal view, both directions
// side by side.
func (s *Server) handleMovements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	f := parseFilter(r)
	out := movementsJSON{Inward: []movementJSON{}, Outward: []movementJSON{}}
	for _, dir := range []core.Direction{core.Inward, core.Outward} {
		movements, err := s.ledger.ListMovements(r.Context(), dir, f)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		for _, m := range movements {
			if dir == core.Inward {
				out.Inward = append(out.Inward, toMovementJSON(m))
			} else {
				out.Outward = append(out.Outward, toMovementJSON(m))
			}
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleMovementByID serves /api/movements/{direction}/{id}.
func (s *Server) handleMovementByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodDelete)
		return
	}

	parts := pathTail(r, "/api/movements/")
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	dir, err := core.ParseDirection(parts[0])
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	id, err := parseID(parts[1])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.ledger.Delete(r.Context(), dir, id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type overviewRowJSON struct {
	ID           int64           `json:"id"`
	EntryDate    string          `json:"entry_date"`
	CustomerID   int64           `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	ItemID       int64           `json:"item_id"`
	ItemName     string          `json:"item_name"`
	HSNCode      string          `json:"hsn_code"`
	DCNoCust     string          `json:"dc_no_cust"`
	Qty          decimal.Decimal `json:"qty"`
	Rate         decimal.Decimal `json:"rate"`
	Amount       decimal.Decimal `json:"amt"`
	Dispatched   decimal.Decimal `json:"dispatched"`
	Pending      decimal.Decimal `json:"pending"`
	ExportState  string          `json:"export_state"`
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	rows, err := s.ledger.Overview(r.Context(), parseFilter(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]overviewRowJSON, 0, len(rows))
	for _, row := range rows {
		out = append(out, overviewRowJSON{
			ID:           row.ID,
			EntryDate:    row.EntryDate.String(),
			CustomerID:   row.CustomerID,
			CustomerName: row.CustomerName,
			ItemID:       row.ItemID,
			ItemName:     row.ItemName,
			HSNCode:      row.HSNCode,
			DCNoCust:     row.DCNoCust,
			Qty:          row.Qty,
			Rate:         row.Rate,
			Amount:       row.Amount,
			Dispatched:   row.Dispatched,
			Pending:      row.Pending,
			ExportState:  string(row.ExportState),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExportFailures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	failures, err := s.ledger.ExportFailures(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]movementJSON, 0, len(failures))
	for _, m := range failures {
		out = append(out, toMovementJSON(m))
	}
	writeJSON(w, http.StatusOK, out)
}
